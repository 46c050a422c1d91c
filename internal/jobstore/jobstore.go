// Package jobstore is the durable per-job record, generalizing the
// teacher's internal/repository.BaseRepository[T] generic CRUD into the
// job-specific atomic operations spec §4.1 names: Insert, Get, Update,
// SetStatus, IncrementRetry, ListPending, List.
package jobstore

import (
	"context"
	"errors"
	"time"

	"sttworker/internal/models"

	"gorm.io/gorm"
)

// ErrNotFound is returned by Get when no job exists with the given id.
var ErrNotFound = errors.New("jobstore: job not found")

// Store is the JobStore. A single *gorm.DB is shared read-mostly; each
// operation runs in its own transaction so concurrent updaters (tolerated
// under at-least-once redelivery) never interleave a partial patch.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Insert assigns a fresh id, sets status=PENDING and created_at=now, and
// persists job. The caller-populated ID field, if any, is ignored.
func (s *Store) Insert(ctx context.Context, job *models.Job) (string, error) {
	job.ID = ""
	job.Status = models.StatusPending
	if err := s.db.WithContext(ctx).Create(job).Error; err != nil {
		return "", err
	}
	return job.ID, nil
}

// Get loads a job and its chunks by id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*models.Job, error) {
	var job models.Job
	err := s.db.WithContext(ctx).
		Preload("Chunks", func(db *gorm.DB) *gorm.DB { return db.Order(`"index" ASC`) }).
		First(&job, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// Update applies a partial patch to job id, setting updated_at atomically
// with it. Applying the same patch twice is a no-op beyond the timestamp
// bump, satisfying the at-least-once redelivery contract.
func (s *Store) Update(ctx context.Context, id string, patch map[string]any) error {
	patch["updated_at"] = time.Now()
	res := s.db.WithContext(ctx).Model(&models.Job{}).Where("id = ?", id).Updates(patch)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetStatus transitions job id to status, stamping started_at when entering
// PROCESSING and completed_at when entering a terminal status. errMsg is
// recorded only when status is FAILED.
func (s *Store) SetStatus(ctx context.Context, id string, status models.JobStatus, errMsg string) error {
	patch := map[string]any{"status": status}
	now := time.Now()
	switch status {
	case models.StatusProcessing:
		patch["started_at"] = now
	case models.StatusCompleted:
		patch["completed_at"] = now
	case models.StatusFailed:
		patch["completed_at"] = now
		if errMsg != "" {
			patch["error_message"] = errMsg
		}
	}
	return s.Update(ctx, id, patch)
}

// IncrementRetry atomically bumps retry_count by one, used when the
// consumer requeues a transiently-failed delivery.
func (s *Store) IncrementRetry(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Model(&models.Job{}).Where("id = ?", id).
		UpdateColumns(map[string]any{
			"retry_count": gorm.Expr("retry_count + 1"),
			"updated_at":  time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ReplaceChunks overwrites job id's chunk descriptors (created once during
// the chunk phase; never mutated afterwards except for status/text/error on
// individual chunks via UpdateChunk).
func (s *Store) ReplaceChunks(ctx context.Context, jobID string, chunks []models.JobChunk) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("job_id = ?", jobID).Delete(&models.JobChunk{}).Error; err != nil {
			return err
		}
		for i := range chunks {
			chunks[i].JobID = jobID
		}
		if len(chunks) == 0 {
			return nil
		}
		return tx.Create(&chunks).Error
	})
}

// UpdateChunk patches one chunk's status/text/error by (jobID, index).
func (s *Store) UpdateChunk(ctx context.Context, jobID string, index int, patch map[string]any) error {
	patch["updated_at"] = time.Now()
	return s.db.WithContext(ctx).Model(&models.JobChunk{}).
		Where(`job_id = ? AND "index" = ?`, jobID, index).
		Updates(patch).Error
}

// ListPending returns up to limit PENDING jobs ordered oldest-first, for
// reconciliation sweeps over the (status, created_at) index.
func (s *Store) ListPending(ctx context.Context, limit int) ([]models.Job, error) {
	return s.List(ctx, models.StatusPending, limit)
}

// List returns up to limit jobs, optionally filtered by status, oldest
// first. An empty status lists across all statuses.
func (s *Store) List(ctx context.Context, status models.JobStatus, limit int) ([]models.Job, error) {
	var jobs []models.Job
	q := s.db.WithContext(ctx).Order("created_at ASC").Limit(limit)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}
