// Package submitter implements JobSubmitter (spec §4.9): the entry point
// the out-of-scope HTTP layer calls to turn an uploaded FileRecord into a
// queued Job. It is grounded on the teacher's upload-then-enqueue flow in
// internal/api/handlers.go, generalized from the teacher's in-process
// TaskQueue.EnqueueJob call into a durable mqueue.Queue publish.
package submitter

import (
	"context"
	"fmt"
	"time"

	"sttworker/internal/jobflow"
	"sttworker/internal/jobstore"
	"sttworker/internal/models"
	"sttworker/internal/mqueue"
)

const (
	defaultLanguage = "vi"
	defaultPriority = 5
)

// publisher is the narrow slice of mqueue.Queue the Submitter needs, kept
// local so tests can substitute a fake instead of a live broker connection.
type publisher interface {
	Publish(ctx context.Context, msg models.QueueMessage, priority uint8) error
}

// Submitter is the JobSubmitter.
type Submitter struct {
	jobs         *jobstore.Store
	queue        publisher
	defaultModel string
	maxUploadMB  float64
}

// New builds a Submitter. maxUploadMB is the configured ceiling (spec §3:
// file_size_mb ≤ 500 MB by default).
func New(jobs *jobstore.Store, queue *mqueue.Queue, defaultModel string, maxUploadMB float64) *Submitter {
	return &Submitter{jobs: jobs, queue: queue, defaultModel: defaultModel, maxUploadMB: maxUploadMB}
}

// Request describes one submission, derived from an already-stored
// FileRecord plus the caller's language preference.
type Request struct {
	OriginalFilename string
	BlobPath         string
	SizeMB           float64
	Language         string
	Model            string
	ChunkStrategy    models.ChunkStrategy
}

// Submit validates size, inserts a PENDING Job, and publishes a
// QueueMessage for it. Idempotency is not required at this layer: calling
// Submit twice with the same request creates two distinct jobs.
func (s *Submitter) Submit(ctx context.Context, req Request) (string, error) {
	if req.SizeMB > s.maxUploadMB {
		return "", jobflow.New(jobflow.KindOversizeUpload,
			fmt.Errorf("upload is %.1f MB, exceeds the %.1f MB limit", req.SizeMB, s.maxUploadMB))
	}

	language := req.Language
	if language == "" {
		language = defaultLanguage
	}
	model := req.Model
	if model == "" {
		model = s.defaultModel
	}
	strategy := req.ChunkStrategy
	if strategy == "" {
		strategy = models.StrategySilenceAware
	}

	job := &models.Job{
		Language:         language,
		Model:            model,
		OriginalFilename: req.OriginalFilename,
		AudioPath:        req.BlobPath,
		ChunkStrategy:    strategy,
		FileSizeMB:       req.SizeMB,
	}
	id, err := s.jobs.Insert(ctx, job)
	if err != nil {
		return "", jobflow.New(jobflow.KindJobStoreUnavail, fmt.Errorf("insert job: %w", err))
	}

	msg := models.QueueMessage{
		JobID:       id,
		Language:    language,
		Model:       model,
		Filename:    req.OriginalFilename,
		PublishedAt: float64(time.Now().Unix()),
	}
	if err := s.queue.Publish(ctx, msg, defaultPriority); err != nil {
		return "", jobflow.New(jobflow.KindBrokerConnect, fmt.Errorf("publish job %s: %w", id, err))
	}
	return id, nil
}
