package consumer

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"sttworker/internal/jobflow"
	"sttworker/internal/jobstore"
	"sttworker/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestStore(t *testing.T) *jobstore.Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Job{}, &models.JobChunk{}, &models.FileRecord{}))
	return jobstore.New(db)
}

func insertPendingJob(t *testing.T, store *jobstore.Store) string {
	t.Helper()
	id, err := store.Insert(context.Background(), &models.Job{
		Model:            "medium",
		OriginalFilename: "interview.mp3",
		AudioPath:        "uploads/interview.mp3",
		FileSizeMB:       5,
	})
	require.NoError(t, err)
	return id
}

type fakeDelivery struct {
	jobID                     string
	acked, requeued, rejected bool
}

func (d *fakeDelivery) Message() models.QueueMessage { return models.QueueMessage{JobID: d.jobID} }
func (d *fakeDelivery) Ack() error                   { d.acked = true; return nil }
func (d *fakeDelivery) Requeue() error               { d.requeued = true; return nil }
func (d *fakeDelivery) Reject() error                { d.rejected = true; return nil }

type fakePipeline struct {
	err   error
	panic any
}

func (p *fakePipeline) Run(ctx context.Context, jobID string) error {
	if p.panic != nil {
		panic(p.panic)
	}
	return p.err
}

func TestDispatchAcksOnSuccess(t *testing.T) {
	store := newTestStore(t)
	id := insertPendingJob(t, store)

	c := New(nil, store, &fakePipeline{err: nil}, Config{})
	d := &fakeDelivery{jobID: id}
	c.dispatch(d, id)

	require.True(t, d.acked)
	require.False(t, d.requeued)
	require.False(t, d.rejected)
}

func TestDispatchRejectsAndMarksFailedOnPermanentError(t *testing.T) {
	store := newTestStore(t)
	id := insertPendingJob(t, store)

	permErr := jobflow.New(jobflow.KindCorruptedAudio, errors.New("bad audio"))
	c := New(nil, store, &fakePipeline{err: permErr}, Config{})
	d := &fakeDelivery{jobID: id}
	c.dispatch(d, id)

	require.True(t, d.rejected)
	require.False(t, d.acked)
	require.False(t, d.requeued)

	job, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, models.StatusFailed, job.Status)
	require.NotNil(t, job.ErrorMessage)
}

func TestDispatchRequeuesAndIncrementsRetryOnTransientError(t *testing.T) {
	store := newTestStore(t)
	id := insertPendingJob(t, store)

	transErr := jobflow.New(jobflow.KindBlobIO, errors.New("network blip"))
	c := New(nil, store, &fakePipeline{err: transErr}, Config{})
	d := &fakeDelivery{jobID: id}
	c.dispatch(d, id)

	require.True(t, d.requeued)
	require.False(t, d.acked)
	require.False(t, d.rejected)

	job, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, 1, job.RetryCount)
	require.NotEqual(t, models.StatusFailed, job.Status)
}

func TestDispatchTreatsUnrecoverablePanicAsTransient(t *testing.T) {
	store := newTestStore(t)
	id := insertPendingJob(t, store)

	c := New(nil, store, &fakePipeline{panic: fmt.Errorf("nil pointer somewhere")}, Config{})
	d := &fakeDelivery{jobID: id}
	c.dispatch(d, id)

	require.True(t, d.requeued)
	require.False(t, d.acked)
	require.False(t, d.rejected)

	job, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, 1, job.RetryCount)
}
