package submitter

import (
	"context"
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

type fakePublisher struct {
	published []models.QueueMessage
	priority  []uint8
}

func (p *fakePublisher) Publish(ctx context.Context, msg models.QueueMessage, priority uint8) error {
	p.published = append(p.published, msg)
	p.priority = append(p.priority, priority)
	return nil
}

func newSubmitter(t *testing.T, pub *fakePublisher) (*Submitter, *jobstore.Store) {
	t.Helper()
	store := newTestStore(t)
	s := &Submitter{jobs: store, queue: pub, defaultModel: "medium", maxUploadMB: 500}
	return s, store
}

func TestSubmitInsertsJobAndPublishesWithDefaults(t *testing.T) {
	pub := &fakePublisher{}
	s, store := newSubmitter(t, pub)

	id, err := s.Submit(context.Background(), Request{
		OriginalFilename: "interview.mp3",
		BlobPath:         "uploads/abc.mp3",
		SizeMB:           42,
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	job, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, "vi", job.Language)
	require.Equal(t, "medium", job.Model)
	require.Equal(t, models.StatusPending, job.Status)
	require.Equal(t, models.StrategySilenceAware, job.ChunkStrategy)

	require.Len(t, pub.published, 1)
	require.Equal(t, id, pub.published[0].JobID)
	require.Equal(t, "vi", pub.published[0].Language)
	require.Equal(t, uint8(defaultPriority), pub.priority[0])
}

func TestSubmitHonorsExplicitLanguageAndModel(t *testing.T) {
	pub := &fakePublisher{}
	s, store := newSubmitter(t, pub)

	id, err := s.Submit(context.Background(), Request{
		OriginalFilename: "talk.wav",
		BlobPath:         "uploads/talk.wav",
		SizeMB:           10,
		Language:         "en",
		Model:            "large",
	})
	require.NoError(t, err)

	job, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, "en", job.Language)
	require.Equal(t, "large", job.Model)
}

func TestSubmitRejectsOversizeUpload(t *testing.T) {
	pub := &fakePublisher{}
	s, _ := newSubmitter(t, pub)

	_, err := s.Submit(context.Background(), Request{
		OriginalFilename: "huge.mp3",
		BlobPath:         "uploads/huge.mp3",
		SizeMB:           600,
	})
	require.Error(t, err)
	require.True(t, jobflow.IsPermanent(err))
	require.Empty(t, pub.published, "an oversize submission must never reach the queue")
}

func TestSubmitDoubleSubmitCreatesTwoDistinctJobs(t *testing.T) {
	pub := &fakePublisher{}
	s, _ := newSubmitter(t, pub)

	req := Request{OriginalFilename: "a.mp3", BlobPath: "uploads/a.mp3", SizeMB: 5}
	id1, err := s.Submit(context.Background(), req)
	require.NoError(t, err)
	id2, err := s.Submit(context.Background(), req)
	require.NoError(t, err)

	require.NotEqual(t, id1, id2)
	require.Len(t, pub.published, 2)
}
