package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"sttworker/internal/chunker"
	"sttworker/internal/jobflow"
	"sttworker/internal/jobstore"
	"sttworker/internal/models"
	"sttworker/internal/transcriber"

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

type fakeBlobStore struct {
	mu      sync.Mutex
	uploads map[string][]byte
}

func newFakeBlobStore() *fakeBlobStore { return &fakeBlobStore{uploads: map[string][]byte{}} }

func (f *fakeBlobStore) Download(ctx context.Context, path, localFile string) error {
	return nil // test audio files are never actually read by the fake chunker
}

func (f *fakeBlobStore) Upload(ctx context.Context, path string, data []byte, contentType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads[path] = data
	return nil
}

type fakeChunker struct {
	n int
}

func (c *fakeChunker) Chunk(ctx context.Context, audioPath, outDir string, policy chunker.Policy) ([]chunker.Chunk, error) {
	chunks := make([]chunker.Chunk, c.n)
	for i := 0; i < c.n; i++ {
		chunks[i] = chunker.Chunk{Index: i, StartS: float64(i) * 10, EndS: float64(i+1) * 10, Path: fmt.Sprintf("chunk-%d.wav", i)}
	}
	return chunks, nil
}

// fakeTranscriber fails the chunks listed in failIndices every attempt,
// and succeeds all others immediately.
type fakeTranscriber struct {
	failIndices map[int]bool
}

func (t *fakeTranscriber) Transcribe(chunkPath, language string) (transcriber.Result, error) {
	var idx int
	fmt.Sscanf(chunkPath, "chunk-%d.wav", &idx)
	if t.failIndices[idx] {
		return transcriber.Result{}, jobflow.New(jobflow.KindTranscriberCrash, fmt.Errorf("simulated crash on chunk %d", idx))
	}
	return transcriber.Result{Text: fmt.Sprintf("text for chunk %d", idx)}, nil
}

func (t *fakeTranscriber) Close() error { return nil }

func testConfig() Config {
	return Config{
		MaxParallelWorkers: 4,
		ChunkTimeout:       2 * time.Second,
		MaxRetries:         1,
		RetryBaseDelay:     1 * time.Millisecond,
		ChunkPolicy:        chunker.DefaultPolicy(chunker.StrategySilenceAware),
		TempDir:            "",
	}
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

func TestRunCompletesJobWhenAllChunksSucceed(t *testing.T) {
	store := newTestStore(t)
	id := insertPendingJob(t, store)

	o := New(Dependencies{
		Jobs:        store,
		Blobs:       newFakeBlobStore(),
		Chunker:     &fakeChunker{n: 3},
		Transcriber: &fakeTranscriber{failIndices: map[int]bool{}},
	}, testConfig())

	err := o.Run(context.Background(), id)
	require.NoError(t, err)

	job, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, models.StatusCompleted, job.Status)
	require.Equal(t, 3, job.ChunksCompleted)
	require.NotNil(t, job.TranscriptionText)
	require.NotNil(t, job.ResultPath)
	require.NotNil(t, job.CompletedAt)
}

func TestRunReturnsJobNotFoundForMissingJob(t *testing.T) {
	store := newTestStore(t)
	o := New(Dependencies{
		Jobs:        store,
		Blobs:       newFakeBlobStore(),
		Chunker:     &fakeChunker{n: 1},
		Transcriber: &fakeTranscriber{},
	}, testConfig())

	err := o.Run(context.Background(), "does-not-exist")
	require.Error(t, err)
	require.True(t, jobflow.IsPermanent(err))
}

func TestRunReturnsAllChunksFailedWhenEveryChunkFails(t *testing.T) {
	store := newTestStore(t)
	id := insertPendingJob(t, store)

	o := New(Dependencies{
		Jobs:        store,
		Blobs:       newFakeBlobStore(),
		Chunker:     &fakeChunker{n: 2},
		Transcriber: &fakeTranscriber{failIndices: map[int]bool{0: true, 1: true}},
	}, testConfig())

	err := o.Run(context.Background(), id)
	require.Error(t, err)
	require.True(t, jobflow.IsPermanent(err))

	job, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	require.NotEqual(t, models.StatusCompleted, job.Status, "a job with no successful chunks must not reach COMPLETED")
}

func TestRunContainsPartialChunkFailures(t *testing.T) {
	store := newTestStore(t)
	id := insertPendingJob(t, store)

	o := New(Dependencies{
		Jobs:        store,
		Blobs:       newFakeBlobStore(),
		Chunker:     &fakeChunker{n: 4},
		Transcriber: &fakeTranscriber{failIndices: map[int]bool{2: true}},
	}, testConfig())

	err := o.Run(context.Background(), id)
	require.NoError(t, err, "one failed chunk out of four must not fail the job")

	job, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, models.StatusCompleted, job.Status)
	require.Equal(t, 3, job.ChunksCompleted)

	var failed, completed int
	for _, c := range job.Chunks {
		switch c.Status {
		case models.ChunkFailed:
			failed++
		case models.ChunkCompleted:
			completed++
		}
	}
	require.Equal(t, 1, failed)
	require.Equal(t, 3, completed)
}

func TestRunIsIdempotentUnderRedelivery(t *testing.T) {
	store := newTestStore(t)
	id := insertPendingJob(t, store)

	o := New(Dependencies{
		Jobs:        store,
		Blobs:       newFakeBlobStore(),
		Chunker:     &fakeChunker{n: 2},
		Transcriber: &fakeTranscriber{failIndices: map[int]bool{}},
	}, testConfig())

	require.NoError(t, o.Run(context.Background(), id))
	// A redelivery of the same message re-enters Run on the now-COMPLETED
	// job; patch-based updates must tolerate replaying without corrupting
	// state.
	require.NoError(t, o.Run(context.Background(), id))

	job, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, models.StatusCompleted, job.Status)
	require.Equal(t, 2, job.ChunksCompleted)
	require.Len(t, job.Chunks, 2)
}
