// Package orchestrator runs the seven-phase job pipeline spec §4.7
// describes: Load, Stage, Chunk, Transcribe, Merge, Publish, Close. It is
// grounded on the teacher's internal/queue.TaskQueue worker loop (the
// per-job goroutine, WaitGroup-bounded pool, and status-transition shape),
// generalized from a single linear ffmpeg/whisperx subprocess call into a
// multi-phase pipeline with internal chunk fan-out.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"sttworker/internal/blobstore"
	"sttworker/internal/chunker"
	"sttworker/internal/jobflow"
	"sttworker/internal/jobstore"
	"sttworker/internal/merger"
	"sttworker/internal/models"
	"sttworker/internal/transcriber"
	"sttworker/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// BlobStore is the narrow slice of blobstore.Store the orchestrator needs,
// kept as an interface so tests can substitute a fake instead of a live
// S3-compatible endpoint.
type BlobStore interface {
	Download(ctx context.Context, path, localFile string) error
	Upload(ctx context.Context, path string, data []byte, contentType string) error
}

// Dependencies are the typed handles the orchestrator needs, held by the
// Worker value that constructs it (spec §9: explicit dependency injection
// instead of global state).
type Dependencies struct {
	Jobs        *jobstore.Store
	Blobs       BlobStore
	Chunker     chunker.Chunker
	Transcriber transcriber.Transcriber
}

// Config carries the per-worker numeric knobs sourced from environment
// configuration (spec §6).
type Config struct {
	MaxParallelWorkers int
	ChunkTimeout       time.Duration
	MaxRetries         int
	RetryBaseDelay     time.Duration
	ChunkPolicy        chunker.Policy
	TempDir            string
}

// Orchestrator runs Run once per delivered job message.
type Orchestrator struct {
	deps Dependencies
	cfg  Config
}

// New builds an Orchestrator from its dependencies and config.
func New(deps Dependencies, cfg Config) *Orchestrator {
	return &Orchestrator{deps: deps, cfg: cfg}
}

// Run executes all seven phases for jobID. The returned error, if any, is a
// *jobflow.Error the Consumer dispatches on; a nil return means the job
// reached COMPLETED.
func (o *Orchestrator) Run(ctx context.Context, jobID string) error {
	job, err := o.load(ctx, jobID)
	if err != nil {
		return err
	}

	workDir, err := os.MkdirTemp(o.cfg.TempDir, "job-"+jobID+"-*")
	if err != nil {
		return jobflow.New(jobflow.KindBlobIO, fmt.Errorf("create job work dir: %w", err))
	}
	defer func() {
		if rerr := os.RemoveAll(workDir); rerr != nil {
			logger.Error("failed to clean up job work dir", "job_id", jobID, "dir", workDir, "error", rerr)
		}
	}()

	audioPath, err := o.stage(ctx, job, workDir)
	if err != nil {
		return err
	}

	chunks, err := o.chunkPhase(ctx, job, audioPath, workDir)
	if err != nil {
		return err
	}

	results, err := o.transcribePhase(ctx, job, chunks)
	if err != nil {
		return err
	}

	text, err := o.mergePhase(job, results)
	if err != nil {
		return err
	}

	resultPath, err := o.publishPhase(ctx, job, text)
	if err != nil {
		return err
	}

	return o.closePhase(ctx, job, text, resultPath, results)
}

// load is phase 1: fetch the job and transition PENDING -> PROCESSING.
func (o *Orchestrator) load(ctx context.Context, jobID string) (*models.Job, error) {
	job, err := o.deps.Jobs.Get(ctx, jobID)
	if err != nil {
		if err == jobstore.ErrNotFound {
			return nil, jobflow.New(jobflow.KindJobNotFound, err)
		}
		return nil, jobflow.New(jobflow.KindJobStoreUnavail, err)
	}
	if err := o.deps.Jobs.SetStatus(ctx, jobID, models.StatusProcessing, ""); err != nil {
		return nil, jobflow.New(jobflow.KindJobStoreUnavail, err)
	}
	job.Status = models.StatusProcessing
	return job, nil
}

// stage is phase 2: download the job's audio into workDir and persist its
// measured duration best-effort.
func (o *Orchestrator) stage(ctx context.Context, job *models.Job, workDir string) (string, error) {
	ext := filepath.Ext(job.AudioPath)
	localPath := filepath.Join(workDir, "source"+ext)
	if err := o.deps.Blobs.Download(ctx, job.AudioPath, localPath); err != nil {
		return "", jobflow.New(jobflow.KindBlobIO, fmt.Errorf("download audio %s: %w", job.AudioPath, err))
	}

	if durationS, err := chunker.ProbeDurationS(ctx, localPath); err != nil {
		logger.Error("failed to measure audio duration, continuing without it", "job_id", job.ID, "error", err)
	} else if uerr := o.deps.Jobs.Update(ctx, job.ID, map[string]any{"audio_duration_s": durationS}); uerr != nil {
		logger.Error("failed to persist audio_duration_s", "job_id", job.ID, "error", uerr)
	}

	return localPath, nil
}

// chunkPhase is phase 3: invoke the Chunker and persist the resulting
// descriptors to the job.
func (o *Orchestrator) chunkPhase(ctx context.Context, job *models.Job, audioPath, workDir string) ([]chunker.Chunk, error) {
	policy := o.cfg.ChunkPolicy
	if job.ChunkStrategy == models.StrategyFixedDuration {
		policy.Strategy = chunker.StrategyFixed
	} else {
		policy.Strategy = chunker.StrategySilenceAware
	}

	chunkDir := filepath.Join(workDir, "chunks")
	if err := os.MkdirAll(chunkDir, 0o755); err != nil {
		return nil, jobflow.New(jobflow.KindBlobIO, fmt.Errorf("create chunk dir: %w", err))
	}

	chunks, err := o.deps.Chunker.Chunk(ctx, audioPath, chunkDir, policy)
	if err != nil {
		return nil, err // already a *jobflow.Error from the chunker
	}

	records := make([]models.JobChunk, len(chunks))
	for i, c := range chunks {
		records[i] = models.JobChunk{Index: c.Index, StartS: c.StartS, EndS: c.EndS}
	}
	if err := o.deps.Jobs.ReplaceChunks(ctx, job.ID, records); err != nil {
		return nil, jobflow.New(jobflow.KindJobStoreUnavail, err)
	}
	if err := o.deps.Jobs.Update(ctx, job.ID, map[string]any{"chunks_total": len(chunks)}); err != nil {
		return nil, jobflow.New(jobflow.KindJobStoreUnavail, err)
	}
	job.ChunksTotal = len(chunks)
	return chunks, nil
}

// chunkOutcome is one chunk's terminal transcription result within a job.
type chunkOutcome struct {
	Index int
	Text  string
	OK    bool
}

// transcribePhase is phase 4: fan the chunk list out across a bounded
// worker pool, retrying Timeout/Crashed with exponential backoff, and
// checkpointing chunks_completed only at milestones.
func (o *Orchestrator) transcribePhase(ctx context.Context, job *models.Job, chunks []chunker.Chunk) ([]chunkOutcome, error) {
	outcomes := make([]chunkOutcome, len(chunks))
	tracker := newMilestoneTracker(len(chunks))

	var mu sync.Mutex
	successes := 0
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(o.cfg.MaxParallelWorkers)

	for _, c := range chunks {
		c := c
		group.Go(func() error {
			text, ok := o.transcribeWithRetry(gctx, job, c)
			outcomes[c.Index] = chunkOutcome{Index: c.Index, Text: text, OK: ok}

			status := models.ChunkCompleted
			var textPtr, errPtr *string
			if ok {
				textPtr = &text
			} else {
				status = models.ChunkFailed
				msg := "chunk exhausted retries"
				errPtr = &msg
			}
			if err := o.deps.Jobs.UpdateChunk(gctx, job.ID, c.Index, map[string]any{
				"status": status, "text": textPtr, "error": errPtr,
			}); err != nil {
				logger.Error("failed to persist chunk outcome", "job_id", job.ID, "chunk_index", c.Index, "error", err)
			}

			mu.Lock()
			if ok {
				successes++
			}
			succeededSoFar := successes
			finished := tracker.recordCompletion()
			checkpoint := tracker.shouldCheckpoint(finished)
			mu.Unlock()

			if checkpoint {
				if err := o.deps.Jobs.Update(gctx, job.ID, map[string]any{"chunks_completed": succeededSoFar}); err != nil {
					logger.Error("failed to checkpoint chunks_completed", "job_id", job.ID, "error", err)
				}
			}
			return nil // per-chunk failures never abort the group (contained, spec §4.7)
		})
	}

	_ = group.Wait() // transcribeWithRetry never returns an error to the group

	succeeded := 0
	for _, o := range outcomes {
		if o.OK {
			succeeded++
		}
	}
	logger.Info("chunk fan-out finished", "job_id", job.ID, "chunks_total", len(chunks), "chunks_succeeded", succeeded)
	if succeeded == 0 {
		return nil, jobflow.New(jobflow.KindAllChunksFailed, fmt.Errorf("all %d chunks failed for job %s", len(chunks), job.ID))
	}
	return outcomes, nil
}

// transcribeWithRetry runs one chunk through the Transcriber, retrying on
// Timeout/Crashed up to MaxRetries times with exponential backoff. Returns
// (text, true) on success or ("", false) once retries are exhausted.
func (o *Orchestrator) transcribeWithRetry(ctx context.Context, job *models.Job, c chunker.Chunk) (string, bool) {
	delay := o.cfg.RetryBaseDelay
	for attempt := 0; attempt <= o.cfg.MaxRetries; attempt++ {
		text, err := o.transcribeOnce(ctx, job.Language, c.Path)
		if err == nil {
			return text, true
		}
		if jobflow.IsPermanent(err) {
			logger.ChunkResult(job.ID, c.Index, attempt, false, err)
			return "", false
		}
		logger.ChunkResult(job.ID, c.Index, attempt, false, err)
		if attempt == o.cfg.MaxRetries {
			return "", false
		}
		select {
		case <-ctx.Done():
			return "", false
		case <-time.After(delay):
		}
		delay *= 2
	}
	return "", false
}

// transcribeOnce runs the Transcriber with a per-chunk deadline. Whisper
// inference cannot itself be cancelled mid-call (spec §4.4: the pipeline
// must not assume it is reentrant or cheap), so a deadline overrun is
// reported as Timeout but the underlying goroutine is left to finish; this
// mirrors how a CGO call into a synchronous C library behaves under a Go
// timeout.
func (o *Orchestrator) transcribeOnce(ctx context.Context, language, chunkPath string) (string, error) {
	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		res, err := o.deps.Transcriber.Transcribe(chunkPath, language)
		done <- result{text: res.Text, err: err}
	}()

	select {
	case r := <-done:
		return r.text, r.err
	case <-time.After(o.cfg.ChunkTimeout):
		return "", jobflow.New(jobflow.KindTranscriberTimeout, fmt.Errorf("chunk %s exceeded %s deadline", chunkPath, o.cfg.ChunkTimeout))
	case <-ctx.Done():
		return "", jobflow.New(jobflow.KindTranscriberTimeout, ctx.Err())
	}
}

// mergePhase is phase 5: merge the successful chunks, in index order.
func (o *Orchestrator) mergePhase(job *models.Job, outcomes []chunkOutcome) (string, error) {
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].Index < outcomes[j].Index })

	texts := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		if o.OK {
			texts = append(texts, o.Text)
		}
	}
	if len(texts) == 0 {
		return "", jobflow.New(jobflow.KindAllChunksFailed, fmt.Errorf("job %s has no successful chunks to merge", job.ID))
	}
	return merger.Merge(texts), nil
}

// publishPhase is phase 6: upload the merged document to BlobStore.
func (o *Orchestrator) publishPhase(ctx context.Context, job *models.Job, text string) (string, error) {
	path := blobstore.ResultPath(job.ID)
	if err := o.deps.Blobs.Upload(ctx, path, []byte(text), "text/plain; charset=utf-8"); err != nil {
		return "", jobflow.New(jobflow.KindBlobIO, fmt.Errorf("upload result for job %s: %w", job.ID, err))
	}
	return path, nil
}

// closePhase is phase 7: mark the job COMPLETED with its final fields.
func (o *Orchestrator) closePhase(ctx context.Context, job *models.Job, text, resultPath string, outcomes []chunkOutcome) error {
	completed := 0
	for _, o := range outcomes {
		if o.OK {
			completed++
		}
	}
	err := o.deps.Jobs.Update(ctx, job.ID, map[string]any{
		"status":             models.StatusCompleted,
		"transcription_text": text,
		"result_path":        resultPath,
		"chunks_completed":   completed,
	})
	if err != nil {
		return jobflow.New(jobflow.KindJobStoreUnavail, err)
	}
	if serr := o.deps.Jobs.SetStatus(ctx, job.ID, models.StatusCompleted, ""); serr != nil {
		return jobflow.New(jobflow.KindJobStoreUnavail, serr)
	}
	return nil
}
