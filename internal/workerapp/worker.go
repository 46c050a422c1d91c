// Package workerapp holds the Worker value: the explicit, no-globals
// dependency bundle the teacher assembles inline in cmd/server/main.go
// (*gorm.DB, *queue.TaskQueue, service structs), pulled into its own type
// here since the worker binary's collaborator count is large enough to
// warrant a named holder instead of a long local var list.
package workerapp

import (
	"context"

	"sttworker/internal/blobstore"
	"sttworker/internal/chunker"
	"sttworker/internal/consumer"
	"sttworker/internal/jobstore"
	"sttworker/internal/mqueue"
	"sttworker/internal/orchestrator"
	"sttworker/internal/transcriber"
)

// Deps holds the already-connected collaborators the worker needs. Callers
// build each one (DB connection, S3 client, AMQP channel, whisper handle)
// and hand them in; Worker does no connecting of its own.
type Deps struct {
	Jobs        *jobstore.Store
	Blobs       *blobstore.Store
	Queue       *mqueue.Queue
	Transcriber transcriber.Transcriber
}

// Worker wires Deps into the running consume loop.
type Worker struct {
	consumer *consumer.Consumer
}

// New builds the orchestrator and consumer from deps and cfg, ready to Run.
func New(deps Deps, orchCfg orchestrator.Config, consumerCfg consumer.Config) *Worker {
	pipeline := orchestrator.New(orchestrator.Dependencies{
		Jobs:        deps.Jobs,
		Blobs:       deps.Blobs,
		Chunker:     chunker.New(),
		Transcriber: deps.Transcriber,
	}, orchCfg)

	return &Worker{
		consumer: consumer.New(deps.Queue, deps.Jobs, pipeline, consumerCfg),
	}
}

// Run blocks on the consume loop until ctx is cancelled, then drains
// in-flight jobs per consumer.Config.DrainDelay before returning.
func (w *Worker) Run(ctx context.Context) error {
	return w.consumer.Run(ctx)
}
