// Package consumer drives the AMQP delivery loop that turns queued
// QueueMessages into JobOrchestrator runs and translates the outcome back
// into ack/requeue/reject (spec §4.8). It is grounded on the teacher's
// internal/queue.TaskQueue worker loop, adapted so that each delivery gets
// its own goroutine (the broker prefetch bounds how many are in flight) and
// reports its outcome through the JobStore rather than an in-memory map.
package consumer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sttworker/internal/jobflow"
	"sttworker/internal/jobstore"
	"sttworker/internal/models"
	"sttworker/internal/mqueue"
	"sttworker/pkg/logger"
)

// Orchestrator is the narrow slice of orchestrator.Orchestrator the
// Consumer depends on, kept local so tests can substitute a fake pipeline.
type Orchestrator interface {
	Run(ctx context.Context, jobID string) error
}

// delivery is the narrow slice of mqueue.Delivery the dispatch logic needs,
// kept local so tests can exercise ack/requeue/reject decisions with a fake
// instead of a live broker connection.
type delivery interface {
	Message() models.QueueMessage
	Ack() error
	Requeue() error
	Reject() error
}

// Config carries the consumer's own knobs, independent of the
// orchestrator's per-job settings.
type Config struct {
	Prefetch   int
	DrainDelay time.Duration
}

// Consumer owns the consume loop for one worker process.
type Consumer struct {
	queue    *mqueue.Queue
	jobs     *jobstore.Store
	pipeline Orchestrator
	cfg      Config

	wg sync.WaitGroup
}

// New builds a Consumer.
func New(queue *mqueue.Queue, jobs *jobstore.Store, pipeline Orchestrator, cfg Config) *Consumer {
	return &Consumer{queue: queue, jobs: jobs, pipeline: pipeline, cfg: cfg}
}

// Run blocks, consuming deliveries until ctx is cancelled, then waits up to
// cfg.DrainDelay for in-flight deliveries to finish before returning.
func (c *Consumer) Run(ctx context.Context) error {
	err := c.queue.Consume(ctx, c.cfg.Prefetch, c.handle)

	drained := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(c.cfg.DrainDelay):
		logger.Warn("drain window elapsed with deliveries still in flight")
	}
	return err
}

// handle dispatches one delivery to the orchestrator and resolves its
// outcome to ack/requeue/reject. A panic escaping the orchestrator is
// recovered and treated as transient (spec §4.8 step 7).
func (c *Consumer) handle(d mqueue.Delivery) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		msg := d.Message()
		c.dispatch(d, msg.JobID)
	}()
}

func (c *Consumer) dispatch(d delivery, jobID string) {
	err := c.runOrchestrator(jobID)

	switch {
	case err == nil:
		if aerr := d.Ack(); aerr != nil {
			logger.Error("failed to ack delivery", "job_id", jobID, "error", aerr)
		}
		return

	case jobflow.IsPermanent(err):
		if serr := c.jobs.SetStatus(context.Background(), jobID, models.StatusFailed, err.Error()); serr != nil {
			logger.Error("failed to mark job failed", "job_id", jobID, "error", serr)
		}
		logger.JobFailed(jobID, 0, "permanent", err)
		if rerr := d.Reject(); rerr != nil {
			logger.Error("failed to reject delivery", "job_id", jobID, "error", rerr)
		}
		return

	default: // transient, including recovered panics
		if ierr := c.jobs.IncrementRetry(context.Background(), jobID); ierr != nil {
			logger.Error("failed to increment retry_count", "job_id", jobID, "error", ierr)
		}
		logger.JobFailed(jobID, 0, "transient", err)
		if rerr := d.Requeue(); rerr != nil {
			logger.Error("failed to requeue delivery", "job_id", jobID, "error", rerr)
		}
	}
}

// runOrchestrator calls the pipeline, converting a recovered panic into a
// transient jobflow.Error rather than crashing the worker process.
func (c *Consumer) runOrchestrator(jobID string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = jobflow.New(jobflow.KindJobStoreUnavail, fmt.Errorf("panic in orchestrator: %v", r))
		}
	}()
	return c.pipeline.Run(context.Background(), jobID)
}
