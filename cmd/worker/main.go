// Command sttworker runs the consume loop: lease messages from the work
// queue, drive the job pipeline, and translate outcomes to ack/requeue/
// reject (spec §4.8, §6). Structured as a single cobra root command with
// a "version" subcommand, the way the teacher wires its CLI entrypoints;
// the root command itself runs the worker.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"sttworker/internal/blobstore"
	"sttworker/internal/config"
	"sttworker/internal/consumer"
	"sttworker/internal/jobstore"
	"sttworker/internal/mqueue"
	"sttworker/internal/orchestrator"
	"sttworker/internal/transcriber"
	"sttworker/internal/workerapp"
	"sttworker/pkg/logger"

	"github.com/glebarez/sqlite"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"sttworker/internal/models"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	root := &cobra.Command{
		Use:   "sttworker",
		Short: "STT worker: consumes transcription jobs from the queue",
		RunE:  runWorker,
	}
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("sttworker %s (%s)\n", version, commit)
		},
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runWorker wires every dependency once (spec §9: explicit dependency
// injection, no global state) and blocks on the consume loop until a
// shutdown signal arrives.
func runWorker(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	logger.Init(cfg.LogLevel)
	logger.Startup("config", "configuration loaded")

	db, err := gorm.Open(sqlite.Open(cfg.JobStoreDSN), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("open job store: %w", err)
	}
	if err := db.AutoMigrate(&models.Job{}, &models.JobChunk{}, &models.FileRecord{}); err != nil {
		return fmt.Errorf("migrate job store: %w", err)
	}
	jobs := jobstore.New(db)
	logger.Startup("jobstore", "job store ready")

	ctx := context.Background()
	blobs, err := blobstore.New(ctx, cfg.Blob)
	if err != nil {
		return fmt.Errorf("connect blob store: %w", err)
	}
	logger.Startup("blobstore", "blob store ready")

	queue, err := mqueue.Connect(cfg.Queue)
	if err != nil {
		return fmt.Errorf("connect queue: %w", err)
	}
	defer queue.Close()
	logger.Startup("queue", "queue connected")

	modelPath, err := transcriber.EnsureModel(ctx, blobs, cfg.ModelDir, cfg.DefaultModel+".bin", cfg.ModelSHA256)
	if err != nil {
		return fmt.Errorf("ensure model artifact: %w", err)
	}
	engine, err := transcriber.New(modelPath)
	if err != nil {
		return fmt.Errorf("initialize transcriber: %w", err)
	}
	defer engine.Close()
	logger.Startup("transcriber", "model loaded, ready to transcribe")

	worker := workerapp.New(workerapp.Deps{
		Jobs:        jobs,
		Blobs:       blobs,
		Queue:       queue,
		Transcriber: engine,
	}, orchestrator.Config{
		MaxParallelWorkers: cfg.MaxParallelWorkers,
		ChunkTimeout:       cfg.ChunkTimeout(),
		MaxRetries:         3,
		RetryBaseDelay:     cfg.ChunkTimeout() / 20,
		ChunkPolicy:        cfg.ChunkPolicy(),
		TempDir:            "",
	}, consumer.Config{
		Prefetch:   cfg.MaxConcurrentJobs,
		DrainDelay: cfg.DrainTimeout(),
	})

	runCtx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received, draining in-flight jobs")
		cancel()
	}()

	logger.Info("consume loop starting", "prefetch", cfg.MaxConcurrentJobs)
	if err := worker.Run(runCtx); err != nil {
		return fmt.Errorf("consume loop exited: %w", err)
	}
	logger.Info("consume loop stopped cleanly")
	return nil
}
