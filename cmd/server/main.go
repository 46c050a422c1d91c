// Command sttserver is the thin HTTP front-end around JobSubmitter: it
// accepts uploads and publishes jobs for the worker pool to consume. Spec
// §1 treats this surface as out-of-scope plumbing around the core; it is
// kept intentionally small.
package main

import (
	"context"
	"fmt"
	"os"

	"sttworker/internal/blobstore"
	"sttworker/internal/config"
	"sttworker/internal/httpapi"
	"sttworker/internal/jobstore"
	"sttworker/internal/models"
	"sttworker/internal/mqueue"
	"sttworker/internal/submitter"
	"sttworker/pkg/logger"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
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

	ctx := context.Background()
	blobs, err := blobstore.New(ctx, cfg.Blob)
	if err != nil {
		return fmt.Errorf("connect blob store: %w", err)
	}

	queue, err := mqueue.Connect(cfg.Queue)
	if err != nil {
		return fmt.Errorf("connect queue: %w", err)
	}
	defer queue.Close()

	sub := submitter.New(jobs, queue, cfg.DefaultModel, cfg.MaxUploadMB)
	handler := httpapi.NewHandler(jobs, blobs, sub)
	router := httpapi.SetupRoutes(handler)

	logger.Info("http api listening", "addr", cfg.HTTPAddr)
	return router.Run(cfg.HTTPAddr)
}
