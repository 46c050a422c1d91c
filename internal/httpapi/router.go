// Package httpapi is the thin external HTTP surface around JobSubmitter
// and JobStore — explicitly out of scope for the pipeline itself (spec §1:
// "the HTTP API surface ... [is] plumbing around the core"), kept minimal
// and grounded on the teacher's internal/api/router.go Gin wiring.
package httpapi

import (
	"context"

	"sttworker/internal/jobstore"
	"sttworker/internal/submitter"
	"sttworker/pkg/logger"
	"sttworker/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// uploader is the narrow slice of blobstore.Store the upload handler
// needs, kept local so tests can substitute a fake.
type uploader interface {
	UploadFile(ctx context.Context, localPath, path, contentType string) error
}

// Handler holds the out-of-scope collaborators the routes call into.
type Handler struct {
	jobs   *jobstore.Store
	blobs  uploader
	submit *submitter.Submitter
}

// NewHandler builds a Handler.
func NewHandler(jobs *jobstore.Store, blobs uploader, submit *submitter.Submitter) *Handler {
	return &Handler{jobs: jobs, blobs: blobs, submit: submit}
}

// SetupRoutes registers the job submission and status-read routes.
func SetupRoutes(h *Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	logger.SetGinOutput()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.GinLogger())
	router.Use(middleware.CompressionMiddleware())

	router.GET("/health", h.Health)
	v1 := router.Group("/api/v1")
	v1.POST("/jobs", h.SubmitJob)
	v1.GET("/jobs/:id", h.GetJob)

	return router
}
