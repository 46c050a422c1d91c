package httpapi

import (
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"sttworker/internal/blobstore"
	"sttworker/internal/jobstore"
	"sttworker/internal/submitter"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Health reports liveness for orchestration probes.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// SubmitJob accepts a multipart audio upload, stages it to blob storage
// under the uploads/ path convention (spec §6), and hands the result to
// JobSubmitter.
func (h *Handler) SubmitJob(c *gin.Context) {
	header, err := c.FormFile("audio")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "audio file is required"})
		return
	}

	tmpPath, err := stageUpload(header)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to stage upload"})
		return
	}
	defer os.Remove(tmpPath)

	ext := filepath.Ext(header.Filename)
	blobPath := blobstore.UploadPath(uuid.New().String(), ext)
	if err := h.blobs.UploadFile(c.Request.Context(), tmpPath, blobPath, contentTypeFor(ext)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to upload audio"})
		return
	}

	sizeMB := float64(header.Size) / (1024 * 1024)
	id, err := h.submit.Submit(c.Request.Context(), submitter.Request{
		OriginalFilename: header.Filename,
		BlobPath:         blobPath,
		SizeMB:           sizeMB,
		Language:         c.PostForm("language"),
		Model:            c.PostForm("model"),
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"job_id": id})
}

func stageUpload(header *multipart.FileHeader) (string, error) {
	src, err := header.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	tmpPath := filepath.Join(os.TempDir(), uuid.New().String()+filepath.Ext(header.Filename))
	dst, err := os.Create(tmpPath)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := dst.ReadFrom(src); err != nil {
		os.Remove(tmpPath)
		return "", err
	}
	return tmpPath, nil
}

func contentTypeFor(ext string) string {
	switch ext {
	case ".wav":
		return "audio/wav"
	case ".mp3":
		return "audio/mpeg"
	case ".m4a":
		return "audio/mp4"
	case ".flac":
		return "audio/flac"
	default:
		return "application/octet-stream"
	}
}

// GetJob returns the current Job record, including chunk progress.
func (h *Handler) GetJob(c *gin.Context) {
	job, err := h.jobs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if err == jobstore.ErrNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load job"})
		return
	}
	c.JSON(http.StatusOK, job)
}
