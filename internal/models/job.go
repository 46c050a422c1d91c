package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JobStatus is the lifecycle state of a transcription Job.
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// ChunkStatus is the lifecycle state of one JobChunk.
type ChunkStatus string

const (
	ChunkPending   ChunkStatus = "pending"
	ChunkCompleted ChunkStatus = "completed"
	ChunkFailed    ChunkStatus = "failed"
)

// ChunkStrategy selects how a Job's audio is split into speech regions.
type ChunkStrategy string

const (
	StrategySilenceAware  ChunkStrategy = "silence_aware"
	StrategyFixedDuration ChunkStrategy = "fixed_duration"
)

// Job is the durable record for one transcription request. It is owned by
// JobStore and mutated only by the orchestrator (status, chunk progress) and
// the consumer (retry_count on requeue).
type Job struct {
	ID               string        `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Status           JobStatus     `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	Language         string        `json:"language" gorm:"type:varchar(10);not null;default:'vi'"`
	Model            string        `json:"model" gorm:"type:varchar(64);not null"`
	OriginalFilename string        `json:"original_filename" gorm:"type:text;not null"`
	AudioPath        string        `json:"audio_path" gorm:"type:text;not null"`
	ResultPath       *string       `json:"result_path,omitempty" gorm:"type:text"`
	ChunkStrategy    ChunkStrategy `json:"chunk_strategy" gorm:"type:varchar(20);not null;default:'silence_aware'"`
	FileSizeMB       float64       `json:"file_size_mb" gorm:"type:real;not null"`
	AudioDurationS   *float64      `json:"audio_duration_s,omitempty" gorm:"type:real"`
	RetryCount       int           `json:"retry_count" gorm:"type:int;not null;default:0"`
	ChunksTotal      int           `json:"chunks_total" gorm:"type:int;not null;default:0"`
	ChunksCompleted  int           `json:"chunks_completed" gorm:"type:int;not null;default:0"`
	TranscriptionText *string      `json:"transcription_text,omitempty" gorm:"type:text"`
	ErrorMessage     *string       `json:"error_message,omitempty" gorm:"type:text"`

	CreatedAt   time.Time  `json:"created_at" gorm:"autoCreateTime;index"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at" gorm:"autoUpdateTime"`

	Chunks []JobChunk `json:"chunks,omitempty" gorm:"foreignKey:JobID;references:ID"`
}

// BeforeCreate assigns the job id, matching the teacher's
// TranscriptionJob.BeforeCreate UUID-assignment convention.
func (j *Job) BeforeCreate(tx *gorm.DB) error {
	if j.ID == "" {
		j.ID = uuid.New().String()
	}
	return nil
}

// JobChunk is one contiguous sub-interval of a Job's audio. Chunk indices
// cover [0, ChunksTotal) without gaps; a FAILED chunk is never retried
// within a job, only degrades the merge.
type JobChunk struct {
	ID         uint        `json:"-" gorm:"primaryKey;autoIncrement"`
	JobID      string      `json:"-" gorm:"type:varchar(36);not null;index;uniqueIndex:idx_job_chunk"`
	Index      int         `json:"index" gorm:"type:int;not null;uniqueIndex:idx_job_chunk"`
	StartS     float64     `json:"start_s" gorm:"type:real;not null"`
	EndS       float64     `json:"end_s" gorm:"type:real;not null"`
	Status     ChunkStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending'"`
	Text       *string     `json:"text,omitempty" gorm:"type:text"`
	Error      *string     `json:"error,omitempty" gorm:"type:text"`
	UpdatedAt  time.Time   `json:"updated_at" gorm:"autoUpdateTime"`
}

// FileRecord is the upload-step entity. A Job refers to one only by copying
// its BlobPath at submission time; FileRecord's own lifecycle is independent.
type FileRecord struct {
	ID               string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OriginalFilename string    `json:"original_filename" gorm:"type:text;not null"`
	BlobPath         string    `json:"blob_path" gorm:"type:text;not null"`
	SizeMB           float64   `json:"size_mb" gorm:"type:real;not null"`
	ContentType      string    `json:"content_type" gorm:"type:varchar(128);not null"`
	CreatedAt        time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (f *FileRecord) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	return nil
}

// QueueMessage is the JSON body published to the work queue and delivered
// back to the Consumer.
type QueueMessage struct {
	JobID       string  `json:"job_id"`
	Language    string  `json:"language"`
	Model       string  `json:"model"`
	Filename    string  `json:"filename"`
	PublishedAt float64 `json:"published_at"`
}
