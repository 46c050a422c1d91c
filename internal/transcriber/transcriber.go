// Package transcriber is the process-local, single-initialization Whisper
// runtime (spec §4.4). It wraps github.com/ggerganov/whisper.cpp/bindings/go,
// generalizing the teacher's single-model WhisperLocal wrapper (vget's
// internal/core/ai/transcriber/whisper_local.go) with the singleton-init,
// mutex-serialized-reentrancy pattern the teacher uses for its own inference
// daemon handle (internal/asrengine.Manager).
package transcriber

import (
	"time"
)

// Segment is one timed span of recognized speech within a chunk.
type Segment struct {
	StartS float64
	EndS   float64
	Text   string
}

// Result is the outcome of transcribing a single chunk.
type Result struct {
	Text     string
	Segments []Segment
}

// Transcriber is the narrow contract the orchestrator depends on. A
// concrete implementation owns exactly one native model handle per worker
// process; Transcribe must be safe to call concurrently from multiple
// goroutines, serializing internally if the underlying engine is not
// reentrant (spec §4.4).
type Transcriber interface {
	Transcribe(chunkPath, language string) (Result, error)
	Close() error
}

// Duration is a convenience for computing a segment's length.
func (s Segment) Duration() time.Duration {
	return time.Duration((s.EndS - s.StartS) * float64(time.Second))
}
