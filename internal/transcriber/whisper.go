package transcriber

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"sttworker/internal/jobflow"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	"github.com/go-audio/wav"
)

// Whisper is the Transcriber backed by whisper.cpp's CGO bindings. One
// Whisper value owns exactly one native model; New loads it once, and every
// worker goroutine calls through the same value. whisper.cpp's inference
// context is not safe for concurrent Process calls on a shared model, so
// Transcribe serializes through mu the way the teacher's asrengine.Manager
// serializes job submission through its own jobMu.
type Whisper struct {
	mu    sync.Mutex
	model whisper.Model
	path  string
}

// New loads the ggml model at modelPath. Call once per worker process;
// model loading is the expensive step the spec requires happen exactly once
// (spec §4.4).
func New(modelPath string) (*Whisper, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, jobflow.New(jobflow.KindMissingDependency, fmt.Errorf("model artifact missing at %s: %w", modelPath, err))
	}
	model, err := whisper.New(modelPath)
	if err != nil {
		return nil, jobflow.New(jobflow.KindTranscriberCrash, fmt.Errorf("load model %s: %w", modelPath, err))
	}
	return &Whisper{model: model, path: modelPath}, nil
}

// Transcribe runs inference over a 16kHz mono WAV chunk. language is an
// ISO code, or "" / "auto" for language auto-detection.
func (w *Whisper) Transcribe(chunkPath, language string) (Result, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	samples, err := readWAVSamples(chunkPath)
	if err != nil {
		return Result{}, jobflow.New(jobflow.KindInvalidAudio, err)
	}

	whisperCtx, err := w.model.NewContext()
	if err != nil {
		return Result{}, jobflow.New(jobflow.KindTranscriberCrash, fmt.Errorf("create context: %w", err))
	}
	if language != "" && language != "auto" {
		if err := whisperCtx.SetLanguage(language); err != nil {
			return Result{}, jobflow.New(jobflow.KindTranscriberCrash, fmt.Errorf("set language %s: %w", language, err))
		}
	}

	if err := whisperCtx.Process(samples, nil, nil, nil); err != nil {
		return Result{}, jobflow.New(jobflow.KindTranscriberCrash, fmt.Errorf("process: %w", err))
	}

	var segments []Segment
	var parts []string
	for {
		seg, err := whisperCtx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Result{}, jobflow.New(jobflow.KindTranscriberCrash, fmt.Errorf("next segment: %w", err))
		}
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		segments = append(segments, Segment{
			StartS: seg.Start.Seconds(),
			EndS:   seg.End.Seconds(),
			Text:   text,
		})
		parts = append(parts, text)
	}

	return Result{Text: strings.Join(parts, " "), Segments: segments}, nil
}

// Close releases the native model.
func (w *Whisper) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.model == nil {
		return nil
	}
	return w.model.Close()
}

func readWAVSamples(path string) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("%s is not a valid WAV file", path)
	}
	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	const maxInt16 = 32768.0
	samples := make([]float32, len(buf.Data))
	for i, s := range buf.Data {
		samples[i] = float32(s) / maxInt16
	}
	return samples, nil
}
