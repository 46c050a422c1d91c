// Package chunker splits a local audio file into an ordered sequence of
// short WAV chunks for transcription (spec §4.5). It is grounded on the
// ffmpeg-WASM conversion path in guiyumin-vget's
// internal/core/ai/transcriber/whisper_runner.go (codeberg.org/gruf/go-ffmpreg,
// github.com/go-audio/wav, github.com/go-audio/audio), generalized from a
// single whole-file conversion into chunk boundary detection plus per-chunk
// extraction.
package chunker

import (
	"context"
	"fmt"

	"sttworker/internal/jobflow"
)

// Strategy selects how candidate chunk boundaries are found.
type Strategy string

const (
	StrategySilenceAware Strategy = "silence_aware"
	StrategyFixed         Strategy = "fixed"
)

// Policy is the full set of numeric knobs spec §4.5 names, sourced from
// job strategy plus config defaults.
type Policy struct {
	Strategy Strategy

	// silence-aware tuning
	MinSilenceMS  int     // min_silence_len, milliseconds
	SilenceThresh float64 // silence_thresh, dBFS

	// fixed-duration window
	ChunkDurationS float64

	// post-processing, applied regardless of strategy
	TrimIntroOutro bool
	IntroS         float64
	OutroS         float64
	MinChunkS      float64
	MaxChunkS      float64

	// streaming vs in-memory silence detection threshold
	StreamingThresholdS float64
}

// DefaultPolicy returns the spec-documented defaults (§4.5).
func DefaultPolicy(strategy Strategy) Policy {
	return Policy{
		Strategy:            strategy,
		MinSilenceMS:        700,
		SilenceThresh:       -40,
		ChunkDurationS:      30,
		TrimIntroOutro:      true,
		IntroS:              5,
		OutroS:              5,
		MinChunkS:           2,
		MaxChunkS:           60,
		StreamingThresholdS: 60,
	}
}

// Chunk is one extracted, ready-to-transcribe audio segment.
type Chunk struct {
	Index  int
	StartS float64
	EndS   float64
	Path   string
}

// Chunker is the contract the orchestrator depends on.
type Chunker interface {
	Chunk(ctx context.Context, audioPath, outDir string, policy Policy) ([]Chunk, error)
}

// FFChunker is the Chunker backed by ffmpreg for format normalization and
// go-audio/wav for PCM extraction.
type FFChunker struct{}

// New returns the default ffmpreg/go-audio backed Chunker.
func New() *FFChunker { return &FFChunker{} }

// Chunk normalizes audioPath to 16kHz mono PCM, finds candidate boundaries
// per policy.Strategy, applies the deterministic post-processing rules
// (spec §4.5 steps 1-3), and extracts each final chunk to its own WAV file
// under outDir.
func (c *FFChunker) Chunk(ctx context.Context, audioPath, outDir string, policy Policy) ([]Chunk, error) {
	normalizedPath, sampleRate, durationS, err := normalizeAudio(ctx, audioPath)
	if err != nil {
		return nil, err
	}
	defer removeQuietly(normalizedPath)

	var candidates []interval
	switch policy.Strategy {
	case StrategyFixed:
		candidates = fixedWindows(durationS, policy.ChunkDurationS)
	default:
		if durationS > policy.StreamingThresholdS {
			// Large file: detect silence by scanning the normalized WAV in
			// fixed-size windows straight off disk, never materializing the
			// full PCM buffer (spec §4.5).
			candidates, err = streamingSilenceIntervals(normalizedPath, durationS, policy)
		} else {
			samples, _, serr := readWAVFile(normalizedPath)
			if serr != nil {
				return nil, jobflow.New(jobflow.KindCorruptedAudio, serr)
			}
			candidates = inMemorySilenceIntervals(samples, sampleRate, policy)
		}
		if err != nil {
			return nil, err
		}
		if len(candidates) == 0 {
			candidates = fixedWindows(durationS, policy.ChunkDurationS)
		}
	}

	final := postProcess(candidates, durationS, policy)
	if len(final) == 0 {
		return nil, jobflow.New(jobflow.KindCorruptedAudio, fmt.Errorf("%s produced no usable chunks after post-processing", audioPath))
	}

	samples, _, err := readWAVFile(normalizedPath)
	if err != nil {
		return nil, jobflow.New(jobflow.KindCorruptedAudio, err)
	}

	chunks := make([]Chunk, 0, len(final))
	for i, iv := range final {
		path, err := extractChunk(samples, sampleRate, iv, outDir, i)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, Chunk{Index: i, StartS: iv.start, EndS: iv.end, Path: path})
	}
	return chunks, nil
}

// ProbeDurationS returns the duration, in seconds, of the audio file at
// audioPath, normalizing it through the same ffmpeg path Chunk uses. It is
// exposed for the orchestrator's Stage phase, which persists audio_duration_s
// best-effort (spec §4.7).
func ProbeDurationS(ctx context.Context, audioPath string) (float64, error) {
	normalizedPath, _, durationS, err := normalizeAudio(ctx, audioPath)
	if err != nil {
		return 0, err
	}
	defer removeQuietly(normalizedPath)
	return durationS, nil
}

// interval is a candidate chunk boundary in seconds, end-exclusive.
type interval struct {
	start, end float64
}

func (iv interval) duration() float64 { return iv.end - iv.start }
