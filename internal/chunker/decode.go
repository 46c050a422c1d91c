package chunker

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"sttworker/internal/jobflow"

	"codeberg.org/gruf/go-ffmpreg/ffmpreg"
	"codeberg.org/gruf/go-ffmpreg/wasm"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/tetratelabs/wazero"
)

// normalizeAudio converts audioPath to 16kHz mono PCM via the embedded
// ffmpeg WASM build (no external ffmpeg binary dependency, matching the
// teacher's CGO-disabled build path) and returns the path to the converted
// WAV file, its sample rate, and its duration in seconds. The caller owns
// the returned file and must remove it.
func normalizeAudio(ctx context.Context, audioPath string) (string, int, float64, error) {
	tmp, err := os.CreateTemp("", "chunker-*.wav")
	if err != nil {
		return "", 0, 0, jobflow.New(jobflow.KindBlobIO, fmt.Errorf("create temp wav: %w", err))
	}
	tmpPath := tmp.Name()
	tmp.Close()

	if err := convertWithFFmpeg(ctx, audioPath, tmpPath); err != nil {
		os.Remove(tmpPath)
		return "", 0, 0, err
	}

	sampleRate, frames, err := wavHeaderInfo(tmpPath)
	if err != nil {
		os.Remove(tmpPath)
		return "", 0, 0, jobflow.New(jobflow.KindCorruptedAudio, err)
	}
	if frames == 0 {
		os.Remove(tmpPath)
		return "", 0, 0, jobflow.New(jobflow.KindCorruptedAudio, fmt.Errorf("%s decoded to zero samples", audioPath))
	}
	duration := float64(frames) / float64(sampleRate)
	return tmpPath, sampleRate, duration, nil
}

func removeQuietly(path string) {
	if path != "" {
		os.Remove(path)
	}
}

// wavHeaderInfo reads just the WAV header (sample rate, frame count) to
// compute duration without pulling the PCM payload into memory.
func wavHeaderInfo(path string) (sampleRate int, frames int64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return 0, 0, fmt.Errorf("%s is not a valid WAV file", path)
	}
	dur, err := decoder.Duration()
	if err != nil {
		return 0, 0, fmt.Errorf("duration of %s: %w", path, err)
	}
	frames = int64(dur.Seconds() * float64(decoder.SampleRate))
	return int(decoder.SampleRate), frames, nil
}

func convertWithFFmpeg(ctx context.Context, inputPath, outputPath string) error {
	absInput, err := filepath.Abs(inputPath)
	if err != nil {
		return jobflow.New(jobflow.KindMissingDependency, err)
	}
	absOutput, err := filepath.Abs(outputPath)
	if err != nil {
		return jobflow.New(jobflow.KindMissingDependency, err)
	}

	inputDir := filepath.Dir(absInput)
	outputDir := filepath.Dir(absOutput)

	args := wasm.Args{
		Stderr: io.Discard,
		Stdout: io.Discard,
		Args: []string{
			"-i", absInput,
			"-ar", "16000",
			"-ac", "1",
			"-c:a", "pcm_s16le",
			"-y",
			absOutput,
		},
		Config: func(cfg wazero.ModuleConfig) wazero.ModuleConfig {
			return cfg.WithFSConfig(wazero.NewFSConfig().
				WithDirMount(inputDir, inputDir).
				WithDirMount(outputDir, outputDir))
		},
	}

	rc, err := ffmpreg.Ffmpeg(ctx, args)
	if err != nil {
		return jobflow.New(jobflow.KindMissingDependency, fmt.Errorf("run embedded ffmpeg: %w", err))
	}
	if rc != 0 {
		return jobflow.New(jobflow.KindCorruptedAudio, fmt.Errorf("ffmpeg exited with code %d converting %s", rc, inputPath))
	}
	return nil
}

func readWAVFile(path string) ([]float32, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, 0, fmt.Errorf("%s is not a valid WAV file", path)
	}
	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("decode %s: %w", path, err)
	}

	const maxInt16 = 32768.0
	samples := make([]float32, len(buf.Data))
	for i, s := range buf.Data {
		samples[i] = float32(s) / maxInt16
	}
	return samples, int(decoder.SampleRate), nil
}

// extractChunk writes samples[iv.start*rate : iv.end*rate] to its own WAV
// file under outDir, named by index so the final sequence sorts in order.
func extractChunk(samples []float32, sampleRate int, iv interval, outDir string, index int) (string, error) {
	startIdx := int(iv.start * float64(sampleRate))
	endIdx := int(iv.end * float64(sampleRate))
	if startIdx < 0 {
		startIdx = 0
	}
	if endIdx > len(samples) {
		endIdx = len(samples)
	}
	if endIdx <= startIdx {
		return "", jobflow.New(jobflow.KindCorruptedAudio, fmt.Errorf("chunk %d has empty sample range [%d,%d)", index, startIdx, endIdx))
	}

	path := filepath.Join(outDir, fmt.Sprintf("chunk_%04d.wav", index))
	if err := writeWAVFile(path, samples[startIdx:endIdx], sampleRate); err != nil {
		return "", jobflow.New(jobflow.KindBlobIO, fmt.Errorf("write chunk %d: %w", index, err))
	}
	return path, nil
}

func writeWAVFile(path string, samples []float32, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	defer encoder.Close()

	buf := &audio.IntBuffer{
		Data:           make([]int, len(samples)),
		Format:         &audio.Format{SampleRate: sampleRate, NumChannels: 1},
		SourceBitDepth: 16,
	}
	for i, s := range samples {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		buf.Data[i] = int(s * 32767)
	}
	return encoder.Write(buf)
}
