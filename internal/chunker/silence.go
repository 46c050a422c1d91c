package chunker

import (
	"fmt"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// windowS is the analysis window for RMS-based silence detection, both the
// in-memory and streaming variants.
const windowS = 0.05

// inMemorySilenceIntervals detects non-silent runs in samples already held
// in RAM, suitable for files short enough to have been fully decoded.
func inMemorySilenceIntervals(samples []float32, sampleRate int, policy Policy) []interval {
	windowLen := int(windowS * float64(sampleRate))
	if windowLen <= 0 {
		windowLen = 1
	}
	levels := make([]float64, 0, len(samples)/windowLen+1)
	for i := 0; i < len(samples); i += windowLen {
		end := i + windowLen
		if end > len(samples) {
			end = len(samples)
		}
		levels = append(levels, dbfs(samples[i:end]))
	}
	return intervalsFromLevels(levels, windowS, policy)
}

// streamingSilenceIntervals detects non-silent runs by scanning wavPath in
// fixed-size buffers directly off disk (spec §4.5: large files "must use a
// streaming silence detector that does not load the full PCM into RAM").
func streamingSilenceIntervals(wavPath string, durationS float64, policy Policy) ([]interval, error) {
	f, err := os.Open(wavPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", wavPath, err)
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("%s is not a valid WAV file", wavPath)
	}
	decoder.ReadInfo()
	sampleRate := int(decoder.SampleRate)
	windowLen := int(windowS * float64(sampleRate))
	if windowLen <= 0 {
		windowLen = 1
	}

	buf := &audio.IntBuffer{
		Data:           make([]int, windowLen),
		Format:         &audio.Format{SampleRate: sampleRate, NumChannels: 1},
		SourceBitDepth: 16,
	}
	var levels []float64
	for {
		n, err := decoder.PCMBuffer(buf)
		if n > 0 {
			levels = append(levels, dbfsInt(buf.Data[:n]))
		}
		if err != nil || n < windowLen {
			break
		}
	}
	return intervalsFromLevels(levels, windowS, policy), nil
}

// intervalsFromLevels turns a per-window dBFS level sequence into candidate
// non-silent intervals, merging windows that belong to the same speech run
// and requiring a silence run of at least min_silence_len before splitting.
func intervalsFromLevels(levels []float64, windowLen float64, policy Policy) []interval {
	minSilenceWindows := int(math.Ceil(float64(policy.MinSilenceMS) / 1000.0 / windowLen))
	if minSilenceWindows < 1 {
		minSilenceWindows = 1
	}

	var intervals []interval
	inSpeech := false
	var speechStart float64
	silenceRun := 0

	for i, level := range levels {
		t := float64(i) * windowLen
		silent := level < policy.SilenceThresh
		if silent {
			silenceRun++
			if inSpeech && silenceRun >= minSilenceWindows {
				intervals = append(intervals, interval{start: speechStart, end: t - float64(silenceRun-1)*windowLen})
				inSpeech = false
			}
		} else {
			silenceRun = 0
			if !inSpeech {
				speechStart = t
				inSpeech = true
			}
		}
	}
	if inSpeech {
		intervals = append(intervals, interval{start: speechStart, end: float64(len(levels)) * windowLen})
	}
	return intervals
}

// dbfs computes the RMS level of samples in decibels relative to full
// scale (full scale = 1.0 for our float32 samples).
func dbfs(samples []float32) float64 {
	if len(samples) == 0 {
		return -math.Inf(1)
	}
	var sumSq float64
	for _, s := range samples {
		sumSq += float64(s) * float64(s)
	}
	rms := math.Sqrt(sumSq / float64(len(samples)))
	if rms <= 0 {
		return -120
	}
	return 20 * math.Log10(rms)
}

func dbfsInt(samples []int) float64 {
	if len(samples) == 0 {
		return -math.Inf(1)
	}
	const maxInt16 = 32768.0
	var sumSq float64
	for _, s := range samples {
		v := float64(s) / maxInt16
		sumSq += v * v
	}
	rms := math.Sqrt(sumSq / float64(len(samples)))
	if rms <= 0 {
		return -120
	}
	return 20 * math.Log10(rms)
}
