package chunker

// fixedWindows produces contiguous windows of chunkDurationS seconds
// covering [0, durationS), used both for the "fixed" strategy and as the
// silence-aware fallback when no non-silent region is found (spec §4.5).
func fixedWindows(durationS, chunkDurationS float64) []interval {
	if chunkDurationS <= 0 {
		return []interval{{start: 0, end: durationS}}
	}
	var windows []interval
	for start := 0.0; start < durationS; start += chunkDurationS {
		end := start + chunkDurationS
		if end > durationS {
			end = durationS
		}
		windows = append(windows, interval{start: start, end: end})
	}
	return windows
}
