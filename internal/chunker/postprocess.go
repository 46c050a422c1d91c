package chunker

// postProcess applies the deterministic post-processing rules from spec
// §4.5, in order: intro/outro trim, minimum-duration drop, then
// maximum-duration split. No sorting is done: the result keeps the order of
// candidates, so candidates given in ascending start order yield a total
// order that downstream indexing can assign stable indices to.
func postProcess(candidates []interval, durationS float64, policy Policy) []interval {
	result := candidates

	if policy.TrimIntroOutro {
		result = trimIntroOutro(result, durationS, policy.IntroS, policy.OutroS)
	}
	result = dropShorterThan(result, policy.MinChunkS)
	result = splitLongerThan(result, policy.MaxChunkS)

	return result
}

// trimIntroOutro drops chunks entirely inside the first introS or last
// outroS seconds, and clips chunks that only partially overlap those zones
// so the overlapping portion is removed.
func trimIntroOutro(candidates []interval, durationS, introS, outroS float64) []interval {
	outroStart := durationS - outroS

	var kept []interval
	for _, iv := range candidates {
		if iv.end <= introS || iv.start >= outroStart {
			continue
		}
		if iv.start < introS {
			iv.start = introS
		}
		if iv.end > outroStart {
			iv.end = outroStart
		}
		if iv.end > iv.start {
			kept = append(kept, iv)
		}
	}
	return kept
}

func dropShorterThan(candidates []interval, minChunkS float64) []interval {
	var kept []interval
	for _, iv := range candidates {
		if iv.duration() >= minChunkS {
			kept = append(kept, iv)
		}
	}
	return kept
}

// splitLongerThan breaks any chunk exceeding maxChunkS into contiguous
// fixed-duration sub-chunks. Sub-chunks are emitted in order at the split
// point, so an input sequence in ascending start order stays a total order
// with no gaps or overlaps introduced.
func splitLongerThan(candidates []interval, maxChunkS float64) []interval {
	if maxChunkS <= 0 {
		return candidates
	}
	var out []interval
	for _, iv := range candidates {
		if iv.duration() <= maxChunkS {
			out = append(out, iv)
			continue
		}
		for start := iv.start; start < iv.end; start += maxChunkS {
			end := start + maxChunkS
			if end > iv.end {
				end = iv.end
			}
			out = append(out, interval{start: start, end: end})
		}
	}
	return out
}
