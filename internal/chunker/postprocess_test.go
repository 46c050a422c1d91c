package chunker

import "testing"

func TestTrimIntroOutroDropsAndClips(t *testing.T) {
	candidates := []interval{
		{start: 0, end: 3},   // entirely inside intro, dropped
		{start: 4, end: 10},  // partially overlaps intro, clipped to [5,10]
		{start: 20, end: 30}, // untouched
		{start: 93, end: 98}, // partially overlaps outro (outro starts at 95), clipped to [93,95]
		{start: 96, end: 100}, // entirely inside outro, dropped
	}
	got := trimIntroOutro(candidates, 100, 5, 5)

	want := []interval{
		{start: 5, end: 10},
		{start: 20, end: 30},
		{start: 93, end: 95},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d intervals, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("interval %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestDropShorterThanFiltersSmallChunks(t *testing.T) {
	candidates := []interval{{start: 0, end: 1}, {start: 1, end: 5}, {start: 5, end: 5.5}}
	got := dropShorterThan(candidates, 2)
	if len(got) != 1 || got[0] != (interval{start: 1, end: 5}) {
		t.Fatalf("got %+v, want a single [1,5) interval", got)
	}
}

func TestSplitLongerThanProducesContiguousSubChunks(t *testing.T) {
	candidates := []interval{{start: 0, end: 140}}
	got := splitLongerThan(candidates, 60)

	want := []interval{
		{start: 0, end: 60},
		{start: 60, end: 120},
		{start: 120, end: 140},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d sub-chunks, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sub-chunk %d = %+v, want %+v", i, got[i], want[i])
		}
	}
	// No gaps or overlaps: each sub-chunk's end is the next one's start.
	for i := 1; i < len(got); i++ {
		if got[i-1].end != got[i].start {
			t.Fatalf("gap/overlap between sub-chunk %d and %d: %+v", i-1, i, got)
		}
	}
}

func TestPostProcessAppliesRulesInOrder(t *testing.T) {
	policy := DefaultPolicy(StrategySilenceAware)
	policy.IntroS, policy.OutroS = 5, 5
	policy.MinChunkS = 2
	policy.MaxChunkS = 60

	candidates := []interval{
		{start: 0, end: 4},    // dropped by intro trim
		{start: 6, end: 7.5},  // survives trim, then dropped for being < 2s
		{start: 10, end: 150}, // survives, then split into sub-chunks of <=60s
	}
	got := postProcess(candidates, 200, policy)

	for _, iv := range got {
		if iv.duration() < policy.MinChunkS-1e-9 {
			t.Fatalf("interval %+v is shorter than MinChunkS", iv)
		}
		if iv.duration() > policy.MaxChunkS+1e-9 {
			t.Fatalf("interval %+v is longer than MaxChunkS", iv)
		}
	}
}
