package merger

import "testing"

func TestMergeSingleChunkIsCleanedButUnchanged(t *testing.T) {
	got := Merge([]string{"  hello   world!!  "})
	want := "Hello world!"
	if got != want {
		t.Fatalf("Merge() = %q, want %q", got, want)
	}
}

func TestMergeRemovesOverlapBetweenChunks(t *testing.T) {
	// "and then he said" (16 chars) overlaps the tail of chunk 1 and the
	// head of chunk 2, comfortably within [minOverlap, maxOverlap].
	a := "the weather was fine and then he said"
	b := "and then he said hello to everyone"

	got := Merge([]string{a, b})
	want := "The weather was fine and then he said hello to everyone"
	if got != want {
		t.Fatalf("Merge() = %q, want %q", got, want)
	}
}

func TestMergeCaseInsensitiveOverlap(t *testing.T) {
	a := "we arrived at the Train Station"
	b := "train station was crowded"

	got := Merge([]string{a, b})
	want := "We arrived at the Train Station was crowded"
	if got != want {
		t.Fatalf("Merge() = %q, want %q", got, want)
	}
}

func TestMergeSkipsEmptyChunks(t *testing.T) {
	got := Merge([]string{"first part", "", "second part"})
	want := "First part second part"
	if got != want {
		t.Fatalf("Merge() = %q, want %q", got, want)
	}
}

func TestMergeAllEmptyReturnsEmptyString(t *testing.T) {
	got := Merge([]string{"", "   "})
	if got != "" {
		t.Fatalf("Merge() = %q, want empty string", got)
	}
}

func TestMergeOfEmptySliceReturnsEmptyString(t *testing.T) {
	if got := Merge(nil); got != "" {
		t.Fatalf("Merge(nil) = %q, want empty string", got)
	}
}

func TestFindOverlapRequiresMinimumLength(t *testing.T) {
	// "xyz" (3 chars) is below minOverlap=10, so no overlap should be found
	// even though it matches exactly.
	if n := findOverlap("hello there xyz", "xyz appears here"); n != 0 {
		t.Fatalf("findOverlap() = %d, want 0 for a match shorter than minOverlap", n)
	}
}

func TestFinalCleanupFixesPunctuationSpacing(t *testing.T) {
	got := finalCleanup("hello ,world .next!!( there")
	want := "Hello, world. next! ( there"
	if got != want {
		t.Fatalf("finalCleanup() = %q, want %q", got, want)
	}
}
