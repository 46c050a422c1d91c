package chunker

import "testing"

func TestFixedWindowsCoversWholeDurationWithNoGaps(t *testing.T) {
	windows := fixedWindows(95, 30)
	want := []interval{
		{start: 0, end: 30},
		{start: 30, end: 60},
		{start: 60, end: 90},
		{start: 90, end: 95},
	}
	if len(windows) != len(want) {
		t.Fatalf("got %d windows, want %d: %+v", len(windows), len(want), windows)
	}
	for i := range want {
		if windows[i] != want[i] {
			t.Fatalf("window %d = %+v, want %+v", i, windows[i], want[i])
		}
	}
}

func TestFixedWindowsZeroDurationProducesWholeFileChunk(t *testing.T) {
	windows := fixedWindows(42, 0)
	if len(windows) != 1 || windows[0] != (interval{start: 0, end: 42}) {
		t.Fatalf("got %+v, want a single whole-file window", windows)
	}
}
