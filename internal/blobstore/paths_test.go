package blobstore

import "testing"

func TestResultPath(t *testing.T) {
	got := ResultPath("abc-123")
	want := "results/result_abc-123.txt"
	if got != want {
		t.Fatalf("ResultPath() = %q, want %q", got, want)
	}
}

func TestModelPath(t *testing.T) {
	got := ModelPath("ggml-medium.bin")
	want := "whisper-models/ggml-medium.bin"
	if got != want {
		t.Fatalf("ModelPath() = %q, want %q", got, want)
	}
}

func TestUploadPath(t *testing.T) {
	got := UploadPath("f1", ".mp3")
	want := "uploads/f1.mp3"
	if got != want {
		t.Fatalf("UploadPath() = %q, want %q", got, want)
	}
}
