package transcriber

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"sttworker/internal/jobflow"

	"github.com/stretchr/testify/require"
)

type fakeBlobStore struct {
	data      map[string][]byte
	downloads int
}

func (f *fakeBlobStore) Stat(ctx context.Context, path string) (int64, error) {
	d, ok := f.data[path]
	if !ok {
		return 0, os.ErrNotExist
	}
	return int64(len(d)), nil
}

func (f *fakeBlobStore) Download(ctx context.Context, path, localFile string) error {
	f.downloads++
	d, ok := f.data[path]
	if !ok {
		return os.ErrNotExist
	}
	return os.WriteFile(localFile, d, 0o644)
}

func TestEnsureModelDownloadsWhenAbsent(t *testing.T) {
	dir := t.TempDir()
	store := &fakeBlobStore{data: map[string][]byte{
		"whisper-models/ggml-medium.bin": []byte("fake-model-bytes"),
	}}

	path, err := EnsureModel(context.Background(), store, dir, "ggml-medium.bin", "")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "ggml-medium.bin"), path)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "fake-model-bytes", string(got))
}

func TestEnsureModelSkipsDownloadWhenSizeMatches(t *testing.T) {
	dir := t.TempDir()
	content := []byte("already-here")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ggml-small.bin"), content, 0o644))

	store := &fakeBlobStore{data: map[string][]byte{
		"whisper-models/ggml-small.bin": content,
	}}
	// The local file already matches the remote size, so EnsureModel must
	// return it without calling Download.
	path, err := EnsureModel(context.Background(), store, dir, "ggml-small.bin", "")
	require.NoError(t, err)
	require.Zero(t, store.downloads)
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, content, got)
}

func TestEnsureModelRedownloadsOnSizeMismatch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ggml-base.bin"), []byte("stale"), 0o644))

	store := &fakeBlobStore{data: map[string][]byte{
		"whisper-models/ggml-base.bin": []byte("fresh-correct-bytes"),
	}}
	path, err := EnsureModel(context.Background(), store, dir, "ggml-base.bin", "")
	require.NoError(t, err)
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "fresh-correct-bytes", string(got))
}

func TestEnsureModelMissingRemoteReturnsBlobIOError(t *testing.T) {
	dir := t.TempDir()
	store := &fakeBlobStore{data: map[string][]byte{}}
	_, err := EnsureModel(context.Background(), store, dir, "ggml-large.bin", "")
	require.Error(t, err)
	var je *jobflow.Error
	require.True(t, jobflow.As(err, &je))
	require.Equal(t, jobflow.KindBlobIO, je.Kind)
}
