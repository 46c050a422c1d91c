package transcriber

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"sttworker/internal/blobstore"
	"sttworker/internal/jobflow"
)

// blobStore is the narrow slice of blobstore.Store the downloader needs,
// kept as an interface so tests can substitute a fake.
type blobStore interface {
	Stat(ctx context.Context, path string) (int64, error)
	Download(ctx context.Context, path, localFile string) error
}

// EnsureModel makes sure the ggml model file modelFilename is present at
// localDir, downloading it from store under blobstore.ModelPath if absent.
// Download is idempotent: a prior partial download never leaves a file at
// the final path (blobstore.Download writes through a .part temp file and
// renames on success), so a redelivered job that re-enters here either
// finds the file already valid or re-downloads cleanly (spec §4.4).
//
// Validation is size-based: the local file size must match the remote
// object size exactly. If wantSHA256 is non-empty, checksum validation is
// additionally applied (spec §4.4: "checksum validation is optional and
// opt-in").
func EnsureModel(ctx context.Context, store blobStore, localDir, modelFilename, wantSHA256 string) (string, error) {
	localPath := filepath.Join(localDir, modelFilename)
	remotePath := blobstore.ModelPath(modelFilename)

	remoteSize, err := store.Stat(ctx, remotePath)
	if err != nil {
		return "", jobflow.New(jobflow.KindBlobIO, fmt.Errorf("stat model %s: %w", remotePath, err))
	}

	if info, err := os.Stat(localPath); err == nil && info.Size() == remoteSize {
		if wantSHA256 == "" {
			return localPath, nil
		}
		if ok, err := matchesChecksum(localPath, wantSHA256); err == nil && ok {
			return localPath, nil
		}
		// size matched but checksum didn't (or couldn't be read): treat the
		// local copy as corrupt and re-fetch.
	}

	if err := os.MkdirAll(localDir, 0o755); err != nil {
		return "", jobflow.New(jobflow.KindBlobIO, fmt.Errorf("create model dir %s: %w", localDir, err))
	}
	if err := store.Download(ctx, remotePath, localPath); err != nil {
		return "", jobflow.New(jobflow.KindBlobIO, fmt.Errorf("download model %s: %w", remotePath, err))
	}

	info, err := os.Stat(localPath)
	if err != nil {
		return "", jobflow.New(jobflow.KindBlobIO, fmt.Errorf("stat downloaded model %s: %w", localPath, err))
	}
	if info.Size() != remoteSize {
		os.Remove(localPath)
		return "", jobflow.New(jobflow.KindMissingDependency, fmt.Errorf("model %s: size mismatch after download (got %d, want %d)", modelFilename, info.Size(), remoteSize))
	}
	if wantSHA256 != "" {
		ok, err := matchesChecksum(localPath, wantSHA256)
		if err != nil || !ok {
			os.Remove(localPath)
			return "", jobflow.New(jobflow.KindMissingDependency, fmt.Errorf("model %s: checksum mismatch after download", modelFilename))
		}
	}
	return localPath, nil
}

func matchesChecksum(path, wantHex string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return false, err
	}
	return hex.EncodeToString(h.Sum(nil)) == wantHex, nil
}
