package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Static errors for storage operations.
var (
	// ErrObjectStoreNotConfigured is returned when remote uploads are
	// attempted without a configured object store.
	ErrObjectStoreNotConfigured = errors.New("object store is not configured")
	// ErrPayloadTooLarge is returned when a staged stream exceeds the
	// caller-supplied size limit.
	ErrPayloadTooLarge = errors.New("payload exceeds size limit")
)

// LocalStore implements the Storage interface using local disk.
// It stages files in a configurable scratch directory and does not support
// remote uploads unless wrapped with S3Store.
type LocalStore struct {
	tempDir string
}

// NewLocalStore creates a new LocalStore instance.
// The tempDir parameter specifies where staged files are stored.
// If tempDir is empty, os.TempDir() is used.
// The directory is created if it doesn't exist.
func NewLocalStore(tempDir string) (*LocalStore, error) {
	if tempDir == "" {
		tempDir = filepath.Join(os.TempDir(), "clipstash")
	}

	if err := os.MkdirAll(tempDir, 0750); err != nil {
		return nil, fmt.Errorf("create temp directory: %w", err)
	}

	return &LocalStore{tempDir: tempDir}, nil
}

// TempDir returns the scratch directory path.
func (s *LocalStore) TempDir() string {
	return s.tempDir
}

// Stage writes data to a local temporary file, enforcing limit as it copies.
// The name is used as a base for the filename with a unique suffix; callers
// must never derive it from user input.
func (s *LocalStore) Stage(ctx context.Context, name string, data io.Reader, limit int64) (StagedFile, error) {
	select {
	case <-ctx.Done():
		return StagedFile{}, fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	f, err := os.CreateTemp(s.tempDir, name+"_*")
	if err != nil {
		return StagedFile{}, fmt.Errorf("create temp file: %w", err)
	}
	fileName := f.Name()

	// Copy one byte past the limit so an oversize stream is detectable
	// without buffering it whole.
	written, err := io.Copy(f, io.LimitReader(data, limit+1))
	if err != nil {
		_ = f.Close()
		_ = os.Remove(fileName)
		return StagedFile{}, fmt.Errorf("write temp file: %w", err)
	}
	if written > limit {
		_ = f.Close()
		_ = os.Remove(fileName)
		return StagedFile{}, fmt.Errorf("%w: limit %d bytes", ErrPayloadTooLarge, limit)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(fileName)
		return StagedFile{}, fmt.Errorf("close temp file: %w", err)
	}

	return StagedFile{Path: fileName, Size: written}, nil
}

// Open reads a staged file and returns a reader.
// The caller is responsible for closing the returned ReadCloser.
func (s *LocalStore) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	f, err := os.Open(path) // #nosec G304 - path is provided by trusted caller
	if err != nil {
		return nil, fmt.Errorf("open staged file: %w", err)
	}

	return f, nil
}

// Release removes the specified staged files. Already-released or missing
// files are a no-op, so the cleanup is safe to invoke from every exit path.
func (s *LocalStore) Release(ctx context.Context, paths ...string) error {
	var firstErr error
	for _, p := range paths {
		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}

		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			if firstErr == nil {
				firstErr = fmt.Errorf("remove staged file %s: %w", p, err)
			}
		}
	}
	return firstErr
}

// Upload is not supported by LocalStore and returns ErrObjectStoreNotConfigured.
func (s *LocalStore) Upload(_ context.Context, _, _ string, _ io.Reader) (string, error) {
	return "", ErrObjectStoreNotConfigured
}
