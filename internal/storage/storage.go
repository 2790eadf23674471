// Package storage provides local staging and remote object storage.
// It defines the Storage interface (port) for hexagonal architecture and
// implementations for local disk staging and S3 relocation.
package storage

import (
	"context"
	"io"
)

// StagedFile is a local artifact owned exclusively by one pipeline run.
// It must be released before the run ends, on every exit path.
type StagedFile struct {
	// Path is the location of the file on local disk.
	Path string
	// Size is the number of bytes written.
	Size int64
}

// Storage defines the interface for local staging and remote object storage.
// Implementations must handle temporary files during processing and
// optionally support uploads to a remote object store for final delivery.
type Storage interface {
	// Stage writes data to a local temporary file and returns it.
	// The name parameter is used as a hint for the filename; limit is the
	// caller-supplied size ceiling for this media kind. If the stream
	// exceeds limit, Stage fails with ErrPayloadTooLarge and retains
	// nothing on disk.
	Stage(ctx context.Context, name string, data io.Reader, limit int64) (StagedFile, error)

	// Open reads a staged file back for streaming.
	// The caller is responsible for closing the returned ReadCloser.
	Open(ctx context.Context, path string) (io.ReadCloser, error)

	// Release removes the specified staged files. It is idempotent: paths
	// that are already gone are not an error. It continues even if some
	// files fail to delete, returning the first error encountered.
	Release(ctx context.Context, paths ...string) error

	// Upload streams data to the remote object store under key with the
	// given content type and returns the public URL. Returns
	// ErrObjectStoreNotConfigured if no remote store is configured.
	Upload(ctx context.Context, key, contentType string, data io.Reader) (string, error)
}
