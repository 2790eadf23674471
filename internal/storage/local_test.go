package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewLocalStore(t *testing.T) {
	t.Run("creates directory if not exists", func(t *testing.T) {
		tempDir := filepath.Join(os.TempDir(), "clipstash_test_"+randomSuffix())
		defer func() { _ = os.RemoveAll(tempDir) }()

		store, err := NewLocalStore(tempDir)
		if err != nil {
			t.Fatalf("NewLocalStore() error = %v", err)
		}

		if store.TempDir() != tempDir {
			t.Errorf("TempDir() = %v, want %v", store.TempDir(), tempDir)
		}

		info, err := os.Stat(tempDir)
		if err != nil {
			t.Fatalf("directory not created: %v", err)
		}
		if !info.IsDir() {
			t.Error("expected directory, got file")
		}
	})

	t.Run("uses default directory when empty", func(t *testing.T) {
		store, err := NewLocalStore("")
		if err != nil {
			t.Fatalf("NewLocalStore() error = %v", err)
		}

		expected := filepath.Join(os.TempDir(), "clipstash")
		if store.TempDir() != expected {
			t.Errorf("TempDir() = %v, want %v", store.TempDir(), expected)
		}
	})
}

func TestLocalStore_Stage(t *testing.T) {
	store := setupTestStore(t)

	t.Run("stages data to temp file", func(t *testing.T) {
		ctx := context.Background()
		data := bytes.NewReader([]byte("test data"))

		staged, err := store.Stage(ctx, "upload", data, 1<<20)
		if err != nil {
			t.Fatalf("Stage() error = %v", err)
		}
		defer func() { _ = os.Remove(staged.Path) }()

		if !strings.Contains(staged.Path, "upload_") {
			t.Errorf("path %s should contain 'upload_'", staged.Path)
		}
		if staged.Size != int64(len("test data")) {
			t.Errorf("Size = %d, want %d", staged.Size, len("test data"))
		}

		content, err := os.ReadFile(staged.Path)
		if err != nil {
			t.Fatalf("failed to read staged file: %v", err)
		}
		if string(content) != "test data" {
			t.Errorf("got %q, want %q", string(content), "test data")
		}
	})

	t.Run("rejects oversize stream and retains nothing", func(t *testing.T) {
		ctx := context.Background()
		data := bytes.NewReader([]byte("0123456789"))

		_, err := store.Stage(ctx, "oversize", data, 5)
		if !errors.Is(err, ErrPayloadTooLarge) {
			t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
		}

		entries, err := os.ReadDir(store.TempDir())
		if err != nil {
			t.Fatalf("ReadDir() error = %v", err)
		}
		for _, e := range entries {
			if strings.Contains(e.Name(), "oversize_") {
				t.Errorf("partial file %s left on disk", e.Name())
			}
		}
	})

	t.Run("accepts stream exactly at the limit", func(t *testing.T) {
		ctx := context.Background()
		data := bytes.NewReader([]byte("12345"))

		staged, err := store.Stage(ctx, "exact", data, 5)
		if err != nil {
			t.Fatalf("Stage() error = %v", err)
		}
		defer func() { _ = os.Remove(staged.Path) }()

		if staged.Size != 5 {
			t.Errorf("Size = %d, want 5", staged.Size)
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := store.Stage(ctx, "upload", bytes.NewReader([]byte("data")), 1<<20)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestLocalStore_Open(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	t.Run("opens staged file", func(t *testing.T) {
		staged, err := store.Stage(ctx, "open_test", bytes.NewReader([]byte("open data")), 1<<20)
		if err != nil {
			t.Fatalf("Stage() error = %v", err)
		}
		defer func() { _ = os.Remove(staged.Path) }()

		reader, err := store.Open(ctx, staged.Path)
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer func() { _ = reader.Close() }()

		content, err := io.ReadAll(reader)
		if err != nil {
			t.Fatalf("failed to read: %v", err)
		}
		if string(content) != "open data" {
			t.Errorf("got %q, want %q", string(content), "open data")
		}
	})

	t.Run("returns error for non-existent file", func(t *testing.T) {
		_, err := store.Open(ctx, "/non/existent/file")
		if err == nil {
			t.Error("expected error for non-existent file")
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := store.Open(ctx, "/some/path")
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestLocalStore_Release(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	t.Run("removes files", func(t *testing.T) {
		var paths []string
		for i := 0; i < 3; i++ {
			staged, err := store.Stage(ctx, "release", bytes.NewReader([]byte("data")), 1<<20)
			if err != nil {
				t.Fatalf("Stage() error = %v", err)
			}
			paths = append(paths, staged.Path)
		}

		err := store.Release(ctx, paths...)
		if err != nil {
			t.Fatalf("Release() error = %v", err)
		}

		for _, p := range paths {
			if _, err := os.Stat(p); !os.IsNotExist(err) {
				t.Errorf("file %s still exists", p)
			}
		}
	})

	t.Run("is idempotent for missing files", func(t *testing.T) {
		err := store.Release(ctx, "/non/existent/file")
		if err != nil {
			t.Errorf("Release() should ignore missing files, got %v", err)
		}
	})

	t.Run("double release is a no-op", func(t *testing.T) {
		staged, err := store.Stage(ctx, "double", bytes.NewReader([]byte("data")), 1<<20)
		if err != nil {
			t.Fatalf("Stage() error = %v", err)
		}

		if err := store.Release(ctx, staged.Path); err != nil {
			t.Fatalf("first Release() error = %v", err)
		}
		if err := store.Release(ctx, staged.Path); err != nil {
			t.Errorf("second Release() error = %v", err)
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := store.Release(ctx, "/some/path")
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestLocalStore_Upload(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.Upload(ctx, "key", "video/mp4", bytes.NewReader([]byte("data")))
	if err != ErrObjectStoreNotConfigured {
		t.Errorf("expected ErrObjectStoreNotConfigured, got %v", err)
	}
}

func setupTestStore(t *testing.T) *LocalStore {
	t.Helper()
	tempDir := filepath.Join(os.TempDir(), "clipstash_test_"+randomSuffix())
	t.Cleanup(func() { _ = os.RemoveAll(tempDir) })

	store, err := NewLocalStore(tempDir)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return store
}

func randomSuffix() string {
	return time.Now().Format("20060102150405.000000000")
}
