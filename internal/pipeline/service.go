// Package pipeline provides the upload orchestrator: it stages an inbound
// byte stream, classifies and normalizes it with the external media tools,
// relocates the result to the object store, and updates the catalog entry
// with the resulting public URL. All local artifacts are released on every
// exit path.
package pipeline

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/clipstash/clipstash-api/internal/catalog"
	"github.com/clipstash/clipstash-api/internal/media"
	"github.com/clipstash/clipstash-api/internal/storage"
)

// videoMediaType is the single supported video container type.
const videoMediaType = "video/mp4"

// Static errors for upload validation.
var (
	// ErrUnsupportedMediaType is returned when the declared media type is
	// not the supported container type for the operation.
	ErrUnsupportedMediaType = errors.New("pipeline: unsupported media type")
	// ErrForbidden is returned when the caller does not own the target entry.
	ErrForbidden = errors.New("pipeline: user does not own this video")
)

// UploadVideoInput contains the parameters for one video upload run.
// It is transient; it exists only for the duration of the run.
type UploadVideoInput struct {
	// VideoID is the catalog entry to attach the upload to.
	VideoID uuid.UUID
	// UserID is the already-authenticated caller.
	UserID uuid.UUID
	// MediaType is the declared MIME type of the stream.
	MediaType string
	// Body is the inbound byte stream.
	Body io.Reader
	// DeclaredSize is the size claimed by the client, -1 if unknown.
	DeclaredSize int64
}

// UploadThumbnailInput contains the parameters for one thumbnail upload.
type UploadThumbnailInput struct {
	VideoID      uuid.UUID
	UserID       uuid.UUID
	MediaType    string
	Body         io.Reader
	DeclaredSize int64
}

// UploadService orchestrates the upload-normalize-relocate pipeline.
// Each call runs one independent sequential pipeline; concurrent runs share
// nothing but the catalog and the object store.
type UploadService struct {
	catalog    catalog.Repository
	store      storage.Storage
	inspector  media.Inspector
	normalizer media.Normalizer
	logger     *slog.Logger

	// classify selects the pipeline topology: classify-then-relocate with
	// aspect-prefixed keys, or relocate-only with flat keys.
	classify bool

	maxVideoBytes     int64
	maxThumbnailBytes int64
	assetsRoot        string
	assetBaseURL      string

	probeTimeout     time.Duration
	transcodeTimeout time.Duration
	uploadTimeout    time.Duration

	// sem bounds concurrent subprocess-heavy work across runs.
	sem *semaphore.Weighted
}

// Option is a function that configures an UploadService.
type Option func(*UploadService)

// WithClassification enables or disables aspect-ratio classification.
// When enabled, object keys carry a landscape/portrait/other prefix.
func WithClassification(enabled bool) Option {
	return func(s *UploadService) { s.classify = enabled }
}

// WithVideoSizeLimit sets the ceiling for video uploads in bytes.
func WithVideoSizeLimit(n int64) Option {
	return func(s *UploadService) {
		if n > 0 {
			s.maxVideoBytes = n
		}
	}
}

// WithThumbnailSizeLimit sets the ceiling for thumbnail uploads in bytes.
func WithThumbnailSizeLimit(n int64) Option {
	return func(s *UploadService) {
		if n > 0 {
			s.maxThumbnailBytes = n
		}
	}
}

// WithAssets configures where thumbnails are written and the base URL they
// are served from.
func WithAssets(root, baseURL string) Option {
	return func(s *UploadService) {
		s.assetsRoot = root
		s.assetBaseURL = baseURL
	}
}

// WithTimeouts sets the per-phase deadlines. A zero duration disables the
// deadline for that phase.
func WithTimeouts(probe, transcode, upload time.Duration) Option {
	return func(s *UploadService) {
		s.probeTimeout = probe
		s.transcodeTimeout = transcode
		s.uploadTimeout = upload
	}
}

// WithMaxConcurrentTranscodes bounds how many runs may execute their
// subprocess-heavy phase at once, preventing fork storms under load.
func WithMaxConcurrentTranscodes(n int64) Option {
	return func(s *UploadService) {
		if n > 0 {
			s.sem = semaphore.NewWeighted(n)
		}
	}
}

// NewUploadService creates a new UploadService.
func NewUploadService(
	cat catalog.Repository,
	store storage.Storage,
	inspector media.Inspector,
	normalizer media.Normalizer,
	logger *slog.Logger,
	opts ...Option,
) *UploadService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &UploadService{
		catalog:           cat,
		store:             store,
		inspector:         inspector,
		normalizer:        normalizer,
		logger:            logger,
		maxVideoBytes:     1 << 30,
		maxThumbnailBytes: 10 << 20,
		assetsRoot:        "assets",
		assetBaseURL:      "/assets",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UploadVideo runs the full pipeline for one inbound video stream and
// returns the updated catalog entry. The catalog's video URL is rewritten
// only after the remote upload is confirmed.
func (s *UploadService) UploadVideo(ctx context.Context, input UploadVideoInput) (*catalog.Video, error) {
	video, err := s.authorize(ctx, input.VideoID, input.UserID)
	if err != nil {
		return nil, err
	}

	mediaType, _, err := mime.ParseMediaType(input.MediaType)
	if err != nil || mediaType != videoMediaType {
		return nil, fmt.Errorf("%w: %q (want %s)", ErrUnsupportedMediaType, input.MediaType, videoMediaType)
	}

	// Reject before staging a single byte.
	if input.DeclaredSize > s.maxVideoBytes {
		return nil, fmt.Errorf("%w: declared %d bytes, limit %d", storage.ErrPayloadTooLarge, input.DeclaredSize, s.maxVideoBytes)
	}

	// The file name is never derived from user input.
	uploadID, err := newUploadID()
	if err != nil {
		return nil, fmt.Errorf("generate upload id: %w", err)
	}

	// Every local artifact created below is released here, on success and
	// on every error path. Release is idempotent, so intermediate files
	// already removed mid-run are a no-op. Cleanup failures are logged,
	// never allowed to mask the run's own error.
	var scratch []string
	defer func() {
		if err := s.store.Release(context.WithoutCancel(ctx), scratch...); err != nil {
			s.logger.Warn("cleanup of staged files failed",
				slog.String("video_id", input.VideoID.String()),
				slog.String("error", err.Error()),
			)
		}
	}()

	staged, err := s.store.Stage(ctx, uploadID, input.Body, s.maxVideoBytes)
	if err != nil {
		return nil, fmt.Errorf("stage upload: %w", err)
	}
	scratch = append(scratch, staged.Path)

	s.logger.Info("upload staged",
		slog.String("video_id", input.VideoID.String()),
		slog.String("path", staged.Path),
		slog.Int64("size_bytes", staged.Size),
	)

	// Register the normalizer's output path up front: a failed or killed
	// ffmpeg run may leave a partial file behind even though no path is
	// returned.
	scratch = append(scratch, media.ProcessedPath(staged.Path))

	// Bound the subprocess-heavy phase across concurrent runs.
	if s.sem != nil {
		if err := s.sem.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("acquire transcode slot: %w", err)
		}
	}

	classification, processedPath, err := s.classifyAndNormalize(ctx, staged.Path)
	if s.sem != nil {
		s.sem.Release(1)
	}
	if err != nil {
		return nil, err
	}
	if processedPath != media.ProcessedPath(staged.Path) {
		scratch = append(scratch, processedPath)
	}

	// The pre-normalization file is an intermediate artifact; drop it now
	// rather than holding both copies through the upload.
	if err := s.store.Release(ctx, staged.Path); err != nil {
		s.logger.Warn("release of staged input failed",
			slog.String("path", staged.Path),
			slog.String("error", err.Error()),
		)
	}

	key := s.objectKey(classification, uploadID)

	url, err := s.uploadObject(ctx, processedPath, key)
	if err != nil {
		return nil, err
	}

	// The catalog update is the only durable side effect, and happens
	// strictly after the upload is confirmed.
	video.VideoURL = &url
	if err := s.catalog.Update(ctx, video); err != nil {
		return nil, fmt.Errorf("update catalog: %w", err)
	}

	s.logger.Info("video uploaded",
		slog.String("video_id", input.VideoID.String()),
		slog.String("key", key),
		slog.String("url", url),
	)

	return video, nil
}

// classifyAndNormalize runs the subprocess phase: optional aspect-ratio
// classification followed by the fast-start remux.
func (s *UploadService) classifyAndNormalize(ctx context.Context, path string) (media.Classification, string, error) {
	classification := media.ClassOther
	if s.classify {
		probeCtx, cancel := s.withTimeout(ctx, s.probeTimeout)
		c, err := s.inspector.Classify(probeCtx, path)
		cancel()
		if err != nil {
			return "", "", fmt.Errorf("classify: %w", err)
		}
		classification = c
	}

	transcodeCtx, cancel := s.withTimeout(ctx, s.transcodeTimeout)
	defer cancel()
	processedPath, err := s.normalizer.Normalize(transcodeCtx, path)
	if err != nil {
		return "", "", fmt.Errorf("normalize: %w", err)
	}

	return classification, processedPath, nil
}

// uploadObject streams the normalized file to the object store.
func (s *UploadService) uploadObject(ctx context.Context, path, key string) (string, error) {
	f, err := s.store.Open(ctx, path)
	if err != nil {
		return "", fmt.Errorf("open normalized file: %w", err)
	}
	defer func() { _ = f.Close() }()

	uploadCtx, cancel := s.withTimeout(ctx, s.uploadTimeout)
	defer cancel()

	url, err := s.store.Upload(uploadCtx, key, videoMediaType, f)
	if err != nil {
		return "", fmt.Errorf("upload object: %w", err)
	}
	return url, nil
}

// UploadThumbnail stores a thumbnail image under the assets root and updates
// the catalog entry's thumbnail URL. Thumbnails stay on local disk; they do
// not go through the transcode pipeline.
func (s *UploadService) UploadThumbnail(ctx context.Context, input UploadThumbnailInput) (*catalog.Video, error) {
	video, err := s.authorize(ctx, input.VideoID, input.UserID)
	if err != nil {
		return nil, err
	}

	mediaType, _, err := mime.ParseMediaType(input.MediaType)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMediaType, input.MediaType)
	}

	var ext string
	switch mediaType {
	case "image/png":
		ext = "png"
	case "image/jpeg":
		ext = "jpg"
	default:
		return nil, fmt.Errorf("%w: %q (want image/png or image/jpeg)", ErrUnsupportedMediaType, input.MediaType)
	}

	if input.DeclaredSize > s.maxThumbnailBytes {
		return nil, fmt.Errorf("%w: declared %d bytes, limit %d", storage.ErrPayloadTooLarge, input.DeclaredSize, s.maxThumbnailBytes)
	}

	name, err := newUploadID()
	if err != nil {
		return nil, fmt.Errorf("generate upload id: %w", err)
	}
	fileName := fmt.Sprintf("%s.%s", name, ext)

	if err := s.saveAsset(fileName, input.Body); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/%s", s.assetBaseURL, fileName)
	video.ThumbnailURL = &url
	if err := s.catalog.Update(ctx, video); err != nil {
		// The asset is orphaned if the catalog update fails; remove it.
		if rmErr := os.Remove(filepath.Join(s.assetsRoot, fileName)); rmErr != nil && !os.IsNotExist(rmErr) {
			s.logger.Warn("cleanup of orphaned thumbnail failed",
				slog.String("file", fileName),
				slog.String("error", rmErr.Error()),
			)
		}
		return nil, fmt.Errorf("update catalog: %w", err)
	}

	s.logger.Info("thumbnail uploaded",
		slog.String("video_id", input.VideoID.String()),
		slog.String("file", fileName),
	)

	return video, nil
}

// saveAsset writes a thumbnail into the assets root, enforcing the size limit.
func (s *UploadService) saveAsset(fileName string, data io.Reader) error {
	if err := os.MkdirAll(s.assetsRoot, 0750); err != nil {
		return fmt.Errorf("create assets directory: %w", err)
	}

	path := filepath.Join(s.assetsRoot, fileName)
	f, err := os.Create(path) // #nosec G304 - fileName is generated, not user input
	if err != nil {
		return fmt.Errorf("create asset file: %w", err)
	}

	written, err := io.Copy(f, io.LimitReader(data, s.maxThumbnailBytes+1))
	if err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("write asset file: %w", err)
	}
	if written > s.maxThumbnailBytes {
		_ = f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("%w: limit %d bytes", storage.ErrPayloadTooLarge, s.maxThumbnailBytes)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("close asset file: %w", err)
	}
	return nil
}

// authorize fetches the catalog entry and verifies ownership. It runs before
// any staging, subprocess, or upload work.
func (s *UploadService) authorize(ctx context.Context, videoID, userID uuid.UUID) (*catalog.Video, error) {
	video, err := s.catalog.Get(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if video.UserID != userID {
		return nil, ErrForbidden
	}
	return video, nil
}

// objectKey derives the remote key for an upload. Keys are unique per run
// via the random upload ID, so concurrent runs never collide.
func (s *UploadService) objectKey(c media.Classification, uploadID string) string {
	if s.classify {
		return fmt.Sprintf("%s/%s.mp4", c, uploadID)
	}
	return fmt.Sprintf("%s.mp4", uploadID)
}

// withTimeout wraps ctx with d when d is positive.
func (s *UploadService) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// newUploadID returns a 32-byte cryptographically random identifier encoded
// as unpadded base64url, safe for both file names and object keys.
func newUploadID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
