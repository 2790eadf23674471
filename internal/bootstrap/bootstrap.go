// Package bootstrap provides dependency initialization for the ClipStash API.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/clipstash/clipstash-api/internal/catalog"
	"github.com/clipstash/clipstash-api/internal/config"
	"github.com/clipstash/clipstash-api/internal/media"
	"github.com/clipstash/clipstash-api/internal/pipeline"
	"github.com/clipstash/clipstash-api/internal/storage"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	Catalog catalog.Repository
	Uploads *pipeline.UploadService

	closers []func() error
}

// Close releases resources held by the dependencies.
func (d *Dependencies) Close() error {
	var firstErr error
	for _, c := range d.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	repo, err := catalog.NewSQLiteRepository(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open catalog database: %w", err)
	}

	inspector := media.NewFFprobeInspector("")
	normalizer := media.NewFFmpegNormalizer("")

	assetBaseURL := fmt.Sprintf("http://localhost:%d/assets", cfg.Port)

	svc := pipeline.NewUploadService(
		repo,
		store,
		inspector,
		normalizer,
		logger,
		pipeline.WithClassification(cfg.ClassifyUploads()),
		pipeline.WithVideoSizeLimit(cfg.MaxVideoUploadBytes),
		pipeline.WithThumbnailSizeLimit(cfg.MaxThumbnailUploadBytes),
		pipeline.WithAssets(cfg.AssetsRoot, assetBaseURL),
		pipeline.WithTimeouts(cfg.ProbeTimeout, cfg.TranscodeTimeout, cfg.UploadTimeout),
		pipeline.WithMaxConcurrentTranscodes(cfg.MaxConcurrentTranscodes),
	)

	return &Dependencies{
		Catalog: repo,
		Uploads: svc,
		closers: []func() error{repo.Close},
	}, nil
}

// initStorage creates the S3-backed storage with local staging.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	s3Cfg := storage.S3Config{
		Bucket:          cfg.S3Bucket,
		Region:          cfg.S3Region,
		Endpoint:        cfg.S3Endpoint,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
		Distribution:    cfg.S3CFDistribution,
	}
	store, err := storage.NewS3Store(cfg.TempDir, s3Cfg)
	if err != nil {
		return nil, fmt.Errorf("create S3 storage: %w", err)
	}
	logger.Info("S3 storage configured",
		slog.String("bucket", cfg.S3Bucket),
		slog.String("region", cfg.S3Region),
		slog.Bool("cdn", cfg.S3CFDistribution != ""),
	)
	return store, nil
}
