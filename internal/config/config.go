// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrJWTSecretRequired is returned when JWT_SECRET is not set.
	ErrJWTSecretRequired = errors.New("config: JWT_SECRET is required")
	// ErrS3BucketRequired is returned when S3_BUCKET is not set.
	ErrS3BucketRequired = errors.New("config: S3_BUCKET is required")
	// ErrS3RegionRequired is returned when S3_REGION is not set.
	ErrS3RegionRequired = errors.New("config: S3_REGION is required")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port int `env:"PORT, default=8080" json:"port"`

	// Auth settings
	JWTSecret string `env:"JWT_SECRET, required" json:"-"` // Masked in JSON

	// Catalog settings
	DatabasePath string `env:"DATABASE_PATH, default=clipstash.db" json:"database_path"`

	// Storage settings
	TempDir    string `env:"TEMP_DIR, default=/tmp/clipstash" json:"temp_dir"`
	AssetsRoot string `env:"ASSETS_ROOT, default=assets" json:"assets_root"`

	// S3 settings
	S3Bucket           string `env:"S3_BUCKET, required" json:"s3_bucket"`
	S3Region           string `env:"S3_REGION, required" json:"s3_region"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// S3CFDistribution is the CloudFront distribution host serving the bucket.
	// When set, uploads are classified by aspect ratio and keyed under a
	// landscape/portrait/other prefix, and public URLs point at the
	// distribution. When unset, uploads go under flat keys and public URLs
	// point directly at the bucket.
	S3CFDistribution string `env:"S3_CF_DISTRIBUTION" json:"s3_cf_distribution,omitempty"`

	// Upload limits
	MaxVideoUploadBytes     int64 `env:"MAX_VIDEO_UPLOAD_BYTES, default=1073741824" json:"max_video_upload_bytes"`
	MaxThumbnailUploadBytes int64 `env:"MAX_THUMBNAIL_UPLOAD_BYTES, default=10485760" json:"max_thumbnail_upload_bytes"`

	// Processing settings
	MaxConcurrentTranscodes int64         `env:"MAX_CONCURRENT_TRANSCODES, default=4" json:"max_concurrent_transcodes"`
	ProbeTimeout            time.Duration `env:"PROBE_TIMEOUT, default=30s" json:"probe_timeout"`
	TranscodeTimeout        time.Duration `env:"TRANSCODE_TIMEOUT, default=5m" json:"transcode_timeout"`
	UploadTimeout           time.Duration `env:"UPLOAD_TIMEOUT, default=10m" json:"upload_timeout"`

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// ClassifyUploads returns true when uploads should be classified by aspect
// ratio and served through the CloudFront distribution.
func (c *Config) ClassifyUploads() bool {
	return c.S3CFDistribution != ""
}

// Load reads configuration from environment variables using go-envconfig.
// It returns an error if required variables are not set.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		// Map envconfig errors to our domain errors for required fields
		if strings.Contains(err.Error(), "JWT_SECRET") {
			return nil, ErrJWTSecretRequired
		}
		if strings.Contains(err.Error(), "S3_BUCKET") {
			return nil, ErrS3BucketRequired
		}
		if strings.Contains(err.Error(), "S3_REGION") {
			return nil, ErrS3RegionRequired
		}
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration is present.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return ErrJWTSecretRequired
	}
	if c.S3Bucket == "" {
		return ErrS3BucketRequired
	}
	if c.S3Region == "" {
		return ErrS3RegionRequired
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, DatabasePath: %s, TempDir: %s, AssetsRoot: %s, S3Bucket: %s, S3Region: %s, S3CFDistribution: %s, MaxVideoUploadBytes: %d, MaxConcurrentTranscodes: %d, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.DatabasePath,
		c.TempDir,
		c.AssetsRoot,
		c.S3Bucket,
		c.S3Region,
		c.S3CFDistribution,
		c.MaxVideoUploadBytes,
		c.MaxConcurrentTranscodes,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
