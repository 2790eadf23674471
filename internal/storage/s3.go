package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config holds the configuration for S3 storage.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // Optional: for custom S3-compatible endpoints
	AccessKeyID     string // Optional: AWS access key ID
	SecretAccessKey string // Optional: AWS secret access key

	// Distribution is the CDN host fronting the bucket. When set, public
	// URLs point at the distribution instead of the bucket. The template
	// must stay stable or existing catalog links break.
	Distribution string
}

// S3Store wraps LocalStore and adds S3 upload capability.
// It uses LocalStore for staging and S3 for final object storage.
type S3Store struct {
	*LocalStore
	client       *s3.Client
	bucket       string
	region       string
	distribution string
}

// NewS3Store creates a new S3Store instance.
// The tempDir parameter specifies where staged files are stored.
// The cfg parameter contains S3 configuration.
func NewS3Store(tempDir string, cfg S3Config) (*S3Store, error) {
	local, err := NewLocalStore(tempDir)
	if err != nil {
		return nil, err
	}

	var configOpts []func(*config.LoadOptions) error
	configOpts = append(configOpts, config.WithRegion(cfg.Region))

	// Use static credentials if provided
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		configOpts = append(configOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(), configOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, clientOpts...)

	return &S3Store{
		LocalStore:   local,
		client:       client,
		bucket:       cfg.Bucket,
		region:       cfg.Region,
		distribution: cfg.Distribution,
	}, nil
}

// Upload streams data to S3 under key and returns the public URL.
// The body is streamed, never buffered whole, so it handles files up to the
// large-upload ceiling.
func (s *S3Store) Upload(ctx context.Context, key, contentType string, data io.Reader) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        data,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload to S3: %w", err)
	}

	return s.PublicURL(key), nil
}

// PublicURL composes the public URL for an object key according to the
// deployment mode: through the CDN distribution when configured, otherwise
// directly against the bucket.
func (s *S3Store) PublicURL(key string) string {
	if s.distribution != "" {
		return fmt.Sprintf("https://%s/%s", s.distribution, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}
