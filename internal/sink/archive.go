package sink

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/emmett/utter/internal/audio"
	"github.com/emmett/utter/internal/segment"
)

// ArchiveConfig holds the S3 bucket utterances are copied to
type ArchiveConfig struct {
	Bucket          string
	Region          string
	Endpoint        string // Optional: S3-compatible endpoint, enables path-style addressing
	Prefix          string // Optional: key prefix, e.g. "utterances/"
	AccessKeyID     string // Optional: static credentials
	SecretAccessKey string
}

// ArchiveSink persists through another sink and then uploads the file to S3.
// The local path is returned either way; a failed upload is only logged.
type ArchiveSink struct {
	next   segment.Sink
	client *s3.Client
	bucket string
	region string
	prefix string
	logger *slog.Logger
}

// NewArchiveSink wraps next with an S3 upload
func NewArchiveSink(ctx context.Context, next segment.Sink, cfg ArchiveConfig, logger *slog.Logger) (*ArchiveSink, error) {
	if next == nil {
		return nil, fmt.Errorf("archive sink needs a local sink")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("archive bucket is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	var configOpts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		configOpts = append(configOpts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		configOpts = append(configOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, configOpts...)
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

	return &ArchiveSink{
		next:   next,
		client: s3.NewFromConfig(awsCfg, clientOpts...),
		bucket: cfg.Bucket,
		region: awsCfg.Region,
		prefix: cfg.Prefix,
		logger: logger.With("component", "archive"),
	}, nil
}

// Persist writes locally, then archives the file
func (s *ArchiveSink) Persist(ctx context.Context, frames []byte, format audio.Format) (string, error) {
	local, err := s.next.Persist(ctx, frames, format)
	if err != nil {
		return "", err
	}

	url, err := s.Upload(ctx, local)
	if err != nil {
		s.logger.Warn("failed to archive utterance", "path", local, "error", err)
		return local, nil
	}
	s.logger.Info("utterance archived", "path", local, "url", url)
	return local, nil
}

// Upload copies the file at local to the bucket and returns its URL
func (s *ArchiveSink) Upload(ctx context.Context, local string) (string, error) {
	f, err := os.Open(local)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", local, err)
	}
	defer f.Close()

	key := s.Key(local)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String("audio/wav"),
	})
	if err != nil {
		return "", fmt.Errorf("upload to S3: %w", err)
	}

	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key), nil
}

// Key returns the object key for a local file
func (s *ArchiveSink) Key(local string) string {
	name := filepath.Base(local)
	if s.prefix == "" {
		return name
	}
	return path.Join(strings.Trim(s.prefix, "/"), name)
}
