package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// S3Config holds the settings for the S3 sink.
type S3Config struct {
	// Endpoint overrides the S3 endpoint for S3-compatible services.
	// Empty means AWS.
	Endpoint string

	// Region is the signing region.
	Region string

	// Bucket is the destination bucket.
	Bucket string

	// Prefix is prepended to every object key.
	Prefix string

	// AccessKeyID and SecretAccessKey are static credentials. Both empty
	// means the SDK's default credential chain.
	AccessKeyID     string
	SecretAccessKey string
}

// S3Sink writes snapshots as JSON objects into an S3 or S3-compatible
// bucket.
type S3Sink struct {
	client *s3.Client
	cfg    S3Config
	logger zerolog.Logger
}

// NewS3Sink creates an S3Sink from the given configuration.
func NewS3Sink(ctx context.Context, cfg S3Config, logger zerolog.Logger) (*S3Sink, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" || cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Sink{
		client: client,
		cfg:    cfg,
		logger: logger.With().Str("component", "backup_s3").Logger(),
	}, nil
}

// Store uploads the snapshot to
// s3://<bucket>/<prefix>/export-<timestamp>-<id>.json.
func (s *S3Sink) Store(ctx context.Context, snapshot *Snapshot) (string, error) {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}

	name := fmt.Sprintf("export-%s-%s.json", snapshot.CreatedAt.Format("20060102T150405Z"), snapshot.ID)
	key := path.Join(s.cfg.Prefix, name)

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload snapshot: %w", err)
	}

	location := fmt.Sprintf("s3://%s/%s", s.cfg.Bucket, key)
	s.logger.Info().Str("location", location).Str("snapshot_id", snapshot.ID).Msg("snapshot exported")
	return location, nil
}

// Ensure S3Sink implements Sink.
var _ Sink = (*S3Sink)(nil)
