package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"

	"github.com/local/mtreport/internal/config"
)

// ErrNoBucket is returned by NewS3Client when no bucket is configured.
var ErrNoBucket = errors.New("s3 bucket not configured")

// S3Client publishes delivery archives to a bucket.
type S3Client struct {
	client     *s3.Client
	uploader   *manager.Uploader
	bucketName string
	prefix     string
	attempts   uint
}

// NewS3Client creates a new S3 client from the default AWS credential chain.
func NewS3Client(ctx context.Context, cfg config.StorageConfig) (*S3Client, error) {
	if cfg.Bucket == "" {
		return nil, ErrNoBucket
	}
	var opts []func(*awscfg.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awscfg.WithRegion(cfg.Region))
	}
	awsCfg, err := awscfg.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	cli := s3.NewFromConfig(awsCfg)
	attempts := cfg.Attempts
	if attempts == 0 {
		attempts = 1
	}
	return &S3Client{
		client:     cli,
		uploader:   manager.NewUploader(cli),
		bucketName: cfg.Bucket,
		prefix:     cfg.Prefix,
		attempts:   attempts,
	}, nil
}

// Upload streams the file at localPath to the bucket and returns its s3:// URL.
// Transient failures are retried.
func (s *S3Client) Upload(ctx context.Context, localPath string) (string, error) {
	key := ObjectKey(s.prefix, localPath)
	err := retry.Do(
		func() error {
			f, err := os.Open(localPath)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			defer f.Close()
			_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
				Bucket:      aws.String(s.bucketName),
				Key:         aws.String(key),
				Body:        f,
				ContentType: aws.String(contentType(localPath)),
				Metadata:    map[string]string{"name": filepath.Base(localPath)},
			})
			return err
		},
		retry.Context(ctx),
		retry.Attempts(s.attempts),
		retry.Delay(time.Second),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Warn().Err(err).Uint("attempt", n+1).Str("key", key).Msg("upload failed, retrying")
		}),
	)
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}
	url := "s3://" + s.bucketName + "/" + key
	log.Info().Str("key", key).Str("url", url).Msg("uploaded archive to S3")
	return url, nil
}

// Ping checks that the bucket is reachable with the current credentials.
func (s *S3Client) Ping(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucketName)})
	return err
}

// Bucket returns the configured bucket name.
func (s *S3Client) Bucket() string { return s.bucketName }

// ObjectKey joins prefix and the file's base name with forward slashes.
func ObjectKey(prefix, localPath string) string {
	prefix = strings.Trim(strings.ReplaceAll(prefix, "\\", "/"), "/")
	base := filepath.Base(localPath)
	if prefix == "" {
		return base
	}
	return path.Join(prefix, base)
}

func contentType(p string) string {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".zip":
		return "application/zip"
	case ".pdf":
		return "application/pdf"
	}
	return "application/octet-stream"
}
