// Package storage archives raw platform payloads in S3-compatible object
// storage (AWS S3, MinIO, RustFS).
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wms/shopsync/internal/domain/integration"
	"github.com/wms/shopsync/internal/infrastructure/config"
)

// ErrArchiveNotFound is returned by Fetch for a missing payload
var ErrArchiveNotFound = errors.New("archived order not found")

var _ integration.OrderArchive = (*S3OrderArchive)(nil)

// s3API is the subset of *s3.Client the archive uses
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, opts ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, in *s3.CreateBucketInput, opts ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

// S3OrderArchive stores one JSON object per imported order under
// {prefix}/{integration_id}/{external_order_id}.json. Re-archiving an order
// overwrites the previous payload.
type S3OrderArchive struct {
	client s3API
	bucket string
	prefix string
	logger *zap.Logger
}

// S3OrderArchiveOption is a functional option for S3OrderArchive
type S3OrderArchiveOption func(*S3OrderArchive)

// WithLogger sets a custom logger
func WithLogger(logger *zap.Logger) S3OrderArchiveOption {
	return func(a *S3OrderArchive) {
		a.logger = logger
	}
}

// NewS3OrderArchive creates an archive from configuration
func NewS3OrderArchive(ctx context.Context, cfg config.StorageConfig, opts ...S3OrderArchiveOption) (*S3OrderArchive, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, errors.New("storage access key and secret key are required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(firstNonEmpty(cfg.Region, "us-east-1")),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	endpoint, err := normalizeEndpoint(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	return newS3OrderArchive(client, cfg.Bucket, cfg.Prefix, opts...), nil
}

func newS3OrderArchive(client s3API, bucket, prefix string, opts ...S3OrderArchiveOption) *S3OrderArchive {
	a := &S3OrderArchive{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// normalizeEndpoint adds a scheme to a bare host. Empty means the AWS default.
func normalizeEndpoint(endpoint string, useSSL bool) (string, error) {
	if endpoint == "" {
		return "", nil
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		if useSSL {
			endpoint = "https://" + endpoint
		} else {
			endpoint = "http://" + endpoint
		}
	}
	if _, err := url.Parse(endpoint); err != nil {
		return "", fmt.Errorf("invalid storage endpoint: %w", err)
	}
	return endpoint, nil
}

// Key returns the object key for an order
func (a *S3OrderArchive) Key(integrationID uuid.UUID, externalOrderID string) string {
	return path.Join(a.prefix, integrationID.String(), url.PathEscape(externalOrderID)+".json")
}

// EnsureBucket creates the bucket if it does not exist
func (a *S3OrderArchive) EnsureBucket(ctx context.Context) error {
	_, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(a.bucket)})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	a.logger.Info("Creating archive bucket", zap.String("bucket", a.bucket))
	_, err = a.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(a.bucket)})
	if err != nil {
		var alreadyOwned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &alreadyOwned) {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// ArchiveOrder implements integration.OrderArchive
func (a *S3OrderArchive) ArchiveOrder(ctx context.Context, integrationID uuid.UUID, externalOrderID string, payload []byte) error {
	if externalOrderID == "" {
		return errors.New("external order id is required")
	}
	key := a.Key(integrationID, externalOrderID)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"integration-id":    integrationID.String(),
			"external-order-id": externalOrderID,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to archive order %s: %w", externalOrderID, err)
	}
	a.logger.Debug("Order payload archived", zap.String("key", key), zap.Int("bytes", len(payload)))
	return nil
}

// Fetch returns an archived payload
func (a *S3OrderArchive) Fetch(ctx context.Context, integrationID uuid.UUID, externalOrderID string) ([]byte, error) {
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.Key(integrationID, externalOrderID)),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		var notFound *types.NotFound
		if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
			return nil, ErrArchiveNotFound
		}
		return nil, fmt.Errorf("failed to fetch archived order: %w", err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
