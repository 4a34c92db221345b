package handoff

import (
	"context"
	"fmt"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config configures the optional S3-compatible report sink.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	Prefix    string // key prefix, "reports" when empty
}

func (c S3Config) prefix() string {
	if c.Prefix == "" {
		return "reports"
	}
	return c.Prefix
}

// ObjectKey returns the key a bundle is stored under.
func (c S3Config) ObjectKey(b Bundle) string {
	return path.Join(c.prefix(), b.JobID, b.DisplayName)
}

// Locate returns the s3:// URL a bundle is stored at.
func (c S3Config) Locate(b Bundle) string {
	return fmt.Sprintf("s3://%s/%s", c.Bucket, c.ObjectKey(b))
}

// S3Sink uploads reports to an S3-compatible bucket.
type S3Sink struct {
	mc  *minio.Client
	cfg S3Config
}

// NewS3Sink connects to the endpoint and makes sure the bucket exists.
func NewS3Sink(ctx context.Context, cfg S3Config) (*S3Sink, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("empty S3 endpoint")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("empty S3 bucket")
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create S3 client: %w", err)
	}
	exists, err := mc.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket exists: %w", err)
	}
	if !exists {
		if err := mc.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}
	return &S3Sink{mc: mc, cfg: cfg}, nil
}

func (s *S3Sink) Locate(b Bundle) string {
	return s.cfg.Locate(b)
}

func (s *S3Sink) Deliver(ctx context.Context, b Bundle) (string, error) {
	rc, err := b.Artifact.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	key := s.cfg.ObjectKey(b)
	_, err = s.mc.PutObject(ctx, s.cfg.Bucket, key, rc, b.Artifact.Size(), putOptions(b))
	if err != nil {
		return "", fmt.Errorf("put s3 object: %w", err)
	}
	return s.Locate(b), nil
}

// putOptions keeps the content type the server sent with the report and
// falls back to application/pdf when it sent none.
func putOptions(b Bundle) minio.PutObjectOptions {
	ct := pdfContentType
	if b.Artifact != nil && b.Artifact.ContentType() != "" {
		ct = b.Artifact.ContentType()
	}
	return minio.PutObjectOptions{
		ContentType: ct,
		UserMetadata: map[string]string{
			"job-id": b.JobID,
		},
	}
}
