package minio

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"tender-evaluator/internal/shared/storage/object"
)

// Config holds the connection settings for a MinIO (or S3-compatible) endpoint.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

// Store implements ObjectStore on a MinIO bucket.
type Store struct {
	client *minio.Client
	bucket string
	prefix string
	now    func() time.Time
}

// New connects to the endpoint and makes sure the bucket exists.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" || strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("minio endpoint and bucket are required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	s := &Store{client: client, bucket: cfg.Bucket, prefix: strings.Trim(cfg.Prefix, "/"), now: time.Now}
	if err := s.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// EnsureBucket creates the bucket if it doesn't exist.
func (s *Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	return nil
}

// Save streams r into the bucket. The size is unknown up front, so the client
// uploads in multipart chunks.
func (s *Store) Save(ctx context.Context, userID, fileName, contentType string, r io.Reader) (string, int64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}
	key, err := object.NewKey(userID, fileName, s.now())
	if err != nil {
		return "", 0, err
	}
	body, mimeType, err := object.Sniff(r, contentType)
	if err != nil {
		return "", 0, err
	}
	info, err := s.client.PutObject(ctx, s.bucket, objectName(s.prefix, key), body, -1, minio.PutObjectOptions{
		ContentType: mimeType,
	})
	if err != nil {
		return "", 0, fmt.Errorf("minio put object bucket=%s key=%s: %w", s.bucket, key, err)
	}
	return key, info.Size, nil
}

// Open returns the stored object.
func (s *Store) Open(ctx context.Context, storageKey string) (io.ReadCloser, error) {
	if !object.ValidKey(storageKey) {
		return nil, fmt.Errorf("invalid storage key")
	}
	obj, err := s.client.GetObject(ctx, s.bucket, objectName(s.prefix, storageKey), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("minio get object bucket=%s key=%s: %w", s.bucket, storageKey, err)
	}
	return obj, nil
}

// PresignedURL returns a time-limited download link for a stored export.
func (s *Store) PresignedURL(ctx context.Context, storageKey string, expiry time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, objectName(s.prefix, storageKey), expiry, nil)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", storageKey, err)
	}
	return u.String(), nil
}

func objectName(prefix, key string) string {
	key = strings.TrimLeft(key, "/")
	if prefix == "" {
		return key
	}
	return prefix + "/" + key
}

var _ object.ObjectStore = (*Store)(nil)
