package s3

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"tender-evaluator/internal/shared/storage/object"
)

// Export bodies come straight off the tender backend with no length, so
// writes go through the multipart upload manager.
type uploader interface {
	Upload(ctx context.Context, in *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

type getter interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Store archives exports in an S3 bucket, SSE-KMS when a key id is set and
// SSE-S3 otherwise.
type Store struct {
	up       uploader
	get      getter
	bucket   string
	prefix   string
	kmsKeyID string
	now      func() time.Time
}

func New(ctx context.Context, region, bucket, prefix, kmsKeyID string) (*Store, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	var loadOpts []func(*awsconfig.LoadOptions) error
	if region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	return newStore(manager.NewUploader(client), client, bucket, prefix, kmsKeyID), nil
}

func newStore(up uploader, get getter, bucket, prefix, kmsKeyID string) *Store {
	return &Store{
		up:       up,
		get:      get,
		bucket:   bucket,
		prefix:   strings.Trim(strings.TrimSpace(prefix), "/"),
		kmsKeyID: strings.TrimSpace(kmsKeyID),
		now:      time.Now,
	}
}

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
	counter := &object.CountingReader{R: body}
	name := path.Base(key)
	name = name[strings.IndexByte(name, '_')+1:]

	in := &s3.PutObjectInput{
		Bucket:               aws.String(s.bucket),
		Key:                  aws.String(applyPrefix(s.prefix, key)),
		Body:                 counter,
		ContentType:          aws.String(mimeType),
		ContentDisposition:   aws.String(mime.FormatMediaType("attachment", map[string]string{"filename": name})),
		ServerSideEncryption: s3types.ServerSideEncryptionAes256,
	}
	if s.kmsKeyID != "" {
		in.ServerSideEncryption = s3types.ServerSideEncryptionAwsKms
		in.SSEKMSKeyId = aws.String(s.kmsKeyID)
	}
	if _, err := s.up.Upload(ctx, in); err != nil {
		return "", 0, fmt.Errorf("s3 upload %s/%s: %w", s.bucket, aws.ToString(in.Key), err)
	}
	return key, counter.N, nil
}

func (s *Store) Open(ctx context.Context, storageKey string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !object.ValidKey(storageKey) {
		return nil, fmt.Errorf("invalid storage key %q", storageKey)
	}
	out, err := s.get.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(applyPrefix(s.prefix, storageKey)),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 get %s/%s: %w", s.bucket, storageKey, err)
	}
	return out.Body, nil
}

func applyPrefix(prefix, key string) string {
	prefix = strings.Trim(prefix, "/")
	key = strings.TrimLeft(key, "/")
	switch {
	case prefix == "":
		return key
	case key == "":
		return prefix
	}
	return prefix + "/" + key
}

var _ object.ObjectStore = (*Store)(nil)
