package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

func TestApplyPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		prefix string
		key    string
		want   string
	}{
		{name: "no prefix", prefix: "", key: "user/file.pdf", want: "user/file.pdf"},
		{name: "simple prefix", prefix: "root", key: "user/file.pdf", want: "root/user/file.pdf"},
		{name: "prefix trailing slash", prefix: "root/", key: "user/file.pdf", want: "root/user/file.pdf"},
		{name: "prefix and key slashes", prefix: "/root/", key: "/user/file.pdf", want: "root/user/file.pdf"},
		{name: "nested prefix", prefix: "root/sub", key: "user/file.pdf", want: "root/sub/user/file.pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := applyPrefix(tt.prefix, tt.key); got != tt.want {
				t.Fatalf("applyPrefix(%q, %q) = %q, want %q", tt.prefix, tt.key, got, tt.want)
			}
		})
	}
}

type fakeS3 struct {
	put *s3.PutObjectInput
	// body is drained during Upload like the real manager does.
	body []byte
}

func (f *fakeS3) Upload(ctx context.Context, in *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	f.put = in
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.body = data
	return &manager.UploadOutput{Key: in.Key}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.put == nil || aws.ToString(in.Key) != aws.ToString(f.put.Key) {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(f.body))}, nil
}

func TestSaveUsesPrefixAndEncryption(t *testing.T) {
	t.Parallel()
	fake := &fakeS3{}
	store := newStore(fake, fake, "tender-exports", "/exports/", "kms-key")

	key, size, err := store.Save(context.Background(), "officer", "evaluation results.pdf", "", strings.NewReader("%PDF-1.4 data"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if size != 13 {
		t.Fatalf("expected 13 bytes, got %d", size)
	}
	if got := aws.ToString(fake.put.Key); got != "exports/"+key {
		t.Fatalf("expected prefixed key, got %q", got)
	}
	if got := aws.ToString(fake.put.ContentType); got != "application/pdf" {
		t.Fatalf("expected sniffed pdf content type, got %q", got)
	}
	if got := aws.ToString(fake.put.ContentDisposition); got != `attachment; filename="evaluation results.pdf"` {
		t.Fatalf("unexpected content disposition %q", got)
	}
	if fake.put.ServerSideEncryption != s3types.ServerSideEncryptionAwsKms || aws.ToString(fake.put.SSEKMSKeyId) != "kms-key" {
		t.Fatalf("expected KMS encryption, got %v", fake.put.ServerSideEncryption)
	}

	rc, err := store.Open(context.Background(), key)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "%PDF-1.4 data" {
		t.Fatalf("unexpected body %q", data)
	}
	if _, err := store.Open(context.Background(), "../x"); err == nil {
		t.Fatalf("expected invalid key rejected")
	}
}

func TestSaveDefaultsToS3ManagedEncryption(t *testing.T) {
	t.Parallel()
	fake := &fakeS3{}
	store := newStore(fake, fake, "tender-exports", "", "")

	if _, _, err := store.Save(context.Background(), "officer", "results.xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", strings.NewReader("PK")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if fake.put.ServerSideEncryption != s3types.ServerSideEncryptionAes256 || fake.put.SSEKMSKeyId != nil {
		t.Fatalf("expected SSE-S3, got %v", fake.put.ServerSideEncryption)
	}
	if strings.HasPrefix(aws.ToString(fake.put.Key), "/") {
		t.Fatalf("unexpected leading slash in %q", aws.ToString(fake.put.Key))
	}
}
