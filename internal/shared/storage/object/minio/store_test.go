package minio

import (
	"context"
	"testing"
)

func TestObjectName(t *testing.T) {
	t.Parallel()
	tests := []struct {
		prefix, key, want string
	}{
		{"", "u/2024-05-01/a.pdf", "u/2024-05-01/a.pdf"},
		{"exports", "/u/a.pdf", "exports/u/a.pdf"},
	}
	for _, tc := range tests {
		if got := objectName(tc.prefix, tc.key); got != tc.want {
			t.Fatalf("objectName(%q, %q) = %q, want %q", tc.prefix, tc.key, got, tc.want)
		}
	}
}

func TestNewRequiresEndpointAndBucket(t *testing.T) {
	t.Parallel()
	if _, err := New(context.Background(), Config{Bucket: "tender-exports"}); err == nil {
		t.Fatalf("expected missing endpoint rejected")
	}
	if _, err := New(context.Background(), Config{Endpoint: "localhost:9000"}); err == nil {
		t.Fatalf("expected missing bucket rejected")
	}
}
