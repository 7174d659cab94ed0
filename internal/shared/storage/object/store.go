// Package object stores archived export files.
package object

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"tender-evaluator/internal/shared/util"
)

// ObjectStore defines the contract for saving and retrieving binary objects.
type ObjectStore interface {
	Save(ctx context.Context, userID, fileName, contentType string, r io.Reader) (storageKey string, sizeBytes int64, err error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
}

// NewKey builds <hashed user>/<yyyy-mm-dd>/<uuid>_<file name>.
func NewKey(userID, fileName string, now time.Time) (string, error) {
	name, err := util.SanitizeFileName(fileName)
	if err != nil {
		return "", fmt.Errorf("sanitize file name: %w", err)
	}
	return path.Join(util.UserPartition(userID), now.UTC().Format("2006-01-02"), uuid.NewString()+"_"+name), nil
}

// ValidKey rejects keys that escape the store root.
func ValidKey(key string) bool {
	clean := path.Clean(strings.ReplaceAll(key, "\\", "/"))
	return clean != "." && !strings.HasPrefix(clean, "..") && !strings.HasPrefix(clean, "/")
}

// Sniff returns a reader equivalent to r and a content type. A declared type
// other than the generic octet-stream wins over detection.
func Sniff(r io.Reader, declared string) (io.Reader, string, error) {
	declared = strings.TrimSpace(declared)
	if declared != "" && !strings.HasPrefix(declared, "application/octet-stream") {
		return r, declared, nil
	}
	var head [512]byte
	n, err := io.ReadFull(r, head[:])
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, "", fmt.Errorf("read sniff: %w", err)
	}
	return io.MultiReader(bytes.NewReader(head[:n]), r), http.DetectContentType(head[:n]), nil
}

// CountingReader counts bytes read through it.
type CountingReader struct {
	R io.Reader
	N int64
}

func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.R.Read(p)
	c.N += int64(n)
	return n, err
}
