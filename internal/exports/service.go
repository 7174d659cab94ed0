// Package exports copies finished evaluation exports into the object store.
package exports

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"tender-evaluator/internal/shared/storage/object"
	"tender-evaluator/internal/shared/telemetry"
	"tender-evaluator/internal/shared/util"
)

// Downloader fetches an export produced by the tender backend.
type Downloader interface {
	Download(ctx context.Context, rawURL string) (io.ReadCloser, string, error)
}

// Service archives exports. It implements workflow.Archiver.
type Service struct {
	Downloader Downloader
	Store      object.ObjectStore
	// MaxBytes caps a single archived file. Zero means no limit.
	MaxBytes int64
}

// ErrTooLarge is returned when an export exceeds MaxBytes.
var ErrTooLarge = errors.New("export exceeds archive size limit")

// Archive downloads downloadURL and stores it under the user's prefix.
func (s *Service) Archive(ctx context.Context, userID, downloadURL, fileName string) (string, int64, error) {
	if s == nil || s.Downloader == nil || s.Store == nil {
		return "", 0, errors.New("exports: archiver not configured")
	}
	if strings.TrimSpace(downloadURL) == "" {
		return "", 0, errors.New("exports: download url is required")
	}
	name, err := util.SanitizeFileName(fileName)
	if err != nil {
		return "", 0, fmt.Errorf("export file name: %w", err)
	}

	body, contentType, err := s.Downloader.Download(ctx, downloadURL)
	if err != nil {
		return "", 0, fmt.Errorf("download export: %w", err)
	}
	defer body.Close()

	var r io.Reader = body
	if s.MaxBytes > 0 {
		r = &limitedReader{r: body, remaining: s.MaxBytes}
	}
	key, size, err := s.Store.Save(ctx, userID, name, contentType, r)
	if err != nil {
		if errors.Is(err, ErrTooLarge) {
			return "", 0, err
		}
		return "", 0, fmt.Errorf("store export: %w", err)
	}
	telemetry.Info("export.archived", map[string]any{
		"user_id":     userID,
		"storage_key": key,
		"size_bytes":  size,
		"file_name":   name,
	})
	return key, size, nil
}

// limitedReader fails instead of truncating once the limit is passed.
type limitedReader struct {
	r         io.Reader
	remaining int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.remaining < 0 {
		return 0, ErrTooLarge
	}
	if int64(len(p)) > l.remaining+1 {
		p = p[:l.remaining+1]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		return n, ErrTooLarge
	}
	return n, err
}
