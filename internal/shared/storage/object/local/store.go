package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"tender-evaluator/internal/shared/storage/object"
)

// Store keeps archived exports under a directory. Used in dev and by the
// evaluate CLI.
type Store struct {
	root string
	now  func() time.Time
}

func New(root string) *Store {
	return &Store{root: root, now: time.Now}
}

// Save streams r into a temp file beside the target and renames it into
// place, so a download that fails halfway leaves nothing under the key.
func (s *Store) Save(ctx context.Context, userID, fileName, contentType string, r io.Reader) (key string, n int64, err error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}
	key, err = object.NewKey(userID, fileName, s.now())
	if err != nil {
		return "", 0, err
	}
	target := s.path(key)
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return "", 0, fmt.Errorf("create export dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(target), ".partial-*")
	if err != nil {
		return "", 0, fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if n, err = io.Copy(tmp, readerCtx{ctx: ctx, r: r}); err != nil {
		return "", 0, fmt.Errorf("write %s: %w", key, err)
	}
	if err = tmp.Close(); err != nil {
		return "", 0, fmt.Errorf("close %s: %w", key, err)
	}
	if err = os.Rename(tmp.Name(), target); err != nil {
		return "", 0, fmt.Errorf("commit %s: %w", key, err)
	}
	return key, n, nil
}

func (s *Store) Open(ctx context.Context, storageKey string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !object.ValidKey(storageKey) {
		return nil, fmt.Errorf("invalid storage key %q", storageKey)
	}
	f, err := os.Open(s.path(storageKey))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("export %s not found: %w", storageKey, err)
	}
	return f, err
}

func (s *Store) path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(filepath.Clean(key)))
}

// readerCtx stops a long copy once ctx is cancelled.
type readerCtx struct {
	ctx context.Context
	r   io.Reader
}

func (rc readerCtx) Read(p []byte) (int, error) {
	if err := rc.ctx.Err(); err != nil {
		return 0, err
	}
	return rc.r.Read(p)
}

var _ object.ObjectStore = (*Store)(nil)
