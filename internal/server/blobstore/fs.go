package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/picshare/internal/common"
	"github.com/dmitrijs2005/picshare/internal/filex"
)

// FSSink keeps blobs as plain files in a single directory.
type FSSink struct {
	dir string
}

// NewFSSink creates dir if needed. Handles are resolved against its absolute
// path, so a later chdir does not move the store.
func NewFSSink(dir string) (*FSSink, error) {
	abs, err := filex.EnsureDir(dir, 0o755)
	if err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &FSSink{dir: abs}, nil
}

func (s *FSSink) path(handle string) string {
	return filepath.Join(s.dir, handle)
}

// Store writes blob to a temp file and hard-links it under the handle name.
// The link fails if the name is taken, so an existing blob is never
// overwritten, and readers never observe a partially written file.
func (s *FSSink) Store(ctx context.Context, blob []byte, ext string) (string, error) {
	ext, err := NormalizeExtension(ext)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	handle := NewHandle(ext)

	tmp, err := os.CreateTemp(s.dir, ".upload-*.tmp")
	if err != nil {
		return "", fmt.Errorf("%w: create temp file: %v", common.ErrDiskWriteFailure, err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(blob); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("%w: write blob: %v", common.ErrDiskWriteFailure, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("%w: close temp file: %v", common.ErrDiskWriteFailure, err)
	}
	if err := os.Link(tmpPath, s.path(handle)); err != nil {
		return "", fmt.Errorf("%w: link blob: %v", common.ErrDiskWriteFailure, err)
	}

	return handle, nil
}

func (s *FSSink) Exists(ctx context.Context, handle string) (bool, error) {
	if !ValidHandle(handle) {
		return false, nil
	}
	info, err := os.Stat(s.path(handle))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

func (s *FSSink) Retrieve(ctx context.Context, handle string) (io.ReadCloser, error) {
	if !ValidHandle(handle) {
		return nil, common.ErrBlobNotFound
	}
	f, err := os.Open(s.path(handle))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, common.ErrBlobNotFound
		}
		return nil, err
	}
	return f, nil
}
