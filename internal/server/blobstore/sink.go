// Package blobstore stores uploaded images under random, unguessable handles.
//
// A handle is 32 lowercase hex characters followed by a dot and one of the
// allowed extensions, e.g. "3f2a...9c.png". Blob names are derived from the
// handle only, never from caller-supplied file names.
package blobstore

import (
	"context"
	"io"
	"sort"
	"strings"

	"github.com/dmitrijs2005/picshare/internal/common"
	"github.com/google/uuid"
)

// Sink is a content store for uploaded blobs.
type Sink interface {
	Store(ctx context.Context, blob []byte, ext string) (string, error)
	Exists(ctx context.Context, handle string) (bool, error)
	Retrieve(ctx context.Context, handle string) (io.ReadCloser, error)
}

const tokenLen = 32

var allowedExtensions = map[string]string{
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"webp": "image/webp",
	"bmp":  "image/bmp",
}

// AllowedExtensions returns the accepted extensions in sorted order.
func AllowedExtensions() []string {
	out := make([]string, 0, len(allowedExtensions))
	for ext := range allowedExtensions {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// NormalizeExtension lowercases ext and strips a single leading dot. Anything
// outside the allow-list yields ErrInvalidFileType.
func NormalizeExtension(ext string) (string, error) {
	ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	if _, ok := allowedExtensions[ext]; !ok {
		return "", common.ErrInvalidFileType
	}
	return ext, nil
}

// ContentType maps a handle to the MIME type of its extension.
func ContentType(handle string) string {
	i := strings.LastIndexByte(handle, '.')
	if i < 0 {
		return "application/octet-stream"
	}
	if ct, ok := allowedExtensions[handle[i+1:]]; ok {
		return ct
	}
	return "application/octet-stream"
}

// NewHandle builds a fresh handle for an already normalized extension.
func NewHandle(ext string) string {
	return strings.ReplaceAll(uuid.NewString(), "-", "") + "." + ext
}

// ValidHandle reports whether h has the exact shape produced by NewHandle.
// Stores reject anything else so a handle can never name a path outside
// their root.
func ValidHandle(h string) bool {
	if len(h) < tokenLen+2 || h[tokenLen] != '.' {
		return false
	}
	for i := 0; i < tokenLen; i++ {
		c := h[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return false
		}
	}
	_, ok := allowedExtensions[h[tokenLen+1:]]
	return ok
}
