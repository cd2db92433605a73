package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by Get and Delete when no object exists at path.
var ErrNotFound = errors.New("object not found")

// Storage holds uploaded source files. Paths are relative to the backend's
// bucket or root directory.
type Storage interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	Delete(ctx context.Context, path string) error
	URL(path string) string
}
