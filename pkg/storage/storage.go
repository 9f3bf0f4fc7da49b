// Package storage provides the file store used to stage parsed uploads
// between preview and commit.
package storage

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no file exists for an id.
var ErrNotFound = errors.New("file not found")

// FileInfo contains metadata about a stored file
type FileInfo struct {
	ID          uuid.UUID         `json:"id"`
	Name        string            `json:"name"`
	Size        int64             `json:"size"`
	ContentType string            `json:"content_type"`
	Path        string            `json:"path"` // Internal storage path
	Labels      map[string]string `json:"labels,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Storage defines the interface for file storage operations. Files are
// partitioned by namespace.
type Storage interface {
	// Upload stores a file and returns its metadata
	Upload(ctx context.Context, namespace, filename, contentType string, labels map[string]string, r io.Reader) (*FileInfo, error)

	// Download retrieves a file by its ID
	Download(ctx context.Context, namespace string, fileID uuid.UUID) (io.ReadCloser, *FileInfo, error)

	// Delete removes a file by its ID
	Delete(ctx context.Context, namespace string, fileID uuid.UUID) error

	// List returns all files in a namespace
	List(ctx context.Context, namespace string) ([]*FileInfo, error)

	// GetInfo returns metadata for a file without downloading
	GetInfo(ctx context.Context, namespace string, fileID uuid.UUID) (*FileInfo, error)
}
