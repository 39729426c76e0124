// Package documents stores uploaded invoice files in object storage and
// announces them to the extraction pipeline.
package documents

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	ErrNoFiles         = errors.New("no files to upload")
	ErrUnsupportedType = errors.New("unsupported file type: only PDF and images are accepted")
	ErrTooLarge        = errors.New("file too large")
)

// Document describes one stored invoice file.
type Document struct {
	Key         string    `json:"key"`
	UserID      string    `json:"userId"`
	FileName    string    `json:"fileName"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	UploadedAt  time.Time `json:"uploadDate"`
}

// File is an upload candidate. Open may be called more than once.
type File struct {
	Name string
	Size int64
	Open func() (io.ReadCloser, error)
}

// Ports for outbound adapters.
type (
	ObjectWriter interface {
		// WriteObject stores the content of r under key and returns the bytes written.
		WriteObject(ctx context.Context, key, contentType string, metadata map[string]string, r io.Reader) (int64, error)
	}

	Registry interface {
		RegisterDocument(ctx context.Context, doc Document) error
		ListDocuments(ctx context.Context, userID string) ([]Document, error)
	}

	Notifier interface {
		NotifyUploaded(ctx context.Context, doc Document) error
	}
)
