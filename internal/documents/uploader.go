package documents

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/sync/errgroup"
)

// Uploader validates invoice files and stores them concurrently.
type Uploader struct {
	writer      ObjectWriter
	registry    Registry
	notifier    Notifier
	maxBytes    int64
	concurrency int
	now         func() time.Time
}

// Option configures an Uploader.
type Option func(*Uploader)

// WithRegistry records every stored document.
func WithRegistry(r Registry) Option { return func(u *Uploader) { u.registry = r } }

// WithNotifier announces every stored document.
func WithNotifier(n Notifier) Option { return func(u *Uploader) { u.notifier = n } }

// WithMaxBytes rejects files larger than n bytes. Zero disables the check.
func WithMaxBytes(n int64) Option { return func(u *Uploader) { u.maxBytes = n } }

// WithConcurrency bounds parallel object writes.
func WithConcurrency(n int) Option {
	return func(u *Uploader) {
		if n > 0 {
			u.concurrency = n
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(u *Uploader) { u.now = now } }

func NewUploader(w ObjectWriter, opts ...Option) *Uploader {
	u := &Uploader{writer: w, concurrency: 4, now: time.Now}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// ObjectKey returns invoices/{userID}/{unixMillis}_{name}.
func ObjectKey(userID string, at time.Time, name string) string {
	return fmt.Sprintf("invoices/%s/%d_%s", userID, at.UnixMilli(), cleanFileName(name))
}

func cleanFileName(name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	if name == "." || name == "/" || name == "" {
		return "document"
	}
	return name
}

// Upload stores every file for userID. All files are checked before any is
// written, so a batch with one unsupported file stores nothing.
func (u *Uploader) Upload(ctx context.Context, userID string, files []File) ([]Document, error) {
	if userID == "" {
		return nil, fmt.Errorf("upload documents: missing user id")
	}
	if len(files) == 0 {
		return nil, ErrNoFiles
	}

	types := make([]string, len(files))
	for i, f := range files {
		if u.maxBytes > 0 && f.Size > u.maxBytes {
			return nil, fmt.Errorf("%w: %s", ErrTooLarge, f.Name)
		}
		ct, err := sniff(f)
		if err != nil {
			return nil, err
		}
		types[i] = ct
	}

	docs := make([]Document, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.concurrency)
	for i, f := range files {
		g.Go(func() error {
			doc, err := u.store(gctx, userID, f, types[i])
			if err != nil {
				return err
			}
			docs[i] = doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, doc := range docs {
		if u.registry != nil {
			if err := u.registry.RegisterDocument(ctx, doc); err != nil {
				return nil, fmt.Errorf("register document: %w", err)
			}
		}
		if u.notifier != nil {
			// The object is stored; a lost event only delays extraction.
			if err := u.notifier.NotifyUploaded(ctx, doc); err != nil {
				slog.WarnContext(ctx, "Failed to announce uploaded document", "key", doc.Key, "error", err)
			}
		}
	}
	return docs, nil
}

func (u *Uploader) store(ctx context.Context, userID string, f File, contentType string) (Document, error) {
	at := u.now()
	doc := Document{
		Key:         ObjectKey(userID, at, f.Name),
		UserID:      userID,
		FileName:    cleanFileName(f.Name),
		ContentType: contentType,
		UploadedAt:  at,
	}
	rc, err := f.Open()
	if err != nil {
		return Document{}, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()

	meta := map[string]string{
		"userId":     userID,
		"uploadDate": at.UTC().Format(time.RFC3339),
	}
	n, err := u.writer.WriteObject(ctx, doc.Key, contentType, meta, rc)
	if err != nil {
		return Document{}, fmt.Errorf("upload %s: %w", f.Name, err)
	}
	doc.Size = n
	slog.InfoContext(ctx, "Document stored", "key", doc.Key, "content_type", contentType, "size", n)
	return doc, nil
}

func sniff(f File) (string, error) {
	if f.Open == nil {
		return "", fmt.Errorf("open %s: no content", f.Name)
	}
	rc, err := f.Open()
	if err != nil {
		return "", fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()

	mt, err := mimetype.DetectReader(rc)
	if err != nil {
		return "", fmt.Errorf("detect type of %s: %w", f.Name, err)
	}
	if !Supported(mt) {
		return "", fmt.Errorf("%w: %s is %s", ErrUnsupportedType, f.Name, mt.String())
	}
	return mt.String(), nil
}

// Supported reports whether mt is a PDF or an image.
func Supported(mt *mimetype.MIME) bool {
	return mt.Is("application/pdf") || strings.HasPrefix(mt.String(), "image/")
}

// FromBytes builds a File over in-memory content.
func FromBytes(name string, data []byte) File {
	return File{
		Name: name,
		Size: int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}
