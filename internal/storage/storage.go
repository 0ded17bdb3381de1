// Package storage writes uploaded files to a local directory that the HTTP
// server exposes as static content.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrTooLarge         = errors.New("file exceeds size limit")
	ErrExtensionBlocked = errors.New("file type not allowed")
	ErrNoFile           = errors.New("file is empty")
)

// Upload is a file received from a client, not yet persisted.
type Upload struct {
	Filename string
	Size     int64
	MimeType string
	Open     func() (io.ReadCloser, error)
}

// FromMultipart adapts a multipart file header.
func FromMultipart(fh *multipart.FileHeader) Upload {
	return Upload{
		Filename: fh.Filename,
		Size:     fh.Size,
		MimeType: fh.Header.Get("Content-Type"),
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

// Stored describes a persisted file.
type Stored struct {
	URL      string
	Name     string // original client file name
	MimeType string
	Size     int64
}

// allowedExtensions is the upload allow-list.
var allowedExtensions = map[string]bool{
	".pdf": true, ".doc": true, ".docx": true, ".txt": true, ".rtf": true, ".md": true, ".odt": true,
	".xls": true, ".xlsx": true, ".csv": true, ".ods": true,
	".ppt": true, ".pptx": true, ".odp": true,
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".svg": true, ".webp": true, ".bmp": true,
	".mp4": true, ".mov": true, ".avi": true, ".webm": true,
	".mp3": true, ".wav": true, ".ogg": true,
	".zip": true, ".rar": true, ".7z": true, ".tar": true, ".gz": true,
	".json": true, ".xml": true, ".fig": true, ".psd": true, ".ai": true, ".sketch": true,
}

// Policy bounds what may be uploaded.
type Policy struct {
	MaxBytes int64
}

// Check rejects oversized, empty and disallowed files. It never touches the
// disk, so callers run it over every file before writing any of them.
func (p Policy) Check(u Upload) error {
	if u.Size <= 0 {
		return fmt.Errorf("%s: %w", u.Filename, ErrNoFile)
	}
	if p.MaxBytes > 0 && u.Size > p.MaxBytes {
		return fmt.Errorf("%s: %w (%d MB)", u.Filename, ErrTooLarge, p.MaxBytes>>20)
	}
	ext := strings.ToLower(filepath.Ext(u.Filename))
	if !allowedExtensions[ext] {
		return fmt.Errorf("%s: %w", u.Filename, ErrExtensionBlocked)
	}
	return nil
}

// Local stores files in Dir and serves them under URLPath.
type Local struct {
	Dir     string
	URLPath string
	Policy  Policy
}

func NewLocal(dir, urlPath string, maxBytes int64) *Local {
	return &Local{Dir: dir, URLPath: "/" + strings.Trim(urlPath, "/"), Policy: Policy{MaxBytes: maxBytes}}
}

// Check applies the store's policy to u.
func (l *Local) Check(u Upload) error { return l.Policy.Check(u) }

// Save writes u under a random name. The copy is capped at the size limit
// so a lying Size header cannot bypass it.
func (l *Local) Save(ctx context.Context, u Upload) (Stored, error) {
	if err := l.Check(u); err != nil {
		return Stored{}, err
	}
	if err := ctx.Err(); err != nil {
		return Stored{}, err
	}
	if err := os.MkdirAll(l.Dir, 0o755); err != nil {
		return Stored{}, fmt.Errorf("mkdir uploads: %w", err)
	}

	src, err := u.Open()
	if err != nil {
		return Stored{}, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	ext := strings.ToLower(filepath.Ext(u.Filename))
	name := uuid.NewString() + ext
	full := filepath.Join(l.Dir, name)
	dst, err := os.OpenFile(full, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return Stored{}, fmt.Errorf("create file: %w", err)
	}

	var r io.Reader = src
	if l.Policy.MaxBytes > 0 {
		r = io.LimitReader(src, l.Policy.MaxBytes+1)
	}
	n, err := io.Copy(dst, r)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err == nil && l.Policy.MaxBytes > 0 && n > l.Policy.MaxBytes {
		err = fmt.Errorf("%s: %w", u.Filename, ErrTooLarge)
	}
	if err != nil {
		_ = os.Remove(full)
		return Stored{}, err
	}

	return Stored{
		URL:      path.Join(l.URLPath, name),
		Name:     filepath.Base(u.Filename),
		MimeType: detectMIME(u.MimeType, ext),
		Size:     n,
	}, nil
}

// Remove deletes the file behind a URL returned by Save. Missing files and
// URLs outside URLPath are ignored.
func (l *Local) Remove(_ context.Context, url string) error {
	prefix := strings.TrimRight(l.URLPath, "/") + "/"
	if !strings.HasPrefix(url, prefix) {
		return nil
	}
	name := filepath.Base(strings.TrimPrefix(url, prefix))
	if name == "." || name == "/" || name == "" {
		return nil
	}
	if err := os.Remove(filepath.Join(l.Dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func detectMIME(declared, ext string) string {
	declared = strings.TrimSpace(declared)
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	if m := mime.TypeByExtension(ext); m != "" {
		return m
	}
	return "application/octet-stream"
}
