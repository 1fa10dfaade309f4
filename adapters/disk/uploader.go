// Package disk stores uploaded pictures on the local filesystem, to be
// served as static files.
package disk

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/lborres/bantay/core"
)

const (
	DefaultDir       = "public/uploads"
	DefaultURLPrefix = "/uploads"
)

var _ core.Uploader = (*Uploader)(nil)

type Uploader struct {
	dir       string
	urlPrefix string
	now       func() time.Time
}

// New returns an uploader writing into dir and answering references under
// urlPrefix. The directory is created if missing.
func New(dir, urlPrefix string) (*Uploader, error) {
	if dir == "" {
		dir = DefaultDir
	}
	if urlPrefix == "" {
		urlPrefix = DefaultURLPrefix
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir %s: %w", dir, err)
	}

	return &Uploader{
		dir:       dir,
		urlPrefix: "/" + strings.Trim(urlPrefix, "/"),
		now:       time.Now,
	}, nil
}

func (u *Uploader) Dir() string { return u.dir }

// Save copies the file into the upload directory and returns its URL path.
func (u *Uploader) Save(ctx context.Context, file *multipart.FileHeader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open upload: %w", err)
	}
	defer src.Close()

	name := core.UploadName(file.Filename, u.now())
	dst, err := os.OpenFile(filepath.Join(u.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", name, err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		_ = os.Remove(dst.Name())
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(dst.Name())
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}

	return path.Join(u.urlPrefix, name), nil
}
