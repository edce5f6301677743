// Package storage saves uploaded post images and returns the URL they are
// served from.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	MaxImageSize = 5 << 20 // 5 MB
	PublicPath   = "/uploads"
)

var ErrInvalidImage = errors.New("invalid image")

type ImageStore interface {
	// Save stores the file and returns its public URL. baseURL is the
	// scheme://host the request arrived on.
	Save(ctx context.Context, header *multipart.FileHeader, baseURL string) (string, error)
}

var allowedExt = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// ValidateImage checks size, extension and declared content type.
func ValidateImage(header *multipart.FileHeader) error {
	if header.Size > MaxImageSize {
		return fmt.Errorf("%w: file size exceeds maximum limit of %d MB", ErrInvalidImage, MaxImageSize/(1<<20))
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedExt[ext] {
		return fmt.Errorf("%w: only image files are allowed", ErrInvalidImage)
	}

	if ct := header.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		return fmt.Errorf("%w: only image files are allowed", ErrInvalidImage)
	}
	return nil
}

// BaseURL derives scheme://host from the request itself.
func BaseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

// LocalStore writes files under Dir. Files are never removed.
type LocalStore struct {
	Dir string
	now func() time.Time
}

func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &LocalStore{Dir: dir, now: time.Now}, nil
}

func (s *LocalStore) Save(_ context.Context, header *multipart.FileHeader, baseURL string) (string, error) {
	if err := ValidateImage(header); err != nil {
		return "", err
	}

	src, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open upload: %w", err)
	}
	defer src.Close()

	filename := s.filename(header.Filename)
	path := filepath.Join(s.Dir, filename)
	if err := writeFile(path, src); err != nil {
		return "", err
	}

	return strings.TrimRight(baseURL, "/") + PublicPath + "/" + filename, nil
}

// writeFile copies src to path. A partial file is removed on failure.
func writeFile(path string, src io.Reader) error {
	dst, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	_, err = io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return fmt.Errorf("failed to save file: %w", err)
	}
	return nil
}

func (s *LocalStore) filename(original string) string {
	ext := strings.ToLower(filepath.Ext(original))
	return fmt.Sprintf("%s-%s%s", s.now().Format("20060102"), uuid.New().String(), ext)
}
