package utils

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
)

// LocalUploader writes uploads below Dir and serves them from BaseURL. It
// stands in for R2 in development.
type LocalUploader struct {
	Dir     string
	BaseURL string
}

// NewLocalUploader creates dir if it doesn't exist.
func NewLocalUploader(dir, baseURL string) (*LocalUploader, error) {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &LocalUploader{Dir: dir, BaseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

// UploadFile copies the file to Dir/key and returns its URL.
func (u *LocalUploader) UploadFile(ctx context.Context, fileHeader *multipart.FileHeader, key string) (string, error) {
	clean := filepath.Clean("/" + key)[1:]
	if clean == "" {
		return "", fmt.Errorf("invalid upload key %q", key)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := SaveFile(fileHeader, filepath.Join(u.Dir, filepath.FromSlash(clean))); err != nil {
		return "", fmt.Errorf("failed to store upload: %w", err)
	}
	return u.BaseURL + "/" + clean, nil
}

// SaveFile saves the uploaded file to the given destination path
func SaveFile(fileHeader *multipart.FileHeader, destPath string) error {
	// Ensure the directory for the destination file exists
	dir := filepath.Dir(destPath)
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return err
	}

	file, err := fileHeader.Open()
	if err != nil {
		return err
	}
	defer file.Close()

	dst, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, file)
	return err
}
