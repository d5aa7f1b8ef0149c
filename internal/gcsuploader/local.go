package gcsuploader

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalStorageService implements StorageService on the filesystem. Relative
// paths resolve against Root.
type LocalStorageService struct {
	Root string
}

// NewLocalStorageService creates a local store rooted at root.
func NewLocalStorageService(root string) *LocalStorageService {
	return &LocalStorageService{Root: root}
}

func (s *LocalStorageService) resolve(p string) string {
	if filepath.IsAbs(p) || s.Root == "" {
		return p
	}
	return filepath.Join(s.Root, p)
}

// Fetch reads the file at path.
func (s *LocalStorageService) Fetch(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.resolve(path))
	if err != nil {
		return nil, fmt.Errorf("LocalStorageService.Fetch: %w", err)
	}
	return data, nil
}

// UploadFile copies filePath to objectName under Root.
func (s *LocalStorageService) UploadFile(ctx context.Context, objectName, filePath string) (string, error) {
	dst := s.resolve(objectName)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("LocalStorageService.UploadFile: %w", err)
	}

	in, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("LocalStorageService.UploadFile: open %q: %w", filePath, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("LocalStorageService.UploadFile: create %q: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return "", fmt.Errorf("LocalStorageService.UploadFile: copy: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("LocalStorageService.UploadFile: close: %w", err)
	}
	return dst, nil
}

// FileName returns the base name of path.
func (s *LocalStorageService) FileName(path string) string {
	return filepath.Base(path)
}

var _ StorageService = (*LocalStorageService)(nil)
