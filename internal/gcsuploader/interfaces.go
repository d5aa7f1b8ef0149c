package gcsuploader

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"github.com/dvloznov/money-mirror/internal/gcs"
)

type StorageService = gcs.StorageService

// GCSStorageService implements StorageService on Google Cloud Storage with
// one shared client. It assumes Application Default Credentials.
type GCSStorageService struct {
	client *storage.Client
	bucket string
}

// NewGCSStorageService creates a client; bucket resolves bare object names.
func NewGCSStorageService(ctx context.Context, bucket string) (*GCSStorageService, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewGCSStorageService: create storage client: %w", err)
	}
	return &GCSStorageService{client: client, bucket: bucket}, nil
}

// Close closes the storage client.
func (s *GCSStorageService) Close() error {
	return s.client.Close()
}

// Fetch delegates to FetchFromGCSWithClient.
func (s *GCSStorageService) Fetch(ctx context.Context, path string) ([]byte, error) {
	return FetchFromGCSWithClient(ctx, s.client, path, s.bucket)
}

// UploadFile uploads into the configured bucket and returns the gs:// URI.
func (s *GCSStorageService) UploadFile(ctx context.Context, objectName, filePath string) (string, error) {
	if err := UploadFileWithClient(ctx, s.client, s.bucket, objectName, filePath); err != nil {
		return "", err
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, objectName), nil
}

// FileName delegates to ExtractFilenameFromGCSURI.
func (s *GCSStorageService) FileName(path string) string {
	return ExtractFilenameFromGCSURI(path)
}

var _ StorageService = (*GCSStorageService)(nil)
