package gcs

import (
	"context"
)

// StorageService reads statement files and stores uploaded ones. Paths are
// either gs://bucket/object URIs or object names inside the default bucket
// (plain filesystem paths for the local implementation).
type StorageService interface {
	// Fetch returns the bytes stored at path.
	Fetch(ctx context.Context, path string) ([]byte, error)

	// UploadFile copies a local file to objectName and returns the path
	// Fetch accepts for it.
	UploadFile(ctx context.Context, objectName, filePath string) (string, error)

	// FileName returns the base name used as a row's file_name.
	FileName(path string) string
}
