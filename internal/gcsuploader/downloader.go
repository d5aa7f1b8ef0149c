package gcsuploader

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"cloud.google.com/go/storage"
)

// ParseGCSPath splits a gs://bucket/object URI. A path without the scheme
// is an object name inside defaultBucket.
func ParseGCSPath(p, defaultBucket string) (bucket, object string, err error) {
	if !strings.HasPrefix(p, "gs://") {
		object = strings.TrimPrefix(p, "/")
		if object == "" {
			return "", "", fmt.Errorf("invalid GCS path: %q", p)
		}
		if defaultBucket == "" {
			return "", "", fmt.Errorf("no bucket configured for object %q", p)
		}
		return defaultBucket, object, nil
	}

	parts := strings.SplitN(strings.TrimPrefix(p, "gs://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", p)
	}
	return parts[0], parts[1], nil
}

// ExtractFilenameFromGCSURI extracts the filename from a GCS URI or object
// name, e.g. "gs://bucket/folder/jan.csv" becomes "jan.csv".
func ExtractFilenameFromGCSURI(uri string) string {
	trimmed := strings.TrimPrefix(uri, "gs://")
	if strings.HasPrefix(uri, "gs://") {
		parts := strings.SplitN(trimmed, "/", 2)
		if len(parts) < 2 {
			return trimmed
		}
		trimmed = parts[1]
	}
	return path.Base(trimmed)
}

// FetchFromGCSWithClient downloads the object at p.
func FetchFromGCSWithClient(ctx context.Context, client *storage.Client, p, defaultBucket string) ([]byte, error) {
	bucketName, objectPath, err := ParseGCSPath(p, defaultBucket)
	if err != nil {
		return nil, fmt.Errorf("FetchFromGCS: %w", err)
	}

	rc, err := client.Bucket(bucketName).Object(objectPath).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("FetchFromGCS: reading object %s/%s: %w", bucketName, objectPath, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("FetchFromGCS: reading bytes: %w", err)
	}
	return data, nil
}
