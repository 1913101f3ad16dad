package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gcs "cloud.google.com/go/storage"
)

var (
	// ErrForeignURL is returned when a URL does not live under the configured
	// public base and therefore must never be deleted by this service.
	ErrForeignURL = errors.New("storage: url outside managed prefix")

	errNoBucket     = errors.New("storage: bucket name is required")
	errNoBaseURL    = errors.New("storage: public base url is required")
	errEmptyObject  = errors.New("storage: object path is required")
	errEmptyPayload = errors.New("storage: payload is empty")
)

// ObjectStore writes, deletes, and addresses photo objects in a single
// Cloud Storage bucket served under a public base URL.
type ObjectStore struct {
	client        *gcs.Client
	bucket        string
	publicBaseURL string
}

// NewObjectStore constructs an ObjectStore for the given bucket and base URL.
func NewObjectStore(client *gcs.Client, bucket, publicBaseURL string) (*ObjectStore, error) {
	if client == nil {
		return nil, errors.New("storage: client is required")
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errNoBucket
	}
	base := strings.TrimRight(strings.TrimSpace(publicBaseURL), "/")
	if base == "" {
		return nil, errNoBaseURL
	}
	return &ObjectStore{client: client, bucket: bucket, publicBaseURL: base}, nil
}

// Write stores the payload at the given object path and returns its public URL.
func (s *ObjectStore) Write(ctx context.Context, objectPath string, payload []byte, contentType string) (string, error) {
	if s == nil || s.client == nil {
		return "", errors.New("storage: object store not initialised")
	}
	objectPath = strings.TrimSpace(strings.TrimPrefix(objectPath, "/"))
	if objectPath == "" {
		return "", errEmptyObject
	}
	if len(payload) == 0 {
		return "", errEmptyPayload
	}

	writer := s.client.Bucket(s.bucket).Object(objectPath).NewWriter(ctx)
	if contentType = strings.TrimSpace(contentType); contentType != "" {
		writer.ContentType = contentType
	}
	if _, err := writer.Write(payload); err != nil {
		_ = writer.Close()
		return "", fmt.Errorf("storage: write %s: %w", objectPath, err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("storage: write %s: %w", objectPath, err)
	}
	return s.PublicURL(objectPath), nil
}

// Delete removes the object. Deleting a missing object is not an error.
func (s *ObjectStore) Delete(ctx context.Context, objectPath string) error {
	if s == nil || s.client == nil {
		return errors.New("storage: object store not initialised")
	}
	objectPath = strings.TrimSpace(strings.TrimPrefix(objectPath, "/"))
	if objectPath == "" {
		return errEmptyObject
	}
	err := s.client.Bucket(s.bucket).Object(objectPath).Delete(ctx)
	if err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("storage: delete %s: %w", objectPath, err)
	}
	return nil
}

// PublicURL returns the public address of the object path.
func (s *ObjectStore) PublicURL(objectPath string) string {
	return s.publicBaseURL + "/" + strings.TrimPrefix(objectPath, "/")
}

// ObjectPathFromURL maps a public URL back to its object path. URLs outside
// the managed base return ErrForeignURL so callers never delete blobs this
// service does not own.
func (s *ObjectStore) ObjectPathFromURL(rawURL string) (string, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return "", ErrForeignURL
	}
	prefix := s.publicBaseURL + "/"
	if !strings.HasPrefix(trimmed, prefix) {
		return "", ErrForeignURL
	}
	objectPath := strings.TrimPrefix(trimmed, prefix)
	if objectPath == "" || strings.Contains(objectPath, "..") {
		return "", ErrForeignURL
	}
	return objectPath, nil
}
