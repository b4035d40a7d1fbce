package storage

import (
	"context"
	"io"
)

// ObjectStore is the binary-object collaborator holding logo images.
type ObjectStore interface {
	// List returns the object names (without the prefix) under a prefix.
	List(ctx context.Context, prefix string) ([]string, error)

	// Download fetches an object's bytes by its full key.
	Download(ctx context.Context, key string) ([]byte, error)

	// Upload stores an object, replacing any existing one under the key.
	Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*UploadResult, error)

	// Delete removes an object. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

type UploadResult struct {
	Key      string `json:"key"`
	Location string `json:"location"`
	ETag     string `json:"etag"`
}
