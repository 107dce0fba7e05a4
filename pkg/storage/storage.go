package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	// ErrNotFound is returned when a key holds no object.
	ErrNotFound = errors.New("storage: object not found")
	// ErrInvalidKey rejects keys that are empty or escape the storage root.
	ErrInvalidKey = errors.New("storage: invalid key")
)

// Store keeps rendered exports under slash-separated keys.
type Store interface {
	Save(ctx context.Context, key string, data []byte, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// Presigner is implemented by stores that can hand out direct download URLs.
type Presigner interface {
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}
