package core

import (
	"context"
	"io"
)

// Upload is an incoming file received from a client.
type Upload struct {
	Filename string
	Content  io.Reader
}

// FileStorage is any service that can store and retrieve uploaded files by key.
type FileStorage interface {
	// Save stores the content of r under key and returns the stored key.
	Save(ctx context.Context, key string, r io.Reader) (string, error)
	// Open returns a reader over the file stored under key.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes the file stored under key. Missing files are not an error.
	Delete(ctx context.Context, key string) error
}
