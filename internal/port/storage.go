package port

import (
	"context"
	"io"
)

// PutInput encapsulates the parameters needed to store an object.
type PutInput struct {
	Bucket      string
	Key         string
	Body        io.Reader
	ContentType string
	Size        int64
}

// PutOutput contains the result of a successful put.
type PutOutput struct {
	Location string
	ETag     string
}

// ObjectStorage abstracts the archive object store.
type ObjectStorage interface {
	Put(ctx context.Context, input PutInput) (*PutOutput, error)
	Delete(ctx context.Context, bucket, key string) error
	GetPresignedURL(ctx context.Context, bucket, key string, expirySeconds int64) (string, error)
}
