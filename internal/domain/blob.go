package domain

import (
	"context"
	"time"
)

// Object is one payload bound for object storage: an archived daily log, its
// Parquet copy, or an analysis report.
type Object struct {
	Key         string
	Body        []byte
	ContentType string
}

// ObjectInfo is what storage reports about a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// BlobWriter stores objects. Large bodies may be uploaded in parts.
type BlobWriter interface {
	Put(ctx context.Context, obj Object) error
}

// BlobReader inspects stored objects. Stat returns ErrNotFound for a
// missing key.
type BlobReader interface {
	Stat(ctx context.Context, key string) (ObjectInfo, error)
}
