package core

import (
	"context"
	"io"
)

// ObjectStore is any file storage that hands back a public URL and a reference for later deletion.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (url, ref string, err error)
	Delete(ctx context.Context, ref string) error
}
