// Package blob persists generated images as named byte objects. The gateway
// only ever writes and reads objects; nothing is deleted or expired here.
package blob

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/chew-z/workers-ai-proxy/internal/config"
)

// ErrNotFound is returned by Get for a key with no stored object.
var ErrNotFound = errors.New("blob: object not found")

// Store is the blob store boundary: put a named byte blob, get it back.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, string, error)
}

// New builds the configured store backend.
func New(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "s3":
		return newS3Store(ctx, cfg.S3)
	default:
		return newLocalStore(cfg.Directory)
	}
}
