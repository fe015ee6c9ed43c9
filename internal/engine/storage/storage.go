// Package storage implements the request queue, export sink, snapshot store and
// shared coordinate cache of a crawl on SQLite, Redis and memcached.
package storage

import (
	"context"
	"errors"

	"github.com/rendis/mapcrawl/internal/model"
)

// ErrNotFound is returned when a key has no stored value.
var ErrNotFound = errors.New("storage: not found")

// Backend is what a crawl run needs from a store.
type Backend interface {
	AddRequest(ctx context.Context, req model.Request, forefront bool) (bool, error)
	Push(ctx context.Context, rec model.ExportRecord) error
	PutSnapshot(ctx context.Context, key string, blob []byte, contentType string) (string, error)
	Close() error
}

var (
	_ Backend = (*Store)(nil)
	_ Backend = (*RedisStore)(nil)
)
