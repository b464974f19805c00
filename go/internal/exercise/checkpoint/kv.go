// Package checkpoint stores the durable exercise snapshot and the sync ping marker.
//
// A KV is shared by every ExCon process of one deployment. Writes are tagged with the
// writer's origin, and Watch reports writes made by other origins only, so a process is
// never woken by its own publish.
package checkpoint

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key has never been written.
var ErrNotFound = errors.New("checkpoint: key not found")

// WatchFunc is called with the key of a write made by another origin.
type WatchFunc func(key string)

// KV is a small key/value store with change notifications. A single Set is atomic:
// readers see either the old or the new value, never a partial one.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, origin, key string, value []byte) error
	// Watch calls fn for writes by origins other than origin until stop is called or
	// ctx is done. stop is safe to call more than once.
	Watch(ctx context.Context, origin string, fn WatchFunc) (stop func(), err error)
	Close() error
}
