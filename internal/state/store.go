// Package state persists the id of the focused upload so a new
// process can resume watching an in-flight job. Exactly one upload
// occupies the active slot at a time; the schema keeps a slot column
// so more slots can be added without a migration.
package state

import (
	"context"

	"github.com/courseforge/uploadtracker/internal/logger"
)

// DefaultSlot is the single active-upload slot used today
const DefaultSlot = "default"

// Store persists the focused upload id
type Store interface {
	// SaveActive records uploadID as the focused upload
	SaveActive(ctx context.Context, uploadID string) error

	// LoadActive returns the persisted upload id, or "" when none is saved
	LoadActive(ctx context.Context) (string, error)

	// ClearActive removes the persisted upload id
	ClearActive(ctx context.Context) error

	Close() error
}

// Options selects and configures a store backend
type Options struct {
	// Path is the SQLite database file used by default
	Path string

	// RedisURL, when set, selects the shared Redis store instead
	RedisURL string
}

// Open returns a Store for the given options. Storage that cannot be
// opened degrades to a noop store so the tracker still runs, just
// without resume across restarts.
func Open(ctx context.Context, opts Options) Store {
	log := logger.Default().WithComponent("state")

	if opts.RedisURL != "" {
		store, err := NewRedisStore(ctx, opts.RedisURL)
		if err == nil {
			return store
		}
		log.Warn(ctx, "redis state store unavailable, resume disabled", map[string]interface{}{
			"error": err.Error(),
		})
		return NoopStore{}
	}

	store, err := NewSQLiteStore(opts.Path)
	if err == nil {
		return store
	}
	log.Warn(ctx, "sqlite state store unavailable, resume disabled", map[string]interface{}{
		"path":  opts.Path,
		"error": err.Error(),
	})
	return NoopStore{}
}

// NoopStore is the degraded mode used when storage is unavailable:
// saves are dropped and loads find nothing.
type NoopStore struct{}

func (NoopStore) SaveActive(context.Context, string) error   { return nil }
func (NoopStore) LoadActive(context.Context) (string, error) { return "", nil }
func (NoopStore) ClearActive(context.Context) error          { return nil }
func (NoopStore) Close() error                               { return nil }
