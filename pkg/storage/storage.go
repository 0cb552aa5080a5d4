// Package storage provides the durable key-value store the feed persists to.
// Values are opaque JSON documents; every backend stores them verbatim.
package storage

import (
	"context"
	"errors"
	"fmt"

	"chirp/pkg/config"
	"chirp/pkg/database"
)

// ErrNotFound is returned by Get when the key has never been set or was removed.
var ErrNotFound = errors.New("storage: key not found")

type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	Close() error
}

// Open builds the backend selected by cfg.Storage.
func Open(ctx context.Context, cfg config.Config) (KV, error) {
	switch cfg.Storage {
	case config.BackendMemory:
		return NewMemory(), nil
	case config.BackendRedis:
		return NewRedis(ctx, cfg.RedisURL)
	case config.BackendPostgres:
		db, err := database.Connect(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := database.Migrate(db); err != nil {
			db.Close()
			return nil, err
		}
		return NewPostgres(db), nil
	case config.BackendSQLite:
		return NewSQLite(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownBackend, cfg.Storage)
	}
}

// Prefixed namespaces every key of an underlying store.
type Prefixed struct {
	KV
	Prefix string
}

func (p Prefixed) Get(ctx context.Context, key string) ([]byte, error) {
	return p.KV.Get(ctx, p.Prefix+key)
}

func (p Prefixed) Set(ctx context.Context, key string, value []byte) error {
	return p.KV.Set(ctx, p.Prefix+key, value)
}

func (p Prefixed) Remove(ctx context.Context, key string) error {
	return p.KV.Remove(ctx, p.Prefix+key)
}
