// Package store persists probe results and serves the recent-history
// window the metrics registry uses for sliding success-rate and latency
// computation.
package store

import (
	"context"
	"fmt"

	"github.com/kinjelom/server-monitor/config"
	"github.com/kinjelom/server-monitor/probe"
)

// Store records probe results and answers recent-history queries.
// Implementations must be safe for concurrent use: the engine calls
// Record from every endpoint's scheduler goroutine.
type Store interface {
	Record(ctx context.Context, result probe.Result) error
	Recent(ctx context.Context, endpointName string, limit int) ([]probe.Result, error)
	Close() error
}

// Open connects to the backend selected by cfg.Driver ("sqlite" or
// "postgres") and ensures its schema exists.
func Open(ctx context.Context, cfg config.DatabaseConfig) (Store, error) {
	switch cfg.Driver {
	case "", "sqlite":
		return newSQLiteStore(cfg)
	case "postgres", "postgresql":
		return newPostgresStore(ctx, cfg)
	default:
		return nil, fmt.Errorf("store: unrecognized driver %q", cfg.Driver)
	}
}
