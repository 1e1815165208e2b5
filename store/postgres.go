package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kinjelom/server-monitor/config"
	"github.com/kinjelom/server-monitor/probe"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS probe_results (
	id BIGSERIAL PRIMARY KEY,
	endpoint TEXT NOT NULL,
	ts TIMESTAMPTZ NOT NULL,
	success BOOLEAN NOT NULL,
	status TEXT NOT NULL,
	latency_ms BIGINT,
	detail TEXT
);
CREATE INDEX IF NOT EXISTS idx_probe_results_endpoint_ts ON probe_results(endpoint, ts DESC);
`

// postgresStore persists probe results in PostgreSQL through a pgx/v5
// connection pool, writing every record inside its own transaction.
type postgresStore struct {
	pool *pgxpool.Pool
}

func newPostgresStore(ctx context.Context, cfg config.DatabaseConfig) (*postgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.NewWithConfig: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply postgres schema: %w", err)
	}

	return &postgresStore{pool: pool}, nil
}

func (s *postgresStore) Record(ctx context.Context, result probe.Result) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var latencyMs *int64
	if result.HasLatency {
		ms := result.Latency.Milliseconds()
		latencyMs = &ms
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO probe_results (endpoint, ts, success, status, latency_ms, detail)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		result.EndpointName, result.Timestamp, result.Success, string(result.Status), latencyMs, result.Detail,
	)
	if err != nil {
		return fmt.Errorf("insert probe result: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *postgresStore) Recent(ctx context.Context, endpointName string, limit int) ([]probe.Result, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT endpoint, ts, success, status, latency_ms, detail
		 FROM probe_results WHERE endpoint = $1 ORDER BY ts DESC LIMIT $2`,
		endpointName, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent results for %s: %w", endpointName, err)
	}
	defer rows.Close()

	var results []probe.Result
	for rows.Next() {
		var (
			endpoint  string
			ts        time.Time
			success   bool
			status    string
			latencyMs *int64
			detail    string
		)
		if err := rows.Scan(&endpoint, &ts, &success, &status, &latencyMs, &detail); err != nil {
			return nil, fmt.Errorf("scan probe result: %w", err)
		}
		res := probe.Result{
			EndpointName: endpoint,
			Timestamp:    ts,
			Success:      success,
			Status:       probe.Status(status),
			Detail:       detail,
		}
		if latencyMs != nil {
			res.HasLatency = true
			res.Latency = time.Duration(*latencyMs) * time.Millisecond
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate probe results: %w", err)
	}
	return results, nil
}

func (s *postgresStore) Close() error {
	s.pool.Close()
	return nil
}
