package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/kinjelom/server-monitor/config"
	"github.com/kinjelom/server-monitor/probe"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS probe_results (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	endpoint TEXT NOT NULL,
	ts DATETIME NOT NULL,
	success BOOLEAN NOT NULL,
	status TEXT NOT NULL,
	latency_ms INTEGER,
	detail TEXT
);
CREATE INDEX IF NOT EXISTS idx_probe_results_endpoint_ts ON probe_results(endpoint, ts DESC);
`

// sqliteStore persists probe results in a local SQLite file (or
// :memory:) via the pure-Go modernc.org/sqlite driver, accessed through
// sqlx for struct scanning.
type sqliteStore struct {
	db *sqlx.DB
}

func newSQLiteStore(cfg config.DatabaseConfig) (*sqliteStore, error) {
	dsn := cfg.DSN
	if dsn == "" {
		dsn = "server-monitor.db"
	}
	if dsn != ":memory:" {
		dsn += "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)"
	}

	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", cfg.DSN, err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}

	return &sqliteStore{db: db}, nil
}

type probeResultRow struct {
	Endpoint  string    `db:"endpoint"`
	Timestamp time.Time `db:"ts"`
	Success   bool      `db:"success"`
	Status    string    `db:"status"`
	LatencyMs *int64    `db:"latency_ms"`
	Detail    string    `db:"detail"`
}

func (s *sqliteStore) Record(ctx context.Context, result probe.Result) error {
	row := rowFromResult(result)
	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO probe_results (endpoint, ts, success, status, latency_ms, detail)
		 VALUES (:endpoint, :ts, :success, :status, :latency_ms, :detail)`,
		row,
	)
	if err != nil {
		return fmt.Errorf("record probe result: %w", err)
	}
	return nil
}

func (s *sqliteStore) Recent(ctx context.Context, endpointName string, limit int) ([]probe.Result, error) {
	var rows []probeResultRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT endpoint, ts, success, status, latency_ms, detail
		 FROM probe_results WHERE endpoint = ? ORDER BY ts DESC LIMIT ?`,
		endpointName, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent results for %s: %w", endpointName, err)
	}
	return resultsFromRows(rows), nil
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

func rowFromResult(r probe.Result) probeResultRow {
	row := probeResultRow{
		Endpoint:  r.EndpointName,
		Timestamp: r.Timestamp,
		Success:   r.Success,
		Status:    string(r.Status),
		Detail:    r.Detail,
	}
	if r.HasLatency {
		ms := r.Latency.Milliseconds()
		row.LatencyMs = &ms
	}
	return row
}

func resultsFromRows(rows []probeResultRow) []probe.Result {
	results := make([]probe.Result, 0, len(rows))
	for _, row := range rows {
		res := probe.Result{
			EndpointName: row.Endpoint,
			Timestamp:    row.Timestamp,
			Success:      row.Success,
			Status:       probe.Status(row.Status),
			Detail:       row.Detail,
		}
		if row.LatencyMs != nil {
			res.HasLatency = true
			res.Latency = time.Duration(*row.LatencyMs) * time.Millisecond
		}
		results = append(results, res)
	}
	return results
}
