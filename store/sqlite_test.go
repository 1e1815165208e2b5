package store

import (
	"context"
	"testing"
	"time"

	"github.com/kinjelom/server-monitor/config"
	"github.com/kinjelom/server-monitor/probe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemoryStore(t *testing.T) *sqliteStore {
	t.Helper()
	s, err := newSQLiteStore(config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore_RecordAndRecent(t *testing.T) {
	s := openMemoryStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 3; i++ {
		res := probe.Result{
			EndpointName: "ep1",
			Timestamp:    base.Add(time.Duration(i) * time.Second),
			Success:      i%2 == 0,
			Status:       probe.StatusUp,
			Latency:      50 * time.Millisecond,
			HasLatency:   true,
			Detail:       "ok",
		}
		require.NoError(t, s.Record(ctx, res))
	}

	recent, err := s.Recent(ctx, "ep1", 10)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, int64(50), recent[0].Latency.Milliseconds())
	assert.True(t, recent[0].HasLatency)
}

func TestSQLiteStore_RecentRespectsLimit(t *testing.T) {
	s := openMemoryStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Record(ctx, probe.Result{
			EndpointName: "ep1",
			Timestamp:    time.Now().UTC(),
			Success:      true,
			Status:       probe.StatusUp,
		}))
	}

	recent, err := s.Recent(ctx, "ep1", 2)
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}

func TestSQLiteStore_RecordWithoutLatency(t *testing.T) {
	s := openMemoryStore(t)
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, probe.Result{
		EndpointName: "ep1",
		Timestamp:    time.Now().UTC(),
		Success:      false,
		Status:       probe.StatusDown,
		Detail:       "connection refused",
	}))

	recent, err := s.Recent(ctx, "ep1", 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.False(t, recent[0].HasLatency)
	assert.Equal(t, "connection refused", recent[0].Detail)
}

func TestOpen_UnrecognizedDriver(t *testing.T) {
	_, err := Open(context.Background(), config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}
