package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/kinjelom/server-monitor/config"
)

// TCPExecutor performs a bare TCP-connect probe: no data is sent.
type TCPExecutor struct{}

func NewTCPExecutor() *TCPExecutor { return &TCPExecutor{} }

func (e *TCPExecutor) Probe(ctx context.Context, endpointName string, ep config.EndpointConfig) Result {
	cfg := ep.TCP
	if cfg == nil {
		return failure(endpointName, "misconfigured: tcp block missing")
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	dialer := &net.Dialer{Timeout: cfg.Timeout}
	addr := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port))

	start := time.Now()
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	latency := time.Since(start)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return cancelledResult(endpointName)
		}
		return failureWithLatency(endpointName, latency, err.Error())
	}
	_ = conn.Close()

	return Result{
		EndpointName: endpointName,
		Timestamp:    time.Now().UTC(),
		Success:      true,
		Status:       StatusUp,
		Latency:      latency,
		HasLatency:   true,
		Detail:       "connected",
	}
}
