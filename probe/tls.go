package probe

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"math"
	"net"
	"time"

	"github.com/kinjelom/server-monitor/config"
)

// TLSExecutor opens a TLS connection, completes the handshake, and
// inspects the peer leaf certificate for expiry.
type TLSExecutor struct{}

func NewTLSExecutor() *TLSExecutor { return &TLSExecutor{} }

func (e *TLSExecutor) Probe(ctx context.Context, endpointName string, ep config.EndpointConfig) Result {
	cfg := ep.TLS
	if cfg == nil {
		return failure(endpointName, "misconfigured: tls block missing")
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	addr := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port))
	tlsDialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: cfg.Timeout},
		Config: &tls.Config{
			ServerName:         cfg.Host,
			InsecureSkipVerify: true, //nolint:gosec // expiry inspection only; chain trust is not this probe's concern
		},
	}

	start := time.Now()
	rawConn, err := tlsDialer.DialContext(ctx, "tcp", addr)
	latency := time.Since(start)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return cancelledResult(endpointName)
		}
		return failureWithLatency(endpointName, latency, fmt.Sprintf("tls handshake failure: %v", err))
	}
	conn := rawConn.(*tls.Conn)
	defer func() { _ = conn.Close() }()

	state := conn.ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return failureWithLatency(endpointName, latency, "no peer certificate presented")
	}
	leaf := state.PeerCertificates[0]

	daysRemaining := int(math.Floor(time.Until(leaf.NotAfter).Hours() / 24.0))
	if daysRemaining <= 0 {
		return failureWithLatency(endpointName, latency,
			fmt.Sprintf("certificate expired %d days ago", -daysRemaining))
	}

	detail := fmt.Sprintf("valid, %d days remaining", daysRemaining)
	if daysRemaining <= cfg.WarningDays() {
		detail = fmt.Sprintf("expires in %d days", daysRemaining)
	}

	return Result{
		EndpointName: endpointName,
		Timestamp:    time.Now().UTC(),
		Success:      true,
		Status:       StatusUp,
		Latency:      latency,
		HasLatency:   true,
		Detail:       detail,
		MetricTags:   map[string]string{"days_remaining": fmt.Sprintf("%d", daysRemaining)},
	}
}
