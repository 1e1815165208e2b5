// Package probe implements the executors that perform a single probe
// against an endpoint and produce a typed, never-raising Result.
package probe

import (
	"context"
	"time"

	"github.com/kinjelom/server-monitor/config"
)

// Status is the coarse up/down classification of a Result.
type Status string

const (
	StatusUp   Status = "up"
	StatusDown Status = "down"
)

// Result is the immutable value record an executor produces. Once
// returned it is passed by value to the store, metrics registry, and
// alert state machine.
type Result struct {
	EndpointName string
	Timestamp    time.Time
	Success      bool
	Status       Status
	Latency      time.Duration
	HasLatency   bool
	Detail       string
	MetricTags   map[string]string

	Cancelled bool
}

// Executor performs one probe and returns a Result before the deadline
// elapses. Implementations must never panic or return an error to the
// caller, every failure is encoded in the Result.
type Executor interface {
	Probe(ctx context.Context, endpointName string, ep config.EndpointConfig) Result
}

// Dispatch selects the executor matching the endpoint's kind. This is the
// exhaustive tagged-variant dispatch described in the config model: every
// EndpointConfig.Kind value recognized by config.Validate has a case here.
func Dispatch(ctx context.Context, endpointName string, ep config.EndpointConfig) Result {
	switch ep.Kind {
	case "http":
		return NewHTTPExecutor().Probe(ctx, endpointName, ep)
	case "tcp":
		return NewTCPExecutor().Probe(ctx, endpointName, ep)
	case "tls":
		return NewTLSExecutor().Probe(ctx, endpointName, ep)
	default:
		// Unreachable in a config that passed config.Validate.
		return Result{
			EndpointName: endpointName,
			Timestamp:    time.Now().UTC(),
			Success:      false,
			Status:       StatusDown,
			Detail:       "unrecognized endpoint kind: " + ep.Kind,
		}
	}
}

// cancelledResult builds the synthetic Result returned when ctx is
// cancelled mid-probe. It is never fed to the alert state machine.
func cancelledResult(endpointName string) Result {
	return Result{
		EndpointName: endpointName,
		Timestamp:    time.Now().UTC(),
		Success:      false,
		Status:       StatusDown,
		Detail:       "cancelled",
		Cancelled:    true,
	}
}
