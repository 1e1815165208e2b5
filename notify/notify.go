// Package notify implements the notification dispatcher: email and
// webhook delivery with bounded retry, resolved against the effective
// (endpoint-override ⊕ global) channel configuration.
package notify

import (
	"context"
	"time"

	"github.com/kinjelom/server-monitor/config"
	"github.com/kinjelom/server-monitor/probe"
)

// Status is the alert status this notification concerns.
type Status string

const (
	StatusDown Status = "down"
	StatusUp   Status = "up"
)

// Dispatcher sends alert notifications over email and webhook
// transports. A store write error or a notification failure never
// propagates to the caller, every send is best-effort.
type Dispatcher struct {
	email   *EmailSender
	webhook *WebhookSender

	onFailure func(channel string)
}

// NewDispatcher constructs a Dispatcher. onNotificationFailure, if
// non-nil, is invoked once per exhausted retry loop so the caller can
// increment notification_failures{channel=...}.
func NewDispatcher(onNotificationFailure func(channel string)) *Dispatcher {
	return &Dispatcher{
		email:     NewEmailSender(),
		webhook:   NewWebhookSender(),
		onFailure: onNotificationFailure,
	}
}

// SendEmail sends an alert email using the already-resolved effective
// email config, if it is enabled. Best-effort: errors are swallowed after
// exhausting retries.
func (d *Dispatcher) SendEmail(ctx context.Context, eff config.EffectiveEmailConfig, endpointName string, status Status, result probe.Result) {
	if !eff.Enabled {
		return
	}
	if err := d.email.Send(ctx, eff, endpointName, status, result); err != nil {
		d.notifyFailure("email")
	}
}

// SendWebhook sends an alert webhook using the already-resolved effective
// webhook config, if it is enabled.
func (d *Dispatcher) SendWebhook(ctx context.Context, eff config.EffectiveWebhookConfig, endpointName string, status Status, result probe.Result) {
	if !eff.Enabled {
		return
	}
	if err := d.webhook.Send(ctx, eff, endpointName, status, result); err != nil {
		d.notifyFailure("webhook")
	}
}

func (d *Dispatcher) notifyFailure(channel string) {
	if d.onFailure != nil {
		d.onFailure(channel)
	}
}

// latencyMillis renders a Result's latency as milliseconds, or nil when
// the probe produced no latency measurement (hard failure).
func latencyMillis(r probe.Result) *int64 {
	if !r.HasLatency {
		return nil
	}
	ms := r.Latency.Milliseconds()
	return &ms
}

// backoffSchedule is the fixed 1s/2s/4s retry backoff used for every
// notification send.
var backoffSchedule = []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
