package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/kinjelom/server-monitor/config"
	"github.com/kinjelom/server-monitor/probe"
)

// WebhookSender posts a JSON alert payload to a configured URL. Grounded
// on the corpus's HTTP-push notifier pattern (method/header/timeout
// resolution, bad-status-code classification as a retryable failure).
type WebhookSender struct {
	client *http.Client
}

func NewWebhookSender() *WebhookSender {
	return &WebhookSender{client: &http.Client{}}
}

type webhookPayload struct {
	Endpoint  string `json:"endpoint"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	LatencyMs *int64 `json:"latency_ms"`
	Detail    string `json:"detail"`
	Success   bool   `json:"success"`
}

func (s *WebhookSender) Send(ctx context.Context, eff config.EffectiveWebhookConfig, endpointName string, status Status, result probe.Result) error {
	body := webhookPayload{
		Endpoint:  endpointName,
		Status:    string(status),
		Timestamp: result.Timestamp.UTC().Format(time.RFC3339),
		LatencyMs: latencyMillis(result),
		Detail:    result.Detail,
		Success:   result.Success,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	method := eff.Method
	if method == "" {
		method = http.MethodPost
	}
	timeout := eff.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return retryWithSchedule(ctx, func() error {
		return s.deliver(ctx, method, eff.URL, eff.Headers, payload, timeout)
	})
}

func (s *WebhookSender) deliver(ctx context.Context, method, url string, headers map[string]string, payload []byte, timeout time.Duration) error {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
