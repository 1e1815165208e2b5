package probe

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/kinjelom/server-monitor/config"
)

const maxRedirects = 10

// HTTPExecutor performs HTTP(S) probes.
type HTTPExecutor struct{}

func NewHTTPExecutor() *HTTPExecutor { return &HTTPExecutor{} }

func (e *HTTPExecutor) Probe(ctx context.Context, endpointName string, ep config.EndpointConfig) Result {
	cfg := ep.HTTP
	if cfg == nil {
		return failure(endpointName, "misconfigured: http block missing")
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	dialer := &net.Dialer{Timeout: cfg.Timeout, KeepAlive: 30 * time.Second}
	transport := &http.Transport{
		DisableKeepAlives: true,
		DialContext:       dialer.DialContext,
	}
	if !cfg.VerifySSLEnabled() {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in per endpoint config
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
	}
	if !cfg.FollowRedirects {
		client.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	} else {
		client.CheckRedirect = func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		}
	}

	var body io.Reader
	if cfg.Body != "" {
		body = bytes.NewBufferString(cfg.Body)
	}

	method := cfg.Method
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, method, cfg.URL, body)
	if err != nil {
		return failure(endpointName, fmt.Sprintf("invalid request: %v", err))
	}
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := client.Do(req)
	latency := time.Since(start)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return cancelledResult(endpointName)
		}
		detail := classifyHTTPError(err)
		return failureWithLatency(endpointName, latency, detail)
	}
	defer func() { _ = resp.Body.Close() }()

	if !statusExpected(resp.StatusCode, cfg.ExpectedStatus) {
		return failureWithLatency(endpointName, latency,
			fmt.Sprintf("status-mismatch: expected %v got %d", cfg.ExpectedStatus, resp.StatusCode))
	}

	if cfg.ContentMatch != "" {
		respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if readErr != nil {
			return failureWithLatency(endpointName, latency, fmt.Sprintf("body read error: %v", readErr))
		}
		if !matchesContent(respBody, cfg.ContentMatch, cfg.ContentRegex) {
			return failureWithLatency(endpointName, latency, "body-mismatch")
		}
	}

	return Result{
		EndpointName: endpointName,
		Timestamp:    time.Now().UTC(),
		Success:      true,
		Status:       StatusUp,
		Latency:      latency,
		HasLatency:   true,
		Detail:       strconv.Itoa(resp.StatusCode),
	}
}

func statusExpected(got int, expected []int) bool {
	for _, code := range expected {
		if code == got {
			return true
		}
	}
	return false
}

func matchesContent(body []byte, match string, isRegex bool) bool {
	if isRegex {
		matched, err := regexp.Match(match, body)
		return err == nil && matched
	}
	return bytes.Contains(body, []byte(match))
}

// classifyHTTPError distinguishes timeout, DNS, TLS handshake, and generic
// transport failures so the result detail names the actual cause.
func classifyHTTPError(err error) string {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return fmt.Sprintf("dns failure: %s", dnsErr.Err)
	}

	if detail, ok := classifyTLSError(err); ok {
		return detail
	}
	if strings.Contains(strings.ToLower(err.Error()), "handshake") ||
		strings.Contains(strings.ToLower(err.Error()), "certificate") {
		return fmt.Sprintf("tls handshake failure: %v", err)
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Sprintf("request failed: %v", urlErr.Err)
	}
	return fmt.Sprintf("request failed: %v", err)
}

// classifyTLSError distinguishes the three x509 verification failure
// shapes the standard library returns from a handshake, so a probe
// detail reads "expired certificate" rather than an opaque Go error string.
func classifyTLSError(err error) (string, bool) {
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		err = certErr.Unwrap()
	}

	var invalidErr x509.CertificateInvalidError
	if errors.As(err, &invalidErr) {
		switch invalidErr.Reason {
		case x509.Expired:
			return fmt.Sprintf("tls handshake failure: expired certificate: %v", invalidErr), true
		default:
			return fmt.Sprintf("tls handshake failure: invalid certificate: %v", invalidErr), true
		}
	}

	var authErr x509.UnknownAuthorityError
	if errors.As(err, &authErr) {
		return fmt.Sprintf("tls handshake failure: unknown authority: %v", authErr), true
	}

	var hostErr x509.HostnameError
	if errors.As(err, &hostErr) {
		return fmt.Sprintf("tls handshake failure: hostname mismatch: %v", hostErr), true
	}

	return "", false
}

func failure(endpointName, detail string) Result {
	return Result{
		EndpointName: endpointName,
		Timestamp:    time.Now().UTC(),
		Success:      false,
		Status:       StatusDown,
		Detail:       detail,
	}
}

func failureWithLatency(endpointName string, latency time.Duration, detail string) Result {
	r := failure(endpointName, detail)
	r.Latency = latency
	r.HasLatency = true
	return r
}
