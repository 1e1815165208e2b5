package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration, loaded once at startup and
// immutable for the lifetime of the process.
type Config struct {
	Global    GlobalConfig              `yaml:"global"`
	Endpoints map[string]EndpointConfig `yaml:"endpoints"`
}

// GlobalConfig holds process-wide settings and the default notification
// channels endpoints inherit from.
type GlobalConfig struct {
	ListenAddress        string               `yaml:"listen_address"`
	TelemetryPath        string               `yaml:"telemetry_path"`
	LogLevel             string               `yaml:"log_level"`
	Debug                bool                 `yaml:"debug"`
	MaxConcurrentChecks  int                  `yaml:"max_concurrent_checks"`
	DrainTimeout         time.Duration        `yaml:"drain_timeout"`
	EmailNotifications   EmailChannelConfig   `yaml:"email_notifications"`
	WebhookNotifications WebhookChannelConfig `yaml:"webhook_notifications"`
	Database             DatabaseConfig       `yaml:"database"`
}

// DatabaseConfig selects and configures the result-store backend.
type DatabaseConfig struct {
	Driver        string `yaml:"driver"` // sqlite, postgres
	DSN           string `yaml:"dsn"`
	MaxOpenConns  int    `yaml:"max_open_conns"`
	MaxIdleConns  int    `yaml:"max_idle_conns"`
	HistoryWindow int    `yaml:"history_window"`
}

// ChannelEvents is the recognized `events` set for a notification channel.
type ChannelEvents struct {
	Failure  bool
	Recovery bool
}

// UnmarshalYAML accepts a scalar ("failure", "recovery", "both") or a list
// of those scalars, and expands "both" to {failure, recovery}.
func (c *ChannelEvents) UnmarshalYAML(value *yaml.Node) error {
	var items []string
	switch value.Kind {
	case yaml.ScalarNode:
		items = []string{value.Value}
	case yaml.SequenceNode:
		if err := value.Decode(&items); err != nil {
			return err
		}
	default:
		return fmt.Errorf("events: expected scalar or list, got %v", value.Kind)
	}

	for _, item := range items {
		switch item {
		case "failure":
			c.Failure = true
		case "recovery":
			c.Recovery = true
		case "both":
			c.Failure = true
			c.Recovery = true
		default:
			return fmt.Errorf("events: unrecognized event %q", item)
		}
	}
	return nil
}

// EmailChannelConfig is the global or per-endpoint email channel definition.
type EmailChannelConfig struct {
	Enabled          *bool         `yaml:"enabled"`
	Events           ChannelEvents `yaml:"events"`
	FailureThreshold *int          `yaml:"failure_threshold"`
	SuppressRepeated *bool         `yaml:"suppress_repeated"`

	SMTPHost         string   `yaml:"smtp_host"`
	SMTPPort         int      `yaml:"smtp_port"`
	SMTPUsername     string   `yaml:"smtp_username"`
	SMTPPassword     string   `yaml:"smtp_password"`
	ConnectionMethod string   `yaml:"connection_method"` // starttls, ssl, plain
	From             string   `yaml:"from"`
	Recipients       []string `yaml:"recipients"`
	SubjectTemplate  string   `yaml:"subject_template"`
}

// WebhookChannelConfig is the global or per-endpoint webhook channel
// definition.
type WebhookChannelConfig struct {
	Enabled          *bool         `yaml:"enabled"`
	Events           ChannelEvents `yaml:"events"`
	FailureThreshold *int          `yaml:"failure_threshold"`
	SuppressRepeated *bool         `yaml:"suppress_repeated"`

	URL     string            `yaml:"url"`
	Method  string            `yaml:"method"`
	Headers map[string]string `yaml:"headers"`
	Timeout time.Duration     `yaml:"timeout"`
}

// EndpointConfig is the tagged-variant endpoint definition: Kind selects
// which of HTTP/TCP/TLS is populated. Exhaustive dispatch happens at
// probe-execution time in package probe.
type EndpointConfig struct {
	Kind            string `yaml:"kind"` // http, tcp, tls
	IntervalSeconds int    `yaml:"interval_seconds"`
	Enabled         *bool  `yaml:"enabled"`

	HTTP *HTTPProbeConfig `yaml:"http,omitempty"`
	TCP  *TCPProbeConfig  `yaml:"tcp,omitempty"`
	TLS  *TLSProbeConfig  `yaml:"tls,omitempty"`

	EmailOverride   *EmailChannelConfig   `yaml:"email_override,omitempty"`
	WebhookOverride *WebhookChannelConfig `yaml:"webhook_override,omitempty"`
}

// IsEnabled reports whether this endpoint should be scheduled (defaults true).
func (e EndpointConfig) IsEnabled() bool {
	return e.Enabled == nil || *e.Enabled
}

// Interval returns the configured probe interval, or 30s when
// interval_seconds is unset or not positive.
func (e EndpointConfig) Interval() time.Duration {
	if e.IntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(e.IntervalSeconds) * time.Second
}

// HTTPProbeConfig is the parameter set for an HTTP(S) probe.
type HTTPProbeConfig struct {
	URL             string            `yaml:"url"`
	Method          string            `yaml:"method"`
	Headers         map[string]string `yaml:"headers"`
	Body            string            `yaml:"body"`
	Timeout         time.Duration     `yaml:"timeout"`
	ExpectedStatus  []int             `yaml:"expected_status"`
	ContentMatch    string            `yaml:"content_match"`
	ContentRegex    bool              `yaml:"content_regex"`
	FollowRedirects bool              `yaml:"follow_redirects"`
	VerifySSL       *bool             `yaml:"verify_ssl"`
}

// VerifySSLEnabled reports whether TLS verification is required (default true).
func (h HTTPProbeConfig) VerifySSLEnabled() bool {
	return h.VerifySSL == nil || *h.VerifySSL
}

// TCPProbeConfig is the parameter set for a TCP-connect probe.
type TCPProbeConfig struct {
	Host    string        `yaml:"host"`
	Port    int           `yaml:"port"`
	Timeout time.Duration `yaml:"timeout"`
}

// TLSProbeConfig is the parameter set for a TLS-certificate probe.
type TLSProbeConfig struct {
	Host                  string        `yaml:"host"`
	Port                  int           `yaml:"port"`
	Timeout               time.Duration `yaml:"timeout"`
	CertExpiryWarningDays int           `yaml:"cert_expiry_warning_days"`
}

// WarningDays returns the configured cert-expiry warning threshold (default 30).
func (t TLSProbeConfig) WarningDays() int {
	if t.CertExpiryWarningDays <= 0 {
		return 30
	}
	return t.CertExpiryWarningDays
}

// LoadConfig reads and validates a YAML configuration file, rejecting
// unrecognized keys and applying defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.fillDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return &cfg, nil
}

func (c *Config) fillDefaults() {
	if c.Global.ListenAddress == "" {
		c.Global.ListenAddress = ":9090"
	}
	if c.Global.TelemetryPath == "" {
		c.Global.TelemetryPath = "/metrics"
	}
	if c.Global.MaxConcurrentChecks <= 0 {
		c.Global.MaxConcurrentChecks = 10
	}
	if c.Global.DrainTimeout <= 0 {
		c.Global.DrainTimeout = 10 * time.Second
	}
	if c.Global.Database.Driver == "" {
		c.Global.Database.Driver = "sqlite"
	}
	if c.Global.Database.DSN == "" {
		c.Global.Database.DSN = "server-monitor.db"
	}
	if c.Global.Database.HistoryWindow <= 0 {
		c.Global.Database.HistoryWindow = 100
	}
	if c.Global.EmailNotifications.ConnectionMethod == "" {
		c.Global.EmailNotifications.ConnectionMethod = "starttls"
	}
	if c.Global.EmailNotifications.SubjectTemplate == "" {
		c.Global.EmailNotifications.SubjectTemplate = "[{status}] {endpoint_name}"
	}
	if c.Global.WebhookNotifications.Method == "" {
		c.Global.WebhookNotifications.Method = "POST"
	}
	if c.Global.WebhookNotifications.Timeout <= 0 {
		c.Global.WebhookNotifications.Timeout = 30 * time.Second
	}

	for name, ep := range c.Endpoints {
		if ep.HTTP != nil {
			if ep.HTTP.Method == "" {
				ep.HTTP.Method = "GET"
			}
			if ep.HTTP.Timeout <= 0 {
				ep.HTTP.Timeout = 10 * time.Second
			}
			if len(ep.HTTP.ExpectedStatus) == 0 {
				ep.HTTP.ExpectedStatus = []int{200}
			}
		}
		if ep.TCP != nil && ep.TCP.Timeout <= 0 {
			ep.TCP.Timeout = 10 * time.Second
		}
		if ep.TLS != nil && ep.TLS.Timeout <= 0 {
			ep.TLS.Timeout = 10 * time.Second
		}
		c.Endpoints[name] = ep
	}
}

// Validate enforces the config's structural invariants: a known
// endpoint kind with matching payload, and notification overrides that
// only refine an already-configured global channel.
func (c *Config) Validate() error {
	for name, ep := range c.Endpoints {
		switch ep.Kind {
		case "http":
			if ep.HTTP == nil {
				return fmt.Errorf("endpoint %q: kind=http requires an http block", name)
			}
		case "tcp":
			if ep.TCP == nil {
				return fmt.Errorf("endpoint %q: kind=tcp requires a tcp block", name)
			}
		case "tls":
			if ep.TLS == nil {
				return fmt.Errorf("endpoint %q: kind=tls requires a tls block", name)
			}
		default:
			return fmt.Errorf("endpoint %q: unrecognized kind %q", name, ep.Kind)
		}

		if ep.EmailOverride != nil && !c.Global.EmailNotifications.isConfigured() {
			return fmt.Errorf("endpoint %q: email_override set but global email_notifications is not configured", name)
		}
		if ep.WebhookOverride != nil && !c.Global.WebhookNotifications.isConfigured() {
			return fmt.Errorf("endpoint %q: webhook_override set but global webhook_notifications is not configured", name)
		}
	}
	return nil
}

func (e EmailChannelConfig) isConfigured() bool {
	return e.SMTPHost != ""
}

func (w WebhookChannelConfig) isConfigured() bool {
	return w.URL != ""
}
