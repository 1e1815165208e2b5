package config

import "time"

// EffectiveEmailConfig is the result of merging an endpoint's email_override
// onto the global email_notifications. Per-field rule: if the override sets
// a field, use it; otherwise inherit from global.
type EffectiveEmailConfig struct {
	Enabled          bool
	Events           ChannelEvents
	FailureThreshold int
	SuppressRepeated bool

	SMTPHost         string
	SMTPPort         int
	SMTPUsername     string
	SMTPPassword     string
	ConnectionMethod string
	From             string
	Recipients       []string
	SubjectTemplate  string
}

// EffectiveEmail merges this endpoint's override onto the global defaults.
// Idempotent: merging the same override twice yields the same result,
// since every field is an independent override-or-inherit decision with no
// accumulation across calls.
func (c *Config) EffectiveEmail(ep EndpointConfig) EffectiveEmailConfig {
	g := c.Global.EmailNotifications
	o := ep.EmailOverride

	eff := EffectiveEmailConfig{
		Enabled:          g.Enabled == nil || *g.Enabled,
		Events:           g.Events,
		FailureThreshold: intOr(g.FailureThreshold, 1),
		SuppressRepeated: boolOr(g.SuppressRepeated, false),
		SMTPHost:         g.SMTPHost,
		SMTPPort:         g.SMTPPort,
		SMTPUsername:     g.SMTPUsername,
		SMTPPassword:     g.SMTPPassword,
		ConnectionMethod: g.ConnectionMethod,
		From:             g.From,
		Recipients:       g.Recipients,
		SubjectTemplate:  g.SubjectTemplate,
	}
	if o == nil {
		return eff
	}

	if o.Enabled != nil {
		eff.Enabled = *o.Enabled
	}
	if o.Events.Failure || o.Events.Recovery {
		eff.Events = o.Events
	}
	if o.FailureThreshold != nil {
		eff.FailureThreshold = *o.FailureThreshold
	}
	if o.SuppressRepeated != nil {
		eff.SuppressRepeated = *o.SuppressRepeated
	}
	if o.SMTPHost != "" {
		eff.SMTPHost = o.SMTPHost
	}
	if o.SMTPPort != 0 {
		eff.SMTPPort = o.SMTPPort
	}
	if o.SMTPUsername != "" {
		eff.SMTPUsername = o.SMTPUsername
	}
	if o.SMTPPassword != "" {
		eff.SMTPPassword = o.SMTPPassword
	}
	if o.ConnectionMethod != "" {
		eff.ConnectionMethod = o.ConnectionMethod
	}
	if o.From != "" {
		eff.From = o.From
	}
	if len(o.Recipients) > 0 {
		eff.Recipients = o.Recipients
	}
	if o.SubjectTemplate != "" {
		eff.SubjectTemplate = o.SubjectTemplate
	}
	return eff
}

// EffectiveWebhookConfig is the result of merging an endpoint's
// webhook_override onto the global webhook_notifications.
type EffectiveWebhookConfig struct {
	Enabled          bool
	Events           ChannelEvents
	FailureThreshold int
	SuppressRepeated bool

	URL     string
	Method  string
	Headers map[string]string
	Timeout time.Duration
}

// EffectiveWebhook merges this endpoint's override onto the global defaults.
func (c *Config) EffectiveWebhook(ep EndpointConfig) EffectiveWebhookConfig {
	g := c.Global.WebhookNotifications
	o := ep.WebhookOverride

	eff := EffectiveWebhookConfig{
		Enabled:          g.Enabled == nil || *g.Enabled,
		Events:           g.Events,
		FailureThreshold: intOr(g.FailureThreshold, 1),
		SuppressRepeated: boolOr(g.SuppressRepeated, false),
		URL:              g.URL,
		Method:            g.Method,
		Headers:          g.Headers,
		Timeout:          g.Timeout,
	}
	if o == nil {
		return eff
	}

	if o.Enabled != nil {
		eff.Enabled = *o.Enabled
	}
	if o.Events.Failure || o.Events.Recovery {
		eff.Events = o.Events
	}
	if o.FailureThreshold != nil {
		eff.FailureThreshold = *o.FailureThreshold
	}
	if o.SuppressRepeated != nil {
		eff.SuppressRepeated = *o.SuppressRepeated
	}
	if o.URL != "" {
		eff.URL = o.URL
	}
	if o.Method != "" {
		eff.Method = o.Method
	}
	if len(o.Headers) > 0 {
		eff.Headers = o.Headers
	}
	if o.Timeout != 0 {
		eff.Timeout = o.Timeout
	}
	return eff
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
