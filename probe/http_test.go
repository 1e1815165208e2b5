package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kinjelom/server-monitor/config"
	"github.com/stretchr/testify/assert"
)

func TestHTTPExecutor_SuccessWithContentMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK body"))
	}))
	defer srv.Close()

	ep := config.EndpointConfig{
		Kind: "http",
		HTTP: &config.HTTPProbeConfig{
			URL:            srv.URL,
			Method:         "GET",
			Timeout:        2 * time.Second,
			ExpectedStatus: []int{200},
			ContentMatch:   "OK",
		},
	}

	res := NewHTTPExecutor().Probe(context.Background(), "ep1", ep)
	assert.True(t, res.Success)
	assert.Equal(t, StatusUp, res.Status)
	assert.Equal(t, "200", res.Detail)
	assert.True(t, res.Latency >= 0)
}

func TestHTTPExecutor_StatusMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ep := config.EndpointConfig{
		Kind: "http",
		HTTP: &config.HTTPProbeConfig{
			URL:            srv.URL,
			Method:         "GET",
			Timeout:        2 * time.Second,
			ExpectedStatus: []int{200},
		},
	}

	res := NewHTTPExecutor().Probe(context.Background(), "ep1", ep)
	assert.False(t, res.Success)
	assert.Contains(t, res.Detail, "500")
}

func TestHTTPExecutor_BodyMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("nope"))
	}))
	defer srv.Close()

	ep := config.EndpointConfig{
		Kind: "http",
		HTTP: &config.HTTPProbeConfig{
			URL:            srv.URL,
			Method:         "GET",
			Timeout:        2 * time.Second,
			ExpectedStatus: []int{200},
			ContentMatch:   "OK",
		},
	}

	res := NewHTTPExecutor().Probe(context.Background(), "ep1", ep)
	assert.False(t, res.Success)
	assert.Equal(t, "body-mismatch", res.Detail)
}

func TestHTTPExecutor_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ep := config.EndpointConfig{
		Kind: "http",
		HTTP: &config.HTTPProbeConfig{
			URL:            srv.URL,
			Method:         "GET",
			Timeout:        5 * time.Millisecond,
			ExpectedStatus: []int{200},
		},
	}

	res := NewHTTPExecutor().Probe(context.Background(), "ep1", ep)
	assert.False(t, res.Success)
	assert.Equal(t, "timeout", res.Detail)
}
