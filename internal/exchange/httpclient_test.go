package exchange

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewHTTPClient(t *testing.T) {
	cfg := TransportConfig{
		ConnectTimeout:  time.Second,
		ResponseTimeout: 2 * time.Second,
		TotalTimeout:    3 * time.Second,
		MaxConnsPerHost: 4,
		IdleConnTimeout: 5 * time.Second,
	}

	client := NewHTTPClient(cfg)

	if client.Timeout != cfg.TotalTimeout {
		t.Errorf("Timeout = %v, want %v", client.Timeout, cfg.TotalTimeout)
	}
	transport, ok := client.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("transport = %T", client.Transport)
	}
	if transport.ResponseHeaderTimeout != cfg.ResponseTimeout || transport.MaxConnsPerHost != 4 || transport.IdleConnTimeout != cfg.IdleConnTimeout {
		t.Errorf("transport not configured: %+v", transport)
	}
}

func TestDefaultTransportConfig_FitsInvocation(t *testing.T) {
	cfg := DefaultTransportConfig()
	if cfg.TotalTimeout <= 0 || cfg.TotalTimeout >= time.Minute {
		t.Errorf("TotalTimeout = %v, must be within a one-minute run", cfg.TotalTimeout)
	}
	if cfg.ConnectTimeout > cfg.TotalTimeout || cfg.ResponseTimeout > cfg.TotalTimeout {
		t.Errorf("partial timeouts exceed total: %+v", cfg)
	}
}

func TestSharedHTTPClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	client := SharedHTTPClient()
	if SharedHTTPClient() != client {
		t.Fatal("shared client must be reused")
	}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d", resp.StatusCode)
	}

	CloseSharedClient()
}
