package httputil

import (
	"net/http"
	"testing"
	"time"

	"agency_listings/config"
)

func TestNewFeedClient_Proxy(t *testing.T) {
	client, err := NewFeedClient(config.HTTPConfig{ProxyURL: "http://proxy.local:3128"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.Timeout != defaultTimeout {
		t.Fatalf("expected default timeout, got %v", client.Timeout)
	}

	transport := client.Transport.(*http.Transport)
	req, _ := http.NewRequest("GET", "https://www.theagencyre.com/", nil)
	proxy, err := transport.Proxy(req)
	if err != nil {
		t.Fatalf("proxy func: %v", err)
	}
	if proxy == nil || proxy.Host != "proxy.local:3128" {
		t.Fatalf("unexpected proxy %v", proxy)
	}
}

func TestNewFeedClient_Timeout(t *testing.T) {
	client, err := NewFeedClient(config.HTTPConfig{Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.Timeout != 5*time.Second {
		t.Fatalf("expected 5s timeout, got %v", client.Timeout)
	}
}

func TestNewFeedClient_BadProxy(t *testing.T) {
	if _, err := NewFeedClient(config.HTTPConfig{ProxyURL: "://bad"}); err == nil {
		t.Fatal("expected error for malformed proxy url")
	}
}
