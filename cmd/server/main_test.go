package main

import (
	"net/http"
	"testing"
	"time"

	"shopledger/backend/internal/config"
)

func TestNewServerUsesConfiguredAddress(t *testing.T) {
	srv := newServer(config.Config{Port: "9090"}, http.NotFoundHandler())
	if srv.Addr != ":9090" {
		t.Fatalf("expected :9090, got %q", srv.Addr)
	}
	if srv.ReadHeaderTimeout != 5*time.Second {
		t.Fatalf("expected header timeout to be set, got %s", srv.ReadHeaderTimeout)
	}
}
