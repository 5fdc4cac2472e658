package controllers

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/angelmondragon/foodorder-backend/internal/contact"
	"github.com/angelmondragon/foodorder-backend/internal/menu"
	"github.com/angelmondragon/foodorder-backend/pkg/config"
)

type fixedMenu struct {
	menu.Service
	snapshot menu.Snapshot
}

func (m fixedMenu) Menu(ctx context.Context) menu.Snapshot { return m.snapshot }

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestPublicMenuFallbackIsNotAnError(t *testing.T) {
	svc := fixedMenu{snapshot: menu.Snapshot{Fallback: true, Error: "menu temporarily unavailable"}}
	resp := httptest.NewRecorder()

	PublicMenu(svc, testLogger())(resp, httptest.NewRequest(http.MethodGet, "/api/public/menu", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if resp.Header().Get("X-Menu-Fallback") != "true" {
		t.Fatalf("expected fallback header")
	}
	var snapshot menu.Snapshot
	decodeData(t, resp, &snapshot)
	if !snapshot.Fallback || snapshot.Error == "" {
		t.Fatalf("unexpected snapshot %+v", snapshot)
	}
}

func TestPublicContactQR(t *testing.T) {
	svc, err := contact.NewService("+971 50 123 4567", "Hello")
	if err != nil {
		t.Fatalf("contact service: %v", err)
	}
	resp := httptest.NewRecorder()

	PublicContactQR(svc, testLogger())(resp, httptest.NewRequest(http.MethodGet, "/api/public/contact/qr.png", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if ct := resp.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if _, err := png.Decode(bytes.NewReader(resp.Body.Bytes())); err != nil {
		t.Fatalf("expected png body: %v", err)
	}
}

func TestPublicContactUnconfigured(t *testing.T) {
	resp := httptest.NewRecorder()

	PublicContact(nil, testLogger())(resp, httptest.NewRequest(http.MethodGet, "/api/public/contact", nil))

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestHealthReadyReportsFailedDependency(t *testing.T) {
	cfg := &config.Config{}
	ok := pingerFunc(func(ctx context.Context) error { return nil })
	down := pingerFunc(func(ctx context.Context) error { return errors.New("connection refused") })
	resp := httptest.NewRecorder()

	HealthReady(cfg, testLogger(), ok, down)(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.Code)
	}
	if dep := decodeError(t, resp).Error.Details["dependency"]; dep != "redis" {
		t.Fatalf("expected redis reported, got %v", dep)
	}
}

func TestHealthReady(t *testing.T) {
	cfg := &config.Config{}
	ok := pingerFunc(func(ctx context.Context) error { return nil })
	resp := httptest.NewRecorder()

	HealthReady(cfg, testLogger(), ok, ok)(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}
