package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/docshelf/docshelf/internal/config"
	"github.com/docshelf/docshelf/internal/logging"
	"github.com/docshelf/docshelf/pkg/protocol"
	"github.com/docshelf/docshelf/pkg/session"
	"github.com/docshelf/docshelf/pkg/store"
)

func init() {
	logging.InitNop()
}

func testConfig(t *testing.T, url string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.APIURL = url
	cfg.RetryAttempts = 1
	cfg.TokenFile = filepath.Join(t.TempDir(), "token.json")
	return cfg
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.APIURL = "not a url"
	if _, err := New(cfg, Options{}); err == nil {
		t.Fatal("expected error for invalid API URL")
	}
}

func TestLoginFlowPersistsAndClears(t *testing.T) {
	var verifies atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/auth/login":
			json.NewEncoder(w).Encode(map[string]any{
				"success": true, "accessToken": "tok-abc",
				"user": map[string]any{"_id": "u1", "email": "ana@example.com", "firstName": "Ana"},
			})
		case "/auth/verify":
			verifies.Add(1)
			if r.Header.Get("Authorization") != "Bearer tok-abc" {
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]any{"error": "unauthorized"})
				return
			}
			json.NewEncoder(w).Encode(map[string]any{"success": true, "user": map[string]any{"_id": "u1", "email": "ana@example.com"}})
		case "/collections":
			json.NewEncoder(w).Encode(map[string]any{"collections": []any{}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()

	a, err := New(testConfig(t, ts.URL), Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()
	ctx := context.Background()

	if _, err := a.RequireSession(ctx); !errors.Is(err, session.ErrNoToken) {
		t.Fatalf("RequireSession before login = %v, want ErrNoToken", err)
	}

	if _, err := a.Store.Login(ctx, "ana@example.com", "secret"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if a.Tokens.AccessToken() != "tok-abc" {
		t.Fatalf("token not persisted: %q", a.Tokens.AccessToken())
	}

	user, err := a.RequireSession(ctx)
	if err != nil || user.Email != "ana@example.com" {
		t.Fatalf("RequireSession = %+v, %v", user, err)
	}

	a.Store.Collections(ctx)
	if err := a.Session.Logout(); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if st, ok := a.Cache.Peek(store.CollectionsKey()); !ok || !st.Invalidated {
		t.Error("logout must invalidate cached reads")
	}
	if a.Tokens.AccessToken() != "" {
		t.Error("logout must clear the token")
	}
	if verifies.Load() != 1 {
		t.Errorf("verify calls = %d, want 1", verifies.Load())
	}
}

func TestStaleTimesFromConfig(t *testing.T) {
	var docs atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/documents" {
			docs.Add(1)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"data": []any{}, "collections": []any{}})
	}))
	defer ts.Close()

	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	cfg := testConfig(t, ts.URL)
	cfg.StaleTime = time.Minute
	cfg.DocumentsStaleTime = 0

	a, err := New(cfg, Options{Tokens: session.NewMemoryStore(), Now: func() time.Time { return now }})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()
	ctx := context.Background()

	q := protocol.DocumentQuery{Page: 1, Limit: 10}
	a.Store.Documents(ctx, q)
	a.Store.Documents(ctx, q)
	if got := docs.Load(); got != 2 {
		t.Errorf("documents fetched %d times, want 2 with zero stale time", got)
	}
}

// dropVerify fails the first n /auth/verify requests, and every /health
// request when healthDown is set, before they reach the server.
type dropVerify struct {
	n          int32
	healthDown bool
	dropped    atomic.Int32
	pings      atomic.Int32
}

func (d *dropVerify) RoundTrip(r *http.Request) (*http.Response, error) {
	switch r.URL.Path {
	case "/health":
		d.pings.Add(1)
		if d.healthDown {
			return nil, errors.New("connection refused")
		}
	case "/auth/verify":
		if d.dropped.Add(1) <= d.n {
			return nil, errors.New("connection reset by peer")
		}
	}
	return http.DefaultTransport.RoundTrip(r)
}

func TestRequireSessionPingsWhenVerifyUnreachable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/health":
			json.NewEncoder(w).Encode(map[string]any{"status": "ok"})
		case "/auth/verify":
			json.NewEncoder(w).Encode(map[string]any{"success": true, "user": map[string]any{"_id": "u1", "email": "ana@example.com"}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()

	tests := []struct {
		name       string
		healthDown bool
		wantErr    error
		wantPings  int32
	}{
		{"transient failure is verified again", false, nil, 1},
		{"backend down keeps the token", true, session.ErrBackendUnreachable, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &dropVerify{n: 1, healthDown: tt.healthDown}
			tokens := session.NewMemoryStore()
			tokens.SaveAuth(protocol.AuthResponse{AccessToken: "tok-abc"})

			a, err := New(testConfig(t, ts.URL), Options{Tokens: tokens, Transport: tr})
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			defer a.Close()

			user, err := a.RequireSession(context.Background())
			if tt.wantErr == nil {
				if err != nil || user.Email != "ana@example.com" {
					t.Fatalf("RequireSession = %+v, %v", user, err)
				}
			} else if !errors.Is(err, tt.wantErr) {
				t.Fatalf("RequireSession err = %v, want %v", err, tt.wantErr)
			}
			if got := tr.pings.Load(); got != tt.wantPings {
				t.Errorf("health checks = %d, want %d", got, tt.wantPings)
			}
			if tokens.AccessToken() != "tok-abc" {
				t.Error("token must be kept when the backend is unreachable")
			}
		})
	}
}
