package session

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/docshelf/docshelf/internal/logging"
	"github.com/docshelf/docshelf/internal/metrics"
	"github.com/docshelf/docshelf/pkg/client"
	"github.com/docshelf/docshelf/pkg/protocol"
)

// Verifier asks the backend whether the current token is valid.
type Verifier interface {
	Verify(ctx context.Context) client.Result[protocol.VerifyResponse]
}

// Invalidator drops cached server state on logout.
type Invalidator interface {
	InvalidateAll() int
}

// Manager ties the token store to backend verification.
type Manager struct {
	store    Store
	verifier Verifier
	cache    Invalidator
}

// NewManager creates a session manager. cache may be nil.
func NewManager(store Store, verifier Verifier, cache Invalidator) *Manager {
	return &Manager{store: store, verifier: verifier, cache: cache}
}

// Store returns the underlying token store.
func (m *Manager) Store() Store {
	return m.store
}

// Check verifies the stored session. An expired or rejected token is
// cleared. When the backend cannot be reached the token is kept and
// ErrBackendUnreachable is returned; no session is assumed.
func (m *Manager) Check(ctx context.Context) (protocol.User, error) {
	tok, err := m.store.Load()
	if err != nil {
		metrics.RecordSessionCheck("no_token")
		return protocol.User{}, err
	}
	if tok.IsExpired(0) {
		metrics.RecordSessionCheck("expired")
		m.clear("expired")
		return protocol.User{}, ErrExpired
	}

	res := m.verifier.Verify(ctx)
	if !res.OK() {
		switch {
		case res.Err.Kind == client.KindNetwork:
			metrics.RecordSessionCheck("unreachable")
			return protocol.User{}, fmt.Errorf("%w: %v", ErrBackendUnreachable, res.Err)
		case res.Err.Status == http.StatusUnauthorized || res.Err.Status == http.StatusForbidden:
			metrics.RecordSessionCheck("rejected")
			m.clear("rejected")
			return protocol.User{}, ErrUnauthenticated
		default:
			metrics.RecordSessionCheck("error")
			return protocol.User{}, fmt.Errorf("verify session: %w", res.Err)
		}
	}
	if !res.Data.Success {
		metrics.RecordSessionCheck("rejected")
		m.clear("rejected")
		return protocol.User{}, ErrUnauthenticated
	}

	metrics.RecordSessionCheck("valid")
	return res.Data.User, nil
}

// Logout clears the stored token and invalidates every cached entry.
func (m *Manager) Logout() error {
	if err := m.store.Clear(); err != nil {
		return err
	}
	if m.cache != nil {
		n := m.cache.InvalidateAll()
		logging.Debug("Invalidated cache on logout", zap.Int("entries", n))
	}
	return nil
}

func (m *Manager) clear(reason string) {
	if err := m.store.Clear(); err != nil {
		logging.Warn("Failed to clear session", zap.String("reason", reason), zap.Error(err))
		return
	}
	logging.Info("Session cleared", zap.String("reason", reason))
}
