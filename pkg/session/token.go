// Package session persists the authentication token and checks whether the
// stored session is still accepted by the backend.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/docshelf/docshelf/pkg/protocol"
)

var (
	// ErrNoToken is returned when no token has been stored.
	ErrNoToken = errors.New("no stored session")
	// ErrExpired is returned when the stored access token has expired.
	ErrExpired = errors.New("session expired")
	// ErrUnauthenticated is returned when the backend rejects the token.
	ErrUnauthenticated = errors.New("session rejected by backend")
	// ErrBackendUnreachable is returned when the session cannot be verified
	// because the backend did not answer.
	ErrBackendUnreachable = errors.New("backend unreachable")
)

// Token holds a saved authentication token.
type Token struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	UserID       string    `json:"user_id,omitempty"`
	Email        string    `json:"email,omitempty"`
	Name         string    `json:"name,omitempty"`
	SavedAt      time.Time `json:"saved_at"`
}

// FromAuth builds a token from a login or register response.
func FromAuth(resp protocol.AuthResponse) *Token {
	return &Token{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		UserID:       resp.User.ID,
		Email:        resp.User.Email,
		Name:         resp.User.Name,
		SavedAt:      time.Now(),
	}
}

// ExpiresAt returns the exp claim of the access token. The signature is not
// checked; the backend stays the authority. The zero time means no exp claim
// could be read.
func (t *Token) ExpiresAt() time.Time {
	if t == nil || t.AccessToken == "" {
		return time.Time{}
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(t.AccessToken, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

// IsExpired returns true if the token expires within margin. Tokens without a
// readable exp claim never expire client-side.
func (t *Token) IsExpired(margin time.Duration) bool {
	exp := t.ExpiresAt()
	if exp.IsZero() {
		return false
	}
	return time.Now().Add(margin).After(exp)
}

// Store persists the session token.
type Store interface {
	Load() (*Token, error)
	Save(*Token) error
	Clear() error
	// AccessToken returns the current access token, or "" when none is stored.
	AccessToken() string
	// SaveAuth persists the tokens of a login or register response.
	SaveAuth(protocol.AuthResponse) error
}

// FileStore keeps the token in a JSON file readable only by the owner.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a store backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the token file location.
func (s *FileStore) Path() string { return s.path }

// Load reads the token file.
func (s *FileStore) Load() (*Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoToken
		}
		return nil, fmt.Errorf("read token file: %w", err)
	}
	var tok Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("parse token file: %w", err)
	}
	if tok.AccessToken == "" {
		return nil, ErrNoToken
	}
	return &tok, nil
}

// Save writes the token file with 0600 permissions.
func (s *FileStore) Save(tok *Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0600)
}

// Clear removes the token file.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove token file: %w", err)
	}
	return nil
}

// AccessToken reads the token from disk on every call so that a login in
// another process is picked up.
func (s *FileStore) AccessToken() string {
	tok, err := s.Load()
	if err != nil {
		return ""
	}
	return tok.AccessToken
}

// SaveAuth implements Store.
func (s *FileStore) SaveAuth(resp protocol.AuthResponse) error {
	return s.Save(FromAuth(resp))
}

// MemoryStore keeps the token in memory.
type MemoryStore struct {
	mu  sync.RWMutex
	tok *Token
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load() (*Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.tok == nil {
		return nil, ErrNoToken
	}
	cp := *s.tok
	return &cp, nil
}

func (s *MemoryStore) Save(tok *Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *tok
	s.tok = &cp
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tok = nil
	return nil
}

func (s *MemoryStore) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.tok == nil {
		return ""
	}
	return s.tok.AccessToken
}

func (s *MemoryStore) SaveAuth(resp protocol.AuthResponse) error {
	return s.Save(FromAuth(resp))
}
