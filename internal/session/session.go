package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"valikoo/internal/domain/entity"
	"valikoo/pkg/errors"
)

// Session is the authenticated identity the web client used to scatter across
// localStorage keys (accessToken, userRole, userEmail, user). It is the single
// value object every consumer receives.
type Session struct {
	AccessToken string       `json:"accessToken,omitempty"`
	UserID      string       `json:"userId,omitempty"`
	Role        string       `json:"role,omitempty"`
	Email       string       `json:"email,omitempty"`
	User        *entity.User `json:"user,omitempty"`
}

// Valid reports whether the session can authenticate requests. Expiry is read
// from the token's claims without signature verification; verifying is the
// backend's job, the client only needs to know when to re-login.
func (s Session) Valid() bool {
	if s.AccessToken == "" {
		return false
	}
	claims := jwt.RegisteredClaims{}
	_, _, err := jwt.NewParser().ParseUnverified(s.AccessToken, &claims)
	if err != nil {
		// Opaque tokens still work until the server rejects them.
		return true
	}
	if claims.ExpiresAt == nil {
		return true
	}
	return claims.ExpiresAt.After(time.Now())
}

type storeFile struct {
	Session   Session                    `json:"session"`
	Overrides map[string]string          `json:"overrides,omitempty"`
	Drafts    map[string]json.RawMessage `json:"drafts,omitempty"`
}

// Store is the single read/write boundary over the on-disk session file. All
// mutation methods persist before returning.
type Store struct {
	path string
	mu   sync.Mutex
	data storeFile
}

// DefaultPath places the session file under the user config dir, next to
// where other CLIs keep theirs.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "valikoo", "session.json")
}

func NewStore(path string) (*Store, error) {
	if path == "" {
		path = DefaultPath()
	}
	s := &Store{path: path}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, errors.Internal("failed to read session file", err)
	}
	if err := json.Unmarshal(raw, &s.data); err != nil {
		// A corrupt session file means logging in again, not a dead client.
		return s, nil
	}
	return s, nil
}

func (s *Store) Session() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.Session
}

func (s *Store) SetSession(sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Session = sess
	return s.persist()
}

// Clear drops the session but keeps overrides and drafts, matching the web
// client's logout which removed only the auth keys.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Session = Session{}
	return s.persist()
}

// Override returns a dev override value ("api_base", "ws_base"), or "".
func (s *Store) Override(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data.Overrides == nil {
		return ""
	}
	return s.data.Overrides[key]
}

func (s *Store) SetOverride(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data.Overrides == nil {
		s.data.Overrides = make(map[string]string)
	}
	if value == "" {
		delete(s.data.Overrides, key)
	} else {
		s.data.Overrides[key] = value
	}
	return s.persist()
}

// Draft stores arbitrary JSON blobs, used for the product-listing draft the
// web client parked in localStorage while the form was incomplete.
func (s *Store) Draft(key string) (json.RawMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.data.Drafts[key]
	return d, ok
}

func (s *Store) SetDraft(key string, value json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data.Drafts == nil {
		s.data.Drafts = make(map[string]json.RawMessage)
	}
	if value == nil {
		delete(s.data.Drafts, key)
	} else {
		s.data.Drafts[key] = value
	}
	return s.persist()
}

func (s *Store) persist() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return errors.Internal("failed to create session dir", err)
	}
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return errors.Internal("failed to encode session", err)
	}
	if err := os.WriteFile(s.path, raw, 0o600); err != nil {
		return errors.Internal("failed to write session file", err)
	}
	return nil
}
