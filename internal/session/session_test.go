package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"

	"valikoo/internal/domain/entity"
)

func signedToken(t *testing.T, expiresAt time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   "me@example.com",
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	assert.NoError(t, err)
	return token
}

func TestStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	store, err := NewStore(path)
	assert.NoError(t, err)

	sess := Session{
		AccessToken: "tok",
		UserID:      "u1",
		Role:        entity.RoleBuyer,
		Email:       "me@example.com",
		User:        &entity.User{ID: "u1", Email: "me@example.com", Role: entity.RoleBuyer},
	}
	assert.NoError(t, store.SetSession(sess))
	assert.NoError(t, store.SetOverride("api_base", "http://localhost:9999"))

	reopened, err := NewStore(path)
	assert.NoError(t, err)
	assert.Equal(t, sess, reopened.Session())
	assert.Equal(t, "http://localhost:9999", reopened.Override("api_base"))
}

func TestClearKeepsOverrides(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "session.json"))
	assert.NoError(t, err)
	assert.NoError(t, store.SetSession(Session{AccessToken: "tok"}))
	assert.NoError(t, store.SetOverride("ws_base", "http://localhost:7777"))

	assert.NoError(t, store.Clear())
	assert.Empty(t, store.Session().AccessToken)
	assert.Equal(t, "http://localhost:7777", store.Override("ws_base"))
}

func TestCorruptFileStartsFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	assert.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	store, err := NewStore(path)
	assert.NoError(t, err)
	assert.Empty(t, store.Session().AccessToken)
}

func TestSessionValidity(t *testing.T) {
	assert.False(t, Session{}.Valid())

	live := Session{AccessToken: signedToken(t, time.Now().Add(time.Hour))}
	assert.True(t, live.Valid())

	expired := Session{AccessToken: signedToken(t, time.Now().Add(-time.Hour))}
	assert.False(t, expired.Valid())

	// Opaque tokens are accepted; the server decides.
	opaque := Session{AccessToken: "not-a-jwt"}
	assert.True(t, opaque.Valid())
}
