package rest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"valikoo/internal/session"
	"valikoo/pkg/config"
	"valikoo/pkg/errors"
)

type recordedRequest struct {
	path          string
	authorization string
	contentType   string
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *[]recordedRequest) {
	t.Helper()

	var mu sync.Mutex
	var recorded []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		recorded = append(recorded, recordedRequest{
			path:          r.URL.Path,
			authorization: r.Header.Get("Authorization"),
			contentType:   r.Header.Get("Content-Type"),
		})
		mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	store, err := session.NewStore(filepath.Join(t.TempDir(), "session.json"))
	require.NoError(t, err)
	require.NoError(t, store.SetSession(session.Session{AccessToken: "tok", UserID: "me"}))

	cfg := &config.Config{APIBase: srv.URL, HTTPTimeout: 5}
	return NewClient(cfg, store), &recorded
}

func TestTokenAttachedExceptOnLogin(t *testing.T) {
	client, recorded := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/auth/login" {
			w.Write([]byte(`{"access_token":"fresh","token_type":"bearer","role":"buyer","email":"me@example.com"}`))
			return
		}
		w.Write([]byte(`{"id":"me","email":"me@example.com","role":"buyer"}`))
	})

	_, err := client.Me(context.Background())
	require.NoError(t, err)
	_, err = client.Login(context.Background(), "me@example.com", "secret", false)
	require.NoError(t, err)

	reqs := *recorded
	require.Len(t, reqs, 2)
	assert.Equal(t, "Bearer tok", reqs[0].authorization)
	assert.Empty(t, reqs[1].authorization, "login must not carry a stale token")
	assert.Equal(t, "application/x-www-form-urlencoded", reqs[1].contentType)
}

func TestServerErrorsBecomeTypedErrors(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/messages/conversations/missing":
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"detail":"Conversation not found"}`))
		case "/api/auth/me":
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":{"message":"token expired"}}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`boom`))
		}
	})

	_, err := client.Messages(context.Background(), "missing", 1, 50)
	assert.True(t, errors.Is(err, "NOT_FOUND"))
	assert.Contains(t, err.Error(), "Conversation not found")

	_, err = client.Me(context.Background())
	assert.True(t, errors.Is(err, "UNAUTHORIZED"))
	assert.Contains(t, err.Error(), "token expired")

	_, err = client.ListConversations(context.Background())
	assert.True(t, errors.Is(err, "SERVER_ERROR"))
}

func TestUnreachableServerIsNetworkError(t *testing.T) {
	store, err := session.NewStore(filepath.Join(t.TempDir(), "session.json"))
	require.NoError(t, err)
	client := NewClient(&config.Config{APIBase: "http://127.0.0.1:1", HTTPTimeout: 1}, store)

	_, err = client.ListConversations(context.Background())
	assert.True(t, errors.Is(err, "NETWORK_ERROR"))
}

func TestLoginWithoutTokenRejected(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"token_type":"bearer"}`))
	})
	_, err := client.Login(context.Background(), "me@example.com", "secret", true)
	assert.True(t, errors.Is(err, "DECODE_ERROR"))
}

func TestRegisterValidatesBeforeSending(t *testing.T) {
	client, recorded := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})

	err := client.Register(context.Background(), RegisterInput{
		FullName: "Sam",
		Email:    "not-an-email",
		Password: "short",
		Role:     "buyer",
	})
	assert.True(t, errors.Is(err, "BAD_REQUEST"))
	assert.Empty(t, *recorded, "invalid input must not reach the server")

	err = client.Register(context.Background(), RegisterInput{
		FullName: "Sam",
		Email:    "sam@example.com",
		Password: "longenough",
		Role:     "traveler",
	})
	assert.NoError(t, err)
	assert.Len(t, *recorded, 1)
}

func TestDecodeConversationShapes(t *testing.T) {
	bare := []byte(`[{"_id":"c1","unreadCount":2}]`)
	list, err := decodeConversations(bare)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "c1", list[0].ID)
	assert.Equal(t, 2, list[0].UnreadCount)

	wrapped := []byte(`{"conversations":[{"id":"c2"}]}`)
	list, err = decodeConversations(wrapped)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "c2", list[0].ID)

	_, err = decodeConversations([]byte(`"nope"`))
	assert.True(t, errors.Is(err, "DECODE_ERROR"))
}

func TestDecodeMessageEnvelope(t *testing.T) {
	envelope := []byte(`{"conversationId":"c1","messages":[{"_id":"m1","senderId":"u2","content":"hi"}],"page":1,"pageSize":50,"total":1}`)
	msgs, err := decodeMessages(envelope)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "m1", msgs[0].ID)

	bare := []byte(`[{"id":"m2","content":"yo"}]`)
	msgs, err = decodeMessages(bare)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "m2", msgs[0].ID)
}

func TestDecodeSentMessageShapes(t *testing.T) {
	wrapped := []byte(`{"message":{"_id":"srv-1","content":"hi"}}`)
	msg, err := decodeSentMessage(wrapped)
	require.NoError(t, err)
	assert.Equal(t, "srv-1", msg.ID)

	raw := []byte(`{"id":"srv-2","content":"hi"}`)
	msg, err = decodeSentMessage(raw)
	require.NoError(t, err)
	assert.Equal(t, "srv-2", msg.ID)

	_, err = decodeSentMessage([]byte(`{"message":{"content":"no id"}}`))
	assert.True(t, errors.Is(err, "DECODE_ERROR"))
}
