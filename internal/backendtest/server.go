// Package backendtest runs a scripted in-process Valikoo backend for tests:
// the REST contract the client consumes plus a /ws endpoint tests can push
// realtime events through.
package backendtest

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

type Server struct {
	echo *echo.Echo
	srv  *httptest.Server

	mu            sync.Mutex
	conversations []map[string]interface{}
	messages      map[string][]map[string]interface{}
	messageDelay  map[string]time.Duration
	failSend      bool
	nextID        int

	sends     []map[string]interface{}
	readCalls []string

	conns        []*websocket.Conn
	clientFrames []map[string]interface{}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func New() *Server {
	s := &Server{
		messages:     make(map[string][]map[string]interface{}),
		messageDelay: make(map[string]time.Duration),
		nextID:       1000,
	}

	e := echo.New()
	e.HideBanner = true
	e.GET("/api/messages/conversations", s.listConversations)
	e.GET("/api/messages/conversations/:id", s.getMessages)
	e.POST("/api/messages/conversations", s.createConversation)
	e.POST("/api/messages/send", s.sendMessage)
	e.PATCH("/api/messages/:id/read", s.markRead)
	e.GET("/api/auth/me", s.me)
	e.GET("/ws", s.handleWS)

	s.echo = e
	s.srv = httptest.NewServer(e)
	return s
}

func (s *Server) URL() string {
	return s.srv.URL
}

func (s *Server) Close() {
	s.mu.Lock()
	conns := s.conns
	s.conns = nil
	s.mu.Unlock()
	for _, conn := range conns {
		conn.Close()
	}
	s.srv.Close()
}

// SetConversations scripts the conversation list exactly as the handler will
// serialize it, so tests can exercise shape quirks (_id keys, naive
// timestamps).
func (s *Server) SetConversations(convs ...map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations = convs
}

func (s *Server) SetMessages(conversationID string, msgs ...map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[conversationID] = msgs
}

// DelayMessages makes the history fetch for one conversation slow, for
// stale-response tests.
func (s *Server) DelayMessages(conversationID string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messageDelay[conversationID] = d
}

// FailSends makes POST /api/messages/send reject, simulating being offline.
func (s *Server) FailSends(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failSend = fail
}

// Sends returns the bodies of every send request received.
func (s *Server) Sends() []map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]interface{}, len(s.sends))
	copy(out, s.sends)
	return out
}

// ReadCalls returns the conversation ids marked read, in order.
func (s *Server) ReadCalls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.readCalls))
	copy(out, s.readCalls)
	return out
}

// Push sends one realtime event to every connected client.
func (s *Server) Push(event map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, conn := range s.conns {
		conn.WriteJSON(event)
	}
}

// DropConnections closes every realtime connection, forcing clients into
// their reconnect path.
func (s *Server) DropConnections() {
	s.mu.Lock()
	conns := s.conns
	s.conns = nil
	s.mu.Unlock()
	for _, conn := range conns {
		conn.Close()
	}
}

// ClientFrames returns the frames clients wrote (auth, read_receipt).
func (s *Server) ClientFrames() []map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]interface{}, len(s.clientFrames))
	copy(out, s.clientFrames)
	return out
}

// WaitForConnection blocks until a realtime client is connected or the
// timeout passes.
func (s *Server) WaitForConnection(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		s.mu.Lock()
		n := len(s.conns)
		s.mu.Unlock()
		if n > 0 {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func (s *Server) listConversations(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conversations == nil {
		return c.JSON(http.StatusOK, []map[string]interface{}{})
	}
	return c.JSON(http.StatusOK, s.conversations)
}

func (s *Server) getMessages(c echo.Context) error {
	id := c.Param("id")
	s.mu.Lock()
	delay := s.messageDelay[id]
	s.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	s.mu.Lock()
	msgs, ok := s.messages[id]
	s.mu.Unlock()
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"detail": "Conversation not found"})
	}
	if msgs == nil {
		msgs = []map[string]interface{}{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"conversationId": id,
		"messages":       msgs,
		"page":           1,
		"pageSize":       50,
		"total":          len(msgs),
	})
}

func (s *Server) createConversation(c echo.Context) error {
	var body map[string]interface{}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"detail": "invalid body"})
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := "conv-" + strconv.Itoa(s.nextID)
	conv := map[string]interface{}{
		"_id":          id,
		"participants": []string{"me", asString(body["recipient_id"])},
		"productId":    body["product_id"],
	}
	s.conversations = append(s.conversations, conv)
	s.messages[id] = []map[string]interface{}{}
	return c.JSON(http.StatusOK, conv)
}

func (s *Server) sendMessage(c echo.Context) error {
	var body map[string]interface{}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"detail": "invalid body"})
	}
	s.mu.Lock()
	if s.failSend {
		s.mu.Unlock()
		return c.JSON(http.StatusInternalServerError, map[string]string{"detail": "send unavailable"})
	}
	s.sends = append(s.sends, body)
	s.nextID++
	msg := map[string]interface{}{
		"_id":            "srv-" + strconv.Itoa(s.nextID),
		"conversationId": body["conversationId"],
		"senderId":       "me",
		"content":        body["content"],
		"type":           body["type"],
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"status":         "delivered",
	}
	convID := asString(body["conversationId"])
	s.messages[convID] = append(s.messages[convID], msg)
	s.mu.Unlock()
	return c.JSON(http.StatusOK, map[string]interface{}{"message": msg})
}

func (s *Server) markRead(c echo.Context) error {
	s.mu.Lock()
	s.readCalls = append(s.readCalls, c.Param("id"))
	s.mu.Unlock()
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) me(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"id":       "me",
		"fullName": "Test User",
		"email":    "me@example.com",
		"role":     "buyer",
	})
}

func (s *Server) handleWS(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.conns = append(s.conns, conn)
	s.mu.Unlock()

	go func() {
		for {
			var frame map[string]interface{}
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			s.mu.Lock()
			s.clientFrames = append(s.clientFrames, frame)
			s.mu.Unlock()
		}
	}()
	return nil
}

func asString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
