package server

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/divyanshmehta355/aurahub-notify/internal/config"
	"github.com/divyanshmehta355/aurahub-notify/internal/hub"
	"github.com/divyanshmehta355/aurahub-notify/internal/logger"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	_ = logger.Initialize("error", "")
	os.Exit(m.Run())
}

type pushCall struct {
	recipientID string
	payload     []byte
}

// fakePusher records dispatch calls so tests can assert on side effects
type fakePusher struct {
	mu    sync.Mutex
	calls []pushCall
	err   error
}

func (f *fakePusher) Push(_ context.Context, recipientID string, payload []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, pushCall{recipientID: recipientID, payload: payload})
	if f.err != nil {
		return 0, f.err
	}
	return 1, nil
}

func (f *fakePusher) Calls() []pushCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]pushCall(nil), f.calls...)
}

func testConfig() *config.Config {
	return &config.Config{
		Port:           "0",
		AllowedOrigins: []string{"*"},
	}
}

func postNotify(t *testing.T, s *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/notify", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

const validNotification = `{
	"id": "n1",
	"type": "like",
	"sender": {"username": "alice", "avatar": "https://img.example/a.png"},
	"video": {"title": "Demo"},
	"isRead": false,
	"createdAt": "2025-01-01T00:00:00Z"
}`

func TestNotifyValid(t *testing.T) {
	pusher := &fakePusher{}
	s := New(testConfig(), hub.New(), pusher)

	w := postNotify(t, s, `{"recipientId": "u1", "notification": `+validNotification+`}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	calls := pusher.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "u1", calls[0].recipientID)
	assert.JSONEq(t, validNotification, string(calls[0].payload))
}

func TestNotifyMissingRecipient(t *testing.T) {
	pusher := &fakePusher{}
	s := New(testConfig(), hub.New(), pusher)

	for _, body := range []string{
		`{"notification": ` + validNotification + `}`,
		`{"recipientId": "", "notification": ` + validNotification + `}`,
		`{"recipientId": "   ", "notification": ` + validNotification + `}`,
	} {
		w := postNotify(t, s, body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}

	// Rejected before any dispatch was attempted
	assert.Empty(t, pusher.Calls())
}

func TestNotifyMalformedBody(t *testing.T) {
	pusher := &fakePusher{}
	s := New(testConfig(), hub.New(), pusher)

	w := postNotify(t, s, `{"recipientId": "u1", "notification"`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, pusher.Calls())
}

func TestNotifyInvalidNotification(t *testing.T) {
	pusher := &fakePusher{}
	s := New(testConfig(), hub.New(), pusher)

	cases := map[string]string{
		"missing payload": `{"recipientId": "u1"}`,
		"missing id":      `{"recipientId": "u1", "notification": {"type": "like", "sender": {"username": "a"}, "createdAt": "2025-01-01T00:00:00Z"}}`,
		"unknown type":    `{"recipientId": "u1", "notification": {"id": "n1", "type": "poke", "sender": {"username": "a"}, "createdAt": "2025-01-01T00:00:00Z"}}`,
		"missing sender":  `{"recipientId": "u1", "notification": {"id": "n1", "type": "like", "sender": {}, "createdAt": "2025-01-01T00:00:00Z"}}`,
	}

	for name, body := range cases {
		w := postNotify(t, s, body)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code, name)
	}
	assert.Empty(t, pusher.Calls())
}

func TestNotifyPushErrorStillAcknowledged(t *testing.T) {
	pusher := &fakePusher{err: assert.AnError}
	s := New(testConfig(), hub.New(), pusher)

	// Fire and forget: the record is already durable, the caller never retries
	w := postNotify(t, s, `{"recipientId": "u1", "notification": `+validNotification+`}`)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealth(t *testing.T) {
	s := New(testConfig(), hub.New(), &fakePusher{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestWSRequiresUserID(t *testing.T) {
	s := New(testConfig(), hub.New(), &fakePusher{})

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "userId")
}
