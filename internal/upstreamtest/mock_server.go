// Package upstreamtest provides a mock chat upstream for integration
// tests. It serves the chat completions and model catalog endpoints
// from configurable responses and records what it received.
package upstreamtest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/icheer/qwenchat2api/pkg/upstream"
)

// MockUpstream simulates the chat upstream service.
type MockUpstream struct {
	server *httptest.Server

	mu         sync.Mutex
	chatStatus int
	chatBody   string
	chatEvents []string
	models     []upstream.CatalogModel
	requests   map[string]int
	lastChat   []byte
}

// NewMockUpstream starts a mock upstream. Callers must Close it.
func NewMockUpstream() *MockUpstream {
	m := &MockUpstream{
		chatStatus: http.StatusOK,
		requests:   make(map[string]int),
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.handler))
	return m
}

// URL returns the mock upstream's base URL.
func (m *MockUpstream) URL() string {
	return m.server.URL
}

// Close shuts the mock upstream down.
func (m *MockUpstream) Close() {
	m.server.Close()
}

// SetChatStream configures the SSE payloads the chat endpoint emits,
// one `data:` event per payload, and resets any configured error.
func (m *MockUpstream) SetChatStream(payloads ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.chatStatus = http.StatusOK
	m.chatBody = ""
	m.chatEvents = payloads
}

// SetChatError makes the chat endpoint reject requests with the given
// status and body.
func (m *MockUpstream) SetChatError(status int, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.chatStatus = status
	m.chatBody = body
	m.chatEvents = nil
}

// SetModels configures the model catalog.
func (m *MockUpstream) SetModels(models ...upstream.CatalogModel) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.models = models
}

// RequestCount returns how many requests hit the given path.
func (m *MockUpstream) RequestCount(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.requests[path]
}

// LastChatRequest returns the body of the most recent chat request.
func (m *MockUpstream) LastChatRequest() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.lastChat
}

func (m *MockUpstream) handler(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.requests[r.URL.Path]++
	m.mu.Unlock()

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/api/chat/completions":
		m.serveChat(w, r)
	case r.Method == http.MethodGet && r.URL.Path == "/api/models":
		m.serveModels(w)
	default:
		http.NotFound(w, r)
	}
}

func (m *MockUpstream) serveChat(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	m.mu.Lock()
	m.lastChat = body
	status := m.chatStatus
	errBody := m.chatBody
	events := append([]string(nil), m.chatEvents...)
	m.mu.Unlock()

	if status < 200 || status >= 300 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprint(w, errBody)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	for _, event := range events {
		fmt.Fprintf(w, "data: %s\n\n", event)
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func (m *MockUpstream) serveModels(w http.ResponseWriter) {
	m.mu.Lock()
	models := append([]upstream.CatalogModel(nil), m.models...)
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(struct {
		Data []upstream.CatalogModel `json:"data"`
	}{Data: models})
}

// ThinkEvent builds a chat stream payload in the reasoning phase.
func ThinkEvent(content string) string {
	return deltaEvent(content, "think", "")
}

// AnswerEvent builds a chat stream payload in the answer phase.
func AnswerEvent(content string) string {
	return deltaEvent(content, "answer", "")
}

// FinishEvent builds a terminal chat stream payload.
func FinishEvent(reason string) string {
	return deltaEvent("", "answer", reason)
}

func deltaEvent(content, phase, finish string) string {
	encoded, _ := json.Marshal(content)
	if finish != "" {
		return fmt.Sprintf(`{"choices":[{"delta":{"content":%s,"phase":%q},"finish_reason":%q}],"model":"qwen-max"}`,
			encoded, phase, finish)
	}
	return fmt.Sprintf(`{"choices":[{"delta":{"role":"assistant","content":%s,"phase":%q}}],"model":"qwen-max"}`,
		encoded, phase)
}
