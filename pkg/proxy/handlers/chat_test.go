package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/icheer/qwenchat2api/pkg/credential"
	"github.com/icheer/qwenchat2api/pkg/proxy/types"
	"github.com/icheer/qwenchat2api/pkg/upstream"
)

type fakeUpstream struct {
	lastToken  string
	lastCookie string
	lastBody   *upstream.ChatRequest
	response   string
	err        error
}

func (f *fakeUpstream) ChatCompletions(_ context.Context, body *upstream.ChatRequest, token, cookie string) (*http.Response, error) {
	f.lastBody = body
	f.lastToken = token
	f.lastCookie = cookie
	if f.err != nil {
		return nil, f.err
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader(f.response)),
	}, nil
}

type fakeBuilder struct {
	err error
}

func (f *fakeBuilder) BuildChatRequest(_ context.Context, req *types.ChatCompletionRequest, _ string) (*upstream.ChatRequest, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &upstream.ChatRequest{Model: req.Model, Stream: true}, nil
}

func newManager(t *testing.T) *credential.Manager {
	t.Helper()
	return credential.NewManager(credential.NewMemoryStore())
}

func mustInsert(t *testing.T, m *credential.Manager, kind credential.Kind, value string) {
	t.Helper()
	added, err := m.Insert(context.Background(), kind, value)
	if err != nil || !added {
		t.Fatalf("failed to insert %s credential: added=%v err=%v", kind, added, err)
	}
}

func chatBody(stream bool) string {
	body := `{"model":"qwen-max","messages":[{"role":"user","content":"hi"}]`
	if stream {
		body += `,"stream":true`
	}
	return body + `}`
}

func sseStream(payloads ...string) string {
	var b strings.Builder
	for _, p := range payloads {
		b.WriteString("data: " + p + "\n\n")
	}
	return b.String()
}

func decodeError(t *testing.T, body string) *types.ErrorResponse {
	t.Helper()
	var resp types.ErrorResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		t.Fatalf("error body is not valid JSON: %v\n%s", err, body)
	}
	return &resp
}

func TestChatHandlerRejectsInvalidJSON(t *testing.T) {
	h := NewChatHandler(newManager(t), &fakeUpstream{}, &fakeBuilder{}, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader("{not json")))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if got := decodeError(t, rec.Body.String()).Error.Code; got != types.CodeInvalidJSON {
		t.Errorf("code = %q, want %q", got, types.CodeInvalidJSON)
	}
}

func TestChatHandlerRejectsMissingModel(t *testing.T) {
	h := NewChatHandler(newManager(t), &fakeUpstream{}, &fakeBuilder{}, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/chat/completions",
		strings.NewReader(`{"messages":[{"role":"user","content":"hi"}]}`)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if got := decodeError(t, rec.Body.String()).Error.Code; got != types.CodeMissingField {
		t.Errorf("code = %q, want %q", got, types.CodeMissingField)
	}
}

func TestChatHandlerNoCredential(t *testing.T) {
	h := NewChatHandler(newManager(t), &fakeUpstream{}, &fakeBuilder{}, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(chatBody(true))))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if got := decodeError(t, rec.Body.String()).Error.Code; got != types.CodeNoCredential {
		t.Errorf("code = %q, want %q", got, types.CodeNoCredential)
	}
}

func TestChatHandlerStreamsConvertedResponse(t *testing.T) {
	m := newManager(t)
	mustInsert(t, m, credential.KindToken, "sk-streaming-token")
	mustInsert(t, m, credential.KindCookie, "cookie-value-abcdef")

	up := &fakeUpstream{response: sseStream(
		`{"choices":[{"delta":{"content":"thinking","phase":"think"}}],"model":"qwen-max"}`,
		`{"choices":[{"delta":{"content":"answer","phase":"answer"}}],"model":"qwen-max"}`,
		`{"choices":[{"delta":{"content":"","phase":"answer"},"finish_reason":"stop"}],"model":"qwen-max"}`,
		"[DONE]",
	)}
	h := NewChatHandler(m, up, &fakeBuilder{}, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(chatBody(true))))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}
	if up.lastToken != "sk-streaming-token" {
		t.Errorf("upstream token = %q", up.lastToken)
	}
	if up.lastCookie != "cookie-value-abcdef" {
		t.Errorf("upstream cookie = %q", up.lastCookie)
	}

	out := rec.Body.String()
	var content strings.Builder
	doneCount := 0
	for _, line := range strings.Split(out, "\n") {
		payload, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		if payload == "[DONE]" {
			doneCount++
			continue
		}
		var chunk types.ChatCompletionStreamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			t.Fatalf("invalid chunk %q: %v", payload, err)
		}
		content.WriteString(chunk.Choices[0].Delta.Content)
	}

	if want := "<think>\nthinking\n</think>\nanswer"; content.String() != want {
		t.Errorf("content = %q, want %q", content.String(), want)
	}
	if doneCount != 1 {
		t.Errorf("sentinel emitted %d times, want exactly 1", doneCount)
	}
}

func TestChatHandlerAggregatesWhenNotStreaming(t *testing.T) {
	m := newManager(t)
	mustInsert(t, m, credential.KindToken, "sk-aggregate-token")

	up := &fakeUpstream{response: sseStream(
		`{"choices":[{"delta":{"content":"hello ","phase":"answer"}}],"model":"qwen-max"}`,
		`{"choices":[{"delta":{"content":"world","phase":"answer"},"finish_reason":"stop"}],"model":"qwen-max"}`,
		"[DONE]",
	)}
	h := NewChatHandler(m, up, &fakeBuilder{}, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(chatBody(false))))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp types.ChatCompletionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if resp.Object != "chat.completion" {
		t.Errorf("object = %q", resp.Object)
	}
	if got := resp.Choices[0].Message.Content; got != "hello world" {
		t.Errorf("content = %q, want %q", got, "hello world")
	}
	if resp.Choices[0].FinishReason != "stop" {
		t.Errorf("finish reason = %q", resp.Choices[0].FinishReason)
	}
}

func TestChatHandlerInvalidatesRejectedCredentials(t *testing.T) {
	m := newManager(t)
	mustInsert(t, m, credential.KindToken, "sk-rejected-token")
	mustInsert(t, m, credential.KindCookie, "cookie-to-invalidate")

	up := &fakeUpstream{err: &upstream.AuthError{StatusCode: http.StatusUnauthorized, Body: "bad token"}}
	h := NewChatHandler(m, up, &fakeBuilder{}, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(chatBody(true))))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want upstream status forwarded", rec.Code)
	}

	ctx := context.Background()
	for _, kind := range []credential.Kind{credential.KindToken, credential.KindCookie} {
		valid, invalid, err := m.Counts(ctx, kind)
		if err != nil {
			t.Fatalf("Counts(%s) failed: %v", kind, err)
		}
		if valid != 0 || invalid != 1 {
			t.Errorf("%s pool: valid=%d invalid=%d, want 0/1", kind, valid, invalid)
		}
	}

	// The pools are now exhausted; the next request must get 503.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(chatBody(true))))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status after invalidation = %d, want 503", rec.Code)
	}
}

func TestChatHandlerUpstreamFailureIs502(t *testing.T) {
	m := newManager(t)
	mustInsert(t, m, credential.KindToken, "sk-surviving-token")

	up := &fakeUpstream{err: &upstream.UpstreamError{StatusCode: 500, Message: "boom"}}
	h := NewChatHandler(m, up, &fakeBuilder{}, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(chatBody(true))))

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}

	// Server-side failures are not credential failures.
	valid, invalid, err := m.Counts(context.Background(), credential.KindToken)
	if err != nil {
		t.Fatalf("Counts failed: %v", err)
	}
	if valid != 1 || invalid != 0 {
		t.Errorf("token pool: valid=%d invalid=%d, want 1/0", valid, invalid)
	}
}

// fakeChatMetrics counts the telemetry calls the handler makes.
type fakeChatMetrics struct {
	errorClasses   []string
	streamsStarted int
	streamsEnded   int
}

func (f *fakeChatMetrics) RecordUpstreamError(class string) {
	f.errorClasses = append(f.errorClasses, class)
}
func (f *fakeChatMetrics) StreamStarted() { f.streamsStarted++ }
func (f *fakeChatMetrics) StreamEnded()   { f.streamsEnded++ }

func TestChatHandlerRecordsUpstreamErrorClasses(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"auth rejection", &upstream.AuthError{StatusCode: 401, Body: "bad token"}, "auth"},
		{"upstream 5xx", &upstream.UpstreamError{StatusCode: 500, Message: "boom"}, "server"},
		{"transport failure", &upstream.UpstreamError{Message: "connection refused"}, "transport"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newManager(t)
			mustInsert(t, m, credential.KindToken, "sk-metrics-test-token")

			fm := &fakeChatMetrics{}
			h := NewChatHandler(m, &fakeUpstream{err: tt.err}, &fakeBuilder{}, fm)

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(chatBody(true))))

			if len(fm.errorClasses) != 1 || fm.errorClasses[0] != tt.want {
				t.Errorf("recorded classes = %v, want [%s]", fm.errorClasses, tt.want)
			}
		})
	}
}

func TestChatHandlerTracksActiveStreams(t *testing.T) {
	m := newManager(t)
	mustInsert(t, m, credential.KindToken, "sk-stream-gauge-token")

	up := &fakeUpstream{response: sseStream(
		`{"choices":[{"delta":{"content":"hi","phase":"answer"},"finish_reason":"stop"}],"model":"qwen-max"}`,
		"[DONE]",
	)}
	fm := &fakeChatMetrics{}
	h := NewChatHandler(m, up, &fakeBuilder{}, fm)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(chatBody(true))))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if fm.streamsStarted != 1 || fm.streamsEnded != 1 {
		t.Errorf("stream gauge calls = %d started / %d ended, want 1/1", fm.streamsStarted, fm.streamsEnded)
	}
	if len(fm.errorClasses) != 0 {
		t.Errorf("recorded classes = %v, want none on success", fm.errorClasses)
	}
}
