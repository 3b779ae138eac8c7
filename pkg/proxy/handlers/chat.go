package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/icheer/qwenchat2api/pkg/credential"
	"github.com/icheer/qwenchat2api/pkg/proxy"
	"github.com/icheer/qwenchat2api/pkg/proxy/types"
	"github.com/icheer/qwenchat2api/pkg/transform"
	"github.com/icheer/qwenchat2api/pkg/upstream"
)

// ChatUpstream is the slice of the upstream client the chat handler
// needs.
type ChatUpstream interface {
	ChatCompletions(ctx context.Context, body *upstream.ChatRequest, token, cookie string) (*http.Response, error)
}

// RequestBuilder converts inbound requests to the upstream shape.
type RequestBuilder interface {
	BuildChatRequest(ctx context.Context, req *types.ChatCompletionRequest, token string) (*upstream.ChatRequest, error)
}

// ChatMetrics records chat-serving telemetry. A nil value disables
// recording.
type ChatMetrics interface {
	RecordUpstreamError(class string)
	StreamStarted()
	StreamEnded()
}

// ChatHandler serves POST /v1/chat/completions. It selects
// credentials, converts the request, relays the upstream stream, and
// invalidates credentials the upstream rejects.
type ChatHandler struct {
	credentials *credential.Manager
	upstream    ChatUpstream
	builder     RequestBuilder
	metrics     ChatMetrics
	logger      *slog.Logger
}

// NewChatHandler creates the chat completions handler. metrics may be
// nil when telemetry is disabled.
func NewChatHandler(credentials *credential.Manager, up ChatUpstream, builder RequestBuilder, metrics ChatMetrics) *ChatHandler {
	return &ChatHandler{
		credentials: credentials,
		upstream:    up,
		builder:     builder,
		metrics:     metrics,
		logger:      slog.Default().With("component", "handlers.chat"),
	}
}

func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req types.ChatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		proxy.WriteErrorResponse(w, types.NewInvalidRequestError(
			"request body is not valid JSON", "", types.CodeInvalidJSON))
		return
	}
	if err := req.Validate(); err != nil {
		proxy.WriteErrorResponse(w, types.NewInvalidRequestError(
			err.Error(), "", types.CodeMissingField))
		return
	}

	token, err := h.credentials.SelectValid(ctx, credential.KindToken)
	if err != nil {
		proxy.WriteError(w, h.logger, err)
		return
	}

	// The cookie pool is best effort: requests go out without a
	// cookie when the pool is empty.
	cookie, err := h.credentials.SelectValid(ctx, credential.KindCookie)
	if err != nil && !errors.Is(err, credential.ErrNoCredential) {
		proxy.WriteError(w, h.logger, err)
		return
	}

	upReq, err := h.builder.BuildChatRequest(ctx, &req, token)
	if err != nil {
		proxy.WriteError(w, h.logger, err)
		return
	}

	resp, err := h.upstream.ChatCompletions(ctx, upReq, token, cookie)
	if err != nil {
		h.recordUpstreamError(err)
		h.invalidateOnRejection(ctx, err, token, cookie)
		proxy.WriteError(w, h.logger, err)
		return
	}
	defer resp.Body.Close()

	if req.Stream {
		h.relayStream(ctx, w, resp.Body, req.Model)
		return
	}
	h.aggregate(w, resp.Body, req.Model)
}

// recordUpstreamError counts an upstream failure by class.
func (h *ChatHandler) recordUpstreamError(err error) {
	if h.metrics == nil {
		return
	}
	h.metrics.RecordUpstreamError(upstreamErrorClass(err))
}

// upstreamErrorClass maps a failure to its metric class: "auth" for
// forwarded rejections, "server" for upstream 5xx, "transport" for
// everything else.
func upstreamErrorClass(err error) string {
	var authErr *upstream.AuthError
	if errors.As(err, &authErr) {
		return "auth"
	}
	var upErr *upstream.UpstreamError
	if errors.As(err, &upErr) && upErr.StatusCode >= 500 {
		return "server"
	}
	return "transport"
}

// invalidateOnRejection marks the credentials used by a rejected
// request invalid so later requests skip them.
func (h *ChatHandler) invalidateOnRejection(ctx context.Context, err error, token, cookie string) {
	var authErr *upstream.AuthError
	if !errors.As(err, &authErr) {
		return
	}

	if ierr := h.credentials.Invalidate(ctx, credential.KindToken, token); ierr != nil {
		h.logger.Error("failed to invalidate token", "error", ierr)
	}
	if cookie == "" {
		return
	}
	if ierr := h.credentials.Invalidate(ctx, credential.KindCookie, cookie); ierr != nil {
		h.logger.Error("failed to invalidate cookie", "error", ierr)
	}
}

// relayStream pipes the upstream SSE stream through the transducer to
// the client, flushing chunk by chunk. A client disconnect cancels the
// request context, which aborts the upstream read.
func (h *ChatHandler) relayStream(ctx context.Context, w http.ResponseWriter, body io.Reader, model string) {
	sse, ok := proxy.NewSSEWriter(w)
	if !ok {
		return
	}

	if h.metrics != nil {
		h.metrics.StreamStarted()
		defer h.metrics.StreamEnded()
	}

	transducer := transform.NewTransducer(model)
	buf := make([]byte, 4096)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			if werr := sse.Write(transducer.Transform(buf[:n])); werr != nil {
				h.logger.Debug("client disconnected mid-stream", "error", werr)
				return
			}
		}
		if err != nil {
			if err != io.EOF && ctx.Err() == nil {
				h.logger.Warn("upstream stream ended abnormally", "error", err)
				h.recordUpstreamError(err)
			}
			break
		}
	}

	if err := sse.Write(transducer.Flush()); err != nil {
		h.logger.Debug("client disconnected before stream end", "error", err)
	}
}

// aggregate consumes the whole upstream stream and responds with one
// non-streaming completion body.
func (h *ChatHandler) aggregate(w http.ResponseWriter, body io.Reader, model string) {
	agg := transform.NewAggregator(model)
	buf := make([]byte, 4096)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			agg.Consume(buf[:n])
		}
		if err != nil {
			if err != io.EOF {
				h.logger.Warn("upstream stream ended abnormally", "error", err)
				h.recordUpstreamError(err)
				proxy.WriteError(w, h.logger, &upstream.UpstreamError{
					StatusCode: http.StatusBadGateway,
					Message:    "upstream stream interrupted",
					Cause:      err,
				})
				return
			}
			break
		}
	}

	proxy.WriteJSON(w, http.StatusOK, agg.Response())
}
