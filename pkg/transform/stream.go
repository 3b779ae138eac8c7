package transform

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/icheer/qwenchat2api/pkg/proxy/types"
	"github.com/icheer/qwenchat2api/pkg/upstream"
)

// doneMarker is the sentinel payload that terminates an SSE stream.
const doneMarker = "[DONE]"

// phaseStitcher rewrites the upstream's phased deltas into a single
// textual stream, wrapping chain-of-thought output in think tags. It
// carries the open/closed state across deltas so the tags are emitted
// exactly once per stream regardless of how content is fragmented.
type phaseStitcher struct {
	thinkOpen   bool
	thinkClosed bool
}

// stitch returns the text to emit for one delta, including any tag
// transitions the delta triggers.
func (s *phaseStitcher) stitch(phase, content string) string {
	if phase == upstream.PhaseThink {
		if content == "" {
			return ""
		}
		if !s.thinkOpen {
			s.thinkOpen = true
			return "<think>\n" + content
		}
		return content
	}

	var prefix string
	if s.thinkOpen && !s.thinkClosed {
		s.thinkClosed = true
		prefix = "\n</think>\n"
	}
	if prefix == "" && content == "" {
		return ""
	}
	return prefix + content
}

// closeDangling returns the closing tag if a think block is still
// open, and marks it closed.
func (s *phaseStitcher) closeDangling() string {
	if s.thinkOpen && !s.thinkClosed {
		s.thinkClosed = true
		return "\n</think>\n"
	}
	return ""
}

// lineBuffer accumulates raw stream bytes and yields complete lines.
// Bytes after the last newline stay buffered until the next write.
type lineBuffer struct {
	buf []byte
}

func (b *lineBuffer) write(chunk []byte) []string {
	b.buf = append(b.buf, chunk...)

	var lines []string
	for {
		i := bytes.IndexByte(b.buf, '\n')
		if i < 0 {
			return lines
		}
		line := strings.TrimSuffix(string(b.buf[:i]), "\r")
		b.buf = b.buf[i+1:]
		lines = append(lines, line)
	}
}

// dataPayload extracts the payload of an SSE data line, reporting
// whether the line was a data record at all.
func dataPayload(line string) (string, bool) {
	rest, ok := strings.CutPrefix(line, "data:")
	if !ok {
		return "", false
	}
	return strings.TrimSpace(rest), true
}

// Transducer converts the upstream's SSE byte stream into the outbound
// chunk format. It is stateful across calls and tolerates arbitrary
// fragmentation of the input, so callers can feed it whatever read
// sizes the transport produces. Not safe for concurrent use.
type Transducer struct {
	id      string
	model   string
	created int64
	logger  *slog.Logger

	lines    lineBuffer
	stitcher phaseStitcher

	// started tracks whether the role-bearing first chunk went out.
	started bool
	// done guards the terminal sentinel, emitted exactly once.
	done bool
}

// NewTransducer creates a transducer for one stream. The model name
// is the fallback when upstream events carry none.
func NewTransducer(model string) *Transducer {
	return &Transducer{
		id:      "chatcmpl-" + uuid.NewString(),
		model:   model,
		created: time.Now().Unix(),
		logger:  slog.Default().With("component", "transform.stream"),
	}
}

// Transform consumes one fragment of the upstream stream and returns
// the outbound bytes it produces, which may be empty.
func (t *Transducer) Transform(chunk []byte) []byte {
	var out []byte
	for _, line := range t.lines.write(chunk) {
		out = append(out, t.processLine(line)...)
	}
	return out
}

// Flush terminates the stream: it closes a dangling think block if the
// upstream ended mid-thought and emits the terminal sentinel. Safe to
// call after the upstream already sent its own sentinel.
func (t *Transducer) Flush() []byte {
	if t.done {
		return nil
	}
	return t.finish()
}

func (t *Transducer) processLine(line string) []byte {
	// Nothing may follow the terminal sentinel, even if the upstream
	// keeps sending records.
	if t.done {
		return nil
	}

	payload, ok := dataPayload(line)
	if !ok || payload == "" {
		return nil
	}
	if payload == doneMarker {
		return t.finish()
	}

	var event upstream.StreamEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		t.logger.Warn("skipping malformed stream event", "error", err)
		return nil
	}
	if len(event.Choices) == 0 {
		return nil
	}

	choice := event.Choices[0]
	content := t.stitcher.stitch(choice.Delta.Phase, choice.Delta.Content)
	if content == "" && choice.FinishReason == nil {
		return nil
	}

	model := event.Model
	if model == "" {
		model = t.model
	}
	return t.encodeChunk(model, content, choice.FinishReason)
}

// finish closes a dangling think block and emits the sentinel.
func (t *Transducer) finish() []byte {
	var out []byte
	if closing := t.stitcher.closeDangling(); closing != "" {
		out = append(out, t.encodeChunk(t.model, closing, nil)...)
	}
	out = append(out, []byte("data: "+doneMarker+"\n\n")...)
	t.done = true
	return out
}

func (t *Transducer) encodeChunk(model, content string, finishReason *string) []byte {
	delta := types.Delta{Content: content}
	if !t.started {
		delta.Role = "assistant"
		t.started = true
	}

	chunk := types.ChatCompletionStreamChunk{
		ID:      t.id,
		Object:  "chat.completion.chunk",
		Created: t.created,
		Model:   model,
		Choices: []types.StreamChoice{{
			Index:        0,
			Delta:        delta,
			FinishReason: finishReason,
		}},
	}

	encoded, err := json.Marshal(chunk)
	if err != nil {
		t.logger.Error("failed to encode stream chunk", "error", err)
		return nil
	}
	return []byte("data: " + string(encoded) + "\n\n")
}

// Aggregator consumes an upstream SSE stream and accumulates it into a
// single non-streaming completion, applying the same think-tag
// stitching the streaming path uses.
type Aggregator struct {
	model  string
	logger *slog.Logger

	lines    lineBuffer
	stitcher phaseStitcher

	content      strings.Builder
	finishReason string
	seenModel    string
}

// NewAggregator creates an aggregator. The model name is the fallback
// when upstream events carry none.
func NewAggregator(model string) *Aggregator {
	return &Aggregator{
		model:  model,
		logger: slog.Default().With("component", "transform.aggregate"),
	}
}

// Consume folds one fragment of the upstream stream into the
// accumulated completion.
func (a *Aggregator) Consume(chunk []byte) {
	for _, line := range a.lines.write(chunk) {
		payload, ok := dataPayload(line)
		if !ok || payload == "" || payload == doneMarker {
			continue
		}

		var event upstream.StreamEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			a.logger.Warn("skipping malformed stream event", "error", err)
			continue
		}
		if len(event.Choices) == 0 {
			continue
		}
		if event.Model != "" {
			a.seenModel = event.Model
		}

		choice := event.Choices[0]
		a.content.WriteString(a.stitcher.stitch(choice.Delta.Phase, choice.Delta.Content))
		if choice.FinishReason != nil {
			a.finishReason = *choice.FinishReason
		}
	}
}

// Response builds the completed response. Call once the upstream
// stream is fully consumed.
func (a *Aggregator) Response() *types.ChatCompletionResponse {
	content := a.content.String() + a.stitcher.closeDangling()

	model := a.seenModel
	if model == "" {
		model = a.model
	}
	finish := a.finishReason
	if finish == "" {
		finish = "stop"
	}

	return &types.ChatCompletionResponse{
		ID:      "chatcmpl-" + uuid.NewString(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []types.Choice{{
			Index: 0,
			Message: types.ResponseMessage{
				Role:    "assistant",
				Content: content,
			},
			FinishReason: finish,
		}},
	}
}
