package upstream

// ChatRequest is the upstream chat-completions body. The upstream
// protocol carries the chat type and thinking flag per message inside a
// feature-configuration sub-object, and requires fresh session and chat
// identifiers on every request.
type ChatRequest struct {
	// Stream requests an SSE response.
	Stream bool `json:"stream"`

	// IncrementalOutput requests delta-only chunks instead of
	// cumulative snapshots.
	IncrementalOutput bool `json:"incremental_output"`

	// ChatID is a fresh random conversation identifier.
	ChatID string `json:"chat_id"`

	// ChatMode is always "normal" for proxied traffic.
	ChatMode string `json:"chat_mode"`

	// Model is the canonical upstream model name (variant suffixes
	// stripped).
	Model string `json:"model"`

	// ParentID is the id of the previous turn; always nil here because
	// every proxied request is a fresh conversation.
	ParentID *string `json:"parent_id"`

	// Messages is the transformed conversation history.
	Messages []ChatMessage `json:"messages"`

	// SessionID is a fresh random session identifier.
	SessionID string `json:"session_id"`

	// Timestamp is the Unix time of the request.
	Timestamp int64 `json:"timestamp"`
}

// ChatMessage is one message in the upstream body. Content is a plain
// string for pure-text messages and a []ContentPart when multimedia is
// present; the upstream rejects array content for pure-text messages.
type ChatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`

	// ChatType mirrors the request-level chat type on each message.
	ChatType string `json:"chat_type"`

	// Extra is an opaque extension object the upstream expects to exist.
	Extra map[string]any `json:"extra"`

	// FeatureConfig carries the thinking flag.
	FeatureConfig FeatureConfig `json:"feature_config"`
}

// FeatureConfig is the feature-configuration sub-object of a message.
type FeatureConfig struct {
	// ThinkingEnabled turns on chain-of-thought phases.
	ThinkingEnabled bool `json:"thinking_enabled"`

	// OutputSchema selects a structured output mode; empty for chat.
	OutputSchema string `json:"output_schema,omitempty"`
}

// ContentPart is one element of array-form message content.
// Exactly one of Text or Image is set, matching Type.
type ContentPart struct {
	// Type is "text" or "image".
	Type string `json:"type"`

	// Text is the text payload for text parts.
	Text string `json:"text,omitempty"`

	// Image is the remote object URL for image parts.
	Image string `json:"image,omitempty"`
}

// NewTextPart builds a text content part.
func NewTextPart(text string) ContentPart {
	return ContentPart{Type: "text", Text: text}
}

// NewImagePart builds an image content part referencing an uploaded
// object URL.
func NewImagePart(url string) ContentPart {
	return ContentPart{Type: "image", Image: url}
}

// StreamEvent is the JSON payload of one upstream SSE data record.
type StreamEvent struct {
	Choices []StreamChoice `json:"choices"`
	Model   string         `json:"model"`
}

// StreamChoice is one choice in a stream event.
type StreamChoice struct {
	Delta        StreamDelta `json:"delta"`
	FinishReason *string     `json:"finish_reason"`
}

// StreamDelta is the incremental payload of a stream event. Phase
// distinguishes chain-of-thought output ("think") from the final
// answer ("answer").
type StreamDelta struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Phase   string `json:"phase"`
	Status  string `json:"status"`
}

// Stream phases emitted by the upstream.
const (
	PhaseThink  = "think"
	PhaseAnswer = "answer"
)
