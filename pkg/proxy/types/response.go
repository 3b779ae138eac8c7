package types

// ChatCompletionResponse is the non-streaming completion body.
type ChatCompletionResponse struct {
	// ID is a unique identifier for the completion.
	ID string `json:"id"`

	// Object is always "chat.completion".
	Object string `json:"object"`

	// Created is the Unix timestamp of creation.
	Created int64 `json:"created"`

	// Model is the model that produced the completion.
	Model string `json:"model"`

	// Choices holds the generated message.
	Choices []Choice `json:"choices"`
}

// Choice is one completion choice.
type Choice struct {
	// Index is the choice's position.
	Index int `json:"index"`

	// Message is the generated message.
	Message ResponseMessage `json:"message"`

	// FinishReason explains why generation stopped.
	FinishReason string `json:"finish_reason"`
}

// ResponseMessage is the assistant message of a completion choice.
type ResponseMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionStreamChunk is one SSE chunk of a streaming response.
type ChatCompletionStreamChunk struct {
	// ID is stable across all chunks of one stream.
	ID string `json:"id"`

	// Object is always "chat.completion.chunk".
	Object string `json:"object"`

	// Created is the Unix timestamp of the chunk.
	Created int64 `json:"created"`

	// Model is the model name from the upstream payload, or a fallback.
	Model string `json:"model"`

	// Choices is a single-element list carrying the delta.
	Choices []StreamChoice `json:"choices"`
}

// StreamChoice is the choice of a stream chunk.
type StreamChoice struct {
	// Index is always 0; the proxy emits one choice per stream.
	Index int `json:"index"`

	// Delta is the incremental content.
	Delta Delta `json:"delta"`

	// FinishReason carries the upstream finish reason verbatim, or
	// null while the stream is running.
	FinishReason *string `json:"finish_reason"`
}

// Delta is the incremental payload of a stream chunk.
type Delta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// ModelList is the body of GET /v1/models.
type ModelList struct {
	// Object is always "list".
	Object string `json:"object"`

	// Data lists the available models.
	Data []ModelEntry `json:"data"`
}

// ModelEntry is one model of the models list.
type ModelEntry struct {
	// ID is the model identifier, including synthesized variants.
	ID string `json:"id"`

	// Object is always "model".
	Object string `json:"object"`

	// Created is the Unix timestamp the entry was synthesized.
	Created int64 `json:"created"`

	// OwnedBy names the upstream operator.
	OwnedBy string `json:"owned_by"`
}
