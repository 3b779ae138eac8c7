package types

import "fmt"

// ChatCompletionRequest is the body of POST /v1/chat/completions.
type ChatCompletionRequest struct {
	// Model is the requested model identifier, possibly carrying
	// variant suffixes ("-thinking", "-search", "-image", "-video").
	Model string `json:"model"`

	// Messages is the conversation history.
	Messages []Message `json:"messages"`

	// Stream enables server-sent events streaming.
	Stream bool `json:"stream,omitempty"`
}

// Message is one message of the conversation.
type Message struct {
	// Role is the author of the message ("system", "user", "assistant").
	Role string `json:"role"`

	// Content is the message content, plain string or typed parts.
	Content MessageContent `json:"content"`
}

// Validate checks the request for required fields.
func (r *ChatCompletionRequest) Validate() error {
	if r.Model == "" {
		return fmt.Errorf("model is required")
	}
	if len(r.Messages) == 0 {
		return fmt.Errorf("messages cannot be empty")
	}
	for i, msg := range r.Messages {
		if msg.Role == "" {
			return fmt.Errorf("message at index %d has no role", i)
		}
	}
	return nil
}
