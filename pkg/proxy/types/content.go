package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Content part type tags recognized on the inbound side.
const (
	// PartTypeText is a plain text part.
	PartTypeText = "text"

	// PartTypeImageURL is an image part; its URL is either a remote
	// http(s) URL or an inline data: URL with base64 payload.
	PartTypeImageURL = "image_url"
)

// ContentPart is one element of array-form message content. Parts with
// a type other than text or image_url keep their raw JSON and pass
// through the pipeline unchanged.
type ContentPart struct {
	// Type is the part's type tag.
	Type string `json:"type"`

	// Text is the payload of text parts.
	Text string `json:"text,omitempty"`

	// ImageURL is the payload of image_url parts.
	ImageURL *ImageURL `json:"image_url,omitempty"`

	// Raw holds the original JSON for unrecognized part types.
	Raw json.RawMessage `json:"-"`
}

// ImageURL is the image reference of an image_url part.
type ImageURL struct {
	// URL is a remote http(s) URL or a data: URL.
	URL string `json:"url"`
}

// IsInlineData reports whether the part carries inline base64 image
// data rather than a remote reference.
func (p *ContentPart) IsInlineData() bool {
	return p.Type == PartTypeImageURL && p.ImageURL != nil &&
		strings.HasPrefix(p.ImageURL.URL, "data:")
}

// MessageContent is the sum type of message content: either a plain
// string or an ordered sequence of typed parts. Exactly one arm is
// populated; IsArray reports which.
type MessageContent struct {
	// Text is the plain-string arm.
	Text string

	// Parts is the part-sequence arm.
	Parts []ContentPart

	// IsArray is true when Parts is the populated arm.
	IsArray bool
}

// UnmarshalJSON accepts either a JSON string or an array of parts.
func (m *MessageContent) UnmarshalJSON(data []byte) error {
	// Try the string arm first; it is the common case.
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		m.Text = text
		m.Parts = nil
		m.IsArray = false
		return nil
	}

	var rawParts []json.RawMessage
	if err := json.Unmarshal(data, &rawParts); err != nil {
		return fmt.Errorf("message content must be a string or an array of parts")
	}

	parts := make([]ContentPart, 0, len(rawParts))
	for i, raw := range rawParts {
		var part ContentPart
		if err := json.Unmarshal(raw, &part); err != nil {
			return fmt.Errorf("invalid content part at index %d: %w", i, err)
		}
		switch part.Type {
		case PartTypeText:
		case PartTypeImageURL:
			if part.ImageURL == nil || part.ImageURL.URL == "" {
				return fmt.Errorf("image_url part at index %d has no url", i)
			}
		default:
			// Unknown types pass through verbatim.
			part.Raw = raw
		}
		parts = append(parts, part)
	}

	m.Text = ""
	m.Parts = parts
	m.IsArray = true
	return nil
}

// MarshalJSON emits whichever arm is populated.
func (m MessageContent) MarshalJSON() ([]byte, error) {
	if !m.IsArray {
		return json.Marshal(m.Text)
	}

	out := make([]json.RawMessage, 0, len(m.Parts))
	for _, part := range m.Parts {
		if part.Raw != nil {
			out = append(out, part.Raw)
			continue
		}
		blob, err := json.Marshal(part)
		if err != nil {
			return nil, err
		}
		out = append(out, blob)
	}
	return json.Marshal(out)
}

// PlainText builds a plain-string MessageContent.
func PlainText(text string) MessageContent {
	return MessageContent{Text: text}
}
