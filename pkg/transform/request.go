package transform

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/icheer/qwenchat2api/pkg/proxy/types"
	"github.com/icheer/qwenchat2api/pkg/upload"
	"github.com/icheer/qwenchat2api/pkg/upstream"
)

// Uploader is the slice of the upload pipeline the transformer needs.
type Uploader interface {
	Upload(ctx context.Context, data []byte, filename, token string) (*upload.Result, error)
}

// Transformer restructures inbound chat requests into the upstream
// shape, uploading inline image data through the upload pipeline.
type Transformer struct {
	uploader Uploader
	logger   *slog.Logger

	// now is the clock, replaceable in tests.
	now func() time.Time
}

// NewTransformer creates a request transformer.
func NewTransformer(uploader Uploader) *Transformer {
	return &Transformer{
		uploader: uploader,
		logger:   slog.Default().With("component", "transform.request"),
		now:      time.Now,
	}
}

// BuildChatRequest converts an inbound request into the upstream body.
// The token authenticates any asset uploads the conversion needs.
// Upload and decode failures never fail the conversion; the affected
// part is replaced with a visible placeholder instead.
func (t *Transformer) BuildChatRequest(ctx context.Context, req *types.ChatCompletionRequest, token string) (*upstream.ChatRequest, error) {
	target := ParseModelName(req.Model)

	messages := make([]upstream.ChatMessage, 0, len(req.Messages))
	for _, msg := range req.Messages {
		content, err := t.convertContent(ctx, msg.Content, token)
		if err != nil {
			return nil, fmt.Errorf("failed to convert message content: %w", err)
		}

		messages = append(messages, upstream.ChatMessage{
			Role:     msg.Role,
			Content:  content,
			ChatType: target.ChatType,
			Extra:    map[string]any{},
			FeatureConfig: upstream.FeatureConfig{
				ThinkingEnabled: target.ThinkingEnabled,
			},
		})
	}

	return &upstream.ChatRequest{
		Stream:            true,
		IncrementalOutput: true,
		ChatID:            uuid.NewString(),
		ChatMode:          "normal",
		Model:             target.Name,
		ParentID:          nil,
		Messages:          messages,
		SessionID:         uuid.NewString(),
		Timestamp:         t.now().Unix(),
	}, nil
}

// convertContent converts one message's content. Plain-string content
// passes through; array content has each part converted, then the
// result is collapsed to the minimal form the upstream accepts.
func (t *Transformer) convertContent(ctx context.Context, content types.MessageContent, token string) (any, error) {
	if !content.IsArray {
		return content.Text, nil
	}

	converted := make([]any, 0, len(content.Parts))
	for _, part := range content.Parts {
		converted = append(converted, t.convertPart(ctx, part, token))
	}

	return collapseParts(converted), nil
}

// convertPart converts a single content part to its upstream form.
func (t *Transformer) convertPart(ctx context.Context, part types.ContentPart, token string) any {
	// Unrecognized part types pass through unchanged.
	if part.Raw != nil {
		return part.Raw
	}

	switch part.Type {
	case types.PartTypeText:
		return upstream.NewTextPart(part.Text)

	case types.PartTypeImageURL:
		if part.IsInlineData() {
			return t.uploadInlineImage(ctx, part.ImageURL.URL, token)
		}
		// The upstream has no remote-URL image type; downgrade the
		// reference to a Markdown image in text.
		return upstream.NewTextPart(fmt.Sprintf("![image](%s)", part.ImageURL.URL))

	default:
		return upstream.NewTextPart(part.Text)
	}
}

// uploadInlineImage decodes a data: URL and uploads its payload,
// returning an upstream image part on success and a visible text
// placeholder on any failure. Content is never silently dropped.
func (t *Transformer) uploadInlineImage(ctx context.Context, dataURL, token string) upstream.ContentPart {
	data, mimeType, err := decodeDataURL(dataURL)
	if err != nil {
		t.logger.Warn("malformed inline image", "error", err)
		return upstream.NewTextPart(fmt.Sprintf("[image omitted: %v]", err))
	}

	filename := uuid.NewString() + "." + extensionForMIME(mimeType)

	result, err := t.uploader.Upload(ctx, data, filename, token)
	if err != nil {
		t.logger.Warn("inline image upload failed",
			"filename", filename,
			"size", len(data),
			"error", err,
		)
		return upstream.NewTextPart(fmt.Sprintf("[image upload failed: %v]", err))
	}

	return upstream.NewImagePart(result.FileURL)
}

// decodeDataURL splits and decodes a base64 data: URL, returning the
// raw bytes and the declared MIME type.
func decodeDataURL(dataURL string) (data []byte, mimeType string, err error) {
	rest, ok := strings.CutPrefix(dataURL, "data:")
	if !ok {
		return nil, "", fmt.Errorf("not a data url")
	}

	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", fmt.Errorf("data url has no payload")
	}

	mimeType, encoding, _ := strings.Cut(meta, ";")
	if encoding != "base64" {
		return nil, "", fmt.Errorf("unsupported data url encoding %q", encoding)
	}

	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("invalid base64 payload: %w", err)
	}
	return data, mimeType, nil
}

// extensionForMIME derives a file extension from a declared image MIME
// type, defaulting to png for anything unrecognized.
func extensionForMIME(mimeType string) string {
	switch mimeType {
	case "image/jpeg", "image/jpg":
		return "jpg"
	case "image/png":
		return "png"
	default:
		return "png"
	}
}

// collapseParts reduces converted parts to the minimal form: if every
// part is text, the whole content collapses to a single plain string
// (the upstream requires string content for pure-text messages);
// otherwise adjacent text parts merge into single nodes with non-text
// parts left as separators.
func collapseParts(parts []any) any {
	allText := true
	for _, p := range parts {
		if !isTextPart(p) {
			allText = false
			break
		}
	}

	if allText {
		texts := make([]string, 0, len(parts))
		for _, p := range parts {
			texts = append(texts, p.(upstream.ContentPart).Text)
		}
		return strings.Join(texts, "\n")
	}

	merged := make([]any, 0, len(parts))
	for _, p := range parts {
		if isTextPart(p) && len(merged) > 0 && isTextPart(merged[len(merged)-1]) {
			prev := merged[len(merged)-1].(upstream.ContentPart)
			prev.Text = prev.Text + "\n" + p.(upstream.ContentPart).Text
			merged[len(merged)-1] = prev
			continue
		}
		merged = append(merged, p)
	}
	return merged
}

// isTextPart reports whether a converted part is an upstream text part.
func isTextPart(p any) bool {
	part, ok := p.(upstream.ContentPart)
	return ok && part.Type == "text"
}
