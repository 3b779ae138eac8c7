package transform

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/icheer/qwenchat2api/pkg/proxy/types"
	"github.com/icheer/qwenchat2api/pkg/upload"
	"github.com/icheer/qwenchat2api/pkg/upstream"
)

type fakeUploader struct {
	calls    int
	lastName string
	lastData []byte
	result   *upload.Result
	err      error
}

func (f *fakeUploader) Upload(_ context.Context, data []byte, filename, _ string) (*upload.Result, error) {
	f.calls++
	f.lastName = filename
	f.lastData = data
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func decodeRequest(t *testing.T, raw string) *types.ChatCompletionRequest {
	t.Helper()
	var req types.ChatCompletionRequest
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		t.Fatalf("failed to decode request fixture: %v", err)
	}
	return &req
}

func TestBuildChatRequestPlainText(t *testing.T) {
	tr := NewTransformer(&fakeUploader{})

	req := decodeRequest(t, `{
		"model": "qwen-max-thinking",
		"messages": [{"role": "user", "content": "hello"}]
	}`)

	got, err := tr.BuildChatRequest(context.Background(), req, "tok")
	if err != nil {
		t.Fatalf("BuildChatRequest failed: %v", err)
	}

	if got.Model != "qwen-max" {
		t.Errorf("Model = %q, want %q", got.Model, "qwen-max")
	}
	if !got.Stream || !got.IncrementalOutput {
		t.Error("expected stream and incremental_output enabled")
	}
	if got.ChatID == "" || got.SessionID == "" {
		t.Error("expected fresh chat and session identifiers")
	}
	if got.ChatID == got.SessionID {
		t.Error("chat and session identifiers must be distinct")
	}

	if len(got.Messages) != 1 {
		t.Fatalf("got %d messages, want 1", len(got.Messages))
	}
	msg := got.Messages[0]
	if msg.Content != "hello" {
		t.Errorf("Content = %v, want plain string", msg.Content)
	}
	if msg.ChatType != ChatTypeText {
		t.Errorf("ChatType = %q, want %q", msg.ChatType, ChatTypeText)
	}
	if !msg.FeatureConfig.ThinkingEnabled {
		t.Error("expected thinking enabled from model suffix")
	}
}

func TestBuildChatRequestTextOnlyArrayCollapses(t *testing.T) {
	tr := NewTransformer(&fakeUploader{})

	req := decodeRequest(t, `{
		"model": "qwen-max",
		"messages": [{"role": "user", "content": [
			{"type": "text", "text": "first"},
			{"type": "text", "text": "second"}
		]}]
	}`)

	got, err := tr.BuildChatRequest(context.Background(), req, "tok")
	if err != nil {
		t.Fatalf("BuildChatRequest failed: %v", err)
	}

	content, ok := got.Messages[0].Content.(string)
	if !ok {
		t.Fatalf("Content = %T, want collapsed string", got.Messages[0].Content)
	}
	if content != "first\nsecond" {
		t.Errorf("Content = %q, want %q", content, "first\nsecond")
	}
}

func TestBuildChatRequestInlineImageUploaded(t *testing.T) {
	payload := []byte("fake-png-bytes")
	up := &fakeUploader{result: &upload.Result{FileURL: "https://bucket/obj.png"}}
	tr := NewTransformer(up)

	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(payload)
	req := decodeRequest(t, `{
		"model": "qwen-max",
		"messages": [{"role": "user", "content": [
			{"type": "text", "text": "caption"},
			{"type": "image_url", "image_url": {"url": "`+dataURL+`"}}
		]}]
	}`)

	got, err := tr.BuildChatRequest(context.Background(), req, "tok")
	if err != nil {
		t.Fatalf("BuildChatRequest failed: %v", err)
	}

	if up.calls != 1 {
		t.Fatalf("uploader called %d times, want 1", up.calls)
	}
	if string(up.lastData) != string(payload) {
		t.Error("uploader did not receive the decoded payload")
	}
	if !strings.HasSuffix(up.lastName, ".png") {
		t.Errorf("filename = %q, want .png suffix", up.lastName)
	}

	parts, ok := got.Messages[0].Content.([]any)
	if !ok {
		t.Fatalf("Content = %T, want part list", got.Messages[0].Content)
	}
	if len(parts) != 2 {
		t.Fatalf("got %d parts, want 2", len(parts))
	}
	img, ok := parts[1].(upstream.ContentPart)
	if !ok || img.Type != "image" {
		t.Fatalf("second part = %#v, want image part", parts[1])
	}
	if img.Image != "https://bucket/obj.png" {
		t.Errorf("Image = %q, want uploaded URL", img.Image)
	}
}

func TestBuildChatRequestUploadFailureBecomesPlaceholder(t *testing.T) {
	up := &fakeUploader{err: errors.New("sts unavailable")}
	tr := NewTransformer(up)

	dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte("x"))
	req := decodeRequest(t, `{
		"model": "qwen-max",
		"messages": [{"role": "user", "content": [
			{"type": "image_url", "image_url": {"url": "`+dataURL+`"}}
		]}]
	}`)

	got, err := tr.BuildChatRequest(context.Background(), req, "tok")
	if err != nil {
		t.Fatalf("upload failure must not fail the conversion: %v", err)
	}

	content, ok := got.Messages[0].Content.(string)
	if !ok {
		t.Fatalf("Content = %T, want collapsed placeholder string", got.Messages[0].Content)
	}
	if !strings.Contains(content, "image upload failed") {
		t.Errorf("Content = %q, want visible placeholder", content)
	}
}

func TestBuildChatRequestRemoteImageBecomesMarkdown(t *testing.T) {
	up := &fakeUploader{}
	tr := NewTransformer(up)

	req := decodeRequest(t, `{
		"model": "qwen-max",
		"messages": [{"role": "user", "content": [
			{"type": "text", "text": "see"},
			{"type": "image_url", "image_url": {"url": "https://example.com/cat.png"}}
		]}]
	}`)

	got, err := tr.BuildChatRequest(context.Background(), req, "tok")
	if err != nil {
		t.Fatalf("BuildChatRequest failed: %v", err)
	}

	if up.calls != 0 {
		t.Errorf("uploader called %d times for a remote URL, want 0", up.calls)
	}
	content, ok := got.Messages[0].Content.(string)
	if !ok {
		t.Fatalf("Content = %T, want collapsed string", got.Messages[0].Content)
	}
	want := "see\n![image](https://example.com/cat.png)"
	if content != want {
		t.Errorf("Content = %q, want %q", content, want)
	}
}

func TestDecodeDataURL(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantErr  bool
		wantMIME string
	}{
		{
			name:     "valid png",
			input:    "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("p")),
			wantMIME: "image/png",
		},
		{
			name:    "missing payload",
			input:   "data:image/png;base64",
			wantErr: true,
		},
		{
			name:    "not base64 encoding",
			input:   "data:image/png;utf8,abc",
			wantErr: true,
		},
		{
			name:    "invalid base64",
			input:   "data:image/png;base64,!!!",
			wantErr: true,
		},
		{
			name:    "not a data url",
			input:   "https://example.com/a.png",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, mime, err := decodeDataURL(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("decodeDataURL failed: %v", err)
			}
			if mime != tt.wantMIME {
				t.Errorf("mime = %q, want %q", mime, tt.wantMIME)
			}
		})
	}
}
