package transform

import "testing"

func TestParseModelName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantName string
		wantType string
		thinking bool
	}{
		{
			name:     "plain model",
			input:    "qwen-max",
			wantName: "qwen-max",
			wantType: ChatTypeText,
		},
		{
			name:     "thinking suffix",
			input:    "qwen-max-thinking",
			wantName: "qwen-max",
			wantType: ChatTypeText,
			thinking: true,
		},
		{
			name:     "search suffix",
			input:    "qwen-max-search",
			wantName: "qwen-max",
			wantType: ChatTypeSearch,
		},
		{
			name:     "image suffix",
			input:    "qwen-max-image",
			wantName: "qwen-max",
			wantType: ChatTypeImage,
		},
		{
			name:     "video suffix",
			input:    "qwen-max-video",
			wantName: "qwen-max",
			wantType: ChatTypeVideo,
		},
		{
			name:     "thinking combined with search",
			input:    "qwen-max-thinking-search",
			wantName: "qwen-max",
			wantType: ChatTypeSearch,
			thinking: true,
		},
		{
			name:     "empty string",
			input:    "",
			wantName: "",
			wantType: ChatTypeText,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseModelName(tt.input)
			if got.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", got.Name, tt.wantName)
			}
			if got.ChatType != tt.wantType {
				t.Errorf("ChatType = %q, want %q", got.ChatType, tt.wantType)
			}
			if got.ThinkingEnabled != tt.thinking {
				t.Errorf("ThinkingEnabled = %v, want %v", got.ThinkingEnabled, tt.thinking)
			}
		})
	}
}
