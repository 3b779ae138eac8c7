package credential

import (
	"strings"
	"testing"
)

func TestMaskValue(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  string
	}{
		{
			name:  "short value unmasked",
			value: "sk-12345",
			want:  "sk-12345",
		},
		{
			name:  "empty value",
			value: "",
			want:  "",
		},
		{
			name:  "nine characters masked",
			value: "abcdefghi",
			want:  "abcd*fghi",
		},
		{
			name:  "medium value",
			value: "sk-abcdefghijkl",
			want:  "sk-a*******ijkl",
		},
		{
			name:  "long value capped at 20 mask chars",
			value: "sk-" + strings.Repeat("x", 60) + "tail",
			want:  "sk-x" + strings.Repeat("*", 20) + "tail",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MaskValue(tt.value)
			if got != tt.want {
				t.Errorf("MaskValue(%q) = %q, want %q", tt.value, got, tt.want)
			}
		})
	}
}

func TestMaskValue_NoInteriorLeak(t *testing.T) {
	value := "sk-secret-middle-material-here-end1"
	masked := MaskValue(value)

	if !strings.HasPrefix(masked, value[:4]) {
		t.Errorf("Masked value %q does not keep first 4 chars", masked)
	}
	if !strings.HasSuffix(masked, value[len(value)-4:]) {
		t.Errorf("Masked value %q does not keep last 4 chars", masked)
	}

	// No contiguous run of more than 4 original characters survives.
	interior := value[4 : len(value)-4]
	for i := 0; i+5 <= len(interior); i++ {
		if strings.Contains(masked, interior[i:i+5]) {
			t.Errorf("Masked value %q leaks interior substring %q", masked, interior[i:i+5])
		}
	}
}
