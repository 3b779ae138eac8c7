package transform

import "strings"

// Upstream chat types derived from model-identifier suffixes.
const (
	// ChatTypeText is plain text-to-text generation.
	ChatTypeText = "t2t"

	// ChatTypeSearch is search-augmented generation.
	ChatTypeSearch = "search"

	// ChatTypeImage is text-to-image generation.
	ChatTypeImage = "t2i"

	// ChatTypeVideo is text-to-video generation.
	ChatTypeVideo = "t2v"
)

// ModelTarget is the upstream target derived from an inbound model
// identifier.
type ModelTarget struct {
	// Name is the canonical upstream model name with all recognized
	// suffixes stripped.
	Name string

	// ChatType is the derived upstream chat type.
	ChatType string

	// ThinkingEnabled turns on chain-of-thought phases.
	ThinkingEnabled bool
}

// ParseModelName derives the upstream target from a model identifier by
// substring inspection. "-search", "-image" and "-video" select the
// chat type (at most one applies); "-thinking" sets the thinking flag
// without changing the chat type. All recognized suffixes are stripped
// from the canonical name.
func ParseModelName(model string) ModelTarget {
	target := ModelTarget{
		Name:     model,
		ChatType: ChatTypeText,
	}

	if strings.Contains(model, "-thinking") {
		target.ThinkingEnabled = true
		target.Name = strings.ReplaceAll(target.Name, "-thinking", "")
	}

	switch {
	case strings.Contains(model, "-search"):
		target.ChatType = ChatTypeSearch
		target.Name = strings.ReplaceAll(target.Name, "-search", "")
	case strings.Contains(model, "-image"):
		target.ChatType = ChatTypeImage
		target.Name = strings.ReplaceAll(target.Name, "-image", "")
	case strings.Contains(model, "-video"):
		target.ChatType = ChatTypeVideo
		target.Name = strings.ReplaceAll(target.Name, "-video", "")
	}

	return target
}
