package upstream

import "slices"

// CatalogModel is one entry of the upstream model catalog, reduced to
// the fields the proxy inspects.
type CatalogModel struct {
	ID   string    `json:"id"`
	Info ModelInfo `json:"info"`
}

// ModelInfo carries a model's declared capabilities.
type ModelInfo struct {
	Meta ModelMeta `json:"meta"`
}

// ModelMeta is the capability section of a catalog entry.
type ModelMeta struct {
	// Capabilities flags named features; "thinking" marks phased
	// chain-of-thought support.
	Capabilities map[string]bool `json:"capabilities"`

	// ChatTypes lists supported chat types ("t2t", "search", "t2i", ...).
	ChatTypes []string `json:"chat_type"`
}

// SynthesizeVariants expands the catalog with derived variant ids: a
// "-thinking" variant for models supporting phased reasoning, a
// "-search" variant for models whose chat types include search, and an
// "-image" variant for text-to-image capability. The base ids come
// first, each followed by its variants, so the list order is stable.
func SynthesizeVariants(models []CatalogModel) []string {
	var ids []string
	for _, m := range models {
		ids = append(ids, m.ID)

		if m.Info.Meta.Capabilities["thinking"] {
			ids = append(ids, m.ID+"-thinking")
		}
		if slices.Contains(m.Info.Meta.ChatTypes, "search") {
			ids = append(ids, m.ID+"-search")
		}
		if slices.Contains(m.Info.Meta.ChatTypes, "t2i") {
			ids = append(ids, m.ID+"-image")
		}
	}
	return ids
}
