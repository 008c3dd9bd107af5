package chattypes

import "maps"

// Patch is a partial message update. Nil fields are left untouched; a
// non-nil Tools replaces the list even when it points at an empty slice.
type Patch struct {
	Content    *string        `json:"content,omitempty"`
	Tools      *[]ToolRef     `json:"tools,omitempty"`
	Error      *MessageError  `json:"error,omitempty"`
	ClearError bool           `json:"clearError,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

func ContentPatch(content string) Patch {
	return Patch{Content: &content}
}

// ToolsPatch always yields a present tools field, [] for an empty list.
func ToolsPatch(tools []ToolRef) Patch {
	if tools == nil {
		tools = []ToolRef{}
	}
	return Patch{Tools: &tools}
}

func (p Patch) IsEmpty() bool {
	return p.Content == nil && p.Tools == nil && p.Error == nil && !p.ClearError && len(p.Metadata) == 0
}

// Apply returns m with p applied. Metadata keys are merged.
func (p Patch) Apply(m Message) Message {
	m = m.Clone()
	if p.Content != nil {
		m.Content = *p.Content
	}
	if p.Tools != nil {
		m.Tools = make([]ToolRef, len(*p.Tools))
		copy(m.Tools, *p.Tools)
	}
	if p.ClearError {
		m.Error = nil
	}
	if p.Error != nil {
		e := *p.Error
		m.Error = &e
	}
	if len(p.Metadata) > 0 {
		if m.Metadata == nil {
			m.Metadata = make(map[string]any, len(p.Metadata))
		}
		maps.Copy(m.Metadata, p.Metadata)
	}
	return m
}
