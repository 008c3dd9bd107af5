// Package chattypes holds the chat message model shared by the in-memory
// store, the cascade resolver and the persistence services.
package chattypes

import (
	"maps"
	"slices"
	"time"
)

type Role string

const (
	RoleUser           Role = "user"
	RoleAssistant      Role = "assistant"
	RoleTool           Role = "tool"
	RoleAssistantGroup Role = "assistantGroup"
	RoleSystem         Role = "system"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleTool, RoleAssistantGroup, RoleSystem:
		return true
	}
	return false
}

// Kind is the variant tag of a message. Only groups carry children and
// only leaves carry tool references.
type Kind int

const (
	KindLeaf Kind = iota
	KindGroup
	KindTool
)

func (k Kind) String() string {
	switch k {
	case KindGroup:
		return "group"
	case KindTool:
		return "tool"
	default:
		return "leaf"
	}
}

// ToolResult points at the persisted tool message holding a call's output.
type ToolResult struct {
	ID      string `json:"id"`
	Content string `json:"content,omitempty"`
}

// ToolRef is one tool call issued by an assistant message.
type ToolRef struct {
	ID         string      `json:"id"`
	APIName    string      `json:"apiName,omitempty"`
	Identifier string      `json:"identifier,omitempty"`
	Arguments  string      `json:"arguments,omitempty"`
	Type       string      `json:"type,omitempty"`
	Result     *ToolResult `json:"result,omitempty"`
}

type MessageError struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Body    any    `json:"body,omitempty"`
}

// Message is a chat message. Tools is only meaningful for leaf messages,
// Children only for assistantGroup containers.
type Message struct {
	ID         string         `json:"id"`
	Role       Role           `json:"role"`
	Content    string         `json:"content"`
	ParentID   string         `json:"parentId,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	Tools      []ToolRef      `json:"tools,omitempty"`
	Children   []Message      `json:"children,omitempty"`
	Error      *MessageError  `json:"error,omitempty"`
	Files      []string       `json:"files,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	SessionID  string         `json:"sessionId"`
	TopicID    string         `json:"topicId,omitempty"`
	ThreadID   string         `json:"threadId,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

func (m Message) Kind() Kind {
	switch m.Role {
	case RoleAssistantGroup:
		return KindGroup
	case RoleTool:
		return KindTool
	default:
		return KindLeaf
	}
}

// Clone returns a copy that shares no slices or maps with m.
func (m Message) Clone() Message {
	c := m
	if m.Tools != nil {
		c.Tools = make([]ToolRef, len(m.Tools))
		for i, t := range m.Tools {
			c.Tools[i] = t
			if t.Result != nil {
				r := *t.Result
				c.Tools[i].Result = &r
			}
		}
	}
	if m.Children != nil {
		c.Children = CloneMessages(m.Children)
	}
	if m.Error != nil {
		e := *m.Error
		c.Error = &e
	}
	c.Files = slices.Clone(m.Files)
	c.Metadata = maps.Clone(m.Metadata)
	return c
}

// CloneMessages deep-copies a list; nil stays nil.
func CloneMessages(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}

// Find looks id up among msgs and, recursively, their children.
func Find(msgs []Message, id string) (Message, bool) {
	for _, m := range msgs {
		if m.ID == id {
			return m, true
		}
		if m.Kind() == KindGroup {
			if found, ok := Find(m.Children, id); ok {
				return found, true
			}
		}
	}
	return Message{}, false
}
