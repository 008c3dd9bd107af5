package chattypes

import "time"

// Context addresses one (session, topic) scope. An empty TopicID is the
// session's default, topic-less conversation.
type Context struct {
	SessionID string `json:"sessionId"`
	TopicID   string `json:"topicId,omitempty"`
}

func (c Context) Key() string {
	return MessageMapKey(c.SessionID, c.TopicID)
}

// MessageMapKey renders the scope key used to index the message store.
func MessageMapKey(sessionID, topicID string) string {
	if topicID == "" {
		topicID = "null"
	}
	return sessionID + "_" + topicID
}

type Topic struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
}

// CreateMessageParams is the draft sent to the persistence service; the
// id is assigned there.
type CreateMessageParams struct {
	Role       Role           `json:"role"`
	Content    string         `json:"content"`
	SessionID  string         `json:"sessionId"`
	TopicID    string         `json:"topicId,omitempty"`
	ThreadID   string         `json:"threadId,omitempty"`
	ParentID   string         `json:"parentId,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	Tools      []ToolRef      `json:"tools,omitempty"`
	Files      []string       `json:"files,omitempty"`
	Error      *MessageError  `json:"error,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

func (p CreateMessageParams) Context() Context {
	return Context{SessionID: p.SessionID, TopicID: p.TopicID}
}

// Message builds the message a draft describes under the given id.
func (p CreateMessageParams) Message(id string, now time.Time) Message {
	m := Message{
		ID:         id,
		Role:       p.Role,
		Content:    p.Content,
		ParentID:   p.ParentID,
		ToolCallID: p.ToolCallID,
		Tools:      p.Tools,
		Files:      p.Files,
		Error:      p.Error,
		Metadata:   p.Metadata,
		SessionID:  p.SessionID,
		TopicID:    p.TopicID,
		ThreadID:   p.ThreadID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return m.Clone()
}
