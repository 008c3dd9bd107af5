package messagestore

import (
	"context"
	"time"
)

// Message is a stored chat message row. Payload is the JSON encoded
// chattypes.Message; the other columns are kept for filtering and order.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	TopicID   string    `json:"topicId"`
	ParentID  string    `json:"parentId"`
	Role      string    `json:"role"`
	Position  int64     `json:"position"`
	Payload   []byte    `json:"payload"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Scope is a session/topic pair that holds at least one message.
type Scope struct {
	SessionID string `json:"sessionId"`
	TopicID   string `json:"topicId"`
}

// Topic is a stored topic row.
type Topic struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Title     string    `json:"title"`
	Position  int64     `json:"position"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store defines the data access interface for topics and messages. An
// empty topicID addresses the session's topic-less scope.
type Store interface {
	// Message operations
	AppendMessage(ctx context.Context, msg *Message) error
	GetMessage(ctx context.Context, id string) (*Message, error)
	UpdateMessage(ctx context.Context, msg *Message) error
	ListMessages(ctx context.Context, sessionID, topicID string) ([]*Message, error)
	CountMessages(ctx context.Context, sessionID, topicID string) (int, error)
	DeleteMessages(ctx context.Context, sessionID, topicID string, ids ...string) (int64, error)
	DeleteScope(ctx context.Context, sessionID, topicID string) (int64, error)
	DeleteTopicMessages(ctx context.Context, topicID string) (int64, error)
	DeleteAllMessages(ctx context.Context) error
	ListScopes(ctx context.Context) ([]Scope, error)

	// Topic operations
	CreateTopic(ctx context.Context, topic *Topic) error
	GetTopic(ctx context.Context, id string) (*Topic, error)
	ListTopics(ctx context.Context, sessionID string) ([]*Topic, error)
	DeleteTopic(ctx context.Context, id string) error
}
