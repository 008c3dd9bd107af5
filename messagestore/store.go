package messagestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/contenox/chatstate/libdbexec"
)

// ErrNotFound wraps libdbexec.ErrNotFound so transports map it alike.
var ErrNotFound = fmt.Errorf("messagestore: %w", libdbexec.ErrNotFound)

type store struct {
	Exec libdbexec.Exec
}

// New creates a new message store instance.
func New(exec libdbexec.Exec) Store {
	return &store{Exec: exec}
}

// AppendMessage inserts msg at the end of its scope. Position is assigned
// here and written back to msg.
func (s *store) AppendMessage(ctx context.Context, msg *Message) error {
	now := time.Now().UTC()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}
	if msg.UpdatedAt.IsZero() {
		msg.UpdatedAt = msg.CreatedAt
	}

	var maxPos sql.NullInt64
	if err := s.Exec.QueryRowContext(ctx, `
		SELECT MAX(position)
		FROM chat_messages
		WHERE session_id = $1 AND topic_id = $2`,
		msg.SessionID, msg.TopicID,
	).Scan(&maxPos); err != nil {
		return fmt.Errorf("failed to read message position: %w", err)
	}
	msg.Position = maxPos.Int64 + 1

	_, err := s.Exec.ExecContext(ctx, `
		INSERT INTO chat_messages (id, session_id, topic_id, parent_id, role, position, payload, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		msg.ID, msg.SessionID, msg.TopicID, msg.ParentID, msg.Role,
		msg.Position, string(msg.Payload), msg.CreatedAt, msg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

// GetMessage loads a single message by id.
func (s *store) GetMessage(ctx context.Context, id string) (*Message, error) {
	row := s.Exec.QueryRowContext(ctx, `
		SELECT id, session_id, topic_id, parent_id, role, position, payload, created_at, updated_at
		FROM chat_messages
		WHERE id = $1`,
		id,
	)
	msg, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, libdbexec.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return msg, nil
}

// UpdateMessage rewrites payload, role and parent of an existing message.
func (s *store) UpdateMessage(ctx context.Context, msg *Message) error {
	if msg.UpdatedAt.IsZero() {
		msg.UpdatedAt = time.Now().UTC()
	}
	result, err := s.Exec.ExecContext(ctx, `
		UPDATE chat_messages
		SET payload = $2, role = $3, parent_id = $4, updated_at = $5
		WHERE id = $1`,
		msg.ID, string(msg.Payload), msg.Role, msg.ParentID, msg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update message: %w", err)
	}
	return checkRowsAffected(result)
}

// ListMessages lists a scope's messages in insertion order.
func (s *store) ListMessages(ctx context.Context, sessionID, topicID string) ([]*Message, error) {
	rows, err := s.Exec.QueryContext(ctx, `
		SELECT id, session_id, topic_id, parent_id, role, position, payload, created_at, updated_at
		FROM chat_messages
		WHERE session_id = $1 AND topic_id = $2
		ORDER BY position ASC, id ASC`,
		sessionID, topicID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	msgs := []*Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan messages: %w", err)
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return msgs, nil
}

// CountMessages counts a scope's messages.
func (s *store) CountMessages(ctx context.Context, sessionID, topicID string) (int, error) {
	var count int
	err := s.Exec.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM chat_messages
		WHERE session_id = $1 AND topic_id = $2`,
		sessionID, topicID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return count, nil
}

// DeleteMessages removes the given ids from one scope and reports how
// many rows went away. Ids outside the scope are ignored.
func (s *store) DeleteMessages(ctx context.Context, sessionID, topicID string, ids ...string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, 0, len(ids)+2)
	args = append(args, sessionID, topicID)
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+3)
		args = append(args, id)
	}
	stmt := fmt.Sprintf(`
		DELETE FROM chat_messages
		WHERE session_id = $1 AND topic_id = $2 AND id IN (%s)`,
		strings.Join(placeholders, ","),
	)
	result, err := s.Exec.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete messages: %w", err)
	}
	return rowsAffected(result)
}

// DeleteScope removes every message of one scope.
func (s *store) DeleteScope(ctx context.Context, sessionID, topicID string) (int64, error) {
	result, err := s.Exec.ExecContext(ctx, `
		DELETE FROM chat_messages
		WHERE session_id = $1 AND topic_id = $2`,
		sessionID, topicID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete scope: %w", err)
	}
	return rowsAffected(result)
}

// DeleteTopicMessages removes every message filed under topicID.
func (s *store) DeleteTopicMessages(ctx context.Context, topicID string) (int64, error) {
	result, err := s.Exec.ExecContext(ctx, `
		DELETE FROM chat_messages
		WHERE topic_id = $1`,
		topicID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete topic messages: %w", err)
	}
	return rowsAffected(result)
}

// DeleteAllMessages empties the message table.
func (s *store) DeleteAllMessages(ctx context.Context) error {
	if _, err := s.Exec.ExecContext(ctx, `DELETE FROM chat_messages`); err != nil {
		return fmt.Errorf("failed to delete all messages: %w", err)
	}
	return nil
}

// ListScopes returns every scope that has messages, sorted by session
// then topic.
func (s *store) ListScopes(ctx context.Context) ([]Scope, error) {
	rows, err := s.Exec.QueryContext(ctx, `
		SELECT DISTINCT session_id, topic_id
		FROM chat_messages
		ORDER BY session_id ASC, topic_id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query scopes: %w", err)
	}
	defer rows.Close()

	scopes := []Scope{}
	for rows.Next() {
		var scope Scope
		if err := rows.Scan(&scope.SessionID, &scope.TopicID); err != nil {
			return nil, fmt.Errorf("failed to scan scopes: %w", err)
		}
		scopes = append(scopes, scope)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return scopes, nil
}

// CreateTopic inserts a topic at the end of its session.
func (s *store) CreateTopic(ctx context.Context, topic *Topic) error {
	if topic.CreatedAt.IsZero() {
		topic.CreatedAt = time.Now().UTC()
	}
	var maxPos sql.NullInt64
	if err := s.Exec.QueryRowContext(ctx, `
		SELECT MAX(position)
		FROM chat_topics
		WHERE session_id = $1`,
		topic.SessionID,
	).Scan(&maxPos); err != nil {
		return fmt.Errorf("failed to read topic position: %w", err)
	}
	topic.Position = maxPos.Int64 + 1

	_, err := s.Exec.ExecContext(ctx, `
		INSERT INTO chat_topics (id, session_id, title, position, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		topic.ID, topic.SessionID, topic.Title, topic.Position, topic.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create topic: %w", err)
	}
	return nil
}

// GetTopic loads a topic by id.
func (s *store) GetTopic(ctx context.Context, id string) (*Topic, error) {
	var t Topic
	err := s.Exec.QueryRowContext(ctx, `
		SELECT id, session_id, title, position, created_at
		FROM chat_topics
		WHERE id = $1`,
		id,
	).Scan(&t.ID, &t.SessionID, &t.Title, &t.Position, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, libdbexec.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get topic: %w", err)
	}
	return &t, nil
}

// ListTopics lists a session's topics in creation order.
func (s *store) ListTopics(ctx context.Context, sessionID string) ([]*Topic, error) {
	rows, err := s.Exec.QueryContext(ctx, `
		SELECT id, session_id, title, position, created_at
		FROM chat_topics
		WHERE session_id = $1
		ORDER BY position ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query topics: %w", err)
	}
	defer rows.Close()

	topics := []*Topic{}
	for rows.Next() {
		var t Topic
		if err := rows.Scan(&t.ID, &t.SessionID, &t.Title, &t.Position, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan topics: %w", err)
		}
		topics = append(topics, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return topics, nil
}

// DeleteTopic deletes a topic row. Its messages are left to the caller.
func (s *store) DeleteTopic(ctx context.Context, id string) error {
	result, err := s.Exec.ExecContext(ctx, `
		DELETE FROM chat_topics
		WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete topic: %w", err)
	}
	return checkRowsAffected(result)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(row scanner) (*Message, error) {
	var msg Message
	var payload string
	if err := row.Scan(
		&msg.ID, &msg.SessionID, &msg.TopicID, &msg.ParentID, &msg.Role,
		&msg.Position, &payload, &msg.CreatedAt, &msg.UpdatedAt,
	); err != nil {
		return nil, err
	}
	msg.Payload = []byte(payload)
	return &msg, nil
}

func rowsAffected(result sql.Result) (int64, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

func checkRowsAffected(result sql.Result) error {
	n, err := rowsAffected(result)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
