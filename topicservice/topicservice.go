// Package topicservice manages the topics that partition a session's
// conversation.
package topicservice

import (
	"context"
	"fmt"

	"github.com/contenox/chatstate/apiframework"
	"github.com/contenox/chatstate/chattypes"
	libdb "github.com/contenox/chatstate/libdbexec"
	"github.com/contenox/chatstate/messagestore"
	"github.com/google/uuid"
)

var ErrMissingSession = fmt.Errorf("topicservice: session id is required: %w", apiframework.ErrMissingParameter)

type Service interface {
	CreateTopic(ctx context.Context, sessionID, title string) (*chattypes.Topic, error)
	RemoveTopic(ctx context.Context, id string) error
	ListTopics(ctx context.Context, sessionID string) ([]chattypes.Topic, error)
}

type service struct {
	dbInstance libdb.DBManager
}

func New(db libdb.DBManager) Service {
	return &service{dbInstance: db}
}

func (s *service) CreateTopic(ctx context.Context, sessionID, title string) (*chattypes.Topic, error) {
	if sessionID == "" {
		return nil, ErrMissingSession
	}
	row := &messagestore.Topic{
		ID:        "tpc_" + uuid.NewString(),
		SessionID: sessionID,
		Title:     title,
	}
	if err := messagestore.New(s.dbInstance.WithoutTransaction()).CreateTopic(ctx, row); err != nil {
		return nil, err
	}
	return toTopic(row), nil
}

// RemoveTopic deletes the topic together with the messages filed under it.
func (s *service) RemoveTopic(ctx context.Context, id string) error {
	tx, commit, release, err := s.dbInstance.WithTransaction(ctx)
	if err != nil {
		return err
	}
	defer release()

	store := messagestore.New(tx)
	if _, err := store.DeleteTopicMessages(ctx, id); err != nil {
		return err
	}
	if err := store.DeleteTopic(ctx, id); err != nil {
		return err
	}
	return commit(ctx)
}

func (s *service) ListTopics(ctx context.Context, sessionID string) ([]chattypes.Topic, error) {
	rows, err := messagestore.New(s.dbInstance.WithoutTransaction()).ListTopics(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	topics := make([]chattypes.Topic, 0, len(rows))
	for _, row := range rows {
		topics = append(topics, *toTopic(row))
	}
	return topics, nil
}

func toTopic(row *messagestore.Topic) *chattypes.Topic {
	return &chattypes.Topic{
		ID:        row.ID,
		SessionID: row.SessionID,
		Title:     row.Title,
		CreatedAt: row.CreatedAt,
	}
}

var _ Service = (*service)(nil)
