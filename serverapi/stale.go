package serverapi

import (
	"context"
	"log/slog"

	"github.com/contenox/chatstate/chattypes"
	"github.com/contenox/chatstate/messageservice"
	"github.com/contenox/chatstate/topicservice"
)

// staleNotifier is the part of querycache.Coordinator the server needs.
type staleNotifier interface {
	RefreshMessages(ctx context.Context, sessionID, topicID string) error
	RefreshTopic(ctx context.Context, sessionID string) error
}

// Broadcast failures are logged only; the write already succeeded.
func notifyMessages(ctx context.Context, n staleNotifier, scope chattypes.Context) {
	if err := n.RefreshMessages(ctx, scope.SessionID, scope.TopicID); err != nil {
		slog.WarnContext(ctx, "stale broadcast failed", "sessionId", scope.SessionID, "topicId", scope.TopicID, "error", err)
	}
}

// scopeLister returns the scopes that currently hold messages.
type scopeLister func(ctx context.Context) ([]chattypes.Context, error)

type staleMessages struct {
	messageservice.Service
	notifier staleNotifier
	scopes   scopeLister
}

func withStaleMessages(svc messageservice.Service, n staleNotifier, scopes scopeLister) messageservice.Service {
	return &staleMessages{Service: svc, notifier: n, scopes: scopes}
}

func (s *staleMessages) CreateMessage(ctx context.Context, params chattypes.CreateMessageParams) (*messageservice.CreateResult, error) {
	res, err := s.Service.CreateMessage(ctx, params)
	if err == nil {
		notifyMessages(ctx, s.notifier, params.Context())
	}
	return res, err
}

func (s *staleMessages) UpdateMessage(ctx context.Context, id string, patch chattypes.Patch, scope chattypes.Context) (*messageservice.MutationResult, error) {
	res, err := s.Service.UpdateMessage(ctx, id, patch, scope)
	if err == nil {
		notifyMessages(ctx, s.notifier, scope)
	}
	return res, err
}

func (s *staleMessages) RemoveMessage(ctx context.Context, id string, scope chattypes.Context) (*messageservice.MutationResult, error) {
	res, err := s.Service.RemoveMessage(ctx, id, scope)
	if err == nil {
		notifyMessages(ctx, s.notifier, scope)
	}
	return res, err
}

func (s *staleMessages) RemoveMessages(ctx context.Context, ids []string, scope chattypes.Context) (*messageservice.MutationResult, error) {
	res, err := s.Service.RemoveMessages(ctx, ids, scope)
	if err == nil {
		notifyMessages(ctx, s.notifier, scope)
	}
	return res, err
}

func (s *staleMessages) RemoveMessagesByScope(ctx context.Context, scope chattypes.Context) error {
	err := s.Service.RemoveMessagesByScope(ctx, scope)
	if err == nil {
		notifyMessages(ctx, s.notifier, scope)
	}
	return err
}

// RemoveAllMessages snapshots the populated scopes first so every one of
// them can be broadcast once the table is empty.
func (s *staleMessages) RemoveAllMessages(ctx context.Context) error {
	scopes, listErr := s.scopes(ctx)
	if listErr != nil {
		slog.WarnContext(ctx, "listing scopes for stale broadcast failed", "error", listErr)
	}
	if err := s.Service.RemoveAllMessages(ctx); err != nil {
		return err
	}
	for _, scope := range scopes {
		notifyMessages(ctx, s.notifier, scope)
	}
	return nil
}

type staleTopics struct {
	topicservice.Service
	notifier staleNotifier
}

func withStaleTopics(svc topicservice.Service, n staleNotifier) topicservice.Service {
	return &staleTopics{Service: svc, notifier: n}
}

func (s *staleTopics) CreateTopic(ctx context.Context, sessionID, title string) (*chattypes.Topic, error) {
	topic, err := s.Service.CreateTopic(ctx, sessionID, title)
	if err == nil {
		if err := s.notifier.RefreshTopic(ctx, sessionID); err != nil {
			slog.WarnContext(ctx, "stale broadcast failed", "sessionId", sessionID, "error", err)
		}
	}
	return topic, err
}
