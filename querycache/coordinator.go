package querycache

import (
	"context"

	"github.com/contenox/chatstate/chattypes"
)

// Fetcher loads the authoritative list of a scope.
type Fetcher interface {
	GetMessages(ctx context.Context, scope chattypes.Context) ([]chattypes.Message, error)
}

// Coordinator serves cached fetches and invalidates the keys behind them.
type Coordinator struct {
	invalidator Invalidator
	cache       Cache
	fetcher     Fetcher
}

// NewCoordinator builds a coordinator. cache may be nil, in which case
// FetchMessages always reads through; invalidator receives every refresh.
func NewCoordinator(invalidator Invalidator, cache Cache, fetcher Fetcher) *Coordinator {
	return &Coordinator{invalidator: invalidator, cache: cache, fetcher: fetcher}
}

// RefreshMessages invalidates the session-mode and group-mode keys of the
// scope, in that order. The first error is returned.
func (c *Coordinator) RefreshMessages(ctx context.Context, sessionID, topicID string) error {
	for _, mode := range []Mode{ModeSession, ModeGroup} {
		if err := c.invalidator.Invalidate(ctx, FetchMessagesKey(sessionID, topicID, mode)); err != nil {
			return err
		}
	}
	return nil
}

func (c *Coordinator) RefreshTopic(ctx context.Context, sessionID string) error {
	return c.invalidator.Invalidate(ctx, FetchTopicsKey(sessionID))
}

// FetchMessages returns the cached list for the key or loads and caches it.
func (c *Coordinator) FetchMessages(ctx context.Context, sessionID, topicID string, mode Mode) ([]chattypes.Message, error) {
	key := FetchMessagesKey(sessionID, topicID, mode)
	if c.cache != nil {
		msgs, found, err := c.cache.Load(ctx, key)
		if err != nil {
			return nil, err
		}
		if found {
			return msgs, nil
		}
	}

	msgs, err := c.fetcher.GetMessages(ctx, chattypes.Context{SessionID: sessionID, TopicID: topicID})
	if err != nil {
		return nil, err
	}
	if c.cache != nil {
		if err := c.cache.Store(ctx, key, msgs); err != nil {
			return nil, err
		}
	}
	return msgs, nil
}
