package querycache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/contenox/chatstate/libbus"
)

// StaleSubject carries keys other processes should drop.
const StaleSubject = "chat.cache.stale"

// BusInvalidator broadcasts stale keys instead of deleting anything
// itself; pair it with ListenStale in the receiving process.
type BusInvalidator struct {
	bus     libbus.Messenger
	subject string
}

func NewBusInvalidator(bus libbus.Messenger, subject string) *BusInvalidator {
	if subject == "" {
		subject = StaleSubject
	}
	return &BusInvalidator{bus: bus, subject: subject}
}

func (b *BusInvalidator) Invalidate(ctx context.Context, key Key) error {
	data, err := json.Marshal(key)
	if err != nil {
		return err
	}
	if err := b.bus.Publish(ctx, b.subject, data); err != nil {
		return fmt.Errorf("querycache: broadcast %s: %w", key, err)
	}
	return nil
}

// ListenStale applies every broadcast key to target until ctx is done.
func ListenStale(ctx context.Context, bus libbus.Messenger, subject string, target Invalidator) error {
	if subject == "" {
		subject = StaleSubject
	}
	ch := make(chan []byte, 64)
	sub, err := bus.Stream(ctx, subject, ch)
	if err != nil {
		return fmt.Errorf("querycache: subscribe %s: %w", subject, err)
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return nil
		case data := <-ch:
			var key Key
			if err := json.Unmarshal(data, &key); err != nil || key.validate() != nil {
				slog.Warn("dropping malformed stale key", "subject", subject, "payload", string(data))
				continue
			}
			if err := target.Invalidate(ctx, key); err != nil {
				slog.Warn("stale key invalidation failed", "key", key.String(), "error", err)
			}
		}
	}
}
