package traceservice

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/contenox/chatstate/libbus"
)

// Consume streams records published on subject and passes each decoded
// record to handle until ctx is done. Undecodable payloads and unknown
// event types are skipped.
func Consume(ctx context.Context, bus libbus.Messenger, subject string, handle func(Record)) error {
	if subject == "" {
		subject = DefaultSubject
	}
	ch := make(chan []byte, 64)
	sub, err := bus.Stream(ctx, subject, ch)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", subject, err)
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return nil
		case data := <-ch:
			var rec Record
			if err := json.Unmarshal(data, &rec); err != nil {
				slog.Warn("dropping malformed trace record", "subject", subject, "error", err)
				continue
			}
			if !rec.Event.Type.Valid() {
				slog.Warn("dropping trace record with unknown event type", "subject", subject, "eventType", rec.Event.Type)
				continue
			}
			handle(rec)
		}
	}
}
