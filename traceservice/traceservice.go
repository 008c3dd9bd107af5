// Package traceservice records user intent on messages (copy, edit, ...)
// without ever blocking or failing the action that triggered it.
package traceservice

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/contenox/chatstate/libbus"
	"github.com/contenox/chatstate/libtracker"
)

type EventType string

const (
	EventCopy       EventType = "Copy Message"
	EventModify     EventType = "Modify Message"
	EventDelete     EventType = "Delete Message"
	EventRegenerate EventType = "Regenerate Message"
	EventTranslate  EventType = "Translate Message"
)

func (t EventType) Valid() bool {
	switch t {
	case EventCopy, EventModify, EventDelete, EventRegenerate, EventTranslate:
		return true
	}
	return false
}

// DefaultSubject is where BusTracer publishes records.
const DefaultSubject = "chat.trace.message"

type Event struct {
	Type        EventType `json:"eventType"`
	NextContent string    `json:"nextContent,omitempty"`
}

// Record is the payload published for one traced action.
type Record struct {
	MessageID string    `json:"messageId"`
	Event     Event     `json:"event"`
	RequestID string    `json:"requestId,omitempty"`
	At        time.Time `json:"at"`
}

// Tracer is fire-and-forget: TraceMessage returns immediately and
// delivery failures are only logged.
type Tracer interface {
	TraceMessage(ctx context.Context, messageID string, ev Event)
}

func newRecord(ctx context.Context, messageID string, ev Event) Record {
	rec := Record{MessageID: messageID, Event: ev, At: time.Now().UTC()}
	if id, ok := ctx.Value(libtracker.ContextKeyRequestID).(string); ok {
		rec.RequestID = id
	}
	return rec
}

type Noop struct{}

func (Noop) TraceMessage(context.Context, string, Event) {}

type logTracer struct {
	logger *slog.Logger
}

// NewLogTracer writes each record as a structured log line.
func NewLogTracer(logger *slog.Logger) Tracer {
	if logger == nil {
		logger = slog.Default()
	}
	return &logTracer{logger: logger}
}

func (t *logTracer) TraceMessage(ctx context.Context, messageID string, ev Event) {
	rec := newRecord(ctx, messageID, ev)
	t.logger.InfoContext(ctx, "message trace",
		"message_id", rec.MessageID,
		"event", string(rec.Event.Type),
		"request_id", rec.RequestID,
	)
}

type busTracer struct {
	bus     libbus.Messenger
	subject string
	timeout time.Duration
}

// NewBusTracer publishes records on subject from a background goroutine.
func NewBusTracer(bus libbus.Messenger, subject string) Tracer {
	if subject == "" {
		subject = DefaultSubject
	}
	return &busTracer{bus: bus, subject: subject, timeout: 5 * time.Second}
}

func (t *busTracer) TraceMessage(ctx context.Context, messageID string, ev Event) {
	rec := newRecord(ctx, messageID, ev)
	data, err := json.Marshal(rec)
	if err != nil {
		slog.Warn("trace encode failed", "message_id", messageID, "error", err)
		return
	}
	// detached so the caller returning does not cancel delivery
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.timeout)
	go func() {
		defer cancel()
		if err := t.bus.Publish(pubCtx, t.subject, data); err != nil {
			slog.Warn("trace publish failed", "message_id", messageID, "subject", t.subject, "error", err)
		}
	}()
}

// Fanout sends every trace to each tracer.
type Fanout []Tracer

func (f Fanout) TraceMessage(ctx context.Context, messageID string, ev Event) {
	for _, t := range f {
		if t != nil {
			t.TraceMessage(ctx, messageID, ev)
		}
	}
}

var (
	_ Tracer = Noop{}
	_ Tracer = Fanout(nil)
)
