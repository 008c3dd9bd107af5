package traceservice_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/contenox/chatstate/libbus"
	"github.com/contenox/chatstate/libtracker"
	"github.com/contenox/chatstate/traceservice"
	"github.com/stretchr/testify/require"
)

func TestUnit_BusTracer_PublishesRecord(t *testing.T) {
	bus := libbus.NewInMem()
	defer bus.Close()

	ch := make(chan []byte, 1)
	_, err := bus.Stream(context.Background(), traceservice.DefaultSubject, ch)
	require.NoError(t, err)

	ctx := context.WithValue(context.Background(), libtracker.ContextKeyRequestID, "req-1")
	tracer := traceservice.NewBusTracer(bus, "")
	tracer.TraceMessage(ctx, "m1", traceservice.Event{Type: traceservice.EventModify, NextContent: "new"})

	select {
	case data := <-ch:
		var rec traceservice.Record
		require.NoError(t, json.Unmarshal(data, &rec))
		require.Equal(t, "m1", rec.MessageID)
		require.Equal(t, traceservice.EventModify, rec.Event.Type)
		require.Equal(t, "new", rec.Event.NextContent)
		require.Equal(t, "req-1", rec.RequestID)
	case <-time.After(2 * time.Second):
		t.Fatal("trace record not published")
	}
}

func TestUnit_BusTracer_DoesNotBlockOnClosedBus(t *testing.T) {
	bus := libbus.NewInMem()
	require.NoError(t, bus.Close())

	done := make(chan struct{})
	go func() {
		traceservice.NewBusTracer(bus, "x").TraceMessage(context.Background(), "m1", traceservice.Event{Type: traceservice.EventCopy})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("TraceMessage blocked")
	}
}

func TestUnit_LogTracer(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	traceservice.NewLogTracer(logger).TraceMessage(context.Background(), "m9", traceservice.Event{Type: traceservice.EventCopy})
	require.Contains(t, buf.String(), "message_id=m9")
	require.Contains(t, buf.String(), `event="Copy Message"`)
}

type recorder struct {
	mu  sync.Mutex
	ids []string
}

func (r *recorder) TraceMessage(_ context.Context, id string, _ traceservice.Event) {
	r.mu.Lock()
	r.ids = append(r.ids, id)
	r.mu.Unlock()
}

func TestUnit_Fanout(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	traceservice.Fanout{a, nil, b}.TraceMessage(context.Background(), "m", traceservice.Event{})
	require.Equal(t, []string{"m"}, a.ids)
	require.Equal(t, []string{"m"}, b.ids)
}

func TestUnit_Consume(t *testing.T) {
	bus := libbus.NewInMem()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan traceservice.Record, 64)
	errCh := make(chan error, 1)
	go func() {
		errCh <- traceservice.Consume(ctx, bus, "", func(rec traceservice.Record) { got <- rec })
	}()

	rec := traceservice.Record{MessageID: "m2", Event: traceservice.Event{Type: traceservice.EventTranslate}}
	data, err := json.Marshal(rec)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_ = bus.Publish(ctx, traceservice.DefaultSubject, data)
		select {
		case r := <-got:
			return r.MessageID == "m2"
		default:
			return false
		}
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-errCh)
}

func TestUnit_Consume_SkipsUnknownEventTypes(t *testing.T) {
	bus := libbus.NewInMem()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan traceservice.Record, 64)
	go func() {
		_ = traceservice.Consume(ctx, bus, "", func(rec traceservice.Record) { got <- rec })
	}()

	unknown, err := json.Marshal(traceservice.Record{MessageID: "m1", Event: traceservice.Event{Type: "Star Message"}})
	require.NoError(t, err)
	deleted, err := json.Marshal(traceservice.Record{MessageID: "m3", Event: traceservice.Event{Type: traceservice.EventDelete}})
	require.NoError(t, err)

	var first traceservice.Record
	require.Eventually(t, func() bool {
		_ = bus.Publish(ctx, traceservice.DefaultSubject, unknown)
		_ = bus.Publish(ctx, traceservice.DefaultSubject, deleted)
		select {
		case first = <-got:
			return true
		default:
			return false
		}
	}, 2*time.Second, 20*time.Millisecond)

	require.Equal(t, "m3", first.MessageID)
	require.Equal(t, traceservice.EventDelete, first.Event.Type)
	require.False(t, traceservice.EventType("Star Message").Valid())
}
