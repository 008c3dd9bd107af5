package libbus

import (
	"context"
	"fmt"
	"sync"
)

// InMem is a process-local Messenger. Stream subscribers receive every
// Publish on their subject; Request calls the handler registered with Serve.
type InMem struct {
	mu       sync.RWMutex
	closed   bool
	streams  map[string][]chan<- []byte
	handlers map[string]Handler
}

// NewInMem returns an empty in-memory bus.
func NewInMem() *InMem {
	return &InMem{
		streams:  make(map[string][]chan<- []byte),
		handlers: make(map[string]Handler),
	}
}

func (b *InMem) Publish(ctx context.Context, subject string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrConnectionClosed
	}
	subs := append([]chan<- []byte(nil), b.streams[subject]...)
	b.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- data:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (b *InMem) Stream(ctx context.Context, subject string, ch chan<- []byte) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrConnectionClosed
	}
	b.streams[subject] = append(b.streams[subject], ch)
	b.mu.Unlock()

	sub := &streamSub{bus: b, subject: subject, ch: ch}
	go func() {
		<-ctx.Done()
		_ = sub.Unsubscribe()
	}()
	return sub, nil
}

func (b *InMem) Request(ctx context.Context, subject string, data []byte) ([]byte, error) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return nil, ErrConnectionClosed
	}
	handler := b.handlers[subject]
	b.mu.RUnlock()

	if handler == nil {
		return nil, ErrRequestTimeout
	}
	reply, err := handler(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrHandlerFailed, err)
	}
	return reply, nil
}

func (b *InMem) Serve(ctx context.Context, subject string, handler Handler) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrConnectionClosed
	}
	b.handlers[subject] = handler
	b.mu.Unlock()

	sub := &serveSub{bus: b, subject: subject}
	go func() {
		<-ctx.Done()
		_ = sub.Unsubscribe()
	}()
	return sub, nil
}

func (b *InMem) Close() error {
	b.mu.Lock()
	b.closed = true
	b.streams = make(map[string][]chan<- []byte)
	b.handlers = make(map[string]Handler)
	b.mu.Unlock()
	return nil
}

type streamSub struct {
	bus     *InMem
	subject string
	ch      chan<- []byte
}

func (s *streamSub) Unsubscribe() error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	subs := s.bus.streams[s.subject]
	for i, c := range subs {
		if c == s.ch {
			s.bus.streams[s.subject] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	return nil
}

type serveSub struct {
	bus     *InMem
	subject string
}

func (s *serveSub) Unsubscribe() error {
	s.bus.mu.Lock()
	delete(s.bus.handlers, s.subject)
	s.bus.mu.Unlock()
	return nil
}

var _ Messenger = (*InMem)(nil)
