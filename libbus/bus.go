// Package libbus provides publish/subscribe and request/reply messaging over
// NATS, with an in-memory implementation for single-process use.
package libbus

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"
)

var (
	ErrConnectionClosed = errors.New("libbus: connection closed")
	ErrRequestTimeout   = errors.New("libbus: request timed out")
	ErrHandlerFailed    = errors.New("libbus: handler failed")
)

const errorHeader = "Libbus-Error"

// Handler answers a request received on a served subject.
type Handler func(ctx context.Context, data []byte) ([]byte, error)

// Subscription is returned by Stream and Serve.
type Subscription interface {
	Unsubscribe() error
}

// Messenger is the messaging contract shared by the NATS and in-memory buses.
type Messenger interface {
	Publish(ctx context.Context, subject string, data []byte) error
	Stream(ctx context.Context, subject string, ch chan<- []byte) (Subscription, error)
	Request(ctx context.Context, subject string, data []byte) ([]byte, error)
	Serve(ctx context.Context, subject string, handler Handler) (Subscription, error)
	Close() error
}

// Config holds NATS connection settings.
type Config struct {
	NATSURL      string
	NATSUser     string
	NATSPassword string
}

type ps struct {
	nc *nats.Conn
	mu sync.Mutex
}

// NewPubSub connects to NATS and returns a Messenger.
func NewPubSub(ctx context.Context, cfg *Config) (Messenger, error) {
	if cfg == nil || cfg.NATSURL == "" {
		return nil, fmt.Errorf("libbus: NATS url is required")
	}
	opts := []nats.Option{nats.Name("chatstate")}
	if cfg.NATSUser != "" {
		opts = append(opts, nats.UserInfo(cfg.NATSUser, cfg.NATSPassword))
	}
	nc, err := nats.Connect(cfg.NATSURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("libbus: failed to connect to NATS: %w", err)
	}
	if err := ctx.Err(); err != nil {
		nc.Close()
		return nil, err
	}
	return &ps{nc: nc}, nil
}

func (p *ps) closed() bool {
	return p.nc == nil || p.nc.IsClosed()
}

// Publish sends a fire-and-forget message.
func (p *ps) Publish(ctx context.Context, subject string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.closed() {
		return ErrConnectionClosed
	}
	if err := p.nc.Publish(subject, data); err != nil {
		if errors.Is(err, nats.ErrConnectionClosed) {
			return ErrConnectionClosed
		}
		return fmt.Errorf("libbus: publish failed: %w", err)
	}
	return nil
}

// Stream forwards every message on subject to ch until ctx is done.
func (p *ps) Stream(ctx context.Context, subject string, ch chan<- []byte) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.closed() {
		return nil, ErrConnectionClosed
	}
	sub, err := p.nc.Subscribe(subject, func(m *nats.Msg) {
		select {
		case ch <- m.Data:
		case <-ctx.Done():
		}
	})
	if err != nil {
		return nil, fmt.Errorf("libbus: subscribe failed: %w", err)
	}
	go func() {
		<-ctx.Done()
		_ = sub.Unsubscribe()
	}()
	return sub, nil
}

// Request sends data and waits for a single reply.
func (p *ps) Request(ctx context.Context, subject string, data []byte) ([]byte, error) {
	if p.closed() {
		return nil, ErrConnectionClosed
	}
	msg, err := p.nc.RequestWithContext(ctx, subject, data)
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded), errors.Is(err, nats.ErrTimeout), errors.Is(err, nats.ErrNoResponders):
			return nil, ErrRequestTimeout
		case errors.Is(err, context.Canceled):
			return nil, err
		}
		return nil, fmt.Errorf("libbus: request failed: %w", err)
	}
	if msg.Header != nil {
		if handlerErr := msg.Header.Get(errorHeader); handlerErr != "" {
			return nil, fmt.Errorf("%w: %s", ErrHandlerFailed, handlerErr)
		}
	}
	return msg.Data, nil
}

// Serve answers requests on subject with handler until ctx is done.
func (p *ps) Serve(ctx context.Context, subject string, handler Handler) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.closed() {
		return nil, ErrConnectionClosed
	}
	sub, err := p.nc.Subscribe(subject, func(m *nats.Msg) {
		reply, hErr := handler(ctx, m.Data)
		out := nats.NewMsg(m.Reply)
		if hErr != nil {
			out.Header.Set(errorHeader, hErr.Error())
		} else {
			out.Data = reply
		}
		_ = p.nc.PublishMsg(out)
	})
	if err != nil {
		return nil, fmt.Errorf("libbus: serve failed: %w", err)
	}
	go func() {
		<-ctx.Done()
		_ = sub.Unsubscribe()
	}()
	return sub, nil
}

// Close drains nothing; it closes the connection immediately.
func (p *ps) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.nc != nil {
		p.nc.Close()
	}
	return nil
}

var _ Messenger = (*ps)(nil)
