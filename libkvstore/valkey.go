// Package libkvstore wraps a valkey client behind a small key/value API.
package libkvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"
)

var ErrNotFound = errors.New("libkv: key not found")

// Config holds the valkey connection settings.
type Config struct {
	KVAddr     string
	KVPassword string
}

// KVExecutor runs key/value commands.
type KVExecutor interface {
	Get(ctx context.Context, key string) (json.RawMessage, error)
	Set(ctx context.Context, key string, value json.RawMessage) error
	SetWithTTL(ctx context.Context, key string, value json.RawMessage, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// KVManager owns the connection and hands out executors.
type KVManager interface {
	Executor(ctx context.Context) (KVExecutor, error)
	Close() error
}

type manager struct {
	client  valkey.Client
	timeout time.Duration
}

// NewManager dials valkey. timeout bounds every command issued by executors.
func NewManager(cfg Config, timeout time.Duration) (KVManager, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{cfg.KVAddr},
		Password:    cfg.KVPassword,
	})
	if err != nil {
		return nil, fmt.Errorf("libkv: failed to connect: %w", err)
	}
	return &manager{client: client, timeout: timeout}, nil
}

func (m *manager) Executor(ctx context.Context) (KVExecutor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &executor{client: m.client, timeout: m.timeout}, nil
}

func (m *manager) Close() error {
	m.client.Close()
	return nil
}

type executor struct {
	client  valkey.Client
	timeout time.Duration
}

func (e *executor) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, e.timeout)
}

func (e *executor) Get(ctx context.Context, key string) (json.RawMessage, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	b, err := e.client.Do(ctx, e.client.B().Get().Key(key).Build()).AsBytes()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("libkv: get %q: %w", key, err)
	}
	return json.RawMessage(b), nil
}

func (e *executor) Set(ctx context.Context, key string, value json.RawMessage) error {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	if err := e.client.Do(ctx, e.client.B().Set().Key(key).Value(string(value)).Build()).Error(); err != nil {
		return fmt.Errorf("libkv: set %q: %w", key, err)
	}
	return nil
}

func (e *executor) SetWithTTL(ctx context.Context, key string, value json.RawMessage, ttl time.Duration) error {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	cmd := e.client.B().Set().Key(key).Value(string(value)).PxMilliseconds(ttl.Milliseconds()).Build()
	if err := e.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("libkv: set %q with ttl: %w", key, err)
	}
	return nil
}

func (e *executor) Delete(ctx context.Context, key string) error {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	if err := e.client.Do(ctx, e.client.B().Del().Key(key).Build()).Error(); err != nil {
		return fmt.Errorf("libkv: delete %q: %w", key, err)
	}
	return nil
}

func (e *executor) Exists(ctx context.Context, key string) (bool, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	n, err := e.client.Do(ctx, e.client.B().Exists().Key(key).Build()).AsInt64()
	if err != nil {
		return false, fmt.Errorf("libkv: exists %q: %w", key, err)
	}
	return n > 0, nil
}
