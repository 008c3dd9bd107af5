package libbus_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/contenox/chatstate/libbus"
	"github.com/stretchr/testify/require"
)

func newNatsBus(t *testing.T) libbus.Messenger {
	t.Helper()
	if testing.Short() {
		t.Skip("requires docker")
	}
	ps, cleanup, err := libbus.NewTestPubSub()
	t.Cleanup(cleanup)
	require.NoError(t, err)
	return ps
}

func TestSystem_NatsStream(t *testing.T) {
	ps := newNatsBus(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ch := make(chan []byte, 1)
	sub, err := ps.Stream(ctx, "chat.messages.stale", ch)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.NoError(t, ps.Publish(ctx, "chat.messages.stale", []byte("key")))
	select {
	case got := <-ch:
		require.Equal(t, []byte("key"), got)
	case <-ctx.Done():
		t.Fatal("timed out waiting for streamed message")
	}
}

func TestSystem_NatsRequestReply(t *testing.T) {
	ps := newNatsBus(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub, err := ps.Serve(ctx, "chat.echo", func(ctx context.Context, data []byte) ([]byte, error) {
		return append([]byte("echo:"), data...), nil
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	reply, err := ps.Request(ctx, "chat.echo", []byte("hi"))
	require.NoError(t, err)
	require.Equal(t, "echo:hi", string(reply))
}

func TestSystem_NatsHandlerError(t *testing.T) {
	ps := newNatsBus(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub, err := ps.Serve(ctx, "chat.fail", func(ctx context.Context, data []byte) ([]byte, error) {
		return nil, errors.New("handler failed")
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	_, err = ps.Request(ctx, "chat.fail", nil)
	require.ErrorIs(t, err, libbus.ErrHandlerFailed)
	require.Contains(t, err.Error(), "handler failed")
}

func TestSystem_NatsClosed(t *testing.T) {
	ps := newNatsBus(t)
	require.NoError(t, ps.Close())
	require.ErrorIs(t, ps.Publish(context.Background(), "chat.closed", nil), libbus.ErrConnectionClosed)
}
