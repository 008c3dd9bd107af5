package libbus_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/contenox/chatstate/libbus"
	"github.com/stretchr/testify/require"
)

func TestUnit_InMemStreamDeliversToAllSubscribers(t *testing.T) {
	bus := libbus.NewInMem()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	a, b := make(chan []byte, 1), make(chan []byte, 1)
	_, err := bus.Stream(ctx, "s", a)
	require.NoError(t, err)
	_, err = bus.Stream(ctx, "s", b)
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, "s", []byte("x")))
	require.Equal(t, []byte("x"), <-a)
	require.Equal(t, []byte("x"), <-b)
}

func TestUnit_InMemUnsubscribeStopsDelivery(t *testing.T) {
	bus := libbus.NewInMem()
	ctx := context.Background()

	ch := make(chan []byte, 1)
	sub, err := bus.Stream(ctx, "s", ch)
	require.NoError(t, err)
	require.NoError(t, sub.Unsubscribe())

	require.NoError(t, bus.Publish(ctx, "s", []byte("x")))
	select {
	case <-ch:
		t.Fatal("message delivered after unsubscribe")
	default:
	}
}

func TestUnit_InMemRequestReply(t *testing.T) {
	bus := libbus.NewInMem()
	ctx := context.Background()

	_, err := bus.Request(ctx, "missing", nil)
	require.ErrorIs(t, err, libbus.ErrRequestTimeout)

	_, err = bus.Serve(ctx, "ok", func(ctx context.Context, data []byte) ([]byte, error) {
		return data, nil
	})
	require.NoError(t, err)
	reply, err := bus.Request(ctx, "ok", []byte("ping"))
	require.NoError(t, err)
	require.Equal(t, []byte("ping"), reply)

	_, err = bus.Serve(ctx, "bad", func(ctx context.Context, data []byte) ([]byte, error) {
		return nil, errors.New("nope")
	})
	require.NoError(t, err)
	_, err = bus.Request(ctx, "bad", nil)
	require.ErrorIs(t, err, libbus.ErrHandlerFailed)
}

func TestUnit_InMemClosed(t *testing.T) {
	bus := libbus.NewInMem()
	require.NoError(t, bus.Close())
	require.ErrorIs(t, bus.Publish(context.Background(), "s", nil), libbus.ErrConnectionClosed)
	_, err := bus.Stream(context.Background(), "s", make(chan []byte))
	require.ErrorIs(t, err, libbus.ErrConnectionClosed)
	_, err = bus.Serve(context.Background(), "s", nil)
	require.ErrorIs(t, err, libbus.ErrConnectionClosed)
}
