package querycache_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/contenox/chatstate/chattypes"
	"github.com/contenox/chatstate/libbus"
	"github.com/contenox/chatstate/libkvstore"
	"github.com/contenox/chatstate/querycache"
	"github.com/stretchr/testify/require"
)

type recordingInvalidator struct {
	mu   sync.Mutex
	keys []querycache.Key
	err  error
}

func (r *recordingInvalidator) Invalidate(_ context.Context, key querycache.Key) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, key)
	return r.err
}

type stubFetcher struct {
	calls int
	msgs  []chattypes.Message
	err   error
}

func (f *stubFetcher) GetMessages(_ context.Context, _ chattypes.Context) ([]chattypes.Message, error) {
	f.calls++
	return f.msgs, f.err
}

func TestUnit_FetchMessagesKey(t *testing.T) {
	k := querycache.FetchMessagesKey("session-id", "topic-id", querycache.ModeSession)
	require.Equal(t, querycache.FetchMessagesMarker, k.Marker)
	require.Equal(t, "SWR_USE_FETCH_MESSAGES:session-id:topic-id:session", k.String())
	require.Equal(t, "SWR_USE_FETCH_MESSAGES:s:null:group", querycache.FetchMessagesKey("s", "", querycache.ModeGroup).String())
}

func TestUnit_RefreshMessages_InvalidatesBothModes(t *testing.T) {
	inv := &recordingInvalidator{}
	c := querycache.NewCoordinator(inv, nil, nil)

	require.NoError(t, c.RefreshMessages(context.Background(), "session-id", "topic-id"))
	require.Equal(t, []querycache.Key{
		{Marker: "SWR_USE_FETCH_MESSAGES", SessionID: "session-id", TopicID: "topic-id", Mode: querycache.ModeSession},
		{Marker: "SWR_USE_FETCH_MESSAGES", SessionID: "session-id", TopicID: "topic-id", Mode: querycache.ModeGroup},
	}, inv.keys)
}

func TestUnit_RefreshMessages_PropagatesError(t *testing.T) {
	boom := errors.New("mutate failed")
	inv := &recordingInvalidator{err: boom}
	c := querycache.NewCoordinator(inv, nil, nil)

	err := c.RefreshMessages(context.Background(), "s", "t")
	require.ErrorIs(t, err, boom)
}

func TestUnit_RefreshTopic(t *testing.T) {
	inv := &recordingInvalidator{}
	c := querycache.NewCoordinator(inv, nil, nil)
	require.NoError(t, c.RefreshTopic(context.Background(), "s"))
	require.Equal(t, []querycache.Key{querycache.FetchTopicsKey("s")}, inv.keys)
}

func TestUnit_FetchMessages_ReadThrough(t *testing.T) {
	ctx := context.Background()
	cache := querycache.NewMemoryCache()
	fetcher := &stubFetcher{msgs: []chattypes.Message{{ID: "message-id", Content: "Hello"}}}
	c := querycache.NewCoordinator(cache, cache, fetcher)

	got, err := c.FetchMessages(ctx, "session-id", "topic-id", querycache.ModeSession)
	require.NoError(t, err)
	require.Equal(t, fetcher.msgs, got)

	_, err = c.FetchMessages(ctx, "session-id", "topic-id", querycache.ModeSession)
	require.NoError(t, err)
	require.Equal(t, 1, fetcher.calls)

	require.NoError(t, c.RefreshMessages(ctx, "session-id", "topic-id"))
	_, err = c.FetchMessages(ctx, "session-id", "topic-id", querycache.ModeSession)
	require.NoError(t, err)
	require.Equal(t, 2, fetcher.calls)
}

func TestUnit_FetchMessages_ErrorNotCached(t *testing.T) {
	cache := querycache.NewMemoryCache()
	fetcher := &stubFetcher{err: errors.New("offline")}
	c := querycache.NewCoordinator(cache, cache, fetcher)

	_, err := c.FetchMessages(context.Background(), "s", "", querycache.ModeGroup)
	require.Error(t, err)
	_, found, err := cache.Load(context.Background(), querycache.FetchMessagesKey("s", "", querycache.ModeGroup))
	require.NoError(t, err)
	require.False(t, found)
}

func TestUnit_Chain_StopsAtFirstError(t *testing.T) {
	boom := errors.New("boom")
	first := &recordingInvalidator{err: boom}
	second := &recordingInvalidator{}
	err := querycache.Chain{first, second}.Invalidate(context.Background(), querycache.FetchTopicsKey("s"))
	require.ErrorIs(t, err, boom)
	require.Empty(t, second.keys)
}

func TestUnit_BusInvalidator_ReachesListener(t *testing.T) {
	bus := libbus.NewInMem()
	defer bus.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	local := querycache.NewMemoryCache()
	key := querycache.FetchMessagesKey("s", "t", querycache.ModeSession)
	require.NoError(t, local.Store(ctx, key, []chattypes.Message{{ID: "m"}}))

	go func() { _ = querycache.ListenStale(ctx, bus, "", local) }()

	remote := querycache.NewBusInvalidator(bus, "")
	require.Eventually(t, func() bool {
		_ = remote.Invalidate(ctx, key)
		_, found, _ := local.Load(ctx, key)
		return !found
	}, 2*time.Second, 20*time.Millisecond)
}

func TestUnit_BusInvalidator_ClosedBusFails(t *testing.T) {
	bus := libbus.NewInMem()
	require.NoError(t, bus.Close())
	err := querycache.NewBusInvalidator(bus, "").Invalidate(context.Background(), querycache.FetchTopicsKey("s"))
	require.ErrorIs(t, err, libbus.ErrConnectionClosed)
}

func TestSystem_KVCache(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}
	ctx := context.Background()
	addr, _, cleanup, err := libkvstore.SetupLocalInstance(ctx)
	require.NoError(t, err)
	t.Cleanup(cleanup)

	kv, err := libkvstore.NewManager(libkvstore.Config{KVAddr: addr}, 5*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })

	cache := querycache.NewKVCache(kv, "chatstate:", time.Minute)
	key := querycache.FetchMessagesKey("s", "t", querycache.ModeGroup)

	_, found, err := cache.Load(ctx, key)
	require.NoError(t, err)
	require.False(t, found)

	msgs := []chattypes.Message{{ID: "m1", Role: chattypes.RoleUser, Content: "hi", SessionID: "s", TopicID: "t"}}
	require.NoError(t, cache.Store(ctx, key, msgs))

	got, found, err := cache.Load(ctx, key)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "m1", got[0].ID)

	require.NoError(t, cache.Invalidate(ctx, key))
	_, found, err = cache.Load(ctx, key)
	require.NoError(t, err)
	require.False(t, found)
}
