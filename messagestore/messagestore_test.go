package messagestore_test

import (
	"context"
	"path/filepath"
	"testing"

	libdb "github.com/contenox/chatstate/libdbexec"
	"github.com/contenox/chatstate/messagestore"
	"github.com/stretchr/testify/require"
)

func setupSQLite(t *testing.T) (context.Context, libdb.DBManager) {
	t.Helper()
	ctx := context.TODO()
	db, err := libdb.NewSQLiteDBManager(ctx, filepath.Join(t.TempDir(), "chat.db"), messagestore.Schema)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, db.Close()) })
	return ctx, db
}

func setupPostgres(t *testing.T) (context.Context, libdb.DBManager) {
	t.Helper()
	if testing.Short() {
		t.Skip("requires docker")
	}
	ctx := context.TODO()
	connStr, _, cleanup, err := libdb.SetupLocalInstance(ctx, "test", "test", "test")
	require.NoError(t, err)
	db, err := libdb.NewPostgresDBManager(ctx, connStr, messagestore.Schema)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, db.Close())
		cleanup()
	})
	return ctx, db
}

func msg(id, session, topic, role string) *messagestore.Message {
	return &messagestore.Message{
		ID:        id,
		SessionID: session,
		TopicID:   topic,
		Role:      role,
		Payload:   []byte(`{"id":"` + id + `"}`),
	}
}

func listIDs(t *testing.T, ctx context.Context, s messagestore.Store, session, topic string) []string {
	t.Helper()
	msgs, err := s.ListMessages(ctx, session, topic)
	require.NoError(t, err)
	ids := make([]string, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.ID)
	}
	return ids
}

func runStoreSuite(t *testing.T, ctx context.Context, db libdb.DBManager) {
	s := messagestore.New(db.WithoutTransaction())

	t.Run("append keeps order per scope", func(t *testing.T) {
		require.NoError(t, s.AppendMessage(ctx, msg("m1", "s1", "t1", "user")))
		require.NoError(t, s.AppendMessage(ctx, msg("m2", "s1", "t1", "assistant")))
		require.NoError(t, s.AppendMessage(ctx, msg("m3", "s1", "", "user")))
		require.NoError(t, s.AppendMessage(ctx, msg("m4", "s1", "t1", "tool")))

		require.Equal(t, []string{"m1", "m2", "m4"}, listIDs(t, ctx, s, "s1", "t1"))
		require.Equal(t, []string{"m3"}, listIDs(t, ctx, s, "s1", ""))
		require.Empty(t, listIDs(t, ctx, s, "other", ""))

		n, err := s.CountMessages(ctx, "s1", "t1")
		require.NoError(t, err)
		require.Equal(t, 3, n)
	})

	t.Run("duplicate id is rejected", func(t *testing.T) {
		err := s.AppendMessage(ctx, msg("m1", "s1", "t1", "user"))
		require.ErrorIs(t, err, libdb.ErrUniqueViolation)
	})

	t.Run("get and update", func(t *testing.T) {
		got, err := s.GetMessage(ctx, "m2")
		require.NoError(t, err)
		require.Equal(t, "assistant", got.Role)
		require.JSONEq(t, `{"id":"m2"}`, string(got.Payload))

		got.Payload = []byte(`{"id":"m2","content":"edited"}`)
		require.NoError(t, s.UpdateMessage(ctx, got))

		again, err := s.GetMessage(ctx, "m2")
		require.NoError(t, err)
		require.JSONEq(t, `{"id":"m2","content":"edited"}`, string(again.Payload))
		require.Equal(t, got.Position, again.Position)
	})

	t.Run("missing message", func(t *testing.T) {
		_, err := s.GetMessage(ctx, "nope")
		require.ErrorIs(t, err, messagestore.ErrNotFound)
		err = s.UpdateMessage(ctx, msg("nope", "s1", "t1", "user"))
		require.ErrorIs(t, err, messagestore.ErrNotFound)
	})

	t.Run("delete ids within scope only", func(t *testing.T) {
		n, err := s.DeleteMessages(ctx, "s1", "t1", "m1", "m3", "missing")
		require.NoError(t, err)
		require.Equal(t, int64(1), n)
		require.Equal(t, []string{"m2", "m4"}, listIDs(t, ctx, s, "s1", "t1"))
		require.Equal(t, []string{"m3"}, listIDs(t, ctx, s, "s1", ""))
	})

	t.Run("topics", func(t *testing.T) {
		require.NoError(t, s.CreateTopic(ctx, &messagestore.Topic{ID: "t1", SessionID: "s1", Title: "first"}))
		require.NoError(t, s.CreateTopic(ctx, &messagestore.Topic{ID: "t2", SessionID: "s1", Title: "second"}))

		topics, err := s.ListTopics(ctx, "s1")
		require.NoError(t, err)
		require.Len(t, topics, 2)
		require.Equal(t, "t1", topics[0].ID)
		require.Equal(t, "second", topics[1].Title)

		got, err := s.GetTopic(ctx, "t2")
		require.NoError(t, err)
		require.Equal(t, "s1", got.SessionID)

		n, err := s.DeleteTopicMessages(ctx, "t1")
		require.NoError(t, err)
		require.Equal(t, int64(2), n)
		require.NoError(t, s.DeleteTopic(ctx, "t1"))
		require.ErrorIs(t, s.DeleteTopic(ctx, "t1"), messagestore.ErrNotFound)
		_, err = s.GetTopic(ctx, "t1")
		require.ErrorIs(t, err, messagestore.ErrNotFound)
	})

	t.Run("scope and global deletes", func(t *testing.T) {
		require.NoError(t, s.AppendMessage(ctx, msg("x1", "s2", "", "user")))
		scopes, err := s.ListScopes(ctx)
		require.NoError(t, err)
		require.Equal(t, []messagestore.Scope{{SessionID: "s1"}, {SessionID: "s2"}}, scopes)

		n, err := s.DeleteScope(ctx, "s1", "")
		require.NoError(t, err)
		require.Equal(t, int64(1), n)
		require.Equal(t, []string{"x1"}, listIDs(t, ctx, s, "s2", ""))

		require.NoError(t, s.DeleteAllMessages(ctx))
		require.Empty(t, listIDs(t, ctx, s, "s2", ""))
		scopes, err = s.ListScopes(ctx)
		require.NoError(t, err)
		require.Empty(t, scopes)
	})
}

func TestUnit_MessageStore_SQLite(t *testing.T) {
	ctx, db := setupSQLite(t)
	runStoreSuite(t, ctx, db)
}

func TestSystem_MessageStore_Postgres(t *testing.T) {
	ctx, db := setupPostgres(t)
	runStoreSuite(t, ctx, db)
}

func TestUnit_MessageStore_TransactionRollback(t *testing.T) {
	ctx, db := setupSQLite(t)

	tx, _, release, err := db.WithTransaction(ctx)
	require.NoError(t, err)
	require.NoError(t, messagestore.New(tx).AppendMessage(ctx, msg("r1", "s", "", "user")))
	require.NoError(t, release())

	require.Empty(t, listIDs(t, ctx, messagestore.New(db.WithoutTransaction()), "s", ""))
}
