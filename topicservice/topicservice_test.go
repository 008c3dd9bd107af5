package topicservice_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/contenox/chatstate/chattypes"
	libdb "github.com/contenox/chatstate/libdbexec"
	"github.com/contenox/chatstate/libtracker"
	"github.com/contenox/chatstate/messageservice"
	"github.com/contenox/chatstate/messagestore"
	"github.com/contenox/chatstate/topicservice"
	"github.com/stretchr/testify/require"
)

func TestUnit_TopicLifecycle(t *testing.T) {
	ctx := context.Background()
	db, err := libdb.NewSQLiteDBManager(ctx, filepath.Join(t.TempDir(), "chat.db"), messagestore.Schema)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	topics := topicservice.WithActivityTracker(topicservice.New(db), libtracker.NoopTracker{})
	messages := messageservice.New(db)

	_, err = topics.CreateTopic(ctx, "", "x")
	require.ErrorIs(t, err, topicservice.ErrMissingSession)

	first, err := topics.CreateTopic(ctx, "s1", "first")
	require.NoError(t, err)
	second, err := topics.CreateTopic(ctx, "s1", "second")
	require.NoError(t, err)

	list, err := topics.ListTopics(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, first.ID, list[0].ID)
	require.Equal(t, "second", list[1].Title)

	_, err = messages.CreateMessage(ctx, chattypes.CreateMessageParams{Role: chattypes.RoleUser, SessionID: "s1", TopicID: first.ID})
	require.NoError(t, err)
	_, err = messages.CreateMessage(ctx, chattypes.CreateMessageParams{Role: chattypes.RoleUser, SessionID: "s1", TopicID: second.ID})
	require.NoError(t, err)

	require.NoError(t, topics.RemoveTopic(ctx, first.ID))

	gone, err := messages.GetMessages(ctx, chattypes.Context{SessionID: "s1", TopicID: first.ID})
	require.NoError(t, err)
	require.Empty(t, gone)
	kept, err := messages.GetMessages(ctx, chattypes.Context{SessionID: "s1", TopicID: second.ID})
	require.NoError(t, err)
	require.Len(t, kept, 1)

	require.ErrorIs(t, topics.RemoveTopic(ctx, first.ID), libdb.ErrNotFound)

	list, err = topics.ListTopics(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, list, 1)
}
