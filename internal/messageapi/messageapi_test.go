package messageapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/contenox/chatstate/apiframework"
	"github.com/contenox/chatstate/chattypes"
	"github.com/contenox/chatstate/internal/messageapi"
	libdb "github.com/contenox/chatstate/libdbexec"
	"github.com/contenox/chatstate/messageservice"
	"github.com/contenox/chatstate/messagestore"
	"github.com/contenox/chatstate/topicservice"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx := context.Background()
	db, err := libdb.NewSQLiteDBManager(ctx, filepath.Join(t.TempDir(), "chat.db"), messagestore.Schema)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mux := http.NewServeMux()
	messageapi.AddMessageRoutes(mux, messageservice.New(db))
	messageapi.AddTopicRoutes(mux, topicservice.New(db))
	srv := httptest.NewServer(apiframework.RequestIDMiddleware(mux))
	t.Cleanup(srv.Close)
	return srv
}

func send(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestUnit_MessageRoutes(t *testing.T) {
	srv := newServer(t)

	resp := send(t, http.MethodPost, srv.URL+"/messages", chattypes.CreateMessageParams{
		Role: chattypes.RoleAssistant, Content: "hi", SessionID: "s1",
		Tools: []chattypes.ToolRef{{ID: "tool1"}, {ID: "tool2"}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[messageservice.CreateResult](t, resp)
	require.NotEmpty(t, created.ID)

	resp = send(t, http.MethodGet, srv.URL+"/messages?sessionId=s1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	listed := decode[[]chattypes.Message](t, resp)
	require.Len(t, listed, 1)

	resp = send(t, http.MethodPatch, srv.URL+"/messages/"+created.ID, messageapi.UpdateRequest{
		Patch:   chattypes.ToolsPatch(nil),
		Context: chattypes.Context{SessionID: "s1"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decode[messageservice.MutationResult](t, resp)
	require.True(t, updated.Success)
	require.Empty(t, updated.Messages[0].Tools)
	require.Equal(t, "hi", updated.Messages[0].Content)

	resp = send(t, http.MethodPost, srv.URL+"/messages/delete", messageapi.RemoveRequest{
		IDs: []string{created.ID}, Context: chattypes.Context{SessionID: "s1"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	removed := decode[messageservice.MutationResult](t, resp)
	require.Empty(t, removed.Messages)
}

func TestUnit_MessageRoutes_Errors(t *testing.T) {
	srv := newServer(t)

	resp := send(t, http.MethodGet, srv.URL+"/messages", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = send(t, http.MethodPost, srv.URL+"/messages", chattypes.CreateMessageParams{Role: chattypes.RoleUser})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = send(t, http.MethodPost, srv.URL+"/messages", chattypes.CreateMessageParams{Role: "robot", SessionID: "s"})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = send(t, http.MethodPatch, srv.URL+"/messages/missing", messageapi.UpdateRequest{
		Patch: chattypes.ContentPatch("x"), Context: chattypes.Context{SessionID: "s"},
	})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = send(t, http.MethodDelete, srv.URL+"/topics/missing", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUnit_TopicRoutes(t *testing.T) {
	srv := newServer(t)

	resp := send(t, http.MethodPost, srv.URL+"/topics", messageapi.CreateTopicRequest{SessionID: "s1", Title: "first"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	topic := decode[chattypes.Topic](t, resp)

	resp = send(t, http.MethodGet, srv.URL+"/topics?sessionId=s1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, decode[[]chattypes.Topic](t, resp), 1)

	resp = send(t, http.MethodDelete, srv.URL+"/topics/"+topic.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = send(t, http.MethodGet, srv.URL+"/topics?sessionId=s1", nil)
	require.Empty(t, decode[[]chattypes.Topic](t, resp))
}
