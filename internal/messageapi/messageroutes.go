package messageapi

import (
	"fmt"
	"net/http"

	"github.com/contenox/chatstate/apiframework"
	"github.com/contenox/chatstate/chattypes"
	"github.com/contenox/chatstate/messageservice"
)

// UpdateRequest is the body of PATCH /messages/{id}.
type UpdateRequest struct {
	Patch   chattypes.Patch   `json:"patch"`
	Context chattypes.Context `json:"context"`
}

// RemoveRequest is the body of POST /messages/delete.
type RemoveRequest struct {
	IDs     []string          `json:"ids"`
	Context chattypes.Context `json:"context"`
}

func AddMessageRoutes(mux *http.ServeMux, messageService messageservice.Service) {
	h := &messageHandler{service: messageService}

	mux.HandleFunc("POST /messages", h.create)
	mux.HandleFunc("GET /messages", h.list)
	mux.HandleFunc("DELETE /messages", h.removeScope)
	mux.HandleFunc("DELETE /messages/all", h.removeAll)
	mux.HandleFunc("PATCH /messages/{id}", h.update)
	mux.HandleFunc("DELETE /messages/{id}", h.remove)
	mux.HandleFunc("POST /messages/delete", h.removeMany)
}

type messageHandler struct {
	service messageservice.Service
}

func scopeFromQuery(r *http.Request) (chattypes.Context, error) {
	scope := chattypes.Context{
		SessionID: apiframework.GetQueryParam(r, "sessionId", "", "The session owning the messages."),
		TopicID:   apiframework.GetQueryParam(r, "topicId", "", "The topic within the session. Empty selects the default conversation."),
	}
	if scope.SessionID == "" {
		return scope, apiframework.MissingParameter("sessionId")
	}
	return scope, nil
}

// Creates a message. The id is assigned by the server.
//
// The response carries the new id and the scope's messages after the insert.
func (h *messageHandler) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	params, err := apiframework.Decode[chattypes.CreateMessageParams](r) // @request chattypes.CreateMessageParams
	if err != nil {
		_ = apiframework.Error(w, r, err, apiframework.CreateOperation)
		return
	}

	res, err := h.service.CreateMessage(ctx, params)
	if err != nil {
		_ = apiframework.Error(w, r, err, apiframework.CreateOperation)
		return
	}

	_ = apiframework.Encode(w, r, http.StatusCreated, res) // @response messageservice.CreateResult
}

// Lists the messages of a session/topic scope in conversation order.
func (h *messageHandler) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	scope, err := scopeFromQuery(r)
	if err != nil {
		_ = apiframework.Error(w, r, err, apiframework.ListOperation)
		return
	}

	msgs, err := h.service.GetMessages(ctx, scope)
	if err != nil {
		_ = apiframework.Error(w, r, err, apiframework.ListOperation)
		return
	}

	_ = apiframework.Encode(w, r, http.StatusOK, msgs) // @response []chattypes.Message
}

// Applies a partial update to a message.
//
// A present "tools" field replaces the message's tool calls, even when empty.
func (h *messageHandler) update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := apiframework.GetPathParam(r, "id", "The unique identifier of the message.")
	if id == "" {
		_ = apiframework.Error(w, r, fmt.Errorf("id required: %w", apiframework.ErrBadPathValue), apiframework.UpdateOperation)
		return
	}

	req, err := apiframework.Decode[UpdateRequest](r) // @request messageapi.UpdateRequest
	if err != nil {
		_ = apiframework.Error(w, r, err, apiframework.UpdateOperation)
		return
	}

	res, err := h.service.UpdateMessage(ctx, id, req.Patch, req.Context)
	if err != nil {
		_ = apiframework.Error(w, r, err, apiframework.UpdateOperation)
		return
	}

	_ = apiframework.Encode(w, r, http.StatusOK, res) // @response messageservice.MutationResult
}

// Removes a single message.
func (h *messageHandler) remove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := apiframework.GetPathParam(r, "id", "The unique identifier of the message.")
	if id == "" {
		_ = apiframework.Error(w, r, fmt.Errorf("id required: %w", apiframework.ErrBadPathValue), apiframework.DeleteOperation)
		return
	}
	scope, err := scopeFromQuery(r)
	if err != nil {
		_ = apiframework.Error(w, r, err, apiframework.DeleteOperation)
		return
	}

	res, err := h.service.RemoveMessage(ctx, id, scope)
	if err != nil {
		_ = apiframework.Error(w, r, err, apiframework.DeleteOperation)
		return
	}

	_ = apiframework.Encode(w, r, http.StatusOK, res) // @response messageservice.MutationResult
}

// Removes a set of messages in one call. Unknown ids are ignored.
func (h *messageHandler) removeMany(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := apiframework.Decode[RemoveRequest](r) // @request messageapi.RemoveRequest
	if err != nil {
		_ = apiframework.Error(w, r, err, apiframework.DeleteOperation)
		return
	}
	if req.Context.SessionID == "" {
		_ = apiframework.Error(w, r, apiframework.MissingParameter("context.sessionId"), apiframework.DeleteOperation)
		return
	}

	res, err := h.service.RemoveMessages(ctx, req.IDs, req.Context)
	if err != nil {
		_ = apiframework.Error(w, r, err, apiframework.DeleteOperation)
		return
	}

	_ = apiframework.Encode(w, r, http.StatusOK, res) // @response messageservice.MutationResult
}

// Removes every message of a session/topic scope.
func (h *messageHandler) removeScope(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	scope, err := scopeFromQuery(r)
	if err != nil {
		_ = apiframework.Error(w, r, err, apiframework.DeleteOperation)
		return
	}

	if err := h.service.RemoveMessagesByScope(ctx, scope); err != nil {
		_ = apiframework.Error(w, r, err, apiframework.DeleteOperation)
		return
	}

	_ = apiframework.Encode(w, r, http.StatusOK, "deleted") // @response string
}

// Removes all messages of all sessions.
func (h *messageHandler) removeAll(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RemoveAllMessages(r.Context()); err != nil {
		_ = apiframework.Error(w, r, err, apiframework.DeleteOperation)
		return
	}

	_ = apiframework.Encode(w, r, http.StatusOK, "deleted") // @response string
}
