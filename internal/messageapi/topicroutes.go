package messageapi

import (
	"fmt"
	"net/http"

	"github.com/contenox/chatstate/apiframework"
	"github.com/contenox/chatstate/topicservice"
)

// CreateTopicRequest is the body of POST /topics.
type CreateTopicRequest struct {
	SessionID string `json:"sessionId"`
	Title     string `json:"title"`
}

func AddTopicRoutes(mux *http.ServeMux, topicService topicservice.Service) {
	h := &topicHandler{service: topicService}

	mux.HandleFunc("POST /topics", h.create)
	mux.HandleFunc("GET /topics", h.list)
	mux.HandleFunc("DELETE /topics/{id}", h.remove)
}

type topicHandler struct {
	service topicservice.Service
}

// Creates a topic in a session.
func (h *topicHandler) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := apiframework.Decode[CreateTopicRequest](r) // @request messageapi.CreateTopicRequest
	if err != nil {
		_ = apiframework.Error(w, r, err, apiframework.CreateOperation)
		return
	}

	topic, err := h.service.CreateTopic(ctx, req.SessionID, req.Title)
	if err != nil {
		_ = apiframework.Error(w, r, err, apiframework.CreateOperation)
		return
	}

	_ = apiframework.Encode(w, r, http.StatusCreated, topic) // @response chattypes.Topic
}

// Lists the topics of a session, oldest first.
func (h *topicHandler) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := apiframework.GetQueryParam(r, "sessionId", "", "The session owning the topics.")
	if sessionID == "" {
		_ = apiframework.Error(w, r, apiframework.MissingParameter("sessionId"), apiframework.ListOperation)
		return
	}

	topics, err := h.service.ListTopics(ctx, sessionID)
	if err != nil {
		_ = apiframework.Error(w, r, err, apiframework.ListOperation)
		return
	}

	_ = apiframework.Encode(w, r, http.StatusOK, topics) // @response []chattypes.Topic
}

// Removes a topic and every message filed under it.
func (h *topicHandler) remove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := apiframework.GetPathParam(r, "id", "The unique identifier of the topic.")
	if id == "" {
		_ = apiframework.Error(w, r, fmt.Errorf("id required: %w", apiframework.ErrBadPathValue), apiframework.DeleteOperation)
		return
	}

	if err := h.service.RemoveTopic(ctx, id); err != nil {
		_ = apiframework.Error(w, r, err, apiframework.DeleteOperation)
		return
	}

	_ = apiframework.Encode(w, r, http.StatusOK, "deleted") // @response string
}
