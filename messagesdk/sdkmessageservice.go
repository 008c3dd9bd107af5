package messagesdk

import (
	"context"
	"net/http"
	"net/url"

	"github.com/contenox/chatstate/chattypes"
	"github.com/contenox/chatstate/internal/messageapi"
	"github.com/contenox/chatstate/messageservice"
)

// HTTPMessageService implements messageservice.Service against the
// /messages routes.
type HTTPMessageService struct {
	t transport
}

func NewHTTPMessageService(baseURL string, client *http.Client) messageservice.Service {
	return &HTTPMessageService{t: newTransport(baseURL, client)}
}

func scopeQuery(scope chattypes.Context) string {
	q := url.Values{}
	q.Set("sessionId", scope.SessionID)
	if scope.TopicID != "" {
		q.Set("topicId", scope.TopicID)
	}
	return "?" + q.Encode()
}

func (s *HTTPMessageService) CreateMessage(ctx context.Context, params chattypes.CreateMessageParams) (*messageservice.CreateResult, error) {
	var res messageservice.CreateResult
	if err := s.t.do(ctx, http.MethodPost, "/messages", params, http.StatusCreated, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *HTTPMessageService) UpdateMessage(ctx context.Context, id string, patch chattypes.Patch, scope chattypes.Context) (*messageservice.MutationResult, error) {
	req := messageapi.UpdateRequest{Patch: patch, Context: scope}
	var res messageservice.MutationResult
	if err := s.t.do(ctx, http.MethodPatch, "/messages/"+url.PathEscape(id), req, http.StatusOK, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *HTTPMessageService) RemoveMessage(ctx context.Context, id string, scope chattypes.Context) (*messageservice.MutationResult, error) {
	var res messageservice.MutationResult
	if err := s.t.do(ctx, http.MethodDelete, "/messages/"+url.PathEscape(id)+scopeQuery(scope), nil, http.StatusOK, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *HTTPMessageService) RemoveMessages(ctx context.Context, ids []string, scope chattypes.Context) (*messageservice.MutationResult, error) {
	req := messageapi.RemoveRequest{IDs: ids, Context: scope}
	var res messageservice.MutationResult
	if err := s.t.do(ctx, http.MethodPost, "/messages/delete", req, http.StatusOK, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *HTTPMessageService) RemoveMessagesByScope(ctx context.Context, scope chattypes.Context) error {
	return s.t.do(ctx, http.MethodDelete, "/messages"+scopeQuery(scope), nil, http.StatusOK, nil)
}

func (s *HTTPMessageService) RemoveAllMessages(ctx context.Context) error {
	return s.t.do(ctx, http.MethodDelete, "/messages/all", nil, http.StatusOK, nil)
}

func (s *HTTPMessageService) GetMessages(ctx context.Context, scope chattypes.Context) ([]chattypes.Message, error) {
	var msgs []chattypes.Message
	if err := s.t.do(ctx, http.MethodGet, "/messages"+scopeQuery(scope), nil, http.StatusOK, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

var _ messageservice.Service = (*HTTPMessageService)(nil)
