package messagesdk

import (
	"context"
	"net/http"
	"net/url"

	"github.com/contenox/chatstate/chattypes"
	"github.com/contenox/chatstate/internal/messageapi"
	"github.com/contenox/chatstate/topicservice"
)

// HTTPTopicService implements topicservice.Service against the /topics
// routes.
type HTTPTopicService struct {
	t transport
}

func NewHTTPTopicService(baseURL string, client *http.Client) topicservice.Service {
	return &HTTPTopicService{t: newTransport(baseURL, client)}
}

func (s *HTTPTopicService) CreateTopic(ctx context.Context, sessionID, title string) (*chattypes.Topic, error) {
	req := messageapi.CreateTopicRequest{SessionID: sessionID, Title: title}
	var topic chattypes.Topic
	if err := s.t.do(ctx, http.MethodPost, "/topics", req, http.StatusCreated, &topic); err != nil {
		return nil, err
	}
	return &topic, nil
}

func (s *HTTPTopicService) RemoveTopic(ctx context.Context, id string) error {
	return s.t.do(ctx, http.MethodDelete, "/topics/"+url.PathEscape(id), nil, http.StatusOK, nil)
}

func (s *HTTPTopicService) ListTopics(ctx context.Context, sessionID string) ([]chattypes.Topic, error) {
	var topics []chattypes.Topic
	path := "/topics?" + url.Values{"sessionId": {sessionID}}.Encode()
	if err := s.t.do(ctx, http.MethodGet, path, nil, http.StatusOK, &topics); err != nil {
		return nil, err
	}
	return topics, nil
}

var _ topicservice.Service = (*HTTPTopicService)(nil)
