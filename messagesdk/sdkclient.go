// Package messagesdk talks to a chatserver over HTTP and implements the
// message and topic service contracts on top of it.
package messagesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/contenox/chatstate/apiframework"
	"github.com/contenox/chatstate/libtracker"
	"github.com/contenox/chatstate/messageservice"
	"github.com/contenox/chatstate/topicservice"
)

// Client bundles the remote services.
type Client struct {
	MessageService messageservice.Service
	TopicService   topicservice.Service
}

type Config struct {
	BaseURL string
}

func NewClient(config Config, httpClient *http.Client) *Client {
	return &Client{
		MessageService: NewHTTPMessageService(config.BaseURL, httpClient),
		TopicService:   NewHTTPTopicService(config.BaseURL, httpClient),
	}
}

type transport struct {
	client  *http.Client
	baseURL string
}

func newTransport(baseURL string, client *http.Client) transport {
	if client == nil {
		client = http.DefaultClient
	}
	return transport{client: client, baseURL: strings.TrimSuffix(baseURL, "/")}
}

// do sends body as JSON and decodes the response into out when it is not
// nil. Any status other than want is turned into an API error.
func (t transport) do(ctx context.Context, method, path string, body any, want int, out any) error {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, payload)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id := libtracker.RequestID(ctx); id != "SERVERBUG" {
		req.Header.Set("X-Request-ID", id)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		return apiframework.HandleAPIError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
