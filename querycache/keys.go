// Package querycache keeps fetched message lists by key and marks keys
// stale so views refetch.
package querycache

import (
	"fmt"
	"strings"
)

// FetchMessagesMarker and FetchTopicsMarker are the first element of the
// cache key tuples.
const (
	FetchMessagesMarker = "SWR_USE_FETCH_MESSAGES"
	FetchTopicsMarker   = "SWR_USE_FETCH_TOPIC"
)

// Mode distinguishes the single-session view from the group view of the
// same scope; each is cached under its own key.
type Mode string

const (
	ModeSession Mode = "session"
	ModeGroup   Mode = "group"
)

// Key is the composite (marker, session, topic, mode) cache key.
type Key struct {
	Marker    string `json:"marker"`
	SessionID string `json:"sessionId"`
	TopicID   string `json:"topicId,omitempty"`
	Mode      Mode   `json:"mode,omitempty"`
}

func FetchMessagesKey(sessionID, topicID string, mode Mode) Key {
	return Key{Marker: FetchMessagesMarker, SessionID: sessionID, TopicID: topicID, Mode: mode}
}

func FetchTopicsKey(sessionID string) Key {
	return Key{Marker: FetchTopicsMarker, SessionID: sessionID}
}

// String renders the key for storage; an empty topic renders as "null".
func (k Key) String() string {
	topic := k.TopicID
	if topic == "" {
		topic = "null"
	}
	parts := []string{k.Marker, k.SessionID, topic}
	if k.Mode != "" {
		parts = append(parts, string(k.Mode))
	}
	return strings.Join(parts, ":")
}

func (k Key) validate() error {
	if k.Marker == "" {
		return fmt.Errorf("querycache: key without marker")
	}
	return nil
}
