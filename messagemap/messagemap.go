// Package messagemap is the in-memory message store, keyed by scope
// (see chattypes.MessageMapKey).
package messagemap

import (
	"slices"
	"sync"

	"github.com/contenox/chatstate/chattypes"
)

type ActionType string

const (
	AddMessage     ActionType = "addMessage"
	UpdateMessage  ActionType = "updateMessage"
	DeleteMessage  ActionType = "deleteMessage"
	DeleteMessages ActionType = "deleteMessages"
)

// Action is an optimistic local change. Message is the value of an add,
// Value the patch of an update, IDs the targets of a batch delete.
type Action struct {
	Type    ActionType
	ID      string
	IDs     []string
	Value   chattypes.Patch
	Message chattypes.Message
}

// Store holds one ordered message list per scope. Readers always get
// copies; the only way to change a list is Dispatch or Replace.
type Store struct {
	mu     sync.RWMutex
	scopes map[string][]chattypes.Message
}

func New() *Store {
	return &Store{scopes: make(map[string][]chattypes.Message)}
}

// Get returns the scope's messages, or an empty list for an unknown scope.
func (s *Store) Get(key string) []chattypes.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.scopes[key]
	if msgs == nil {
		return []chattypes.Message{}
	}
	return chattypes.CloneMessages(msgs)
}

// Replace swaps the scope's list for msgs wholesale.
func (s *Store) Replace(key string, msgs []chattypes.Message) {
	next := chattypes.CloneMessages(msgs)
	if next == nil {
		next = []chattypes.Message{}
	}
	s.mu.Lock()
	s.scopes[key] = next
	s.mu.Unlock()
}

// Dispatch applies a to the scope's list.
func (s *Store) Dispatch(key string, a Action) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scopes[key] = Reduce(s.scopes[key], a)
}

// Keys lists the scopes the store currently holds, sorted.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.scopes))
	for k := range s.scopes {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
