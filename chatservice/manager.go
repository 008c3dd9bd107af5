// Package chatservice keeps the client-side state of a chat: the active
// session, topic and thread, the message store, and the optimistic
// mutations that keep it in step with the persistence service.
package chatservice

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/contenox/chatstate/cascade"
	"github.com/contenox/chatstate/chattypes"
	"github.com/contenox/chatstate/libtracker"
	"github.com/contenox/chatstate/messagemap"
	"github.com/contenox/chatstate/messageservice"
	"github.com/contenox/chatstate/topicservice"
	"github.com/contenox/chatstate/traceservice"
	"github.com/google/uuid"
)

var (
	ErrNoActiveSession  = errors.New("chatservice: no active session")
	ErrOwnerPatchFailed = errors.New("chatservice: updating the tool owner failed")
)

// Refresher marks cached query results as stale.
type Refresher interface {
	RefreshMessages(ctx context.Context, sessionID, topicID string) error
	RefreshTopic(ctx context.Context, sessionID string) error
}

type Clipboard interface {
	WriteAll(text string) error
}

// MutationState is the lifecycle of a single optimistic mutation.
type MutationState string

const (
	StateIdle              MutationState = "idle"
	StateOptimisticApplied MutationState = "optimistic-applied"
	StateRemotePending     MutationState = "remote-pending"
	StateReconciled        MutationState = "reconciled"
	StateErrored           MutationState = "errored"
)

// Manager coordinates the message store with the remote services.
type Manager struct {
	store     *messagemap.Store
	messages  messageservice.Service
	topics    topicservice.Service
	refresher Refresher
	tracer    traceservice.Tracer
	clipboard Clipboard
	tracker   libtracker.ActivityTracker

	mu             sync.RWMutex
	activeID       string
	activeTopicID  string
	activeThreadID string
	inputMessage   string
	editingIDs     []string
	loadingIDs     []string
}

// NewManager creates a Manager. A nil tracer, clipboard or tracker is
// replaced by a no-op.
func NewManager(
	store *messagemap.Store,
	messages messageservice.Service,
	topics topicservice.Service,
	refresher Refresher,
	tracer traceservice.Tracer,
	clipboard Clipboard,
	tracker libtracker.ActivityTracker,
) *Manager {
	if tracer == nil {
		tracer = traceservice.Noop{}
	}
	if clipboard == nil {
		clipboard = noClipboard{}
	}
	if tracker == nil {
		tracker = libtracker.NoopTracker{}
	}
	return &Manager{
		store:     store,
		messages:  messages,
		topics:    topics,
		refresher: refresher,
		tracer:    tracer,
		clipboard: clipboard,
		tracker:   tracker,
	}
}

// resolve picks the scope of an operation. An explicit override is used
// exactly as given.
func (m *Manager) resolve(override *chattypes.Context) (chattypes.Context, error) {
	if override != nil {
		return *override, nil
	}
	active := m.Active()
	if active.SessionID == "" {
		return chattypes.Context{}, ErrNoActiveSession
	}
	return active, nil
}

// mutate runs one optimistic mutation: apply locally, call the service,
// then adopt the list the service returned. On failure the local change
// stays applied.
func (m *Manager) mutate(
	ctx context.Context,
	op string,
	scope chattypes.Context,
	local messagemap.Action,
	remote func(ctx context.Context) (*messageservice.MutationResult, error),
) error {
	key := scope.Key()
	reportErr, reportChange, end := m.tracker.Start(ctx, op, "message", "scope", key, "message_id", local.ID)
	defer end()

	m.store.Dispatch(key, local)
	reportChange(key, StateOptimisticApplied)

	reportChange(key, StateRemotePending)
	res, err := remote(ctx)
	if err != nil {
		reportErr(err)
		reportChange(key, StateErrored)
		return err
	}

	if err := m.reconcile(ctx, scope, res.Messages); err != nil {
		reportErr(err)
		return err
	}
	reportChange(key, StateReconciled)
	return nil
}

// reconcile replaces the scope with the authoritative list and marks the
// cached queries for that scope as stale. A service that answered without
// a list only gets its scope invalidated.
func (m *Manager) reconcile(ctx context.Context, scope chattypes.Context, msgs []chattypes.Message) error {
	if msgs != nil {
		m.store.Replace(scope.Key(), msgs)
	}
	if m.refresher == nil {
		return nil
	}
	return m.refresher.RefreshMessages(ctx, scope.SessionID, scope.TopicID)
}

// OptimisticUpdateMessageContent sets the content of a message and, when
// tools is not nil, replaces its tool calls.
func (m *Manager) OptimisticUpdateMessageContent(ctx context.Context, id, content string, tools *[]chattypes.ToolRef, override *chattypes.Context) error {
	scope, err := m.resolve(override)
	if err != nil {
		return err
	}
	patch := chattypes.ContentPatch(content)
	patch.Tools = tools
	return m.update(ctx, "update_content", id, patch, scope)
}

func (m *Manager) OptimisticUpdateMessageError(ctx context.Context, id string, msgErr *chattypes.MessageError, override *chattypes.Context) error {
	scope, err := m.resolve(override)
	if err != nil {
		return err
	}
	patch := chattypes.Patch{Error: msgErr, ClearError: msgErr == nil}
	return m.update(ctx, "update_error", id, patch, scope)
}

func (m *Manager) OptimisticUpdateMessageMetadata(ctx context.Context, id string, metadata map[string]any, override *chattypes.Context) error {
	scope, err := m.resolve(override)
	if err != nil {
		return err
	}
	return m.update(ctx, "update_metadata", id, chattypes.Patch{Metadata: metadata}, scope)
}

func (m *Manager) optimisticUpdateMessageTools(ctx context.Context, id string, tools []chattypes.ToolRef, scope chattypes.Context) error {
	return m.update(ctx, "update_tools", id, chattypes.ToolsPatch(tools), scope)
}

func (m *Manager) update(ctx context.Context, op, id string, patch chattypes.Patch, scope chattypes.Context) error {
	local := messagemap.Action{Type: messagemap.UpdateMessage, ID: id, Value: patch}
	return m.mutate(ctx, op, scope, local, func(ctx context.Context) (*messageservice.MutationResult, error) {
		return m.messages.UpdateMessage(ctx, id, patch, scope)
	})
}

func (m *Manager) OptimisticDeleteMessage(ctx context.Context, id string, override *chattypes.Context) error {
	scope, err := m.resolve(override)
	if err != nil {
		return err
	}
	local := messagemap.Action{Type: messagemap.DeleteMessage, ID: id}
	return m.mutate(ctx, "delete", scope, local, func(ctx context.Context) (*messageservice.MutationResult, error) {
		return m.messages.RemoveMessage(ctx, id, scope)
	})
}

func (m *Manager) OptimisticDeleteMessages(ctx context.Context, ids []string, override *chattypes.Context) error {
	scope, err := m.resolve(override)
	if err != nil {
		return err
	}
	local := messagemap.Action{Type: messagemap.DeleteMessages, IDs: ids}
	return m.mutate(ctx, "delete_many", scope, local, func(ctx context.Context) (*messageservice.MutationResult, error) {
		return m.messages.RemoveMessages(ctx, ids, scope)
	})
}

// OptimisticCreateMessage shows a temporary message while the service
// creates the real one, then adopts the service's list. It returns the
// id the service assigned.
func (m *Manager) OptimisticCreateMessage(ctx context.Context, params chattypes.CreateMessageParams) (string, error) {
	scope := params.Context()
	key := scope.Key()
	reportErr, reportChange, end := m.tracker.Start(ctx, "create", "message", "scope", key, "role", string(params.Role))
	defer end()

	tmpID := "tmp_" + uuid.NewString()
	m.store.Dispatch(key, messagemap.Action{
		Type:    messagemap.AddMessage,
		ID:      tmpID,
		Message: params.Message(tmpID, time.Now().UTC()),
	})
	reportChange(key, StateOptimisticApplied)

	m.ToggleMessageLoading(true, tmpID)
	reportChange(key, StateRemotePending)
	res, err := m.messages.CreateMessage(ctx, params)
	m.ToggleMessageLoading(false, tmpID)
	if err != nil {
		reportErr(err)
		reportChange(key, StateErrored)
		return "", err
	}

	if err := m.reconcile(ctx, scope, res.Messages); err != nil {
		reportErr(err)
		return res.ID, err
	}
	reportChange(key, StateReconciled)
	return res.ID, nil
}

// UserMessage is the input of AddUserMessage.
type UserMessage struct {
	Message  string
	FileList []string
}

// AddUserMessage posts a user message to the active scope and clears the
// input box. It does nothing without an active session.
func (m *Manager) AddUserMessage(ctx context.Context, msg UserMessage) error {
	m.mu.RLock()
	params := chattypes.CreateMessageParams{
		Role:      chattypes.RoleUser,
		Content:   msg.Message,
		Files:     msg.FileList,
		SessionID: m.activeID,
		TopicID:   m.activeTopicID,
		ThreadID:  m.activeThreadID,
	}
	m.mu.RUnlock()
	if params.SessionID == "" {
		return nil
	}

	if _, err := m.OptimisticCreateMessage(ctx, params); err != nil {
		return err
	}
	m.UpdateMessageInput("")
	return nil
}

// AddAIMessage posts the input box as an assistant message.
func (m *Manager) AddAIMessage(ctx context.Context) error {
	m.mu.RLock()
	params := chattypes.CreateMessageParams{
		Role:      chattypes.RoleAssistant,
		Content:   m.inputMessage,
		SessionID: m.activeID,
		TopicID:   m.activeTopicID,
	}
	m.mu.RUnlock()
	if params.SessionID == "" {
		return nil
	}

	if _, err := m.OptimisticCreateMessage(ctx, params); err != nil {
		return err
	}
	m.UpdateMessageInput("")
	return nil
}

// DeleteMessage removes a message together with everything it owns in a
// single remote call. Unknown ids are ignored.
func (m *Manager) DeleteMessage(ctx context.Context, id string) error {
	scope, err := m.resolve(nil)
	if err != nil {
		return err
	}
	ids := cascade.DeleteClosure([]string{id}, m.store.Get(scope.Key()))
	if len(ids) == 0 {
		return nil
	}
	return m.OptimisticDeleteMessages(ctx, ids, &scope)
}

// DeleteToolMessage removes a tool message, then drops the matching call
// from the assistant message that issued it. If the second step fails
// the tool message stays removed and ErrOwnerPatchFailed is returned.
// Ids that are unknown or not tool messages are ignored.
func (m *Manager) DeleteToolMessage(ctx context.Context, id string) error {
	scope, err := m.resolve(nil)
	if err != nil {
		return err
	}
	msgs := m.store.Get(scope.Key())
	if msg, ok := chattypes.Find(msgs, id); !ok || msg.Kind() != chattypes.KindTool {
		return nil
	}
	owner, hasOwner := cascade.ToolOwnerPatch(id, msgs)

	if err := m.OptimisticDeleteMessage(ctx, id, &scope); err != nil {
		return err
	}
	if !hasOwner {
		return nil
	}
	if err := m.optimisticUpdateMessageTools(ctx, owner.OwnerID, owner.Tools, scope); err != nil {
		return fmt.Errorf("%w: %w", ErrOwnerPatchFailed, err)
	}
	return nil
}

// ClearMessage empties the active scope, drops the active topic and goes
// back to the session's default conversation.
func (m *Manager) ClearMessage(ctx context.Context) error {
	scope, err := m.resolve(nil)
	if err != nil {
		return err
	}
	if err := m.messages.RemoveMessagesByScope(ctx, scope); err != nil {
		return err
	}
	if scope.TopicID != "" {
		if err := m.topics.RemoveTopic(ctx, scope.TopicID); err != nil {
			return err
		}
	}
	m.store.Replace(scope.Key(), []chattypes.Message{})
	if m.refresher != nil {
		if err := m.refresher.RefreshTopic(ctx, scope.SessionID); err != nil {
			return err
		}
		if err := m.refresher.RefreshMessages(ctx, scope.SessionID, scope.TopicID); err != nil {
			return err
		}
	}
	m.SwitchTopic("")
	return nil
}

// ClearAllMessages removes every message on the service and empties all
// local scopes.
func (m *Manager) ClearAllMessages(ctx context.Context) error {
	if err := m.messages.RemoveAllMessages(ctx); err != nil {
		return err
	}
	keys := m.store.Keys()
	if active := m.Active(); active.SessionID != "" {
		keys = append(keys, active.Key())
	}
	for _, key := range keys {
		m.store.Replace(key, []chattypes.Message{})
	}
	return nil
}

// CopyMessage puts content on the clipboard. The copy is traced whether
// or not the clipboard write succeeds.
func (m *Manager) CopyMessage(ctx context.Context, id, content string) error {
	err := m.clipboard.WriteAll(content)
	m.tracer.TraceMessage(ctx, id, traceservice.Event{Type: traceservice.EventCopy})
	return err
}

// ModifyMessageContent is the user-facing edit of a message.
func (m *Manager) ModifyMessageContent(ctx context.Context, id, content string) error {
	m.tracer.TraceMessage(ctx, id, traceservice.Event{Type: traceservice.EventModify, NextContent: content})
	return m.OptimisticUpdateMessageContent(ctx, id, content, nil, nil)
}

// FetchMessages loads a scope from the service into the store.
func (m *Manager) FetchMessages(ctx context.Context, override *chattypes.Context) ([]chattypes.Message, error) {
	scope, err := m.resolve(override)
	if err != nil {
		return nil, err
	}
	msgs, err := m.messages.GetMessages(ctx, scope)
	if err != nil {
		return nil, err
	}
	m.store.Replace(scope.Key(), msgs)
	return m.store.Get(scope.Key()), nil
}

func (m *Manager) RefreshMessages(ctx context.Context) error {
	if m.refresher == nil {
		return nil
	}
	active := m.Active()
	return m.refresher.RefreshMessages(ctx, active.SessionID, active.TopicID)
}

func (m *Manager) RefreshTopic(ctx context.Context) error {
	if m.refresher == nil {
		return nil
	}
	return m.refresher.RefreshTopic(ctx, m.Active().SessionID)
}

// Messages returns the messages of the active scope.
func (m *Manager) Messages() []chattypes.Message {
	return m.store.Get(m.Active().Key())
}

func (m *Manager) MessagesFor(scope chattypes.Context) []chattypes.Message {
	return m.store.Get(scope.Key())
}

func (m *Manager) ToggleMessageEditing(id string, editing bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.editingIDs = toggle(m.editingIDs, id, editing)
}

func (m *Manager) ToggleMessageLoading(loading bool, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadingIDs = toggle(m.loadingIDs, id, loading)
}

func toggle(ids []string, id string, on bool) []string {
	i := slices.Index(ids, id)
	switch {
	case on && i < 0:
		return append(ids, id)
	case !on && i >= 0:
		return slices.Delete(slices.Clone(ids), i, i+1)
	}
	return ids
}

func (m *Manager) EditingIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.editingIDs)
}

func (m *Manager) LoadingIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.loadingIDs)
}

// UpdateMessageInput sets the input box and reports whether it changed.
func (m *Manager) UpdateMessageInput(text string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inputMessage == text {
		return false
	}
	m.inputMessage = text
	return true
}

func (m *Manager) InputMessage() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.inputMessage
}

// SwitchSession activates a session and leaves any topic or thread.
func (m *Manager) SwitchSession(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activeID = id
	m.activeTopicID = ""
	m.activeThreadID = ""
}

// SwitchTopic activates a topic of the current session; "" is the
// default conversation.
func (m *Manager) SwitchTopic(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activeTopicID = id
	m.activeThreadID = ""
}

func (m *Manager) SwitchThread(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activeThreadID = id
}

// Active returns the active session and topic.
func (m *Manager) Active() chattypes.Context {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return chattypes.Context{SessionID: m.activeID, TopicID: m.activeTopicID}
}

func (m *Manager) ActiveThreadID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeThreadID
}
