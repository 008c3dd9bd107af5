// Package messageservice persists chat messages and answers every
// mutation with the authoritative message list of the affected scope.
package messageservice

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/contenox/chatstate/apiframework"
	"github.com/contenox/chatstate/chattypes"
	libdb "github.com/contenox/chatstate/libdbexec"
	"github.com/contenox/chatstate/messagestore"
	"github.com/google/uuid"
)

var (
	ErrInvalidMessage = fmt.Errorf("messageservice: invalid message: %w", apiframework.ErrUnprocessableEntity)
	ErrMissingSession = fmt.Errorf("messageservice: session id is required: %w", apiframework.ErrMissingParameter)
)

// CreateResult carries the server-assigned id and the scope after insert.
type CreateResult struct {
	ID       string              `json:"id"`
	Messages []chattypes.Message `json:"messages"`
}

// MutationResult carries the scope after an update or removal.
type MutationResult struct {
	Success  bool                `json:"success"`
	Messages []chattypes.Message `json:"messages"`
}

type Service interface {
	CreateMessage(ctx context.Context, params chattypes.CreateMessageParams) (*CreateResult, error)
	UpdateMessage(ctx context.Context, id string, patch chattypes.Patch, scope chattypes.Context) (*MutationResult, error)
	RemoveMessage(ctx context.Context, id string, scope chattypes.Context) (*MutationResult, error)
	RemoveMessages(ctx context.Context, ids []string, scope chattypes.Context) (*MutationResult, error)
	RemoveMessagesByScope(ctx context.Context, scope chattypes.Context) error
	RemoveAllMessages(ctx context.Context) error
	GetMessages(ctx context.Context, scope chattypes.Context) ([]chattypes.Message, error)
}

type service struct {
	dbInstance libdb.DBManager
	newID      func() string
}

func New(db libdb.DBManager) Service {
	return &service{
		dbInstance: db,
		newID:      func() string { return "msg_" + uuid.NewString() },
	}
}

func (s *service) CreateMessage(ctx context.Context, params chattypes.CreateMessageParams) (*CreateResult, error) {
	if params.SessionID == "" {
		return nil, ErrMissingSession
	}
	if !params.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidMessage, params.Role)
	}

	now := time.Now().UTC()
	id := s.newID()
	msg := params.Message(id, now)
	row, err := toRow(msg)
	if err != nil {
		return nil, err
	}

	var result *CreateResult
	err = s.inTx(ctx, func(store messagestore.Store) error {
		if err := store.AppendMessage(ctx, row); err != nil {
			return err
		}
		msgs, err := list(ctx, store, params.Context())
		if err != nil {
			return err
		}
		result = &CreateResult{ID: id, Messages: msgs}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) UpdateMessage(ctx context.Context, id string, patch chattypes.Patch, scope chattypes.Context) (*MutationResult, error) {
	var result *MutationResult
	err := s.inTx(ctx, func(store messagestore.Store) error {
		row, err := store.GetMessage(ctx, id)
		if err != nil {
			return fmt.Errorf("update %s: %w", id, err)
		}
		if row.SessionID != scope.SessionID || row.TopicID != scope.TopicID {
			return fmt.Errorf("update %s: not in scope %s: %w", id, scope.Key(), messagestore.ErrNotFound)
		}
		if patch.IsEmpty() {
			msgs, err := list(ctx, store, scope)
			if err != nil {
				return err
			}
			result = &MutationResult{Success: true, Messages: msgs}
			return nil
		}
		msg, err := fromRow(row)
		if err != nil {
			return err
		}
		msg = patch.Apply(msg)
		msg.UpdatedAt = time.Now().UTC()

		next, err := toRow(msg)
		if err != nil {
			return err
		}
		if err := store.UpdateMessage(ctx, next); err != nil {
			return err
		}
		msgs, err := list(ctx, store, scope)
		if err != nil {
			return err
		}
		result = &MutationResult{Success: true, Messages: msgs}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) RemoveMessage(ctx context.Context, id string, scope chattypes.Context) (*MutationResult, error) {
	return s.RemoveMessages(ctx, []string{id}, scope)
}

// RemoveMessages deletes ids from the scope in one statement. Ids that do
// not exist are ignored; the result reflects whatever is left.
func (s *service) RemoveMessages(ctx context.Context, ids []string, scope chattypes.Context) (*MutationResult, error) {
	var result *MutationResult
	err := s.inTx(ctx, func(store messagestore.Store) error {
		if _, err := store.DeleteMessages(ctx, scope.SessionID, scope.TopicID, ids...); err != nil {
			return err
		}
		msgs, err := list(ctx, store, scope)
		if err != nil {
			return err
		}
		result = &MutationResult{Success: true, Messages: msgs}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) RemoveMessagesByScope(ctx context.Context, scope chattypes.Context) error {
	_, err := messagestore.New(s.dbInstance.WithoutTransaction()).DeleteScope(ctx, scope.SessionID, scope.TopicID)
	return err
}

func (s *service) RemoveAllMessages(ctx context.Context) error {
	return messagestore.New(s.dbInstance.WithoutTransaction()).DeleteAllMessages(ctx)
}

func (s *service) GetMessages(ctx context.Context, scope chattypes.Context) ([]chattypes.Message, error) {
	return list(ctx, messagestore.New(s.dbInstance.WithoutTransaction()), scope)
}

func (s *service) inTx(ctx context.Context, fn func(store messagestore.Store) error) error {
	tx, commit, release, err := s.dbInstance.WithTransaction(ctx)
	if err != nil {
		return err
	}
	defer release()
	if err := fn(messagestore.New(tx)); err != nil {
		return err
	}
	return commit(ctx)
}

// list loads the scope and nests group children.
func list(ctx context.Context, store messagestore.Store, scope chattypes.Context) ([]chattypes.Message, error) {
	rows, err := store.ListMessages(ctx, scope.SessionID, scope.TopicID)
	if err != nil {
		return nil, err
	}
	flat := make([]chattypes.Message, 0, len(rows))
	for _, row := range rows {
		msg, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		flat = append(flat, msg)
	}
	return chattypes.Assemble(flat), nil
}

func toRow(msg chattypes.Message) (*messagestore.Message, error) {
	msg.Children = nil
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode message %s: %w", msg.ID, err)
	}
	return &messagestore.Message{
		ID:        msg.ID,
		SessionID: msg.SessionID,
		TopicID:   msg.TopicID,
		ParentID:  msg.ParentID,
		Role:      string(msg.Role),
		Payload:   payload,
		CreatedAt: msg.CreatedAt,
		UpdatedAt: msg.UpdatedAt,
	}, nil
}

func fromRow(row *messagestore.Message) (chattypes.Message, error) {
	var msg chattypes.Message
	if err := json.Unmarshal(row.Payload, &msg); err != nil {
		return chattypes.Message{}, fmt.Errorf("decode message %s: %w", row.ID, err)
	}
	msg.ID = row.ID
	msg.SessionID = row.SessionID
	msg.TopicID = row.TopicID
	return msg, nil
}

var _ Service = (*service)(nil)

