package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/tasksync/internal/backend"
	"github.com/felixgeelhaar/tasksync/internal/cache"
	"github.com/felixgeelhaar/tasksync/internal/domain"
	"github.com/felixgeelhaar/tasksync/internal/errors"
)

// Chat reads and writes the chat_messages table.
type Chat struct {
	db    *backend.Client
	cache *cache.Group[[]domain.ChatMessage]
}

// History returns the user's conversation, oldest first.
func (r *Chat) History(ctx context.Context, userID string) ([]domain.ChatMessage, error) {
	return r.cache.Do(ctx, "user:"+userID, func(ctx context.Context) ([]domain.ChatMessage, error) {
		var msgs []domain.ChatMessage
		err := r.db.From(tableChat).Select("*").Eq("user_id", userID).Order("created_at", true).Execute(ctx, &msgs)
		if err != nil {
			return nil, errors.NewQueryError(tableChat, err)
		}
		return nonNil(msgs), nil
	})
}

// Append stores messages in order.
func (r *Chat) Append(ctx context.Context, msgs ...domain.ChatMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	rows := make([]domain.ChatMessage, len(msgs))
	for i, m := range msgs {
		if err := m.Role.Validate(); err != nil {
			return errors.NewInvalidError(err.Error())
		}
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		rows[i] = m
	}

	err := r.db.From(tableChat).Insert(ctx, rows, nil)
	for _, m := range msgs {
		r.cache.Invalidate("user:" + m.UserID)
	}
	if err != nil {
		return errors.NewWriteError(tableChat, err)
	}
	return nil
}

// Clear deletes the user's conversation.
func (r *Chat) Clear(ctx context.Context, userID string) error {
	err := r.db.From(tableChat).Eq("user_id", userID).Delete(ctx)
	r.cache.Invalidate("user:" + userID)
	if err != nil {
		return errors.NewWriteError(tableChat, err)
	}
	return nil
}
