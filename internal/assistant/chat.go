package assistant

import (
	"context"
	"time"

	"github.com/felixgeelhaar/tasksync/internal/domain"
	"github.com/felixgeelhaar/tasksync/internal/log"
)

// HistoryStore persists the conversation.
type HistoryStore interface {
	History(ctx context.Context, userID string) ([]domain.ChatMessage, error)
	Append(ctx context.Context, msgs ...domain.ChatMessage) error
	Clear(ctx context.Context, userID string) error
}

// Model answers a prompt given the prior turns.
type Model interface {
	Converse(ctx context.Context, history []domain.ChatMessage, prompt string) (Reply, error)
}

// Chat is a persisted conversation between a user and the model.
type Chat struct {
	store  HistoryStore
	model  Model
	logger *log.Logger
	now    func() time.Time
}

// NewChat creates a chat service.
func NewChat(store HistoryStore, model Model, logger *log.Logger) *Chat {
	return &Chat{
		store:  store,
		model:  model,
		logger: log.OrDefault(logger).Named("chat"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// History returns the user's conversation, oldest first.
func (c *Chat) History(ctx context.Context, userID string) ([]domain.ChatMessage, error) {
	return c.store.History(ctx, userID)
}

// Clear forgets the user's conversation.
func (c *Chat) Clear(ctx context.Context, userID string) error {
	return c.store.Clear(ctx, userID)
}

// Send asks the model with the stored history as context and stores both
// turns once the model has answered. A failed answer is returned as a
// Reply and nothing is stored.
func (c *Chat) Send(ctx context.Context, userID, prompt string) (Reply, error) {
	history, err := c.store.History(ctx, userID)
	if err != nil {
		c.logger.WithError(err).Warn("chat history unavailable, asking without context")
		history = nil
	}

	reply, err := c.model.Converse(ctx, history, prompt)
	if err != nil {
		return reply, err
	}

	asked := c.now()
	turns := []domain.ChatMessage{
		domain.NewChatMessage(userID, domain.ChatRoleUser, prompt, asked),
		domain.NewChatMessage(userID, domain.ChatRoleModel, reply.Text, asked.Add(time.Millisecond)),
	}
	if err := c.store.Append(ctx, turns...); err != nil {
		c.logger.WithError(err).Warn("failed to store chat turns")
		return reply, err
	}
	return reply, nil
}
