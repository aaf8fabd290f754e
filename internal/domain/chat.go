package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ChatRole is the author of a chat message.
type ChatRole string

const (
	ChatRoleUser  ChatRole = "user"
	ChatRoleModel ChatRole = "model"
)

// Validate checks if the role is valid
func (r ChatRole) Validate() error {
	switch r {
	case ChatRoleUser, ChatRoleModel:
		return nil
	default:
		return fmt.Errorf("invalid chat role %q: must be user or model", string(r))
	}
}

// ChatMessage is a row of the chat_messages table.
type ChatMessage struct {
	ID        string    `json:"id" yaml:"id"`
	UserID    string    `json:"user_id" yaml:"user_id"`
	Role      ChatRole  `json:"role" yaml:"role"`
	Content   string    `json:"content" yaml:"content"`
	CreatedAt time.Time `json:"created_at,omitzero" yaml:"created_at"`
}

// NewChatMessage returns a message with a fresh id stamped at now.
func NewChatMessage(userID string, role ChatRole, content string, now time.Time) ChatMessage {
	return ChatMessage{
		ID:        uuid.NewString(),
		UserID:    userID,
		Role:      role,
		Content:   content,
		CreatedAt: now.UTC(),
	}
}
