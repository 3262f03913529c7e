package interfaces

import (
	"context"

	"github.com/halfmoon-lab/chatrelay/pkg/domain/model"
	"github.com/halfmoon-lab/chatrelay/pkg/domain/types"
)

// ConversationRepository defines the interface for conversation persistence
type ConversationRepository interface {
	// Create persists a new conversation
	Create(ctx context.Context, conv *model.Conversation) error

	// Get retrieves a conversation by ID. Returns ErrNotFound (wrapped by
	// the backend) when the conversation does not exist or is owned by a
	// different user.
	Get(ctx context.Context, id types.ConversationID, userID types.UserID) (*model.Conversation, error)

	// AppendExchange appends a user turn and the completed assistant turn
	// in one write, updating MessageCount and UpdatedAt. Returns the
	// updated conversation.
	AppendExchange(ctx context.Context, id types.ConversationID, userMsg, assistantMsg model.Message) (*model.Conversation, error)

	// UpdateSummary replaces the conversation summary wholesale
	UpdateSummary(ctx context.Context, id types.ConversationID, summary string) error

	// List returns the user's conversations, most recently updated first
	List(ctx context.Context, userID types.UserID, limit int) ([]*model.Conversation, error)
}
