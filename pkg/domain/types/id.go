package types

import (
	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

// ConversationID is a UUID-based identifier for a conversation.
// It is immutable once the conversation is created.
type ConversationID string

// NewConversationID generates a new UUID v4 ConversationID
func NewConversationID() ConversationID {
	return ConversationID(uuid.New().String())
}

func (id ConversationID) String() string {
	return string(id)
}

// Validate checks that the ID is a well-formed UUID
func (id ConversationID) Validate() error {
	if _, err := uuid.Parse(string(id)); err != nil {
		return goerr.Wrap(err, "invalid conversation ID", goerr.V("id", string(id)))
	}
	return nil
}

// EpisodeID is a UUID-based identifier for an episodic memory entry
type EpisodeID string

// NewEpisodeID generates a new UUID v4 EpisodeID
func NewEpisodeID() EpisodeID {
	return EpisodeID(uuid.New().String())
}

func (id EpisodeID) String() string {
	return string(id)
}

// UserID identifies the owner of conversations and episodes
type UserID string

func (id UserID) String() string {
	return string(id)
}

// Validate checks that the user ID is not empty
func (id UserID) Validate() error {
	if id == "" {
		return goerr.New("user ID is required")
	}
	return nil
}
