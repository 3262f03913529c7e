package model

import (
	"time"

	"github.com/halfmoon-lab/chatrelay/pkg/domain/types"
)

// Message is a single turn in a conversation. Messages are immutable once
// persisted; streaming partial content lives in the short-TTL partial
// buffer, never here.
type Message struct {
	Role      types.Role
	Content   string
	Model     string // model that produced it, assistant messages only
	Metadata  map[string]string
	CreatedAt time.Time
}

// NewUserMessage creates a user-authored message
func NewUserMessage(content string) Message {
	return Message{
		Role:      types.RoleUser,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}

// NewAssistantMessage creates an assistant message attributed to a model
func NewAssistantMessage(content, model string) Message {
	return Message{
		Role:      types.RoleAssistant,
		Content:   content,
		Model:     model,
		CreatedAt: time.Now().UTC(),
	}
}

// Conversation is the durable record of a chat session. Message order is
// append-only and monotonic by creation time; the ID is immutable.
type Conversation struct {
	ID           types.ConversationID
	UserID       types.UserID
	Title        string
	Summary      string
	Messages     []Message
	MessageCount int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewConversation creates an empty conversation owned by the given user
func NewConversation(userID types.UserID) *Conversation {
	now := time.Now().UTC()
	return &Conversation{
		ID:        types.NewConversationID(),
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

const titleMaxLen = 80

// Append adds messages to the conversation, keeps MessageCount in sync and
// derives a title from the first user message.
func (c *Conversation) Append(msgs ...Message) {
	c.Messages = append(c.Messages, msgs...)
	c.MessageCount = len(c.Messages)
	c.UpdatedAt = time.Now().UTC()

	if c.Title == "" {
		for _, m := range c.Messages {
			if m.Role == types.RoleUser && m.Content != "" {
				c.Title = truncate(m.Content, titleMaxLen)
				break
			}
		}
	}
}

// Clone returns a deep copy so cached conversations cannot be mutated by
// callers.
func (c *Conversation) Clone() *Conversation {
	copied := *c
	copied.Messages = make([]Message, len(c.Messages))
	copy(copied.Messages, c.Messages)
	for i, m := range copied.Messages {
		if m.Metadata != nil {
			md := make(map[string]string, len(m.Metadata))
			for k, v := range m.Metadata {
				md[k] = v
			}
			copied.Messages[i].Metadata = md
		}
	}
	return &copied
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
