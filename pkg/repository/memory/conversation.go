package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/halfmoon-lab/chatrelay/pkg/domain/interfaces"
	"github.com/halfmoon-lab/chatrelay/pkg/domain/model"
	"github.com/halfmoon-lab/chatrelay/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

type conversationRepository struct {
	mu            sync.RWMutex
	conversations map[types.ConversationID]*model.Conversation
}

var _ interfaces.ConversationRepository = &conversationRepository{}

func newConversationRepository() *conversationRepository {
	return &conversationRepository{
		conversations: make(map[types.ConversationID]*model.Conversation),
	}
}

func (r *conversationRepository) Create(_ context.Context, conv *model.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.conversations[conv.ID]; exists {
		return goerr.New("conversation already exists", goerr.V("id", conv.ID))
	}

	r.conversations[conv.ID] = conv.Clone()
	return nil
}

func (r *conversationRepository) Get(_ context.Context, id types.ConversationID, userID types.UserID) (*model.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conv, ok := r.conversations[id]
	if !ok || conv.UserID != userID {
		return nil, goerr.Wrap(interfaces.ErrNotFound, "conversation not found",
			goerr.V("id", id), goerr.V("userID", userID))
	}

	return conv.Clone(), nil
}

func (r *conversationRepository) AppendExchange(_ context.Context, id types.ConversationID, userMsg, assistantMsg model.Message) (*model.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conv, ok := r.conversations[id]
	if !ok {
		return nil, goerr.Wrap(interfaces.ErrNotFound, "conversation not found", goerr.V("id", id))
	}

	conv.Append(userMsg, assistantMsg)
	return conv.Clone(), nil
}

func (r *conversationRepository) UpdateSummary(_ context.Context, id types.ConversationID, summary string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conv, ok := r.conversations[id]
	if !ok {
		return goerr.Wrap(interfaces.ErrNotFound, "conversation not found", goerr.V("id", id))
	}

	conv.Summary = summary
	conv.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *conversationRepository) List(_ context.Context, userID types.UserID, limit int) ([]*model.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	result := make([]*model.Conversation, 0)
	for _, conv := range r.conversations {
		if conv.UserID == userID {
			result = append(result, conv.Clone())
		}
	}

	// Sort by UpdatedAt desc
	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})

	if len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}
