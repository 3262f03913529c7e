package convstore

import (
	"context"
	"errors"
	"time"

	"github.com/halfmoon-lab/chatrelay/pkg/domain/interfaces"
	"github.com/halfmoon-lab/chatrelay/pkg/domain/model"
	"github.com/halfmoon-lab/chatrelay/pkg/domain/types"
	"github.com/halfmoon-lab/chatrelay/pkg/utils/logging"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/sync/singleflight"
)

const (
	defaultCacheSize  = 1024
	defaultCacheTTL   = 5 * time.Minute
	defaultPartialTTL = 60 * time.Second
)

// Partial is the best-effort buffer of an in-flight assistant response.
// It is never authoritative; the final transcript is written separately.
type Partial struct {
	UserID    types.UserID
	Text      string
	UpdatedAt time.Time
}

// Store owns conversation persistence and its read-through cache. Every
// mutating call refreshes or invalidates the cache entry before returning.
type Store struct {
	repo       interfaces.Repository
	cache      *expirable.LRU[types.ConversationID, *model.Conversation]
	partials   *expirable.LRU[types.ConversationID, *Partial]
	group      singleflight.Group
	cacheTTL   time.Duration
	partialTTL time.Duration
}

type Option func(*Store)

// WithCacheTTL overrides the conversation cache TTL
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.cacheTTL = ttl
	}
}

// WithPartialTTL overrides the partial buffer TTL
func WithPartialTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.partialTTL = ttl
	}
}

func New(repo interfaces.Repository, opts ...Option) *Store {
	s := &Store{
		repo:       repo,
		cacheTTL:   defaultCacheTTL,
		partialTTL: defaultPartialTTL,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.cache = expirable.NewLRU[types.ConversationID, *model.Conversation](defaultCacheSize, nil, s.cacheTTL)
	s.partials = expirable.NewLRU[types.ConversationID, *Partial](defaultCacheSize, nil, s.partialTTL)

	return s
}

// Get returns the conversation, creating a new one when the ID is absent,
// malformed, or unknown. A bad conversation ID is never an error for the
// caller; only a failed create is.
func (s *Store) Get(ctx context.Context, id types.ConversationID, userID types.UserID) (*model.Conversation, error) {
	if id == "" || id.Validate() != nil {
		return s.create(ctx, userID)
	}

	if conv, ok := s.cache.Get(id); ok && conv.UserID == userID {
		return conv.Clone(), nil
	}

	v, err, _ := s.group.Do(id.String(), func() (any, error) {
		conv, err := s.repo.Conversation().Get(ctx, id, userID)
		if err != nil {
			return nil, err
		}
		s.cache.Add(id, conv.Clone())
		return conv, nil
	})
	if err != nil {
		if !errors.Is(err, interfaces.ErrNotFound) {
			logging.From(ctx).Warn("conversation load failed, starting fresh",
				"id", id, "error", err.Error())
		}
		return s.create(ctx, userID)
	}

	return v.(*model.Conversation).Clone(), nil
}

func (s *Store) create(ctx context.Context, userID types.UserID) (*model.Conversation, error) {
	conv := model.NewConversation(userID)
	if err := s.repo.Conversation().Create(ctx, conv); err != nil {
		return nil, goerr.Wrap(err, "failed to create conversation", goerr.V("userID", userID))
	}
	s.cache.Add(conv.ID, conv.Clone())
	return conv, nil
}

// AppendExchange persists a completed user/assistant exchange. The cache
// entry is refreshed and the partial buffer dropped before returning.
func (s *Store) AppendExchange(ctx context.Context, id types.ConversationID, userMsg, assistantMsg model.Message) (*model.Conversation, error) {
	conv, err := s.repo.Conversation().AppendExchange(ctx, id, userMsg, assistantMsg)
	if err != nil {
		s.cache.Remove(id)
		return nil, goerr.Wrap(err, "failed to append exchange", goerr.V("id", id))
	}

	s.cache.Add(id, conv.Clone())
	s.partials.Remove(id)
	return conv, nil
}

// RewriteSummary replaces the conversation summary wholesale
func (s *Store) RewriteSummary(ctx context.Context, id types.ConversationID, summary string) error {
	if err := s.repo.Conversation().UpdateSummary(ctx, id, summary); err != nil {
		s.cache.Remove(id)
		return goerr.Wrap(err, "failed to rewrite summary", goerr.V("id", id))
	}

	// Refresh from cache if present rather than re-reading the store
	if conv, ok := s.cache.Get(id); ok {
		updated := conv.Clone()
		updated.Summary = summary
		s.cache.Add(id, updated)
	}
	return nil
}

// SavePartial records the accumulated in-flight response text. Best-effort:
// it never fails and the entry expires on its own.
func (s *Store) SavePartial(_ context.Context, id types.ConversationID, userID types.UserID, text string) {
	s.partials.Add(id, &Partial{
		UserID:    userID,
		Text:      text,
		UpdatedAt: time.Now().UTC(),
	})
}

// GetPartial returns the buffered in-flight response, if any
func (s *Store) GetPartial(id types.ConversationID) (*Partial, bool) {
	return s.partials.Get(id)
}

// List returns the user's conversations, most recently updated first
func (s *Store) List(ctx context.Context, userID types.UserID, limit int) ([]*model.Conversation, error) {
	conversations, err := s.repo.Conversation().List(ctx, userID, limit)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list conversations", goerr.V("userID", userID))
	}
	return conversations, nil
}
