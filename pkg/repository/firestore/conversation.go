package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/halfmoon-lab/chatrelay/pkg/domain/interfaces"
	"github.com/halfmoon-lab/chatrelay/pkg/domain/model"
	"github.com/halfmoon-lab/chatrelay/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// messageDoc is the Firestore representation of model.Message
type messageDoc struct {
	Role      string            `firestore:"Role"`
	Content   string            `firestore:"Content"`
	Model     string            `firestore:"Model,omitempty"`
	Metadata  map[string]string `firestore:"Metadata,omitempty"`
	CreatedAt time.Time         `firestore:"CreatedAt"`
}

// conversationDoc is the Firestore document representation of
// model.Conversation. Messages are embedded: a conversation is read and
// written as one unit, last write wins at document granularity.
type conversationDoc struct {
	ID           string       `firestore:"ID"`
	UserID       string       `firestore:"UserID"`
	Title        string       `firestore:"Title"`
	Summary      string       `firestore:"Summary"`
	Messages     []messageDoc `firestore:"Messages"`
	MessageCount int          `firestore:"MessageCount"`
	CreatedAt    time.Time    `firestore:"CreatedAt"`
	UpdatedAt    time.Time    `firestore:"UpdatedAt"`
}

func toConversationDoc(c *model.Conversation) *conversationDoc {
	doc := &conversationDoc{
		ID:           c.ID.String(),
		UserID:       c.UserID.String(),
		Title:        c.Title,
		Summary:      c.Summary,
		MessageCount: c.MessageCount,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
	doc.Messages = make([]messageDoc, len(c.Messages))
	for i, m := range c.Messages {
		doc.Messages[i] = messageDoc{
			Role:      m.Role.String(),
			Content:   m.Content,
			Model:     m.Model,
			Metadata:  m.Metadata,
			CreatedAt: m.CreatedAt,
		}
	}
	return doc
}

func fromConversationDoc(d *conversationDoc) *model.Conversation {
	c := &model.Conversation{
		ID:           types.ConversationID(d.ID),
		UserID:       types.UserID(d.UserID),
		Title:        d.Title,
		Summary:      d.Summary,
		MessageCount: d.MessageCount,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
	c.Messages = make([]model.Message, len(d.Messages))
	for i, m := range d.Messages {
		c.Messages[i] = model.Message{
			Role:      types.Role(m.Role),
			Content:   m.Content,
			Model:     m.Model,
			Metadata:  m.Metadata,
			CreatedAt: m.CreatedAt,
		}
	}
	return c
}

type conversationRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

var _ interfaces.ConversationRepository = &conversationRepository{}

func newConversationRepository(client *firestore.Client) *conversationRepository {
	return &conversationRepository{client: client}
}

func (r *conversationRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(r.collectionPrefix + "conversations")
}

func (r *conversationRepository) Create(ctx context.Context, conv *model.Conversation) error {
	docRef := r.collection().Doc(conv.ID.String())
	if _, err := docRef.Create(ctx, toConversationDoc(conv)); err != nil {
		return goerr.Wrap(err, "failed to create conversation", goerr.V("id", conv.ID))
	}
	return nil
}

func (r *conversationRepository) Get(ctx context.Context, id types.ConversationID, userID types.UserID) (*model.Conversation, error) {
	doc, err := r.collection().Doc(id.String()).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(interfaces.ErrNotFound, "conversation not found", goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get conversation", goerr.V("id", id))
	}

	var d conversationDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal conversation", goerr.V("id", id))
	}

	if d.UserID != userID.String() {
		return nil, goerr.Wrap(interfaces.ErrNotFound, "conversation not found",
			goerr.V("id", id), goerr.V("userID", userID))
	}

	return fromConversationDoc(&d), nil
}

func (r *conversationRepository) AppendExchange(ctx context.Context, id types.ConversationID, userMsg, assistantMsg model.Message) (*model.Conversation, error) {
	doc, err := r.collection().Doc(id.String()).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(interfaces.ErrNotFound, "conversation not found", goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get conversation", goerr.V("id", id))
	}

	var d conversationDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal conversation", goerr.V("id", id))
	}

	conv := fromConversationDoc(&d)
	conv.Append(userMsg, assistantMsg)

	if _, err := r.collection().Doc(id.String()).Set(ctx, toConversationDoc(conv)); err != nil {
		return nil, goerr.Wrap(err, "failed to append exchange", goerr.V("id", id))
	}

	return conv, nil
}

func (r *conversationRepository) UpdateSummary(ctx context.Context, id types.ConversationID, summary string) error {
	_, err := r.collection().Doc(id.String()).Update(ctx, []firestore.Update{
		{Path: "Summary", Value: summary},
		{Path: "UpdatedAt", Value: time.Now().UTC()},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return goerr.Wrap(interfaces.ErrNotFound, "conversation not found", goerr.V("id", id))
		}
		return goerr.Wrap(err, "failed to update summary", goerr.V("id", id))
	}
	return nil
}

func (r *conversationRepository) List(ctx context.Context, userID types.UserID, limit int) ([]*model.Conversation, error) {
	if limit <= 0 {
		limit = 50
	}

	iter := r.collection().
		Where("UserID", "==", userID.String()).
		OrderBy("UpdatedAt", firestore.Desc).
		Limit(limit).
		Documents(ctx)
	defer iter.Stop()

	conversations := make([]*model.Conversation, 0, limit)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate conversations")
		}

		var d conversationDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal conversation")
		}

		conversations = append(conversations, fromConversationDoc(&d))
	}

	return conversations, nil
}
