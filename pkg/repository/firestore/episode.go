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
)

// episodeDoc is the Firestore document representation of model.Episode.
// Embedding is stored as firestore.Vector32 for FindNearest vector search.
type episodeDoc struct {
	ID        string             `firestore:"ID"`
	UserID    string             `firestore:"UserID"`
	Query     string             `firestore:"Query"`
	Answer    string             `firestore:"Answer"`
	Embedding firestore.Vector32 `firestore:"Embedding,omitempty"`
	CreatedAt time.Time          `firestore:"CreatedAt"`
}

func toEpisodeDoc(e *model.Episode) *episodeDoc {
	doc := &episodeDoc{
		ID:        e.ID.String(),
		UserID:    e.UserID.String(),
		Query:     e.Query,
		Answer:    e.Answer,
		CreatedAt: e.CreatedAt,
	}
	if len(e.Embedding) > 0 {
		doc.Embedding = firestore.Vector32(e.Embedding)
	}
	return doc
}

func fromEpisodeDoc(d *episodeDoc) *model.Episode {
	e := &model.Episode{
		ID:        types.EpisodeID(d.ID),
		UserID:    types.UserID(d.UserID),
		Query:     d.Query,
		Answer:    d.Answer,
		CreatedAt: d.CreatedAt,
	}
	if len(d.Embedding) > 0 {
		e.Embedding = []float32(d.Embedding)
	}
	return e
}

type episodeRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

var _ interfaces.EpisodeRepository = &episodeRepository{}

func newEpisodeRepository(client *firestore.Client) *episodeRepository {
	return &episodeRepository{client: client}
}

// episodesCollection returns the subcollection path:
// users/{userID}/episodes
func (r *episodeRepository) episodesCollection(userID types.UserID) *firestore.CollectionRef {
	return r.client.Collection(r.collectionPrefix+"users").Doc(userID.String()).
		Collection("episodes")
}

func (r *episodeRepository) Create(ctx context.Context, episode *model.Episode) (*model.Episode, error) {
	if episode.ID == "" {
		episode.ID = types.NewEpisodeID()
	}
	if episode.CreatedAt.IsZero() {
		episode.CreatedAt = time.Now().UTC()
	}

	docRef := r.episodesCollection(episode.UserID).Doc(episode.ID.String())
	if _, err := docRef.Set(ctx, toEpisodeDoc(episode)); err != nil {
		return nil, goerr.Wrap(err, "failed to create episode", goerr.V("id", episode.ID))
	}

	return episode, nil
}

func (r *episodeRepository) FindByEmbedding(ctx context.Context, userID types.UserID, embedding []float32, limit int) ([]*model.Episode, error) {
	if limit <= 0 {
		limit = 5
	}

	vq := r.episodesCollection(userID).
		FindNearest("Embedding", firestore.Vector32(embedding), limit, firestore.DistanceMeasureCosine, nil)

	iter := vq.Documents(ctx)
	defer iter.Stop()

	episodes := make([]*model.Episode, 0, limit)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate episode vector search results")
		}

		var d episodeDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal episode from vector search")
		}

		episodes = append(episodes, fromEpisodeDoc(&d))
	}

	return episodes, nil
}

func (r *episodeRepository) List(ctx context.Context, userID types.UserID, limit int) ([]*model.Episode, error) {
	if limit <= 0 {
		limit = 50
	}

	iter := r.episodesCollection(userID).
		OrderBy("CreatedAt", firestore.Desc).
		Limit(limit).
		Documents(ctx)
	defer iter.Stop()

	episodes := make([]*model.Episode, 0, limit)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate episodes")
		}

		var d episodeDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal episode")
		}

		episodes = append(episodes, fromEpisodeDoc(&d))
	}

	return episodes, nil
}
