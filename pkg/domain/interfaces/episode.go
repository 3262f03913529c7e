package interfaces

import (
	"context"

	"github.com/halfmoon-lab/chatrelay/pkg/domain/model"
	"github.com/halfmoon-lab/chatrelay/pkg/domain/types"
)

// EpisodeRepository defines the interface for episodic memory persistence
type EpisodeRepository interface {
	// Create persists a new episode
	Create(ctx context.Context, episode *model.Episode) (*model.Episode, error)

	// FindByEmbedding performs vector similarity search using cosine
	// distance, scoped to the user. Returns up to limit episodes most
	// similar to the given embedding, best match first.
	FindByEmbedding(ctx context.Context, userID types.UserID, embedding []float32, limit int) ([]*model.Episode, error)

	// List retrieves the user's episodes, newest first
	List(ctx context.Context, userID types.UserID, limit int) ([]*model.Episode, error)
}
