package model

import (
	"time"

	"github.com/halfmoon-lab/chatrelay/pkg/domain/types"
)

// EmbeddingDimension is the vector size used for episodic memory search
const EmbeddingDimension = 768

// Episode is one remembered user exchange, retrievable by vector
// similarity. Episodes are scoped to a user, not a conversation.
type Episode struct {
	ID        types.EpisodeID
	UserID    types.UserID
	Query     string
	Answer    string
	Embedding []float32
	Score     float64 // cosine similarity, populated on retrieval only
	CreatedAt time.Time
}
