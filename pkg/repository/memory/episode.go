package memory

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/halfmoon-lab/chatrelay/pkg/domain/interfaces"
	"github.com/halfmoon-lab/chatrelay/pkg/domain/model"
	"github.com/halfmoon-lab/chatrelay/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

type episodeRepository struct {
	mu       sync.RWMutex
	episodes map[types.UserID][]*model.Episode
}

var _ interfaces.EpisodeRepository = &episodeRepository{}

func newEpisodeRepository() *episodeRepository {
	return &episodeRepository{
		episodes: make(map[types.UserID][]*model.Episode),
	}
}

func copyEpisode(e *model.Episode) *model.Episode {
	copied := &model.Episode{
		ID:        e.ID,
		UserID:    e.UserID,
		Query:     e.Query,
		Answer:    e.Answer,
		Score:     e.Score,
		CreatedAt: e.CreatedAt,
	}
	if e.Embedding != nil {
		copied.Embedding = make([]float32, len(e.Embedding))
		copy(copied.Embedding, e.Embedding)
	}
	return copied
}

func (r *episodeRepository) Create(_ context.Context, episode *model.Episode) (*model.Episode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	created := copyEpisode(episode)
	if created.ID == "" {
		created.ID = types.NewEpisodeID()
	}
	if created.CreatedAt.IsZero() {
		created.CreatedAt = time.Now().UTC()
	}

	r.episodes[created.UserID] = append(r.episodes[created.UserID], created)
	return copyEpisode(created), nil
}

func (r *episodeRepository) FindByEmbedding(_ context.Context, userID types.UserID, embedding []float32, limit int) ([]*model.Episode, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(embedding) == 0 {
		return nil, goerr.New("embedding is required")
	}
	if limit <= 0 {
		limit = 5
	}

	scored := make([]*model.Episode, 0)
	for _, e := range r.episodes[userID] {
		if len(e.Embedding) != len(embedding) {
			continue
		}
		copied := copyEpisode(e)
		copied.Score = cosineSimilarity(e.Embedding, embedding)
		scored = append(scored, copied)
	}

	sort.Slice(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > limit {
		scored = scored[:limit]
	}

	return scored, nil
}

func (r *episodeRepository) List(_ context.Context, userID types.UserID, limit int) ([]*model.Episode, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	episodes := r.episodes[userID]
	result := make([]*model.Episode, 0, len(episodes))
	for _, e := range episodes {
		result = append(result, copyEpisode(e))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
