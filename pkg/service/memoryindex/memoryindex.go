package memoryindex

import (
	"context"
	"fmt"

	"github.com/halfmoon-lab/chatrelay/pkg/domain/interfaces"
	"github.com/halfmoon-lab/chatrelay/pkg/domain/model"
	"github.com/halfmoon-lab/chatrelay/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
)

// Hit is one retrieved past exchange with its similarity score
type Hit struct {
	Query  string
	Answer string
	Score  float64
}

// Index retrieves semantically related past exchanges for a user. Queries
// are embedded with the LLM client and matched against stored episodes by
// cosine similarity.
type Index struct {
	llmClient gollem.LLMClient
	episodes  interfaces.EpisodeRepository
}

// New creates a new episodic memory index
func New(llmClient gollem.LLMClient, episodes interfaces.EpisodeRepository) (*Index, error) {
	if llmClient == nil {
		return nil, goerr.New("LLM client is required")
	}
	if episodes == nil {
		return nil, goerr.New("episode repository is required")
	}
	return &Index{
		llmClient: llmClient,
		episodes:  episodes,
	}, nil
}

// Search returns up to k past exchanges most similar to the query text
func (x *Index) Search(ctx context.Context, userID types.UserID, text string, k int) ([]Hit, error) {
	embedding, err := x.embed(ctx, text)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed search query")
	}

	episodes, err := x.episodes.FindByEmbedding(ctx, userID, embedding, k)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to search episodes", goerr.V("userID", userID))
	}

	hits := make([]Hit, 0, len(episodes))
	for _, e := range episodes {
		hits = append(hits, Hit{
			Query:  e.Query,
			Answer: e.Answer,
			Score:  e.Score,
		})
	}

	return hits, nil
}

// Record embeds and stores a completed exchange so future queries can
// retrieve it.
func (x *Index) Record(ctx context.Context, userID types.UserID, query, answer string) error {
	embedding, err := x.embed(ctx, fmt.Sprintf("Q: %s\nA: %s", query, answer))
	if err != nil {
		return goerr.Wrap(err, "failed to embed exchange")
	}

	episode := &model.Episode{
		UserID:    userID,
		Query:     query,
		Answer:    answer,
		Embedding: embedding,
	}

	if _, err := x.episodes.Create(ctx, episode); err != nil {
		return goerr.Wrap(err, "failed to store episode", goerr.V("userID", userID))
	}

	return nil
}

func (x *Index) embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := x.llmClient.GenerateEmbedding(ctx, model.EmbeddingDimension, []string{text})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate embedding")
	}
	if len(embeddings) == 0 {
		return nil, goerr.New("no embedding returned")
	}

	result := make([]float32, len(embeddings[0]))
	for i, v := range embeddings[0] {
		result[i] = float32(v)
	}
	return result, nil
}
