package summary_test

import (
	"context"
	"strings"
	"testing"

	"github.com/halfmoon-lab/chatrelay/pkg/domain/model"
	"github.com/halfmoon-lab/chatrelay/pkg/service/summary"
	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gt"
)

type mockLLMSession struct {
	generateContentFn func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error)
}

func (s *mockLLMSession) Generate(ctx context.Context, input []gollem.Input, opts ...gollem.GenerateOption) (*gollem.Response, error) {
	return s.GenerateContent(ctx, input...)
}

func (s *mockLLMSession) Stream(ctx context.Context, input []gollem.Input, opts ...gollem.GenerateOption) (<-chan *gollem.Response, error) {
	return s.GenerateStream(ctx, input...)
}

func (s *mockLLMSession) GenerateContent(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
	if s.generateContentFn != nil {
		return s.generateContentFn(ctx, input...)
	}
	return &gollem.Response{Texts: []string{"a concise summary"}}, nil
}

func (s *mockLLMSession) GenerateStream(ctx context.Context, input ...gollem.Input) (<-chan *gollem.Response, error) {
	return nil, nil
}

func (s *mockLLMSession) History() (*gollem.History, error) {
	return nil, nil
}

func (s *mockLLMSession) AppendHistory(*gollem.History) error {
	return nil
}

func (s *mockLLMSession) CountToken(ctx context.Context, input ...gollem.Input) (int, error) {
	return 0, nil
}

type mockLLMClient struct {
	generateContentFn func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error)
}

func (c *mockLLMClient) NewSession(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
	return &mockLLMSession{generateContentFn: c.generateContentFn}, nil
}

func (c *mockLLMClient) GenerateEmbedding(ctx context.Context, dimension int, input []string) ([][]float64, error) {
	return nil, nil
}

func TestSummarize(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the generated summary trimmed", func(t *testing.T) {
		svc, err := summary.New(&mockLLMClient{
			generateContentFn: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
				return &gollem.Response{Texts: []string{"  discussed index tuning  "}}, nil
			},
		})
		gt.NoError(t, err).Required()

		got, err := svc.Summarize(ctx, "", []model.Message{model.NewUserMessage("how do I tune my index?")})
		gt.NoError(t, err).Required()
		gt.Value(t, got).Equal("discussed index tuning")
	})

	t.Run("includes previous summary and messages in the prompt", func(t *testing.T) {
		var prompt string
		svc, err := summary.New(&mockLLMClient{
			generateContentFn: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
				for _, in := range input {
					if text, ok := in.(gollem.Text); ok {
						prompt = string(text)
					}
				}
				return &gollem.Response{Texts: []string{"updated"}}, nil
			},
		})
		gt.NoError(t, err).Required()

		_, err = svc.Summarize(ctx, "previously about caching", []model.Message{
			model.NewUserMessage("what about eviction?"),
			model.NewAssistantMessage("LRU is the usual default.", "gemini-2.0-flash"),
		})
		gt.NoError(t, err).Required()
		gt.Bool(t, strings.Contains(prompt, "previously about caching")).True()
		gt.Bool(t, strings.Contains(prompt, "what about eviction?")).True()
		gt.Bool(t, strings.Contains(prompt, "LRU is the usual default.")).True()
	})

	t.Run("empty response is an error", func(t *testing.T) {
		svc, err := summary.New(&mockLLMClient{
			generateContentFn: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
				return &gollem.Response{Texts: []string{"   "}}, nil
			},
		})
		gt.NoError(t, err).Required()

		_, err = svc.Summarize(ctx, "prev", []model.Message{model.NewUserMessage("q")})
		gt.Error(t, err)
	})

	t.Run("nil client is rejected", func(t *testing.T) {
		_, err := summary.New(nil)
		gt.Error(t, err)
	})
}
