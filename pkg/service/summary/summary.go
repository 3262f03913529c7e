package summary

import (
	"bytes"
	"context"
	_ "embed"
	"strings"
	"text/template"

	"github.com/halfmoon-lab/chatrelay/pkg/domain/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
)

//go:embed prompt/summarize.md
var summarizePromptTmpl string

var summarizePrompt = template.Must(template.New("summarize").Parse(summarizePromptTmpl))

// noSummarySentinel replaces the previous summary on first regeneration
const noSummarySentinel = "None"

// Service rewrites conversation summaries with a low-cost model
type Service struct {
	llmClient gollem.LLMClient
}

// New creates a new summary service with the provided LLM client
func New(llmClient gollem.LLMClient) (*Service, error) {
	if llmClient == nil {
		return nil, goerr.New("LLM client is required")
	}
	return &Service{llmClient: llmClient}, nil
}

type promptMessage struct {
	Role    string
	Content string
}

type promptData struct {
	PreviousSummary string
	Messages        []promptMessage
}

// Summarize rewrites the summary from the previous one plus the recent
// messages. It returns an error on any failure, including an empty model
// response; the caller keeps the previous summary in that case.
func (s *Service) Summarize(ctx context.Context, previous string, msgs []model.Message) (string, error) {
	data := promptData{
		PreviousSummary: previous,
	}
	if data.PreviousSummary == "" {
		data.PreviousSummary = noSummarySentinel
	}
	for _, m := range msgs {
		data.Messages = append(data.Messages, promptMessage{
			Role:    m.Role.String(),
			Content: m.Content,
		})
	}

	var buf bytes.Buffer
	if err := summarizePrompt.Execute(&buf, data); err != nil {
		return "", goerr.Wrap(err, "failed to render summarize prompt")
	}

	session, err := s.llmClient.NewSession(ctx)
	if err != nil {
		return "", goerr.Wrap(err, "failed to create summarize session")
	}

	resp, err := session.GenerateContent(ctx, gollem.Text(buf.String()))
	if err != nil {
		return "", goerr.Wrap(err, "failed to generate summary")
	}

	if len(resp.Texts) == 0 {
		return "", goerr.New("summary generation returned no text")
	}

	result := strings.TrimSpace(strings.Join(resp.Texts, "\n"))
	if result == "" {
		return "", goerr.New("summary generation returned empty text")
	}

	return result, nil
}
