package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/halfmoon-lab/chatrelay/pkg/domain/model"
	"github.com/halfmoon-lab/chatrelay/pkg/domain/types"
	"github.com/halfmoon-lab/chatrelay/pkg/service/memoryindex"
	"github.com/halfmoon-lab/chatrelay/pkg/utils/logging"
)

// ContextConfig holds the context assembly knobs. Zero values fall back to
// the defaults.
type ContextConfig struct {
	// Window is the number of recent non-system messages kept verbatim
	Window int

	// MaxTokens caps the estimated token cost of the window
	MaxTokens int

	// CharsPerToken is the divisor for the character-based token estimate
	CharsPerToken int

	// SummaryInterval triggers a summary rewrite whenever the stored message
	// count is a positive multiple of it.
	SummaryInterval int

	// MemoryTopK is how many related past exchanges to retrieve
	MemoryTopK int
}

// DefaultContextConfig returns the production defaults
func DefaultContextConfig() ContextConfig {
	return ContextConfig{
		Window:          6,
		MaxTokens:       4000,
		CharsPerToken:   4,
		SummaryInterval: 6,
		MemoryTopK:      5,
	}
}

func (c ContextConfig) normalized() ContextConfig {
	def := DefaultContextConfig()
	if c.Window <= 0 {
		c.Window = def.Window
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = def.MaxTokens
	}
	if c.CharsPerToken <= 0 {
		c.CharsPerToken = def.CharsPerToken
	}
	if c.SummaryInterval <= 0 {
		c.SummaryInterval = def.SummaryInterval
	}
	if c.MemoryTopK <= 0 {
		c.MemoryTopK = def.MemoryTopK
	}
	return c
}

// buildContext assembles the bounded prompt context for one turn: the
// budget-enforced rolling window plus the summary and episodic memory
// instruction text. It never fails; each enrichment degrades independently
// and the result always respects the token budget.
func (uc *ChatUseCase) buildContext(ctx context.Context, conv *model.Conversation, query string) model.ContextBundle {
	cfg := uc.contextCfg.normalized()

	summaryText := uc.refreshSummary(ctx, conv, cfg)
	hits := uc.recallEpisodes(ctx, conv.UserID, query, cfg.MemoryTopK)

	window := rollingWindow(conv.Messages, cfg.Window)
	window = enforceBudget(window, cfg.MaxTokens, cfg.CharsPerToken)

	return model.ContextBundle{
		Messages:    window,
		Instruction: renderInstruction(summaryText, hits),
	}
}

// refreshSummary rewrites the summary when the stored message count hits the
// interval. The rewrite is advisory: on any failure the previous summary is
// kept and the turn proceeds.
func (uc *ChatUseCase) refreshSummary(ctx context.Context, conv *model.Conversation, cfg ContextConfig) string {
	n := len(conv.Messages)
	if uc.summarizer == nil || n == 0 || n%cfg.SummaryInterval != 0 {
		return conv.Summary
	}

	recent := conv.Messages
	if len(recent) > cfg.SummaryInterval {
		recent = recent[len(recent)-cfg.SummaryInterval:]
	}

	updated, err := uc.summarizer.Summarize(ctx, conv.Summary, recent)
	if err != nil {
		logging.From(ctx).Warn("summary rewrite failed, keeping previous",
			"conversation", conv.ID, "error", err.Error())
		return conv.Summary
	}

	if err := uc.store.RewriteSummary(ctx, conv.ID, updated); err != nil {
		logging.From(ctx).Warn("summary persist failed",
			"conversation", conv.ID, "error", err.Error())
	}
	return updated
}

// recallEpisodes retrieves related past exchanges. Retrieval failures
// degrade to no memory context.
func (uc *ChatUseCase) recallEpisodes(ctx context.Context, userID types.UserID, query string, k int) []memoryindex.Hit {
	if uc.memory == nil {
		return nil
	}

	hits, err := uc.memory.Search(ctx, userID, query, k)
	if err != nil {
		logging.From(ctx).Warn("episodic memory retrieval failed",
			"userID", userID, "error", err.Error())
		return nil
	}
	return hits
}

// rollingWindow keeps the last n non-system messages in chronological order
func rollingWindow(msgs []model.Message, n int) []model.Message {
	window := make([]model.Message, 0, n)
	for _, m := range msgs {
		if m.Role == types.RoleSystem {
			continue
		}
		window = append(window, m)
	}
	if len(window) > n {
		window = window[len(window)-n:]
	}
	return window
}

// messageCost is the estimated token cost of one message, rounding the
// character count up to whole tokens.
func messageCost(m model.Message, charsPerToken int) int {
	return (len(m.Content) + charsPerToken - 1) / charsPerToken
}

// enforceBudget keeps the longest suffix of msgs whose estimated cost fits
// within maxTokens, preferring the newest messages. The result stays in
// chronological order. A window already within budget is returned as is.
func enforceBudget(msgs []model.Message, maxTokens, charsPerToken int) []model.Message {
	remaining := maxTokens
	start := len(msgs)
	for i := len(msgs) - 1; i >= 0; i-- {
		cost := messageCost(msgs[i], charsPerToken)
		if cost > remaining {
			break
		}
		remaining -= cost
		start = i
	}
	return msgs[start:]
}

// renderInstruction concatenates the summary and memory sections. Empty
// sections are omitted entirely; both empty yields an empty instruction.
func renderInstruction(summary string, hits []memoryindex.Hit) string {
	var sb strings.Builder

	if summary != "" {
		sb.WriteString("## Conversation summary\n\n")
		sb.WriteString(summary)
		sb.WriteString("\n")
	}

	if len(hits) > 0 {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("## Related past exchanges\n\n")
		for _, h := range hits {
			fmt.Fprintf(&sb, "- Q: %s\n  A: %s\n", h.Query, h.Answer)
		}
	}

	return strings.TrimRight(sb.String(), "\n")
}
