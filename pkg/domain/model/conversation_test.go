package model_test

import (
	"strings"
	"testing"

	"github.com/halfmoon-lab/chatrelay/pkg/domain/model"
	"github.com/halfmoon-lab/chatrelay/pkg/domain/types"
	"github.com/m-mizutani/gt"
)

func TestConversationAppend(t *testing.T) {
	t.Run("keeps MessageCount in sync", func(t *testing.T) {
		conv := model.NewConversation("user-1")
		conv.Append(
			model.NewUserMessage("hello"),
			model.NewAssistantMessage("hi", "gemini-2.0-flash"),
		)
		gt.Value(t, conv.MessageCount).Equal(2)

		conv.Append(model.NewUserMessage("more"))
		gt.Value(t, conv.MessageCount).Equal(3)
	})

	t.Run("derives the title from the first user message", func(t *testing.T) {
		conv := model.NewConversation("user-1")
		conv.Append(model.NewUserMessage("what is the capital of France?"))
		gt.Value(t, conv.Title).Equal("what is the capital of France?")

		conv.Append(model.NewUserMessage("a different question"))
		gt.Value(t, conv.Title).Equal("what is the capital of France?")
	})

	t.Run("truncates long titles", func(t *testing.T) {
		conv := model.NewConversation("user-1")
		conv.Append(model.NewUserMessage(strings.Repeat("z", 200)))
		gt.Value(t, len([]rune(conv.Title))).Equal(80)
	})
}

func TestConversationClone(t *testing.T) {
	conv := model.NewConversation("user-1")
	msg := model.NewUserMessage("original")
	msg.Metadata = map[string]string{"source": "test"}
	conv.Append(msg)

	clone := conv.Clone()
	clone.Messages[0].Content = "mutated"
	clone.Messages[0].Metadata["source"] = "mutated"
	clone.Messages = append(clone.Messages, model.NewUserMessage("extra"))

	gt.Value(t, conv.Messages[0].Content).Equal("original")
	gt.Value(t, conv.Messages[0].Metadata["source"]).Equal("test")
	gt.Array(t, conv.Messages).Length(1)
}

func TestRouteCandidates(t *testing.T) {
	route := &model.Route{
		Primary:   "a",
		Fallbacks: []string{"b", "c"},
	}

	candidates := route.Candidates()
	gt.Array(t, candidates).Length(3)
	gt.Value(t, candidates[0]).Equal("a")
	gt.Value(t, candidates[1]).Equal("b")
	gt.Value(t, candidates[2]).Equal("c")

	bare := &model.Route{Primary: "only"}
	gt.Array(t, bare.Candidates()).Length(1)
}

func TestMessageConstructors(t *testing.T) {
	u := model.NewUserMessage("q")
	gt.Value(t, u.Role).Equal(types.RoleUser)
	gt.Bool(t, u.CreatedAt.IsZero()).False()

	a := model.NewAssistantMessage("ans", "claude-sonnet-4")
	gt.Value(t, a.Role).Equal(types.RoleAssistant)
	gt.Value(t, a.Model).Equal("claude-sonnet-4")
}
