package usecase_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/halfmoon-lab/chatrelay/pkg/domain/model"
	"github.com/halfmoon-lab/chatrelay/pkg/domain/types"
	"github.com/halfmoon-lab/chatrelay/pkg/repository/memory"
	"github.com/halfmoon-lab/chatrelay/pkg/service/convstore"
	"github.com/halfmoon-lab/chatrelay/pkg/service/provider"
	"github.com/halfmoon-lab/chatrelay/pkg/service/router"
	"github.com/halfmoon-lab/chatrelay/pkg/usecase"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gt"
)

// ----- mock gollem client -----

type mockSession struct {
	chunks    []string
	contentFn func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error)
	streamErr error
}

func (s *mockSession) Generate(ctx context.Context, input []gollem.Input, opts ...gollem.GenerateOption) (*gollem.Response, error) {
	return s.GenerateContent(ctx, input...)
}

func (s *mockSession) Stream(ctx context.Context, input []gollem.Input, opts ...gollem.GenerateOption) (<-chan *gollem.Response, error) {
	return s.GenerateStream(ctx, input...)
}

func (s *mockSession) GenerateContent(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
	if s.contentFn != nil {
		return s.contentFn(ctx, input...)
	}
	return &gollem.Response{}, nil
}

func (s *mockSession) GenerateStream(ctx context.Context, input ...gollem.Input) (<-chan *gollem.Response, error) {
	if s.streamErr != nil {
		return nil, s.streamErr
	}
	out := make(chan *gollem.Response)
	go func() {
		defer close(out)
		for _, c := range s.chunks {
			out <- &gollem.Response{Texts: []string{c}}
		}
	}()
	return out, nil
}

func (s *mockSession) History() (*gollem.History, error) {
	return nil, nil
}

func (s *mockSession) AppendHistory(*gollem.History) error {
	return nil
}

func (s *mockSession) CountToken(ctx context.Context, input ...gollem.Input) (int, error) {
	return 0, nil
}

type mockClient struct {
	sessionErr error
	session    *mockSession
	embedFn    func(ctx context.Context, dimension int, input []string) ([][]float64, error)
}

func (c *mockClient) NewSession(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
	if c.sessionErr != nil {
		return nil, c.sessionErr
	}
	return c.session, nil
}

func (c *mockClient) GenerateEmbedding(ctx context.Context, dimension int, input []string) ([][]float64, error) {
	if c.embedFn != nil {
		return c.embedFn(ctx, dimension, input)
	}
	return nil, nil
}

func factoryFor(client gollem.LLMClient) provider.ClientFactory {
	return func(ctx context.Context, model string) (gollem.LLMClient, error) {
		return client, nil
	}
}

// chatTable routes one model per provider family so fallback crosses
// provider boundaries.
func chatTable() *router.ModelTable {
	all := []types.Tier{types.TierFree, types.TierPlus, types.TierPro}
	text := []types.ContentType{types.ContentTypeText}

	return &router.ModelTable{
		Default: "gemini-alpha",
		Models: []router.ModelEntry{
			{ID: "gemini-alpha", Tiers: all, Types: text, Priority: 1},
			{ID: "gpt-beta", Tiers: all, Types: text, Priority: 2},
			{ID: "claude-gamma", Tiers: all, Types: text, Priority: 3},
		},
	}
}

func newChatUseCase(t *testing.T, registry *provider.Registry) (*usecase.ChatUseCase, *convstore.Store) {
	t.Helper()

	store := convstore.New(memory.New())
	rt, err := router.New(nil, chatTable())
	gt.NoError(t, err).Required()

	return usecase.New(store, rt, registry), store
}

type eventLog struct {
	events []model.StreamEvent
}

func (l *eventLog) emit(ev model.StreamEvent) error {
	l.events = append(l.events, ev)
	return nil
}

func (l *eventLog) byType(et types.EventType) []model.StreamEvent {
	var out []model.StreamEvent
	for _, ev := range l.events {
		if ev.Type == et {
			out = append(out, ev)
		}
	}
	return out
}

func (l *eventLog) accumulated() string {
	tokens := l.byType(types.EventToken)
	if len(tokens) == 0 {
		return ""
	}
	return tokens[len(tokens)-1].Payload.(model.TokenPayload).Text
}

func TestSendSuccess(t *testing.T) {
	ctx := context.Background()

	registry := provider.NewRegistry()
	registry.Register(provider.TagGemini, factoryFor(&mockClient{
		session: &mockSession{chunks: []string{"Hello ", "world"}},
	}))

	uc, store := newChatUseCase(t, registry)

	log := &eventLog{}
	err := uc.Send(ctx, usecase.SendInput{
		UserID:  "user-1",
		Message: "say hello",
		Tier:    types.TierFree,
	}, log.emit)
	gt.NoError(t, err).Required()

	t.Run("events arrive in protocol order", func(t *testing.T) {
		gt.Value(t, log.events[0].Type).Equal(types.EventSession)
		gt.Array(t, log.byType(types.EventModel)).Length(1)
		gt.Value(t, log.byType(types.EventModel)[0].Payload.(model.ModelPayload).Model).Equal("gemini-alpha")

		tokens := log.byType(types.EventToken)
		gt.Array(t, tokens).Length(2)
		gt.Value(t, tokens[0].Payload.(model.TokenPayload).Delta).Equal("Hello ")
		gt.Value(t, tokens[0].Payload.(model.TokenPayload).Text).Equal("Hello ")
		gt.Value(t, tokens[1].Payload.(model.TokenPayload).Text).Equal("Hello world")
	})

	t.Run("stream ends with exactly one sentinel", func(t *testing.T) {
		gt.Array(t, log.byType(types.EventDone)).Length(1)
		gt.Value(t, log.events[len(log.events)-1].Type).Equal(types.EventDone)
	})

	t.Run("exchange is persisted with the serving model", func(t *testing.T) {
		convID := types.ConversationID(log.events[0].Payload.(model.SessionPayload).ConversationID)
		conv, err := store.Get(ctx, convID, "user-1")
		gt.NoError(t, err).Required()
		gt.Value(t, conv.MessageCount).Equal(2)
		gt.Value(t, conv.Messages[0].Content).Equal("say hello")
		gt.Value(t, conv.Messages[1].Content).Equal("Hello world")
		gt.Value(t, conv.Messages[1].Model).Equal("gemini-alpha")
	})
}

func TestSendFallback(t *testing.T) {
	ctx := context.Background()

	registry := provider.NewRegistry()
	registry.Register(provider.TagGemini, factoryFor(&mockClient{
		sessionErr: goerr.New("quota exceeded"),
	}))
	registry.Register(provider.TagOpenAI, factoryFor(&mockClient{
		session: &mockSession{streamErr: goerr.New("upstream overloaded")},
	}))
	registry.Register(provider.TagAnthropic, factoryFor(&mockClient{
		session: &mockSession{chunks: []string{"rescued"}},
	}))

	uc, store := newChatUseCase(t, registry)

	log := &eventLog{}
	err := uc.Send(ctx, usecase.SendInput{
		UserID:  "user-1",
		Message: "anyone home?",
		Tier:    types.TierFree,
	}, log.emit)
	gt.NoError(t, err).Required()

	t.Run("candidates are tried in table order", func(t *testing.T) {
		models := log.byType(types.EventModel)
		gt.Array(t, models).Length(3)
		gt.Value(t, models[0].Payload.(model.ModelPayload).Model).Equal("gemini-alpha")
		gt.Value(t, models[0].Payload.(model.ModelPayload).Attempt).Equal(1)
		gt.Value(t, models[1].Payload.(model.ModelPayload).Model).Equal("gpt-beta")
		gt.Value(t, models[2].Payload.(model.ModelPayload).Model).Equal("claude-gamma")
		gt.Value(t, models[2].Payload.(model.ModelPayload).Attempt).Equal(3)
	})

	t.Run("each failed candidate reports a non-fatal error", func(t *testing.T) {
		errs := log.byType(types.EventError)
		gt.Array(t, errs).Length(2)
		for _, ev := range errs {
			p := ev.Payload.(model.ErrorPayload)
			gt.Bool(t, p.Fatal).False()
			gt.String(t, p.Model).NotEqual("")
			// Raw provider errors never reach the stream
			gt.Bool(t, strings.Contains(p.Message, "quota")).False()
			gt.Bool(t, strings.Contains(p.Message, "overloaded")).False()
		}
	})

	t.Run("answer comes from the surviving candidate", func(t *testing.T) {
		gt.Value(t, log.accumulated()).Equal("rescued")

		convID := types.ConversationID(log.events[0].Payload.(model.SessionPayload).ConversationID)
		conv, err := store.Get(ctx, convID, "user-1")
		gt.NoError(t, err).Required()
		gt.Value(t, conv.Messages[1].Model).Equal("claude-gamma")
	})

	t.Run("sentinel still arrives exactly once", func(t *testing.T) {
		gt.Array(t, log.byType(types.EventDone)).Length(1)
		gt.Value(t, log.events[len(log.events)-1].Type).Equal(types.EventDone)
	})
}

func TestSendExhaustion(t *testing.T) {
	ctx := context.Background()

	registry := provider.NewRegistry()
	registry.Register(provider.TagGemini, factoryFor(&mockClient{sessionErr: goerr.New("down")}))
	registry.Register(provider.TagOpenAI, factoryFor(&mockClient{sessionErr: goerr.New("down")}))
	registry.Register(provider.TagAnthropic, factoryFor(&mockClient{sessionErr: goerr.New("down")}))

	uc, store := newChatUseCase(t, registry)

	log := &eventLog{}
	err := uc.Send(ctx, usecase.SendInput{
		UserID:  "user-1",
		Message: "hello?",
		Tier:    types.TierFree,
	}, log.emit)
	gt.Error(t, err)
	gt.Bool(t, errors.Is(err, usecase.ErrAllModelsFailed)).True()

	t.Run("final error event is fatal and generic", func(t *testing.T) {
		errs := log.byType(types.EventError)
		last := errs[len(errs)-1].Payload.(model.ErrorPayload)
		gt.Bool(t, last.Fatal).True()
		gt.Bool(t, strings.Contains(last.Message, "down")).False()
	})

	t.Run("sentinel is still the last event", func(t *testing.T) {
		gt.Array(t, log.byType(types.EventDone)).Length(1)
		gt.Value(t, log.events[len(log.events)-1].Type).Equal(types.EventDone)
	})

	t.Run("nothing is committed to the transcript", func(t *testing.T) {
		convID := types.ConversationID(log.events[0].Payload.(model.SessionPayload).ConversationID)
		conv, err := store.Get(ctx, convID, "user-1")
		gt.NoError(t, err).Required()
		gt.Value(t, conv.MessageCount).Equal(0)
	})
}

func TestSendUnconfiguredProviders(t *testing.T) {
	ctx := context.Background()

	// Only Anthropic has credentials; the first two candidates cannot even
	// resolve an adapter.
	registry := provider.NewRegistry()
	registry.Register(provider.TagAnthropic, factoryFor(&mockClient{
		session: &mockSession{chunks: []string{"still here"}},
	}))

	uc, _ := newChatUseCase(t, registry)

	log := &eventLog{}
	err := uc.Send(ctx, usecase.SendInput{
		UserID:  "user-1",
		Message: "hello",
		Tier:    types.TierFree,
	}, log.emit)
	gt.NoError(t, err).Required()

	models := log.byType(types.EventModel)
	gt.Array(t, models).Length(1)
	gt.Value(t, models[0].Payload.(model.ModelPayload).Model).Equal("claude-gamma")
	gt.Array(t, log.byType(types.EventError)).Length(2)
	gt.Value(t, log.accumulated()).Equal("still here")
}

func TestSendEmptyResponseFailsOver(t *testing.T) {
	ctx := context.Background()

	registry := provider.NewRegistry()
	registry.Register(provider.TagGemini, factoryFor(&mockClient{
		session: &mockSession{chunks: nil}, // stream completes without text
	}))
	registry.Register(provider.TagOpenAI, factoryFor(&mockClient{
		session: &mockSession{chunks: []string{"substance"}},
	}))
	registry.Register(provider.TagAnthropic, factoryFor(&mockClient{
		session: &mockSession{chunks: []string{"never reached"}},
	}))

	uc, _ := newChatUseCase(t, registry)

	log := &eventLog{}
	err := uc.Send(ctx, usecase.SendInput{
		UserID:  "user-1",
		Message: "hello",
		Tier:    types.TierFree,
	}, log.emit)
	gt.NoError(t, err).Required()
	gt.Value(t, log.accumulated()).Equal("substance")
}

func TestSendConversationContinuity(t *testing.T) {
	ctx := context.Background()

	registry := provider.NewRegistry()
	registry.Register(provider.TagGemini, factoryFor(&mockClient{
		session: &mockSession{chunks: []string{"reply"}},
	}))

	uc, store := newChatUseCase(t, registry)

	t.Run("garbage conversation ID starts a fresh session", func(t *testing.T) {
		log := &eventLog{}
		err := uc.Send(ctx, usecase.SendInput{
			UserID:         "user-1",
			ConversationID: "definitely-not-a-uuid",
			Message:        "first turn",
			Tier:           types.TierFree,
		}, log.emit)
		gt.NoError(t, err).Required()

		convID := types.ConversationID(log.events[0].Payload.(model.SessionPayload).ConversationID)
		gt.NoError(t, convID.Validate())

		log2 := &eventLog{}
		err = uc.Send(ctx, usecase.SendInput{
			UserID:         "user-1",
			ConversationID: convID,
			Message:        "second turn",
			Tier:           types.TierFree,
		}, log2.emit)
		gt.NoError(t, err).Required()
		gt.Value(t, log2.events[0].Payload.(model.SessionPayload).ConversationID).Equal(convID.String())

		conv, err := store.Get(ctx, convID, "user-1")
		gt.NoError(t, err).Required()
		gt.Value(t, conv.MessageCount).Equal(4)
	})
}

func TestSendValidation(t *testing.T) {
	ctx := context.Background()
	uc, _ := newChatUseCase(t, provider.NewRegistry())

	t.Run("missing user ID is rejected before streaming", func(t *testing.T) {
		log := &eventLog{}
		err := uc.Send(ctx, usecase.SendInput{Message: "hello"}, log.emit)
		gt.Error(t, err)
		gt.Bool(t, errors.Is(err, usecase.ErrUserIDRequired)).True()
		gt.Array(t, log.events).Length(0)
	})

	t.Run("blank message is rejected before streaming", func(t *testing.T) {
		log := &eventLog{}
		err := uc.Send(ctx, usecase.SendInput{UserID: "user-1", Message: "   "}, log.emit)
		gt.Error(t, err)
		gt.Bool(t, errors.Is(err, usecase.ErrMessageRequired)).True()
		gt.Array(t, log.events).Length(0)
	})
}

func TestSendDeadClient(t *testing.T) {
	ctx := context.Background()

	registry := provider.NewRegistry()
	registry.Register(provider.TagGemini, factoryFor(&mockClient{
		session: &mockSession{chunks: []string{"a", "b", "c"}},
	}))

	uc, store := newChatUseCase(t, registry)

	var delivered int
	emit := func(ev model.StreamEvent) error {
		delivered++
		if delivered > 2 {
			return goerr.New("broken pipe")
		}
		return nil
	}

	err := uc.Send(ctx, usecase.SendInput{
		UserID:  "user-1",
		Message: "hello",
		Tier:    types.TierFree,
	}, emit)
	gt.NoError(t, err)

	// The transcript is not committed for a client that went away
	conversations, err := store.List(ctx, "user-1", 10)
	gt.NoError(t, err).Required()
	gt.Array(t, conversations).Length(1)
	gt.Value(t, conversations[0].MessageCount).Equal(0)
}
