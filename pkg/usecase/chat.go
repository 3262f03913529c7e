package usecase

import (
	"bytes"
	"context"
	_ "embed"
	"strings"
	"text/template"

	"github.com/halfmoon-lab/chatrelay/pkg/domain/model"
	"github.com/halfmoon-lab/chatrelay/pkg/domain/types"
	"github.com/halfmoon-lab/chatrelay/pkg/utils/async"
	"github.com/halfmoon-lab/chatrelay/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

//go:embed prompt/chat_system.md
var chatSystemPromptTmpl string

var chatSystemPrompt = template.Must(template.New("chat_system").Parse(chatSystemPromptTmpl))

// SendInput is one user turn entering the dispatcher
type SendInput struct {
	UserID         types.UserID
	ConversationID types.ConversationID // empty or unknown starts a new conversation
	Message        string
	Tier           types.Tier
}

// Validate checks the input before any stream event is emitted
func (x *SendInput) Validate() error {
	if x.UserID == "" {
		return goerr.Wrap(ErrUserIDRequired, "invalid send input")
	}
	if strings.TrimSpace(x.Message) == "" {
		return goerr.Wrap(ErrMessageRequired, "invalid send input")
	}
	return nil
}

// EmitFunc delivers one stream event to the client. A returned error means
// the client is gone; the dispatcher stops generating but never retries.
type EmitFunc func(model.StreamEvent) error

// emitter wraps EmitFunc so that a dead client silences all later events
// instead of failing the turn.
type emitter struct {
	emit EmitFunc
	dead bool
}

func (e *emitter) send(ctx context.Context, ev model.StreamEvent) {
	if e.dead {
		return
	}
	if err := e.emit(ev); err != nil {
		e.dead = true
		logging.From(ctx).Debug("stream client gone", "event", ev.Type, "error", err.Error())
	}
}

// Send runs one chat turn: resolve the conversation, decide the route,
// assemble context, then stream through the candidate chain until one model
// completes. Whatever happens after validation, the stream ends with exactly
// one completion sentinel.
func (uc *ChatUseCase) Send(ctx context.Context, input SendInput, emit EmitFunc) error {
	if err := input.Validate(); err != nil {
		return err
	}

	em := &emitter{emit: emit}
	defer em.send(ctx, model.DoneEvent())
	defer func() {
		if r := recover(); r != nil {
			logging.From(ctx).Error("panic in chat dispatch", "panic", r)
			em.send(ctx, model.ErrorEvent(genericFailureMessage, "", true))
		}
	}()

	conv, err := uc.store.Get(ctx, input.ConversationID, input.UserID)
	if err != nil {
		em.send(ctx, model.ErrorEvent(genericFailureMessage, "", true))
		return goerr.Wrap(err, "failed to resolve conversation", goerr.V("userID", input.UserID))
	}
	em.send(ctx, model.SessionEvent(conv.ID))

	route := uc.router.Decide(ctx, input.Message, input.Tier)
	bundle := uc.buildContext(ctx, conv, input.Message)
	systemPrompt := renderSystemPrompt(ctx, bundle)

	answer, served, err := uc.streamCandidates(ctx, em, conv, route, systemPrompt, input.Message)
	if err != nil {
		em.send(ctx, model.ErrorEvent(genericFailureMessage, "", true))
		return err
	}
	if em.dead {
		// Client went away mid-stream. The transcript is not committed; the
		// accumulated text stays in the partial buffer until it expires.
		return nil
	}

	uc.persistExchange(ctx, conv, input.Message, answer, served)
	return nil
}

// streamCandidates tries each candidate model in order, emitting token
// events as chunks arrive. Any candidate failure is reported as a non-fatal
// error event before moving on; only exhaustion of the whole chain is an
// error.
func (uc *ChatUseCase) streamCandidates(ctx context.Context, em *emitter, conv *model.Conversation, route *model.Route, systemPrompt, prompt string) (answer, served string, err error) {
	logger := logging.From(ctx)

	for attempt, candidate := range route.Candidates() {
		if ctx.Err() != nil {
			return "", "", goerr.Wrap(ctx.Err(), "chat turn cancelled")
		}

		text, err := uc.streamOne(ctx, em, conv, candidate, attempt+1, systemPrompt, prompt)
		if err != nil {
			logger.Warn("model candidate failed",
				"model", candidate, "attempt", attempt+1, "error", err.Error())
			em.send(ctx, model.ErrorEvent("model unavailable, trying the next candidate", candidate, false))
			continue
		}
		return text, candidate, nil
	}

	return "", "", goerr.Wrap(ErrAllModelsFailed, "candidate chain exhausted",
		goerr.V("conversation", conv.ID), goerr.V("candidates", route.Candidates()))
}

// streamOne runs a single candidate attempt. An empty completed stream
// counts as a failure so the chain can move on.
func (uc *ChatUseCase) streamOne(ctx context.Context, em *emitter, conv *model.Conversation, candidate string, attempt int, systemPrompt, prompt string) (string, error) {
	adapter, err := uc.providers.Resolve(ctx, candidate)
	if err != nil {
		return "", goerr.Wrap(err, "failed to resolve model adapter")
	}

	em.send(ctx, model.ModelEvent(candidate, attempt))

	stream, err := adapter.StreamCompletion(ctx, systemPrompt, prompt)
	if err != nil {
		return "", goerr.Wrap(err, "failed to start completion stream")
	}

	var acc strings.Builder
	for chunk := range stream {
		acc.WriteString(chunk)
		text := acc.String()
		em.send(ctx, model.TokenEvent(chunk, text))

		// Best-effort crash buffer, deliberately not awaited
		async.Dispatch(ctx, func(ctx context.Context) error {
			uc.store.SavePartial(ctx, conv.ID, conv.UserID, text)
			return nil
		})
	}
	if ctx.Err() != nil {
		return "", goerr.Wrap(ctx.Err(), "completion stream cancelled")
	}

	text := strings.TrimSpace(acc.String())
	if text == "" {
		return "", goerr.New("model returned an empty response", goerr.V("model", candidate))
	}
	return acc.String(), nil
}

// persistExchange commits the completed turn to the transcript and records
// it in episodic memory. The response is already delivered, so failures are
// logged rather than surfaced on the stream.
func (uc *ChatUseCase) persistExchange(ctx context.Context, conv *model.Conversation, query, answer, served string) {
	userMsg := model.NewUserMessage(query)
	assistantMsg := model.NewAssistantMessage(answer, served)

	if _, err := uc.store.AppendExchange(ctx, conv.ID, userMsg, assistantMsg); err != nil {
		logging.From(ctx).Error("failed to persist exchange",
			"conversation", conv.ID, "error", err.Error())
	}

	if uc.memory != nil {
		userID := conv.UserID
		async.Dispatch(ctx, func(ctx context.Context) error {
			return uc.memory.Record(ctx, userID, query, answer)
		})
	}
}

type systemPromptData struct {
	Instruction string
	Messages    []model.Message
}

// renderSystemPrompt embeds the assembled context into the system prompt.
// Render failures degrade to the bare instruction text.
func renderSystemPrompt(ctx context.Context, bundle model.ContextBundle) string {
	var buf bytes.Buffer
	err := chatSystemPrompt.Execute(&buf, systemPromptData{
		Instruction: bundle.Instruction,
		Messages:    bundle.Messages,
	})
	if err != nil {
		logging.From(ctx).Warn("system prompt render failed", "error", err.Error())
		return bundle.Instruction
	}
	return buf.String()
}
