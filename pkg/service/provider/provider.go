package provider

import (
	"context"
	"strings"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
)

// Tag identifies a provider family. The set is closed: model names resolve
// to exactly one tag via Classify, never by ad hoc matching elsewhere.
type Tag string

const (
	TagGemini    Tag = "gemini"
	TagOpenAI    Tag = "openai"
	TagAnthropic Tag = "anthropic"
)

// ErrUnknownModel is returned when a model name matches no provider family
var ErrUnknownModel = goerr.New("unknown model family")

// ErrNotConfigured is returned when the provider family is known but no
// credentials were configured for it.
var ErrNotConfigured = goerr.New("provider not configured")

// Classify maps a model name to its provider family
func Classify(model string) (Tag, error) {
	name := strings.ToLower(model)
	switch {
	case strings.HasPrefix(name, "gemini"):
		return TagGemini, nil
	case strings.HasPrefix(name, "gpt"),
		strings.HasPrefix(name, "o1"),
		strings.HasPrefix(name, "o3"),
		strings.HasPrefix(name, "o4"),
		strings.HasPrefix(name, "chatgpt"):
		return TagOpenAI, nil
	case strings.HasPrefix(name, "claude"):
		return TagAnthropic, nil
	default:
		return "", goerr.Wrap(ErrUnknownModel, "cannot classify model", goerr.V("model", model))
	}
}

// Adapter streams a completion: system instructions plus a rendered prompt
// in, incremental text chunks out. The channel is closed when the stream
// ends.
type Adapter interface {
	StreamCompletion(ctx context.Context, systemPrompt, prompt string) (<-chan string, error)
}

// ClientFactory builds an LLM client bound to a specific model name
type ClientFactory func(ctx context.Context, model string) (gollem.LLMClient, error)

// Registry resolves model names to streaming adapters through the closed
// provider dispatch table. Clients are cached per model name.
type Registry struct {
	mu        sync.Mutex
	factories map[Tag]ClientFactory
	clients   map[string]gollem.LLMClient
}

func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[Tag]ClientFactory),
		clients:   make(map[string]gollem.LLMClient),
	}
}

// Register installs the client factory for a provider family
func (r *Registry) Register(tag Tag, factory ClientFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[tag] = factory
}

// Tags returns the configured provider families
func (r *Registry) Tags() []Tag {
	r.mu.Lock()
	defer r.mu.Unlock()
	tags := make([]Tag, 0, len(r.factories))
	for tag := range r.factories {
		tags = append(tags, tag)
	}
	return tags
}

// Resolve returns a streaming adapter for the model. Unknown model families
// and unconfigured providers fail here, which the dispatcher treats as a
// per-candidate failure.
func (r *Registry) Resolve(ctx context.Context, model string) (Adapter, error) {
	tag, err := Classify(model)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	factory, ok := r.factories[tag]
	if !ok {
		return nil, goerr.Wrap(ErrNotConfigured, "no credentials for provider family",
			goerr.V("model", model), goerr.V("tag", string(tag)))
	}

	client, ok := r.clients[model]
	if !ok {
		client, err = factory(ctx, model)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create LLM client", goerr.V("model", model))
		}
		r.clients[model] = client
	}

	return &gollemAdapter{client: client}, nil
}

// gollemAdapter adapts a gollem client to the Adapter interface. One
// session is created per completion; history is carried in the rendered
// prompt, not in session state.
type gollemAdapter struct {
	client gollem.LLMClient
}

func (a *gollemAdapter) StreamCompletion(ctx context.Context, systemPrompt, prompt string) (<-chan string, error) {
	session, err := a.client.NewSession(ctx, gollem.WithSessionSystemPrompt(systemPrompt))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create session")
	}

	stream, err := session.GenerateStream(ctx, gollem.Text(prompt))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to start stream")
	}

	out := make(chan string)
	go func() {
		defer close(out)
		for resp := range stream {
			if resp == nil {
				continue
			}
			for _, text := range resp.Texts {
				if text == "" {
					continue
				}
				select {
				case out <- text:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
