package usecase

import (
	"github.com/halfmoon-lab/chatrelay/pkg/service/convstore"
	"github.com/halfmoon-lab/chatrelay/pkg/service/memoryindex"
	"github.com/halfmoon-lab/chatrelay/pkg/service/provider"
	"github.com/halfmoon-lab/chatrelay/pkg/service/router"
	"github.com/halfmoon-lab/chatrelay/pkg/service/summary"
)

// ChatUseCase orchestrates one user turn: route, assemble context, stream
// the answer through the fallback chain, and persist the exchange.
type ChatUseCase struct {
	store      *convstore.Store
	router     *router.Router
	providers  *provider.Registry
	summarizer *summary.Service  // optional: nil disables summary rewrites
	memory     *memoryindex.Index // optional: nil disables episodic memory
	contextCfg ContextConfig
}

type Option func(*ChatUseCase)

// WithSummarizer enables periodic summary rewrites
func WithSummarizer(svc *summary.Service) Option {
	return func(uc *ChatUseCase) {
		uc.summarizer = svc
	}
}

// WithMemoryIndex enables episodic memory retrieval and recording
func WithMemoryIndex(idx *memoryindex.Index) Option {
	return func(uc *ChatUseCase) {
		uc.memory = idx
	}
}

// WithContextConfig overrides the context assembly knobs
func WithContextConfig(cfg ContextConfig) Option {
	return func(uc *ChatUseCase) {
		uc.contextCfg = cfg
	}
}

func New(store *convstore.Store, rt *router.Router, providers *provider.Registry, opts ...Option) *ChatUseCase {
	uc := &ChatUseCase{
		store:      store,
		router:     rt,
		providers:  providers,
		contextCfg: DefaultContextConfig(),
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}

// Store exposes the conversation store for read-only surfaces
func (uc *ChatUseCase) Store() *convstore.Store {
	return uc.store
}
