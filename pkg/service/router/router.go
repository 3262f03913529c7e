package router

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/halfmoon-lab/chatrelay/pkg/domain/model"
	"github.com/halfmoon-lab/chatrelay/pkg/domain/types"
	"github.com/halfmoon-lab/chatrelay/pkg/utils/logging"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
)

const (
	defaultCacheSize = 4096
	defaultCacheTTL  = 10 * time.Minute
)

// classification is the classifier's verdict for one query
type classification struct {
	Type       types.ContentType
	Difficulty types.Difficulty
}

var defaultClassification = classification{
	Type:       types.ContentTypeText,
	Difficulty: types.DifficultyEasy,
}

// Router picks a primary model and a fallback chain from the classified
// query and the caller's entitlement tier. Decide is total: any internal
// failure degrades to a fixed default route.
type Router struct {
	llmClient gollem.LLMClient // nil disables classification
	table     *ModelTable
	cache     *expirable.LRU[string, classification]
}

type Option func(*Router)

// WithCacheTTL overrides the classification cache TTL
func WithCacheTTL(ttl time.Duration) Option {
	return func(r *Router) {
		r.cache = expirable.NewLRU[string, classification](defaultCacheSize, nil, ttl)
	}
}

// New creates a Router. llmClient may be nil, in which case every query
// takes the default route.
func New(llmClient gollem.LLMClient, table *ModelTable, opts ...Option) (*Router, error) {
	if table == nil {
		return nil, goerr.New("model table is required")
	}
	if err := table.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid model table")
	}

	r := &Router{
		llmClient: llmClient,
		table:     table,
		cache:     expirable.NewLRU[string, classification](defaultCacheSize, nil, defaultCacheTTL),
	}
	for _, opt := range opts {
		opt(r)
	}

	return r, nil
}

// Decide classifies the query and returns the model route for the tier.
// It never fails: classification errors fall back to the default route.
func (r *Router) Decide(ctx context.Context, query string, tier types.Tier) *model.Route {
	if tier.Validate() != nil {
		logging.From(ctx).Warn("unknown tier, treating as free", "tier", tier)
		tier = types.TierFree
	}

	cls, err := r.classify(ctx, query)
	if err != nil {
		logging.From(ctx).Warn("query classification failed, using default route", "error", err.Error())
		return r.defaultRoute(tier)
	}

	eligible := r.table.Eligible(tier)

	route := &model.Route{
		Type:       cls.Type,
		Difficulty: cls.Difficulty,
		Tier:       tier,
		Allowed:    true,
	}

	for _, e := range eligible {
		if e.Supports(cls.Type) {
			route.Primary = e.ID
			break
		}
	}

	// Capability gated above this tier: downgrade to the best text-capable
	// model instead of failing.
	if route.Primary == "" {
		route.Allowed = false
		for _, e := range eligible {
			if e.Supports(types.ContentTypeText) {
				route.Primary = e.ID
				break
			}
		}
	}
	if route.Primary == "" {
		route.Primary = r.table.Default
	}

	route.Fallbacks = fallbackChain(eligible, route.Primary)
	return route
}

// defaultRoute is the fixed degraded decision: cheapest model, text, easy
func (r *Router) defaultRoute(tier types.Tier) *model.Route {
	route := &model.Route{
		Type:       defaultClassification.Type,
		Difficulty: defaultClassification.Difficulty,
		Primary:    r.table.Default,
		Tier:       tier,
		Allowed:    true,
	}
	route.Fallbacks = fallbackChain(r.table.Eligible(tier), route.Primary)
	return route
}

// fallbackChain lists the remaining eligible models in preference order,
// deduplicated and always excluding the primary.
func fallbackChain(eligible []ModelEntry, primary string) []string {
	seen := map[string]bool{primary: true}
	fallbacks := make([]string, 0, len(eligible))
	for _, e := range eligible {
		if seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		fallbacks = append(fallbacks, e.ID)
	}
	return fallbacks
}

// classifierResponse is the structured output from the classifier model
type classifierResponse struct {
	Type       string `json:"type"`
	Difficulty string `json:"difficulty"`
}

func classifierSchema() *gollem.Parameter {
	return &gollem.Parameter{
		Title:       "QueryClassification",
		Description: "Content type and difficulty of a user query",
		Type:        gollem.TypeObject,
		Properties: map[string]*gollem.Parameter{
			"type": {
				Type:        gollem.TypeString,
				Description: "One of: text, coding, image, diagram, video. Use 'image' only when the user asks to generate an image.",
				Required:    true,
			},
			"difficulty": {
				Type:        gollem.TypeString,
				Description: "One of: easy, medium, hard. Judge by reasoning depth, not length.",
				Required:    true,
			},
		},
	}
}

const classifierPrompt = `Classify the user query below. Respond with the content type the answer requires and a coarse difficulty estimate.

Query:
`

func (r *Router) classify(ctx context.Context, query string) (classification, error) {
	if r.llmClient == nil {
		return defaultClassification, nil
	}

	key := cacheKey(query)
	if cls, ok := r.cache.Get(key); ok {
		return cls, nil
	}

	session, err := r.llmClient.NewSession(ctx,
		gollem.WithSessionContentType(gollem.ContentTypeJSON),
		gollem.WithSessionResponseSchema(classifierSchema()),
	)
	if err != nil {
		return classification{}, goerr.Wrap(err, "failed to create classifier session")
	}

	resp, err := session.GenerateContent(ctx, gollem.Text(classifierPrompt+query))
	if err != nil {
		return classification{}, goerr.Wrap(err, "failed to classify query")
	}
	if len(resp.Texts) == 0 {
		return classification{}, goerr.New("classifier returned no text")
	}

	var parsed classifierResponse
	if err := json.Unmarshal([]byte(resp.Texts[0]), &parsed); err != nil {
		return classification{}, goerr.Wrap(err, "failed to parse classifier response",
			goerr.V("response", resp.Texts[0]))
	}

	cls := classification{
		Type:       types.ContentType(parsed.Type),
		Difficulty: types.Difficulty(parsed.Difficulty),
	}
	if cls.Type.Validate() != nil {
		cls.Type = defaultClassification.Type
	}
	if cls.Difficulty.Validate() != nil {
		cls.Difficulty = defaultClassification.Difficulty
	}

	r.cache.Add(key, cls)
	return cls, nil
}

func cacheKey(query string) string {
	sum := sha256.Sum256([]byte(query))
	return hex.EncodeToString(sum[:16])
}
