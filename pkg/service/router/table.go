package router

import (
	"sort"

	"github.com/halfmoon-lab/chatrelay/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

// ModelEntry describes one selectable model: which tiers may use it, which
// content types it can serve, and its preference order (lower is better).
type ModelEntry struct {
	ID       string
	Tiers    []types.Tier
	Types    []types.ContentType
	Priority int
}

// ServesTier reports whether the entry is available to the tier
func (e *ModelEntry) ServesTier(tier types.Tier) bool {
	for _, t := range e.Tiers {
		if t == tier {
			return true
		}
	}
	return false
}

// Supports reports whether the entry can serve the content type
func (e *ModelEntry) Supports(ct types.ContentType) bool {
	for _, t := range e.Types {
		if t == ct {
			return true
		}
	}
	return false
}

// Validate checks the entry
func (e *ModelEntry) Validate() error {
	if e.ID == "" {
		return goerr.New("model ID is required")
	}
	if len(e.Tiers) == 0 {
		return goerr.New("model requires at least one tier", goerr.V("id", e.ID))
	}
	for _, t := range e.Tiers {
		if err := t.Validate(); err != nil {
			return goerr.Wrap(err, "invalid model tier", goerr.V("id", e.ID))
		}
	}
	if len(e.Types) == 0 {
		return goerr.New("model requires at least one content type", goerr.V("id", e.ID))
	}
	for _, ct := range e.Types {
		if err := ct.Validate(); err != nil {
			return goerr.Wrap(err, "invalid model content type", goerr.V("id", e.ID))
		}
	}
	return nil
}

// ModelTable is the tier-to-model routing table. Default names the
// lowest-cost model used when classification fails.
type ModelTable struct {
	Default string
	Models  []ModelEntry
}

// Validate checks the table for duplicates and a usable default
func (t *ModelTable) Validate() error {
	if len(t.Models) == 0 {
		return goerr.New("model table requires at least one model")
	}

	seen := make(map[string]bool)
	for i := range t.Models {
		e := &t.Models[i]
		if err := e.Validate(); err != nil {
			return goerr.Wrap(err, "invalid model entry")
		}
		if seen[e.ID] {
			return goerr.New("duplicate model ID", goerr.V("id", e.ID))
		}
		seen[e.ID] = true
	}

	if t.Default == "" {
		return goerr.New("default model is required")
	}
	if !seen[t.Default] {
		return goerr.New("default model is not in the table", goerr.V("default", t.Default))
	}

	return nil
}

// Eligible returns the entries available to the tier, best priority first
func (t *ModelTable) Eligible(tier types.Tier) []ModelEntry {
	eligible := make([]ModelEntry, 0, len(t.Models))
	for _, e := range t.Models {
		if e.ServesTier(tier) {
			eligible = append(eligible, e)
		}
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].Priority < eligible[j].Priority
	})
	return eligible
}
