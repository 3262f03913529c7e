package model

import "github.com/halfmoon-lab/chatrelay/pkg/domain/types"

// Route is the ephemeral model-selection decision for one request. It is
// never persisted.
type Route struct {
	Type       types.ContentType
	Difficulty types.Difficulty
	Primary    string
	Fallbacks  []string // ordered, deduplicated, never contains Primary
	Tier       types.Tier

	// Allowed is false when the classified capability is gated above the
	// caller's tier and a downgraded text model was substituted.
	Allowed bool
}

// Candidates returns the primary model followed by the fallback chain, in
// strict attempt order.
func (r *Route) Candidates() []string {
	out := make([]string, 0, 1+len(r.Fallbacks))
	out = append(out, r.Primary)
	out = append(out, r.Fallbacks...)
	return out
}
