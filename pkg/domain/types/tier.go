package types

import "github.com/m-mizutani/goerr/v2"

// Tier is the caller's subscription entitlement level
type Tier string

const (
	TierFree Tier = "free"
	TierPlus Tier = "plus"
	TierPro  Tier = "pro"
)

func (t Tier) String() string {
	return string(t)
}

// Validate checks if the tier is one of the known values
func (t Tier) Validate() error {
	switch t {
	case TierFree, TierPlus, TierPro:
		return nil
	default:
		return goerr.New("invalid tier", goerr.V("tier", string(t)))
	}
}
