package config

import (
	"os"

	"github.com/halfmoon-lab/chatrelay/pkg/domain/types"
	"github.com/halfmoon-lab/chatrelay/pkg/service/router"
	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/urfave/cli/v3"
)

// Models holds CLI flags for the routing table
type Models struct {
	tablePath string
}

// Flags returns CLI flags for model table configuration
func (m *Models) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "model-table",
			Usage:       "Path to the model routing table (TOML). Uses the built-in table when omitted",
			Sources:     cli.EnvVars("CHATRELAY_MODEL_TABLE"),
			Destination: &m.tablePath,
		},
	}
}

// modelTableDoc is the TOML shape of the routing table
type modelTableDoc struct {
	Default string          `toml:"default"`
	Models  []modelEntryDoc `toml:"models"`
}

type modelEntryDoc struct {
	ID       string   `toml:"id"`
	Tiers    []string `toml:"tiers"`
	Types    []string `toml:"types"`
	Priority int      `toml:"priority"`
}

// Configure loads and validates the routing table
func (m *Models) Configure() (*router.ModelTable, error) {
	if m.tablePath == "" {
		return defaultModelTable(), nil
	}

	data, err := os.ReadFile(m.tablePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, goerr.Wrap(ErrConfigNotFound, "model table not found", goerr.V("path", m.tablePath))
		}
		return nil, goerr.Wrap(err, "failed to read model table", goerr.V("path", m.tablePath))
	}

	var doc modelTableDoc
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, goerr.Wrap(err, "failed to parse model table", goerr.V("path", m.tablePath))
	}

	table := &router.ModelTable{
		Default: doc.Default,
		Models:  make([]router.ModelEntry, len(doc.Models)),
	}
	for i, e := range doc.Models {
		entry := router.ModelEntry{
			ID:       e.ID,
			Priority: e.Priority,
		}
		for _, t := range e.Tiers {
			entry.Tiers = append(entry.Tiers, types.Tier(t))
		}
		for _, ct := range e.Types {
			entry.Types = append(entry.Types, types.ContentType(ct))
		}
		table.Models[i] = entry
	}

	if err := table.Validate(); err != nil {
		return nil, goerr.Wrap(ErrInvalidConfig, "invalid model table",
			goerr.V("path", m.tablePath), goerr.V("cause", err.Error()))
	}

	return table, nil
}

// defaultModelTable is the built-in routing table used when no file is
// given. Priorities order by cost: cheaper models first.
func defaultModelTable() *router.ModelTable {
	allTiers := []types.Tier{types.TierFree, types.TierPlus, types.TierPro}
	paidTiers := []types.Tier{types.TierPlus, types.TierPro}

	return &router.ModelTable{
		Default: "gemini-2.0-flash",
		Models: []router.ModelEntry{
			{
				ID:       "gemini-2.0-flash",
				Tiers:    allTiers,
				Types:    []types.ContentType{types.ContentTypeText, types.ContentTypeCoding},
				Priority: 1,
			},
			{
				ID:       "gpt-4o-mini",
				Tiers:    allTiers,
				Types:    []types.ContentType{types.ContentTypeText, types.ContentTypeCoding},
				Priority: 2,
			},
			{
				ID:       "claude-sonnet-4",
				Tiers:    paidTiers,
				Types:    []types.ContentType{types.ContentTypeText, types.ContentTypeCoding, types.ContentTypeDiagram},
				Priority: 3,
			},
			{
				ID:       "gpt-4o",
				Tiers:    paidTiers,
				Types:    []types.ContentType{types.ContentTypeText, types.ContentTypeCoding, types.ContentTypeImage},
				Priority: 4,
			},
			{
				ID:       "gemini-2.5-pro",
				Tiers:    []types.Tier{types.TierPro},
				Types: []types.ContentType{
					types.ContentTypeText, types.ContentTypeCoding,
					types.ContentTypeDiagram, types.ContentTypeVideo,
				},
				Priority: 5,
			},
		},
	}
}
