package config

import (
	"context"
	"log/slog"

	"github.com/halfmoon-lab/chatrelay/pkg/service/provider"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gollem/llm/claude"
	"github.com/m-mizutani/gollem/llm/gemini"
	"github.com/m-mizutani/gollem/llm/openai"
	"github.com/urfave/cli/v3"
)

// LLM holds credentials for the supported provider families plus the model
// used for utility work (summaries, classification, embeddings).
type LLM struct {
	geminiProjectID string
	geminiLocation  string
	openaiAPIKey    string
	anthropicAPIKey string
	utilityModel    string
}

// Flags returns CLI flags for LLM provider configuration
func (l *LLM) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "gemini-project-id",
			Usage:       "Google Cloud project ID for Gemini API",
			Sources:     cli.EnvVars("CHATRELAY_GEMINI_PROJECT_ID"),
			Destination: &l.geminiProjectID,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini API",
			Value:       "us-central1",
			Sources:     cli.EnvVars("CHATRELAY_GEMINI_LOCATION"),
			Destination: &l.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "openai-api-key",
			Usage:       "OpenAI API key",
			Sources:     cli.EnvVars("CHATRELAY_OPENAI_API_KEY"),
			Destination: &l.openaiAPIKey,
		},
		&cli.StringFlag{
			Name:        "anthropic-api-key",
			Usage:       "Anthropic API key",
			Sources:     cli.EnvVars("CHATRELAY_ANTHROPIC_API_KEY"),
			Destination: &l.anthropicAPIKey,
		},
		&cli.StringFlag{
			Name:        "utility-model",
			Usage:       "Gemini model for summaries, classification and embeddings",
			Value:       "gemini-2.0-flash",
			Sources:     cli.EnvVars("CHATRELAY_UTILITY_MODEL"),
			Destination: &l.utilityModel,
		},
	}
}

// LogAttrs returns log attributes for the LLM configuration. Keys are never
// included.
func (l *LLM) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("gemini_project_id", l.geminiProjectID),
		slog.String("gemini_location", l.geminiLocation),
		slog.Bool("openai_configured", l.openaiAPIKey != ""),
		slog.Bool("anthropic_configured", l.anthropicAPIKey != ""),
		slog.String("utility_model", l.utilityModel),
	}
}

// Registry builds the provider registry with a factory per configured
// family. Unconfigured families are simply absent; resolving a model from
// one of them fails as a per-candidate error at dispatch time.
func (l *LLM) Registry() *provider.Registry {
	registry := provider.NewRegistry()

	if l.geminiProjectID != "" {
		projectID, location := l.geminiProjectID, l.geminiLocation
		registry.Register(provider.TagGemini, func(ctx context.Context, model string) (gollem.LLMClient, error) {
			return gemini.New(ctx, projectID, location, gemini.WithModel(model))
		})
	}

	if l.openaiAPIKey != "" {
		apiKey := l.openaiAPIKey
		registry.Register(provider.TagOpenAI, func(ctx context.Context, model string) (gollem.LLMClient, error) {
			return openai.New(ctx, apiKey, openai.WithModel(model))
		})
	}

	if l.anthropicAPIKey != "" {
		apiKey := l.anthropicAPIKey
		registry.Register(provider.TagAnthropic, func(ctx context.Context, model string) (gollem.LLMClient, error) {
			return claude.New(ctx, apiKey, claude.WithModel(model))
		})
	}

	return registry
}

// UtilityClient creates the Gemini client used for summaries, query
// classification and embeddings. Returns nil if Gemini is not configured;
// those features are disabled in that case.
func (l *LLM) UtilityClient(ctx context.Context) (gollem.LLMClient, error) {
	if l.geminiProjectID == "" {
		return nil, nil
	}

	client, err := gemini.New(ctx, l.geminiProjectID, l.geminiLocation, gemini.WithModel(l.utilityModel))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create Gemini utility client")
	}

	return client, nil
}
