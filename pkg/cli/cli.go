package cli

import (
	"context"

	"github.com/halfmoon-lab/chatrelay/pkg/cli/config"
	"github.com/halfmoon-lab/chatrelay/pkg/domain/interfaces"
	"github.com/halfmoon-lab/chatrelay/pkg/service/convstore"
	"github.com/halfmoon-lab/chatrelay/pkg/service/memoryindex"
	"github.com/halfmoon-lab/chatrelay/pkg/service/router"
	"github.com/halfmoon-lab/chatrelay/pkg/service/summary"
	"github.com/halfmoon-lab/chatrelay/pkg/usecase"
	"github.com/halfmoon-lab/chatrelay/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func Run(ctx context.Context, args []string, version string) error {
	var loggerCfg config.Logger
	var closer func()

	app := &cli.Command{
		Name:    "chatrelay",
		Usage:   "Conversational AI gateway with model routing and streaming fallback",
		Version: version,
		Flags:   loggerCfg.Flags(),
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			f, err := loggerCfg.Configure()
			if err != nil {
				return ctx, err
			}
			closer = f

			logging.Default().Info("Starting chatrelay", "logger", loggerCfg)
			return ctx, nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			if closer != nil {
				closer()
			}
			return nil
		},
		Commands: []*cli.Command{
			cmdServe(version),
			cmdChat(),
			cmdMigrate(),
		},
	}

	if err := app.Run(ctx, args); err != nil {
		logging.Default().Error("failed to run app", "error", err)
		return err
	}

	return nil
}

// buildChatUseCase wires the chat pipeline from the shared configuration.
// Gemini-dependent features (summaries, classification, episodic memory)
// degrade to disabled when no Gemini project is configured.
func buildChatUseCase(ctx context.Context, repo interfaces.Repository, llmCfg *config.LLM, modelsCfg *config.Models) (*usecase.ChatUseCase, error) {
	table, err := modelsCfg.Configure()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load model table")
	}

	utility, err := llmCfg.UtilityClient(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to initialize utility LLM client")
	}

	rtr, err := router.New(utility, table)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to initialize router")
	}

	opts := []usecase.Option{}
	if utility != nil {
		summarizer, err := summary.New(utility)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to initialize summary service")
		}
		opts = append(opts, usecase.WithSummarizer(summarizer))

		memIdx, err := memoryindex.New(utility, repo.Episode())
		if err != nil {
			return nil, goerr.Wrap(err, "failed to initialize memory index")
		}
		opts = append(opts, usecase.WithMemoryIndex(memIdx))
	} else {
		logging.Default().Warn("Gemini not configured, summaries, classification and episodic memory are disabled")
	}

	store := convstore.New(repo)
	return usecase.New(store, rtr, llmCfg.Registry(), opts...), nil
}
