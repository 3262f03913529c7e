package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/halfmoon-lab/chatrelay/pkg/cli/config"
	"github.com/halfmoon-lab/chatrelay/pkg/domain/model"
	"github.com/halfmoon-lab/chatrelay/pkg/domain/types"
	"github.com/halfmoon-lab/chatrelay/pkg/service/convstore"
	"github.com/halfmoon-lab/chatrelay/pkg/usecase"
	"github.com/halfmoon-lab/chatrelay/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func cmdChat() *cli.Command {
	var userID string
	var tier string
	var conversationID string
	var message string
	var listOnly bool
	var repoCfg config.Repository
	var llmCfg config.LLM
	var modelsCfg config.Models

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "user",
			Usage:       "User ID for the chat turn",
			Value:       "local",
			Sources:     cli.EnvVars("CHATRELAY_CHAT_USER"),
			Destination: &userID,
		},
		&cli.StringFlag{
			Name:        "tier",
			Usage:       "Entitlement tier (free, plus or pro)",
			Value:       "free",
			Sources:     cli.EnvVars("CHATRELAY_CHAT_TIER"),
			Destination: &tier,
		},
		&cli.StringFlag{
			Name:        "conversation-id",
			Usage:       "Continue an existing conversation",
			Destination: &conversationID,
		},
		&cli.StringFlag{
			Name:        "message",
			Aliases:     []string{"m"},
			Usage:       "Message to send (first argument when omitted)",
			Destination: &message,
		},
		&cli.BoolFlag{
			Name:        "list",
			Usage:       "List recent conversations instead of sending a message",
			Destination: &listOnly,
		},
	}

	// Add shared config flags
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, llmCfg.Flags()...)
	flags = append(flags, modelsCfg.Flags()...)

	return &cli.Command{
		Name:      "chat",
		Aliases:   []string{"c"},
		Usage:     "Send one chat turn from the terminal",
		ArgsUsage: "[message]",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if message == "" {
				message = c.Args().First()
			}
			if message == "" && !listOnly {
				return goerr.New("message is required (use --message or pass it as an argument)")
			}

			repo, err := repoCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize repository")
			}
			defer func() {
				if err := repo.Close(); err != nil {
					logging.Default().Error("failed to close repository", "error", err.Error())
				}
			}()

			if listOnly {
				return listConversations(ctx, convstore.New(repo), types.UserID(userID))
			}

			chatUC, err := buildChatUseCase(ctx, repo, &llmCfg, &modelsCfg)
			if err != nil {
				return err
			}

			input := usecase.SendInput{
				UserID:         types.UserID(userID),
				ConversationID: types.ConversationID(conversationID),
				Message:        message,
				Tier:           types.Tier(tier),
			}

			if err := chatUC.Send(ctx, input, printEvent); err != nil {
				return goerr.Wrap(err, "chat turn failed")
			}
			return nil
		},
	}
}

var (
	metaColor  = color.New(color.FgCyan)
	errorColor = color.New(color.FgRed)
)

// listConversations prints the user's recent conversations, newest first
func listConversations(ctx context.Context, store *convstore.Store, userID types.UserID) error {
	conversations, err := store.List(ctx, userID, 20)
	if err != nil {
		return goerr.Wrap(err, "failed to list conversations")
	}

	if len(conversations) == 0 {
		fmt.Println("no conversations")
		return nil
	}

	for _, conv := range conversations {
		metaColor.Printf("%s  ", conv.ID)
		fmt.Printf("%s  (%d messages, %s)\n",
			conv.Title, conv.MessageCount, conv.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

// printEvent renders one stream event on the terminal
func printEvent(ev model.StreamEvent) error {
	switch p := ev.Payload.(type) {
	case model.SessionPayload:
		metaColor.Fprintf(os.Stderr, "conversation: %s\n", p.ConversationID)
	case model.ModelPayload:
		metaColor.Fprintf(os.Stderr, "[%s attempt %d]\n", p.Model, p.Attempt)
	case model.TokenPayload:
		fmt.Print(p.Delta)
	case model.ErrorPayload:
		if p.Fatal {
			errorColor.Fprintf(os.Stderr, "\nerror: %s\n", p.Message)
		} else {
			errorColor.Fprintf(os.Stderr, "\n%s (%s)\n", p.Message, p.Model)
		}
	default:
		if ev.Type == types.EventDone {
			fmt.Println()
		}
	}
	return nil
}
