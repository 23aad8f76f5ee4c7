package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/0xcro3dile/ira-go/internal/domain/entities"
)

var askModel string

var askCmd = &cobra.Command{
	Use:   `ask "question"`,
	Short: "Ask a single question using the server's own API keys",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg, logger)
		if err != nil {
			return err
		}
		defer a.close()

		model := entities.ModelChoice(askModel)
		if model == "" {
			model = entities.ModelChoice(cfg.LLM.DefaultModel)
		}

		out, err := a.workflow.Invoke(cmd.Context(), &entities.ConversationState{
			Messages:    []entities.Message{entities.UserMessage(strings.Join(args, " "))},
			ModelChoice: model,
			Credentials: cfg.EnvCredentials(),
		})
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "[%s]\n%s\n", out.NextRoute, out.Messages[len(out.Messages)-1].Content)
		return nil
	},
}

func init() {
	askCmd.Flags().StringVarP(&askModel, "model", "m", "", `Model: "Gemini 2.5 Flash", "GPT-4o Mini" or "GPT-4o"`)
}
