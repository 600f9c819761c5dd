package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/questd/internal/agent"
)

var (
	askCompetition string
	askUser        string
)

var askCmd = &cobra.Command{
	Use:   "ask [query...]",
	Short: "Answer a single question and exit",
	Long: `Answer a single question from the terminal.

Examples:
  # Ask about a competition
  questd ask --competition titanic "What is the evaluation metric?"

  # Ask without competition context
  questd ask "How do I avoid overfitting?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askCompetition, "competition", "", "competition identifier for corpus retrieval")
	askCmd.Flags().StringVar(&askUser, "user", "", "user identifier for log correlation")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	out, err := app.engine.Answer(ctx, agent.Query{
		Text:          strings.Join(args, " "),
		CompetitionID: askCompetition,
		UserID:        askUser,
	})
	if err != nil {
		return err
	}

	fmt.Println(out.FinalText)

	fmt.Fprintf(os.Stderr, "\n[%s] handlers=%s degraded=%v cache_hit=%v request_id=%s\n",
		out.Mode, strings.Join(out.HandlersUsed, ","), out.Degraded, out.CacheHit, out.RequestID)
	return nil
}
