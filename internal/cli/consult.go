package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/AbdouB/kbexpert/internal/db"
	"github.com/AbdouB/kbexpert/internal/engine"
	"github.com/AbdouB/kbexpert/internal/models"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var consultCmd = &cobra.Command{
	Use:   "consult [kb]",
	Short: "Run a consultation",
	Long: `Run a consultation over a knowledge base.

Questions are asked one at a time, most informative first. Answer each with
a number on the scale:
  0 - No   1 - Probably no   2 - Don't know   3 - Probably yes   4 - Yes

The consultation stops once the leading hypothesis can no longer be
overtaken, and the run is saved to the history.

Examples:
  kbexpert consult cars                  # interactive
  kbexpert consult cars --answers 4,2,0  # scripted, then "don't know"
  kbexpert consult cars --neutral        # every answer "don't know"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		answersText, _ := cmd.Flags().GetString("answers")
		neutral, _ := cmd.Flags().GetBool("neutral")
		noSave, _ := cmd.Flags().GetBool("no-save")

		kb, err := loadKnowledgeBase(args[0])
		if err != nil {
			return err
		}
		if issues := kb.Validate(); models.HasErrors(issues) {
			if outputText {
				printIssues(issues)
			}
			return fmt.Errorf("knowledge base %q has errors, run 'kbexpert kb validate'", kb.Name)
		}

		var (
			source engine.AnswerSource
			mode   = models.ModeInteractive
		)
		switch {
		case answersText != "":
			codes, err := engine.ParseAnswers(answersText)
			if err != nil {
				return err
			}
			source = engine.NewScriptedSource(codes...)
			mode = models.ModeScripted
		case neutral:
			source = engine.NeutralSource()
			mode = models.ModeScripted
		default:
			// Prompts go to stderr in JSON mode so stdout carries only the result
			var prompts io.Writer = stderr
			if outputText {
				prompts = stdout
			}
			source = engine.NewPromptSource(stdin, prompts)
		}

		process, err := engine.FromKnowledgeBase(kb, source, engine.WithLogger(logger))
		if err != nil {
			return fmt.Errorf("failed to start consultation: %w", err)
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
		defer stop()

		res, err := process.Calculate(ctx)
		if err != nil {
			logger.Warn("consultation aborted",
				zap.String("knowledge_base", kb.Name),
				zap.Int("sign_id", process.CurrentQuestion()),
				zap.Error(err))
			return fmt.Errorf("consultation aborted: %w", err)
		}

		c := models.NewConsultation(kb, mode)
		c.Finish(res.Winner, res.Steps, res.Final)
		if !noSave {
			repo := db.NewConsultationRepository(database)
			if err := repo.Create(c); err != nil {
				return fmt.Errorf("failed to save consultation: %w", err)
			}
		}
		logger.Info("consultation finished",
			zap.String("id", c.ID),
			zap.String("knowledge_base", kb.Name),
			zap.Int("steps", c.StepCount),
			zap.Intp("winner", c.WinnerID),
		)

		if !outputText {
			result := map[string]interface{}{
				"status":         "finished",
				"knowledge_base": kb.Name,
				"steps":          res.Steps,
				"final":          res.Final,
			}
			if !noSave {
				result["consultation_id"] = c.ID
			}
			if res.Winner != nil {
				result["winner"] = map[string]interface{}{
					"id":   res.Winner.ID,
					"name": res.Winner.Name,
					"desc": res.Winner.Desc,
					"p":    res.Winner.P,
				}
			}
			outputResult(result)
			return nil
		}

		fmt.Fprintln(stdout)
		for _, step := range res.Steps {
			name := fmt.Sprintf("sign %d", step.SignID)
			if s, ok := process.Sign(step.SignID); ok {
				name = s.Name
			}
			fmt.Fprintf(stdout, "  %d. %-24s → %s\n", step.Index+1, name, engine.AnswerLabels[step.AnswerCode])
		}
		printConsultation(c)
		return nil
	},
}

// printConsultation renders the outcome of a run for humans
func printConsultation(c *models.Consultation) {
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, strings.Repeat("─", 50))
	if c.WinnerName != nil {
		fmt.Fprintf(stdout, "Result: %s (p = %.3f)\n", *c.WinnerName, *c.WinnerP)
		if c.WinnerDesc != nil && *c.WinnerDesc != "" {
			fmt.Fprintf(stdout, "  %s\n", *c.WinnerDesc)
		}
	} else {
		fmt.Fprintln(stdout, "Result: none")
	}
	fmt.Fprintf(stdout, "\nAfter %d question(s):\n", c.StepCount)
	printStates(c.Final)
}

func printStates(states []models.HypothesisState) {
	for _, s := range states {
		mark := " "
		if s.Eliminated {
			mark = "✗"
		}
		fmt.Fprintf(stdout, "  %s [%d] %-24s p %.3f  [%.3f .. %.3f]\n", mark, s.ID, s.Name, s.P, s.PMin, s.PMax)
	}
}

func init() {
	consultCmd.Flags().String("answers", "", "Comma separated answer codes instead of prompting, e.g. 4,2,0")
	consultCmd.Flags().Bool("neutral", false, "Answer \"don't know\" to every question")
	consultCmd.Flags().Bool("no-save", false, "Do not store the run in the history")

	rootCmd.AddCommand(consultCmd)
}
