package cli

import (
	"fmt"
	"time"

	"github.com/AbdouB/kbexpert/internal/config"
	"github.com/AbdouB/kbexpert/internal/db"
	"github.com/AbdouB/kbexpert/internal/engine"
	"github.com/AbdouB/kbexpert/internal/models"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history [kb]",
	Short: "List past consultations of a knowledge base",
	Long: `List past consultations of a knowledge base, newest first.

Examples:
  kbexpert history cars
  kbexpert history cars -n 5
  kbexpert history show <consultation-id>`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		if !cmd.Flags().Changed("limit") {
			limit = config.HistoryLimit()
		}

		kb, err := loadKnowledgeBase(args[0])
		if err != nil {
			return err
		}

		repo := db.NewConsultationRepository(database)
		list, err := repo.ListByKnowledgeBase(kb.ID, limit)
		if err != nil {
			return fmt.Errorf("failed to list consultations: %w", err)
		}

		if !outputText {
			if list == nil {
				list = []*models.Consultation{}
			}
			rows := make([]map[string]interface{}, 0, len(list))
			for _, c := range list {
				row := map[string]interface{}{
					"id":                c.ID,
					"mode":              c.Mode,
					"started_timestamp": c.StartedTimestamp,
					"step_count":        c.StepCount,
				}
				if c.WinnerID != nil {
					row["winner_id"] = *c.WinnerID
					row["winner_name"] = *c.WinnerName
					row["winner_p"] = *c.WinnerP
				}
				rows = append(rows, row)
			}
			outputResult(map[string]interface{}{
				"knowledge_base": kb.Name,
				"consultations":  rows,
				"count":          len(rows),
			})
			return nil
		}

		if len(list) == 0 {
			fmt.Fprintf(stdout, "No consultations for %s yet.\n", kb.Name)
			return nil
		}
		for _, c := range list {
			winner := "-"
			if c.WinnerName != nil {
				winner = fmt.Sprintf("%s (%.3f)", *c.WinnerName, *c.WinnerP)
			}
			fmt.Fprintf(stdout, "%s  %-11s %2d step(s)  %-30s %s\n",
				formatTimestamp(c.StartedTimestamp), c.Mode, c.StepCount, winner, c.ID)
		}
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show [consultation-id]",
	Short: "Show a consultation step by step",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo := db.NewConsultationRepository(database)
		c, err := repo.Get(args[0])
		if err != nil {
			return fmt.Errorf("failed to load consultation: %w", err)
		}
		if c == nil {
			return fmt.Errorf("consultation %q not found", args[0])
		}

		if !outputText {
			outputResult(c)
			return nil
		}

		fmt.Fprintf(stdout, "%s  %s (%s)\n", c.KnowledgeBaseName, formatTimestamp(c.StartedTimestamp), c.Mode)
		for _, s := range c.Steps {
			fmt.Fprintf(stdout, "\n%d. %s\n   → %d - %s\n", s.Index+1, s.Question, s.AnswerCode, engine.AnswerLabels[engine.NormalizeAnswer(s.AnswerCode)])
			printStates(s.States)
		}
		printConsultation(c)
		return nil
	},
}

func formatTimestamp(ts float64) string {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).Format("2006-01-02 15:04")
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "Maximum number of consultations (default $KBEXPERT_HISTORY_LIMIT)")

	historyCmd.AddCommand(historyShowCmd)
	rootCmd.AddCommand(historyCmd)
}
