package cli

import (
	"fmt"

	"github.com/AbdouB/kbexpert/internal/models"
	"github.com/spf13/cobra"
)

var hypoCmd = &cobra.Command{
	Use:   "hypo",
	Short: "Manage the hypotheses of a knowledge base",
}

var hypoAddCmd = &cobra.Command{
	Use:   "add [kb] [name]",
	Short: "Add a hypothesis",
	Long: `Add a hypothesis to a knowledge base. The prior defaults to 1.

Example:
  kbexpert hypo add cars "Bearing" --desc "Worn wheel bearing" --prior 0,3`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		desc, _ := cmd.Flags().GetString("desc")
		priorText, _ := cmd.Flags().GetString("prior")

		kb, err := loadKnowledgeBase(args[0])
		if err != nil {
			return err
		}

		h := kb.AddHypos()
		h.Name = args[1]
		if cmd.Flags().Changed("desc") {
			h.Desc = desc
		}
		if priorText != "" {
			p, err := models.ParseProbability(priorText)
			if err != nil {
				return fmt.Errorf("invalid prior: %w", err)
			}
			if err := h.SetInitP(p); err != nil {
				return err
			}
			h.Reset()
		}
		if err := saveKnowledgeBase(kb); err != nil {
			return err
		}

		if outputText {
			fmt.Fprintf(stdout, "✓ Hypothesis [%d] %s  prior %.3f\n", h.ID, h.Name, h.InitP)
			return nil
		}
		outputResult(map[string]interface{}{
			"status":     "added",
			"hypothesis": h,
		})
		return nil
	},
}

var hypoEditCmd = &cobra.Command{
	Use:   "edit [kb] [hypothesis-id]",
	Short: "Change the name, description or prior of a hypothesis",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID("hypothesis", args[1])
		if err != nil {
			return err
		}

		var name, desc *string
		var prior *float64
		if cmd.Flags().Changed("name") {
			v, _ := cmd.Flags().GetString("name")
			name = &v
		}
		if cmd.Flags().Changed("desc") {
			v, _ := cmd.Flags().GetString("desc")
			desc = &v
		}
		if cmd.Flags().Changed("prior") {
			text, _ := cmd.Flags().GetString("prior")
			p, err := models.ParseProbability(text)
			if err != nil {
				return fmt.Errorf("invalid prior: %w", err)
			}
			prior = &p
		}

		kb, err := loadKnowledgeBase(args[0])
		if err != nil {
			return err
		}
		h, err := kb.UpdateHypothesis(id, name, desc, prior)
		if err != nil {
			return err
		}
		if err := saveKnowledgeBase(kb); err != nil {
			return err
		}

		if outputText {
			fmt.Fprintf(stdout, "✓ Hypothesis [%d] %s  prior %.3f\n", h.ID, h.Name, h.InitP)
			return nil
		}
		outputResult(map[string]interface{}{
			"status":     "updated",
			"hypothesis": h,
		})
		return nil
	},
}

var hypoDeleteCmd = &cobra.Command{
	Use:   "delete [kb] [hypothesis-id]",
	Short: "Delete a hypothesis with its links",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID("hypothesis", args[1])
		if err != nil {
			return err
		}
		kb, err := loadKnowledgeBase(args[0])
		if err != nil {
			return err
		}

		if err := kb.DeleteHypo(id); err != nil {
			return err
		}
		if err := saveKnowledgeBase(kb); err != nil {
			return err
		}

		if outputText {
			fmt.Fprintf(stdout, "✗ Deleted hypothesis %d\n", id)
			return nil
		}
		outputResult(map[string]interface{}{
			"status":        "deleted",
			"hypothesis_id": id,
		})
		return nil
	},
}

var hypoSignsCmd = &cobra.Command{
	Use:   "signs [kb] [hypothesis-id]",
	Short: "List the signs linked and not yet linked to a hypothesis",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID("hypothesis", args[1])
		if err != nil {
			return err
		}
		kb, err := loadKnowledgeBase(args[0])
		if err != nil {
			return err
		}
		h, ok := kb.GetHypothesisByID(id)
		if !ok {
			return fmt.Errorf("hypothesis %d: %w", id, models.ErrHypothesisNotFound)
		}

		linked := kb.HypoSigns(h)
		unlinked := kb.HypoUnsigns(h)

		if !outputText {
			links := make([]map[string]interface{}, 0, len(linked))
			for _, s := range linked {
				sv, _ := h.GetLinkBySignID(s.ID)
				links = append(links, map[string]interface{}{
					"sign_id": s.ID,
					"name":    s.Name,
					"p_pos":   sv.PPos(),
					"p_neg":   sv.PNeg(),
				})
			}
			if unlinked == nil {
				unlinked = []*models.Sign{}
			}
			outputResult(map[string]interface{}{
				"hypothesis_id": h.ID,
				"linked":        links,
				"unlinked":      unlinked,
			})
			return nil
		}

		names := signNames(kb)
		fmt.Fprintf(stdout, "[%d] %s\n", h.ID, h.Name)
		fmt.Fprintf(stdout, "\nLinked (%d):\n", len(linked))
		for _, s := range linked {
			sv, _ := h.GetLinkBySignID(s.ID)
			fmt.Fprintf(stdout, "  [%d] %-24s P(+|H) %.3f  P(+|¬H) %.3f\n", s.ID, names[s.ID], sv.PPos(), sv.PNeg())
		}
		fmt.Fprintf(stdout, "\nNot linked (%d):\n", len(unlinked))
		for _, s := range unlinked {
			fmt.Fprintf(stdout, "  [%d] %s\n", s.ID, names[s.ID])
		}
		return nil
	},
}

func init() {
	hypoAddCmd.Flags().String("desc", "", "Description shown when the hypothesis wins")
	hypoAddCmd.Flags().String("prior", "", "Prior probability, 0..1 (\"0,3\" is accepted)")

	hypoEditCmd.Flags().String("name", "", "New name")
	hypoEditCmd.Flags().String("desc", "", "New description")
	hypoEditCmd.Flags().String("prior", "", "New prior probability, 0..1")

	hypoCmd.AddCommand(hypoAddCmd, hypoEditCmd, hypoDeleteCmd, hypoSignsCmd)
	rootCmd.AddCommand(hypoCmd)
}
