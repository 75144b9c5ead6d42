package cli

import (
	"fmt"

	"github.com/AbdouB/kbexpert/internal/models"
	"github.com/spf13/cobra"
)

var linkCmd = &cobra.Command{
	Use:   "link",
	Short: "Manage the links between hypotheses and signs",
}

var linkSetCmd = &cobra.Command{
	Use:   "set [kb] [hypothesis-id] [sign-id] [p-pos] [p-neg]",
	Short: "Link a sign to a hypothesis",
	Long: `Link a sign to a hypothesis, or change an existing link.

p-pos is P(sign present | hypothesis true), p-neg is
P(sign present | hypothesis false). Both must lie in [0, 1]; a decimal
comma is accepted.

Example:
  kbexpert link set cars 0 1 0.9 0,05`,
	Args: cobra.ExactArgs(5),
	RunE: func(cmd *cobra.Command, args []string) error {
		hypoID, err := parseID("hypothesis", args[1])
		if err != nil {
			return err
		}
		signID, err := parseID("sign", args[2])
		if err != nil {
			return err
		}
		pPos, err := models.ParseProbability(args[3])
		if err != nil {
			return fmt.Errorf("invalid p-pos: %w", err)
		}
		pNeg, err := models.ParseProbability(args[4])
		if err != nil {
			return fmt.Errorf("invalid p-neg: %w", err)
		}

		kb, err := loadKnowledgeBase(args[0])
		if err != nil {
			return err
		}
		sv, err := kb.Link(hypoID, signID, pPos, pNeg)
		if err != nil {
			return err
		}
		if err := saveKnowledgeBase(kb); err != nil {
			return err
		}

		if outputText {
			fmt.Fprintf(stdout, "✓ Linked hypothesis %d ↔ sign %d  P(+|H) %.3f  P(+|¬H) %.3f\n", hypoID, signID, sv.PPos(), sv.PNeg())
			if sv.IsDegenerate() {
				fmt.Fprintln(stdout, "  warning: answers to this sign will not change the hypothesis")
			}
			return nil
		}
		outputResult(map[string]interface{}{
			"status":        "linked",
			"hypothesis_id": hypoID,
			"link":          sv,
			"degenerate":    sv.IsDegenerate(),
		})
		return nil
	},
}

var linkDeleteCmd = &cobra.Command{
	Use:   "delete [kb] [hypothesis-id] [sign-id]",
	Short: "Remove a link",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		hypoID, err := parseID("hypothesis", args[1])
		if err != nil {
			return err
		}
		signID, err := parseID("sign", args[2])
		if err != nil {
			return err
		}

		kb, err := loadKnowledgeBase(args[0])
		if err != nil {
			return err
		}
		if err := kb.DeleteLink(hypoID, signID); err != nil {
			return err
		}
		if err := saveKnowledgeBase(kb); err != nil {
			return err
		}

		if outputText {
			fmt.Fprintf(stdout, "✗ Unlinked hypothesis %d ↔ sign %d\n", hypoID, signID)
			return nil
		}
		outputResult(map[string]interface{}{
			"status":        "unlinked",
			"hypothesis_id": hypoID,
			"sign_id":       signID,
		})
		return nil
	},
}

func init() {
	linkCmd.AddCommand(linkSetCmd, linkDeleteCmd)
	rootCmd.AddCommand(linkCmd)
}
