package cli

import (
	"fmt"

	"github.com/AbdouB/kbexpert/internal/models"
	"github.com/spf13/cobra"
)

var signCmd = &cobra.Command{
	Use:   "sign",
	Short: "Manage the signs (questions) of a knowledge base",
}

var signAddCmd = &cobra.Command{
	Use:   "add [kb] [name] [question]",
	Short: "Add a sign",
	Long: `Add a sign to a knowledge base. The new sign gets the next free id.

Example:
  kbexpert sign add cars "Noise" "Is the engine noisy?"`,
	Args: cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		kb, err := loadKnowledgeBase(args[0])
		if err != nil {
			return err
		}

		s := kb.AddSign()
		s.Name = args[1]
		if len(args) > 2 {
			s.Question = args[2]
		}
		if err := saveKnowledgeBase(kb); err != nil {
			return err
		}

		if outputText {
			fmt.Fprintf(stdout, "✓ Sign [%d] %s: %s\n", s.ID, s.Name, s.Question)
			return nil
		}
		outputResult(map[string]interface{}{
			"status": "added",
			"sign":   s,
		})
		return nil
	},
}

var signEditCmd = &cobra.Command{
	Use:   "edit [kb] [sign-id]",
	Short: "Change the name or question of a sign",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		question, _ := cmd.Flags().GetString("question")

		id, err := parseID("sign", args[1])
		if err != nil {
			return err
		}
		kb, err := loadKnowledgeBase(args[0])
		if err != nil {
			return err
		}

		s, err := kb.UpdateSign(id, name, question)
		if err != nil {
			return err
		}
		if err := saveKnowledgeBase(kb); err != nil {
			return err
		}

		if outputText {
			fmt.Fprintf(stdout, "✓ Sign [%d] %s: %s\n", s.ID, s.Name, s.Question)
			return nil
		}
		outputResult(map[string]interface{}{
			"status": "updated",
			"sign":   s,
		})
		return nil
	},
}

var signDeleteCmd = &cobra.Command{
	Use:   "delete [kb] [sign-id]",
	Short: "Delete a sign and every link to it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID("sign", args[1])
		if err != nil {
			return err
		}
		kb, err := loadKnowledgeBase(args[0])
		if err != nil {
			return err
		}

		if err := kb.DeleteSign(id); err != nil {
			return err
		}
		if err := saveKnowledgeBase(kb); err != nil {
			return err
		}

		if outputText {
			fmt.Fprintf(stdout, "✗ Deleted sign %d\n", id)
			return nil
		}
		outputResult(map[string]interface{}{
			"status":  "deleted",
			"sign_id": id,
		})
		return nil
	},
}

func init() {
	signEditCmd.Flags().String("name", "", "New name")
	signEditCmd.Flags().String("question", "", "New question text")

	signCmd.AddCommand(signAddCmd, signEditCmd, signDeleteCmd)
	rootCmd.AddCommand(signCmd)
}

// signNames maps sign ids to names for display
func signNames(kb *models.KnowledgeBase) map[int]string {
	names := make(map[int]string, len(kb.Signs))
	for _, s := range kb.Signs {
		names[s.ID] = s.Name
	}
	return names
}
