package cli

import (
	"fmt"
	"strings"

	"github.com/AbdouB/kbexpert/internal/config"
	"github.com/AbdouB/kbexpert/internal/db"
	"github.com/AbdouB/kbexpert/internal/kbfile"
	"github.com/AbdouB/kbexpert/internal/models"
	"github.com/AbdouB/kbexpert/internal/search"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// kbCmd groups the knowledge base catalog commands
var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "Manage knowledge bases",
}

var kbCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create an empty knowledge base",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kb := models.NewKnowledgeBase(args[0])

		repo := db.NewKnowledgeBaseRepository(database)
		if err := repo.Create(kb); err != nil {
			return fmt.Errorf("failed to create knowledge base: %w", err)
		}
		logger.Info("knowledge base created", zap.String("id", kb.ID), zap.String("name", kb.Name))

		if outputText {
			fmt.Fprintf(stdout, "✓ Created: %s (%s)\n", kb.Name, kb.ID)
			return nil
		}
		outputResult(map[string]interface{}{
			"status": "created",
			"id":     kb.ID,
			"name":   kb.Name,
		})
		return nil
	},
}

var kbListCmd = &cobra.Command{
	Use:   "list",
	Short: "List knowledge bases",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		repo := db.NewKnowledgeBaseRepository(database)
		list, err := repo.List(limit)
		if err != nil {
			return fmt.Errorf("failed to list knowledge bases: %w", err)
		}

		if !outputText {
			if list == nil {
				list = []*db.KnowledgeBaseSummary{}
			}
			outputResult(map[string]interface{}{
				"knowledge_bases": list,
				"count":           len(list),
			})
			return nil
		}

		if len(list) == 0 {
			fmt.Fprintln(stdout, "No knowledge bases. Run 'kbexpert kb create <name>' to start one.")
			return nil
		}
		for _, s := range list {
			fmt.Fprintf(stdout, "%-30s %3d signs %3d hypotheses  %s\n", s.Name, s.SignCount, s.HypothesisCount, s.ID)
		}
		return nil
	},
}

var kbShowCmd = &cobra.Command{
	Use:   "show [kb]",
	Short: "Show signs, hypotheses and links",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kb, err := loadKnowledgeBase(args[0])
		if err != nil {
			return err
		}

		if !outputText {
			outputResult(kb)
			return nil
		}

		fmt.Fprintf(stdout, "%s (%s)\n", kb.Name, kb.ID)
		if kb.Location != "" {
			fmt.Fprintf(stdout, "from: %s\n", kb.Location)
		}
		fmt.Fprintln(stdout, strings.Repeat("─", 50))

		fmt.Fprintf(stdout, "\nSigns (%d):\n", len(kb.Signs))
		for _, s := range kb.Signs {
			fmt.Fprintf(stdout, "  [%d] %s: %s\n", s.ID, s.Name, s.Question)
		}

		fmt.Fprintf(stdout, "\nHypotheses (%d):\n", len(kb.Hypos))
		for _, h := range kb.Hypos {
			fmt.Fprintf(stdout, "  [%d] %s  prior %.3f\n", h.ID, h.Name, h.InitP)
			if h.Desc != "" {
				fmt.Fprintf(stdout, "      %s\n", h.Desc)
			}
			for _, s := range kb.HypoSigns(h) {
				sv, _ := h.GetLinkBySignID(s.ID)
				fmt.Fprintf(stdout, "      ↳ [%d] %-24s P(+|H) %.3f  P(+|¬H) %.3f\n", s.ID, s.Name, sv.PPos(), sv.PNeg())
			}
		}
		return nil
	},
}

var kbRenameCmd = &cobra.Command{
	Use:   "rename [kb] [new-name]",
	Short: "Rename a knowledge base",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kb, err := loadKnowledgeBase(args[0])
		if err != nil {
			return err
		}
		name := strings.TrimSpace(args[1])
		if name == "" {
			return fmt.Errorf("name must not be empty")
		}
		old := kb.Name
		kb.Name = name
		if err := saveKnowledgeBase(kb); err != nil {
			return err
		}

		if outputText {
			fmt.Fprintf(stdout, "✓ Renamed: %s → %s\n", old, kb.Name)
			return nil
		}
		outputResult(map[string]interface{}{
			"status": "renamed",
			"id":     kb.ID,
			"name":   kb.Name,
		})
		return nil
	},
}

var kbDeleteCmd = &cobra.Command{
	Use:   "delete [kb]",
	Short: "Delete a knowledge base and its consultation history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kb, err := loadKnowledgeBase(args[0])
		if err != nil {
			return err
		}

		repo := db.NewKnowledgeBaseRepository(database)
		if err := repo.Delete(kb.ID); err != nil {
			return fmt.Errorf("failed to delete knowledge base: %w", err)
		}
		logger.Info("knowledge base deleted", zap.String("id", kb.ID))

		if outputText {
			fmt.Fprintf(stdout, "✗ Deleted: %s\n", kb.Name)
			return nil
		}
		outputResult(map[string]interface{}{
			"status": "deleted",
			"id":     kb.ID,
			"name":   kb.Name,
		})
		return nil
	},
}

var kbValidateCmd = &cobra.Command{
	Use:   "validate [kb]",
	Short: "Check a knowledge base for broken or degenerate links",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kb, err := loadKnowledgeBase(args[0])
		if err != nil {
			return err
		}

		issues := kb.Validate()
		if outputText {
			printIssues(issues)
		} else {
			if issues == nil {
				issues = []models.ValidationIssue{}
			}
			outputResult(map[string]interface{}{
				"valid":  !models.HasErrors(issues),
				"issues": issues,
			})
		}

		if models.HasErrors(issues) {
			return fmt.Errorf("knowledge base %q has errors", kb.Name)
		}
		return nil
	},
}

func printIssues(issues []models.ValidationIssue) {
	if len(issues) == 0 {
		fmt.Fprintln(stdout, "✓ No issues found")
		return
	}
	for _, i := range issues {
		var where []string
		if i.HypothesisID != nil {
			where = append(where, fmt.Sprintf("hypothesis %d", *i.HypothesisID))
		}
		if i.SignID != nil {
			where = append(where, fmt.Sprintf("sign %d", *i.SignID))
		}
		fmt.Fprintf(stdout, "  %-7s %s: %s\n", strings.ToUpper(i.Severity), strings.Join(where, ", "), i.Message)
	}
}

var kbFindCmd = &cobra.Command{
	Use:   "find [kb] [query]",
	Short: "Fuzzy search signs and hypotheses",
	Long: `Fuzzy search the names, questions and descriptions of a knowledge base.

Examples:
  kbexpert kb find cars "noise"
  kbexpert kb find cars "bearng" -t 0.2     # typos are tolerated`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		threshold, _ := cmd.Flags().GetFloat64("threshold")
		if !cmd.Flags().Changed("threshold") {
			threshold = config.SearchThreshold()
		}

		kb, err := loadKnowledgeBase(args[0])
		if err != nil {
			return err
		}

		query := args[1]
		results := search.FuzzySearch(query, search.ItemsFromKnowledgeBase(kb), threshold)
		// A negative limit means no limit, as for `kb list`
		if limit >= 0 && len(results) > limit {
			results = results[:limit]
		}

		if !outputText {
			if results == nil {
				results = []search.SearchResult{}
			}
			outputResult(map[string]interface{}{
				"query":   query,
				"results": results,
				"count":   len(results),
			})
			return nil
		}

		fmt.Fprintf(stdout, "Fuzzy Search: \"%s\"\n", query)
		fmt.Fprintln(stdout, strings.Repeat("─", 50))
		if len(results) == 0 {
			fmt.Fprintln(stdout, "No matches found.")
			return nil
		}

		fmt.Fprintf(stdout, "\nFound %d match(es):\n\n", len(results))
		for _, r := range results {
			label := "SIGN"
			if r.Type == search.TypeHypothesis {
				label = "HYPOTHESIS"
			}

			stars := int(r.Score * 5)
			if stars < 1 {
				stars = 1
			}
			scoreBar := strings.Repeat("★", stars) + strings.Repeat("☆", 5-stars)

			fmt.Fprintf(stdout, "  [%s %d] %s\n", label, r.ID, scoreBar)
			fmt.Fprintf(stdout, "    %s\n", r.Text)
			if r.SecondaryText != "" {
				fmt.Fprintf(stdout, "    %s\n", r.SecondaryText)
			}
			fmt.Fprintln(stdout)
		}
		return nil
	},
}

var kbImportCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Import a knowledge base file",
	Long: `Import a knowledge base from a file.

The format follows the extension: *.kb.json files written by the desktop
constructor, plain *.json documents as produced by 'kb export', or *.yaml.

Examples:
  kbexpert kb import cars.kb.json
  kbexpert kb import cars.yaml --name cars-v2`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")

		kb, err := kbfile.Load(args[0])
		if err != nil {
			return fmt.Errorf("failed to import: %w", err)
		}
		if name != "" {
			kb.Name = name
		}

		issues := kb.Validate()
		if models.HasErrors(issues) {
			if outputText {
				printIssues(issues)
			}
			return fmt.Errorf("knowledge base %q has errors, not imported", kb.Name)
		}

		repo := db.NewKnowledgeBaseRepository(database)
		if err := repo.Create(kb); err != nil {
			return fmt.Errorf("failed to store knowledge base: %w", err)
		}
		logger.Info("knowledge base imported",
			zap.String("id", kb.ID),
			zap.String("file", kb.Location),
			zap.Int("signs", len(kb.Signs)),
			zap.Int("hypotheses", len(kb.Hypos)),
		)

		if outputText {
			fmt.Fprintf(stdout, "✓ Imported: %s (%d signs, %d hypotheses)\n", kb.Name, len(kb.Signs), len(kb.Hypos))
			if len(issues) > 0 {
				printIssues(issues)
			}
			return nil
		}
		if issues == nil {
			issues = []models.ValidationIssue{}
		}
		outputResult(map[string]interface{}{
			"status":     "imported",
			"id":         kb.ID,
			"name":       kb.Name,
			"signs":      len(kb.Signs),
			"hypotheses": len(kb.Hypos),
			"warnings":   issues,
		})
		return nil
	},
}

var kbExportCmd = &cobra.Command{
	Use:   "export [kb] [file]",
	Short: "Export a knowledge base to a file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		formatName, _ := cmd.Flags().GetString("format")

		var format kbfile.Format
		if formatName != "" {
			f, err := kbfile.ParseFormat(formatName)
			if err != nil {
				return err
			}
			format = f
		} else {
			format = kbfile.DetectFormat(args[1])
		}

		kb, err := loadKnowledgeBase(args[0])
		if err != nil {
			return err
		}
		if err := kbfile.Save(args[1], kb, format); err != nil {
			return err
		}

		if outputText {
			fmt.Fprintf(stdout, "✓ Exported: %s → %s (%s)\n", kb.Name, args[1], format)
			return nil
		}
		outputResult(map[string]interface{}{
			"status": "exported",
			"name":   kb.Name,
			"file":   args[1],
			"format": format,
		})
		return nil
	},
}

func init() {
	kbListCmd.Flags().IntP("limit", "n", 100, "Maximum number of knowledge bases")

	kbFindCmd.Flags().Float64P("threshold", "t", 0.3, "Minimum score threshold for fuzzy matches (0.0-1.0, default $KBEXPERT_SEARCH_THRESHOLD)")
	kbFindCmd.Flags().IntP("limit", "n", 50, "Maximum number of results (negative for no limit)")

	kbImportCmd.Flags().String("name", "", "Name to store the knowledge base under")
	kbExportCmd.Flags().String("format", "", "legacy, json or yaml (default from the file extension)")

	kbCmd.AddCommand(
		kbCreateCmd,
		kbListCmd,
		kbShowCmd,
		kbRenameCmd,
		kbDeleteCmd,
		kbValidateCmd,
		kbFindCmd,
		kbImportCmd,
		kbExportCmd,
	)
	rootCmd.AddCommand(kbCmd)
}
