// Package cli provides the command-line interface for kbexpert
package cli

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/AbdouB/kbexpert/internal/config"
	"github.com/AbdouB/kbexpert/internal/db"
	"github.com/AbdouB/kbexpert/internal/models"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Version is set by main
var Version = "dev"

var (
	database   *db.DB
	logger     = zap.NewNop()
	outputText bool // --text flag for human-readable output (default is JSON)
	verbose    bool
	dbPath     string

	// Replaced in tests
	stdin  io.Reader = os.Stdin
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// rootCmd is the base command
var rootCmd = &cobra.Command{
	Use:   "kbexpert",
	Short: "Bayesian expert system for sequential diagnosis",
	Long: `kbexpert - Bayesian Expert System

Build knowledge bases of signs and hypotheses, then run consultations that
ask the most informative question first and stop as soon as the leading
hypothesis can no longer be overtaken.

Quick Start:
  kbexpert kb create cars                         # New knowledge base
  kbexpert sign add cars "Noise" "Is the engine noisy?"
  kbexpert hypo add cars "Bearing" --prior 0.3
  kbexpert link set cars 0 0 0.9 0.1             # hypothesis 0, sign 0
  kbexpert consult cars                           # Answer questions interactively
  kbexpert kb import old/cars.kb.json             # Desktop constructor files`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Load(); err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		l, err := newLogger(config.LogLevel(), verbose)
		if err != nil {
			return err
		}
		logger = l

		// Skip DB init for help commands
		if cmd.Name() == "help" || cmd.Name() == "version" {
			return nil
		}

		path := dbPath
		if path == "" {
			path = config.DatabasePath()
		}
		database, err = db.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		logger.Debug("database opened", zap.String("path", database.Path()))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		closeDatabase()
	},
}

// Execute runs the CLI
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		// PersistentPostRun is skipped when a command fails
		closeDatabase()
		outputError(err)
	}
	return err
}

func closeDatabase() {
	if database != nil {
		database.Close()
		database = nil
	}
	_ = logger.Sync()
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&outputText, "text", false, "Human-readable text output (default is JSON)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging on stderr")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database file (default $KBEXPERT_DB, .kbexpert/kb.db or ~/.kbexpert/kb.db)")

	rootCmd.AddCommand(versionCmd)
}

// newLogger builds a stderr logger so stdout stays machine readable
func newLogger(level string, verbose bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	if verbose {
		lvl = zapcore.DebugLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Encoding = "console"
	cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.DisableStacktrace = !verbose
	return cfg.Build()
}

// outputResult outputs the result in the appropriate format
// Default is JSON, use --text for human-readable
func outputResult(result interface{}) {
	if outputText {
		fmt.Fprintf(stdout, "%+v\n", result)
	} else {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		enc.Encode(result)
	}
}

// outputError outputs an error in the appropriate format
// Default is JSON, use --text for human-readable
func outputError(err error) {
	if outputText {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	} else {
		result := map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
		}
		enc := json.NewEncoder(stderr)
		enc.Encode(result)
	}
}

// loadKnowledgeBase finds a knowledge base by name, falling back to its ID
func loadKnowledgeBase(ref string) (*models.KnowledgeBase, error) {
	repo := db.NewKnowledgeBaseRepository(database)
	kb, err := repo.GetByName(ref)
	if err != nil {
		return nil, fmt.Errorf("failed to load knowledge base: %w", err)
	}
	if kb == nil {
		kb, err = repo.Get(ref)
		if err != nil {
			return nil, fmt.Errorf("failed to load knowledge base: %w", err)
		}
	}
	if kb == nil {
		return nil, fmt.Errorf("knowledge base %q not found", ref)
	}
	return kb, nil
}

// saveKnowledgeBase writes back an edited knowledge base
func saveKnowledgeBase(kb *models.KnowledgeBase) error {
	repo := db.NewKnowledgeBaseRepository(database)
	if err := repo.Save(kb); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("knowledge base %q not found", kb.Name)
		}
		return fmt.Errorf("failed to save knowledge base: %w", err)
	}
	return nil
}

// parseID parses a numeric sign or hypothesis id argument
func parseID(kind, s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s id %q", kind, s)
	}
	return id, nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		if outputText {
			fmt.Fprintf(stdout, "kbexpert version %s (Go)\n", Version)
			return
		}
		outputResult(map[string]interface{}{"version": Version})
	},
}
