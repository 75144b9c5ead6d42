// Package config loads kbexpert settings from the environment
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Load reads the .env file named by KBEXPERT_ENV (or .env by default),
// then its .secret sidecar if present. Variables already set in the process
// environment win over file values.
func Load() error {
	envFile := os.Getenv("KBEXPERT_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Missing files are fine
	_ = godotenv.Load(envFile)
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

// DatabasePath returns the sqlite file to use. Empty means the default
// location chosen by the db package.
func DatabasePath() string {
	return os.Getenv("KBEXPERT_DB")
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "warn" so interactive consultations stay quiet.
func LogLevel() string {
	level := os.Getenv("KBEXPERT_LOG_LEVEL")
	if level == "" {
		return "warn"
	}
	return level
}

// SearchThreshold returns the minimum fuzzy match score for `kb find`.
// Defaults to 0.3 if unset or invalid.
func SearchThreshold() float64 {
	t, err := strconv.ParseFloat(os.Getenv("KBEXPERT_SEARCH_THRESHOLD"), 64)
	if err != nil || t < 0 || t > 1 {
		return 0.3
	}
	return t
}

// HistoryLimit returns how many consultations `history` lists by default
func HistoryLimit() int {
	n, err := strconv.Atoi(os.Getenv("KBEXPERT_HISTORY_LIMIT"))
	if err != nil || n <= 0 {
		return 20
	}
	return n
}
