package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	t.Setenv("KBEXPERT_DB", "")
	t.Setenv("KBEXPERT_LOG_LEVEL", "")
	t.Setenv("KBEXPERT_SEARCH_THRESHOLD", "")
	t.Setenv("KBEXPERT_HISTORY_LIMIT", "")

	assert.Equal(t, "", DatabasePath())
	assert.Equal(t, "warn", LogLevel())
	assert.Equal(t, 0.3, SearchThreshold())
	assert.Equal(t, 20, HistoryLimit())
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("KBEXPERT_SEARCH_THRESHOLD", "2.5")
	t.Setenv("KBEXPERT_HISTORY_LIMIT", "-3")

	assert.Equal(t, 0.3, SearchThreshold())
	assert.Equal(t, 20, HistoryLimit())
}

func TestLoadReadsEnvFileAndSecret(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("KBEXPERT_LOG_LEVEL=debug\nKBEXPERT_HISTORY_LIMIT=5\n"), 0644))
	require.NoError(t, os.WriteFile(envFile+".secret", []byte("KBEXPERT_DB="+filepath.Join(dir, "kb.db")+"\n"), 0644))

	t.Setenv("KBEXPERT_ENV", envFile)
	// registered so t.Setenv restores them; godotenv only fills unset vars
	t.Setenv("KBEXPERT_LOG_LEVEL", "")
	t.Setenv("KBEXPERT_HISTORY_LIMIT", "")
	t.Setenv("KBEXPERT_DB", "")
	os.Unsetenv("KBEXPERT_LOG_LEVEL")
	os.Unsetenv("KBEXPERT_HISTORY_LIMIT")
	os.Unsetenv("KBEXPERT_DB")

	require.NoError(t, Load())

	assert.Equal(t, "debug", LogLevel())
	assert.Equal(t, 5, HistoryLimit())
	assert.Equal(t, filepath.Join(dir, "kb.db"), DatabasePath())
}
