package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/AbdouB/kbexpert/internal/models"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetFlags clears flag values left over from a previous Execute
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

type cliEnv struct {
	t      *testing.T
	dbFile string
	in     string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Setenv("KBEXPERT_ENV", filepath.Join(t.TempDir(), "none.env"))
	t.Setenv("KBEXPERT_LOG_LEVEL", "error")
	return &cliEnv{t: t, dbFile: filepath.Join(t.TempDir(), "kb.db")}
}

func (e *cliEnv) run(args ...string) (string, string, error) {
	e.t.Helper()
	resetFlags(rootCmd)

	var out, errOut bytes.Buffer
	oldIn, oldOut, oldErr := stdin, stdout, stderr
	stdin, stdout, stderr = strings.NewReader(e.in), &out, &errOut
	defer func() { stdin, stdout, stderr = oldIn, oldOut, oldErr }()

	rootCmd.SetArgs(append([]string{"--db", e.dbFile}, args...))
	err := Execute()
	return out.String(), errOut.String(), err
}

func (e *cliEnv) mustRun(args ...string) string {
	e.t.Helper()
	out, errOut, err := e.run(args...)
	require.NoError(e.t, err, errOut)
	return out
}

func decode(t *testing.T, out string, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal([]byte(out), v), out)
}

func buildFluKB(e *cliEnv) {
	e.mustRun("kb", "create", "flu")
	e.mustRun("sign", "add", "flu", "Fever", "Do you have a fever?")
	e.mustRun("hypo", "add", "flu", "Flu", "--prior", "0,5", "--desc", "Influenza")
	e.mustRun("hypo", "add", "flu", "Cold", "--prior", "0.5")
	e.mustRun("link", "set", "flu", "0", "0", "0.9", "0.1")
	e.mustRun("link", "set", "flu", "1", "0", "0.1", "0.9")
}

func TestCLI_BuildAndConsult(t *testing.T) {
	e := newCLIEnv(t)
	buildFluKB(e)

	var consult struct {
		Status         string `json:"status"`
		ConsultationID string `json:"consultation_id"`
		Winner         struct {
			ID   int     `json:"id"`
			Name string  `json:"name"`
			Desc string  `json:"desc"`
			P    float64 `json:"p"`
		} `json:"winner"`
		Steps []models.StepRecord `json:"steps"`
	}
	decode(t, e.mustRun("consult", "flu", "--answers", "4"), &consult)
	assert.Equal(t, "finished", consult.Status)
	assert.Equal(t, "Flu", consult.Winner.Name)
	assert.Equal(t, "Influenza", consult.Winner.Desc)
	assert.InDelta(t, 0.9, consult.Winner.P, 1e-9)
	require.Len(t, consult.Steps, 1)
	assert.Equal(t, "Do you have a fever?", consult.Steps[0].Question)

	var history struct {
		Count         int                      `json:"count"`
		Consultations []map[string]interface{} `json:"consultations"`
	}
	decode(t, e.mustRun("history", "flu"), &history)
	assert.Equal(t, 1, history.Count)
	assert.Equal(t, consult.ConsultationID, history.Consultations[0]["id"])

	var shown models.Consultation
	decode(t, e.mustRun("history", "show", consult.ConsultationID), &shown)
	assert.Len(t, shown.Steps, 1)
	require.NotNil(t, shown.WinnerName)
	assert.Equal(t, "Flu", *shown.WinnerName)
}

func TestCLI_InteractiveConsult(t *testing.T) {
	e := newCLIEnv(t)
	buildFluKB(e)

	e.in = "0\n"
	out, prompts, err := e.run("consult", "flu", "--no-save")
	require.NoError(t, err)
	assert.Contains(t, prompts, "Do you have a fever?")
	assert.Contains(t, prompts, "4 - Yes")

	var consult map[string]interface{}
	decode(t, out, &consult)
	assert.Equal(t, "Cold", consult["winner"].(map[string]interface{})["name"])
	assert.NotContains(t, consult, "consultation_id")

	var history struct {
		Count int `json:"count"`
	}
	decode(t, e.mustRun("history", "flu"), &history)
	assert.Equal(t, 0, history.Count)
}

func TestCLI_EditCommands(t *testing.T) {
	e := newCLIEnv(t)
	buildFluKB(e)

	e.mustRun("sign", "edit", "flu", "0", "--question", "Is your temperature high?")
	e.mustRun("hypo", "edit", "flu", "1", "--name", "Common cold", "--prior", "0.25")
	e.mustRun("kb", "rename", "flu", "respiratory")

	var kb models.KnowledgeBase
	decode(t, e.mustRun("kb", "show", "respiratory"), &kb)
	assert.Equal(t, "Is your temperature high?", kb.Signs[0].Question)
	assert.Equal(t, "Common cold", kb.Hypos[1].Name)
	assert.Equal(t, 0.25, kb.Hypos[1].InitP)

	e.mustRun("link", "delete", "respiratory", "1", "0")
	var signs struct {
		Linked   []map[string]interface{} `json:"linked"`
		Unlinked []models.Sign            `json:"unlinked"`
	}
	decode(t, e.mustRun("hypo", "signs", "respiratory", "1"), &signs)
	assert.Empty(t, signs.Linked)
	require.Len(t, signs.Unlinked, 1)

	e.mustRun("sign", "delete", "respiratory", "0")
	var valid struct {
		Valid  bool                     `json:"valid"`
		Issues []models.ValidationIssue `json:"issues"`
	}
	decode(t, e.mustRun("kb", "validate", "respiratory"), &valid)
	assert.True(t, valid.Valid)
	assert.NotEmpty(t, valid.Issues, "hypotheses without signs are reported")

	_, _, err := e.run("link", "set", "respiratory", "0", "7", "0.5", "0.5")
	assert.ErrorIs(t, err, models.ErrSignNotFound)

	_, _, err = e.run("hypo", "edit", "respiratory", "0", "--prior", "1.5")
	assert.ErrorIs(t, err, models.ErrProbabilityOutOfRange)
}

func TestCLI_ImportExportFind(t *testing.T) {
	e := newCLIEnv(t)
	dir := t.TempDir()

	legacy := `{"__KnowledgeBase__": {
		"name": "Cars",
		"last_path": {"__WindowsPath__": "C:\\kb\\cars.kb.json"},
		"signs": [{"__Sign__": {"id": 0, "name": "Noise", "question": "Is the engine noisy?"}}],
		"hypos": [{"__Hypothesis__": {"id": 0, "name": "Bearing", "desc": "Worn bearing", "_p": 0.3,
			"signs": [{"__SignValue__": {"id": 0, "sign_id": 0, "_p_pos": 0.9, "_p_neg": 0.2}}]}}]}}`
	path := filepath.Join(dir, "cars.kb.json")
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0644))

	var imported struct {
		Status string `json:"status"`
		Name   string `json:"name"`
		Signs  int    `json:"signs"`
	}
	decode(t, e.mustRun("kb", "import", path), &imported)
	assert.Equal(t, "imported", imported.Status)
	assert.Equal(t, "Cars", imported.Name)
	assert.Equal(t, 1, imported.Signs)

	out := filepath.Join(dir, "export", "cars.yaml")
	e.mustRun("kb", "export", "Cars", out)
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "init_p: 0.3")

	var found struct {
		Count   int `json:"count"`
		Results []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"results"`
	}
	decode(t, e.mustRun("kb", "find", "Cars", "noise"), &found)
	require.Equal(t, 1, found.Count)
	assert.Equal(t, "Noise", found.Results[0].Text)

	// same name again collides
	_, _, err = e.run("kb", "import", path)
	assert.Error(t, err)

	e.mustRun("kb", "import", out, "--name", "cars-yaml")
	var list struct {
		Count int `json:"count"`
	}
	decode(t, e.mustRun("kb", "list"), &list)
	assert.Equal(t, 2, list.Count)

	e.mustRun("kb", "delete", "Cars")
	_, errOut, err := e.run("kb", "show", "Cars")
	assert.Error(t, err)
	assert.Contains(t, errOut, "not found")
}

func TestCLI_ConsultRejectsBrokenKB(t *testing.T) {
	e := newCLIEnv(t)
	e.mustRun("kb", "create", "empty")

	_, _, err := e.run("consult", "empty", "--neutral")
	assert.Error(t, err, "no hypotheses or signs")
}

func TestCLI_FindNegativeLimitMeansAll(t *testing.T) {
	e := newCLIEnv(t)
	buildFluKB(e)

	var found struct {
		Count int `json:"count"`
	}
	decode(t, e.mustRun("kb", "find", "flu", "fever", "-n", "-1"), &found)
	assert.Equal(t, 1, found.Count)

	decode(t, e.mustRun("kb", "find", "flu", "fever", "-n", "0"), &found)
	assert.Equal(t, 0, found.Count)
}

func TestCLI_ConsultTextListsAnsweredSigns(t *testing.T) {
	e := newCLIEnv(t)
	buildFluKB(e)

	out := e.mustRun("consult", "flu", "--answers", "4", "--text")
	assert.Contains(t, out, "1. Fever")
	assert.Contains(t, out, "→ Yes")
	assert.Contains(t, out, "Result: Flu")
}

func TestCLI_Version(t *testing.T) {
	e := newCLIEnv(t)
	old := Version
	Version = "1.2.3"
	defer func() { Version = old }()

	var v map[string]string
	decode(t, e.mustRun("version"), &v)
	assert.Equal(t, "1.2.3", v["version"])

	assert.Equal(t, "kbexpert version 1.2.3 (Go)\n", e.mustRun("version", "--text"))
}
