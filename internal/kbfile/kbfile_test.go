package kbfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/AbdouB/kbexpert/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const legacyDoc1 = `{
    "__KnowledgeBase__": {
        "name": "Cars",
        "last_path": {"__WindowsPath__": "C:\\kb\\cars.kb.json"},
        "signs": [
            {"__Sign__": {"id": 0, "name": "Noise", "question": "Is the engine noisy?"}},
            {"__Sign__": {"id": 1, "name": "Smoke", "question": "Is there smoke?"}}
        ],
        "hypos": [
            {"__Hypothesis__": {
                "id": 0, "name": "Bearing", "desc": "Worn bearing", "_p": 0.3,
                "signs": [
                    {"__SignValue__": {"id": 0, "sign_id": 0, "_p_pos": 0.9, "_p_neg": 0.1}},
                    {"__SignValue__": {"id": 1, "sign_id": 1, "_p_pos": "0,2", "_p_neg": "0.4"}}
                ]
            }},
            {"__Hypothesis__": {"id": 1, "name": "Gasket", "desc": "", "_p": 1, "signs": []}}
        ]
    }
}`

func sampleKB(t *testing.T) *models.KnowledgeBase {
	t.Helper()
	kb := models.NewKnowledgeBase("Cars")
	s0 := kb.AddSign()
	s0.Name = "Noise"
	s0.Question = "Is the engine noisy?"
	s1 := kb.AddSign()
	s1.Name = "Smoke"
	h := kb.AddHypos()
	h.Name = "Bearing"
	require.NoError(t, h.SetInitP(0.3))
	h.Reset()
	_, err := kb.Link(h.ID, s0.ID, 0.9, 0.1)
	require.NoError(t, err)
	_, err = kb.Link(h.ID, s1.ID, 0.2, 0.4)
	require.NoError(t, err)
	kb.AddHypos()
	return kb
}

func TestDecodeLegacy(t *testing.T) {
	kb, err := Decode([]byte(legacyDoc1), FormatLegacy)
	require.NoError(t, err)

	assert.Equal(t, "Cars", kb.Name)
	assert.Equal(t, `C:\kb\cars.kb.json`, kb.Location)
	assert.NotEmpty(t, kb.ID)
	require.Len(t, kb.Signs, 2)
	assert.Equal(t, "Is there smoke?", kb.Signs[1].Question)

	require.Len(t, kb.Hypos, 2)
	h := kb.Hypos[0]
	assert.Equal(t, 0.3, h.InitP)
	assert.Equal(t, 0.3, h.P)
	require.Len(t, h.Signs, 2)
	assert.Equal(t, 0.2, h.Signs[1].PPos(), "comma decimal separator")
	assert.Equal(t, 0.4, h.Signs[1].PNeg())
	assert.Equal(t, 1.0, kb.Hypos[1].InitP)
	assert.False(t, models.HasErrors(kb.Validate()))
}

func TestDecodeLegacy_SniffedFromJSON(t *testing.T) {
	kb, err := Decode([]byte(legacyDoc1), FormatJSON)
	require.NoError(t, err)
	assert.Len(t, kb.Hypos, 2)
}

func TestDecodeLegacy_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not json", `{`},
		{"no envelope", `{"name": "x"}`},
		{"prior out of range", `{"__KnowledgeBase__": {"name": "x", "signs": [], "hypos": [
			{"__Hypothesis__": {"id": 0, "name": "h", "desc": "", "_p": 1.5, "signs": []}}]}}`},
		{"link out of range", `{"__KnowledgeBase__": {"name": "x", "signs": [], "hypos": [
			{"__Hypothesis__": {"id": 0, "name": "h", "desc": "", "_p": 0.5, "signs": [
				{"__SignValue__": {"id": 0, "sign_id": 0, "_p_pos": -0.1, "_p_neg": 0.5}}]}}]}}`},
		{"missing sign envelope", `{"__KnowledgeBase__": {"name": "x", "signs": [{"id": 0}], "hypos": []}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.doc), FormatLegacy)
			assert.Error(t, err)
		})
	}
}

func TestEncodeDecode_AllFormats(t *testing.T) {
	for _, format := range []Format{FormatLegacy, FormatJSON, FormatYAML} {
		t.Run(string(format), func(t *testing.T) {
			kb := sampleKB(t)
			data, err := Encode(kb, format)
			require.NoError(t, err)

			got, err := Decode(data, format)
			require.NoError(t, err)

			assert.Equal(t, kb.Name, got.Name)
			require.Len(t, got.Signs, 2)
			assert.Equal(t, "Is the engine noisy?", got.Signs[0].Question)
			require.Len(t, got.Hypos, 2)
			assert.Equal(t, 0.3, got.Hypos[0].InitP)
			require.Len(t, got.Hypos[0].Signs, 2)
			assert.Equal(t, 0.9, got.Hypos[0].Signs[0].PPos())
			assert.Equal(t, 0.4, got.Hypos[0].Signs[1].PNeg())
			assert.NotNil(t, got.Hypos[1].Signs)
		})
	}
}

func TestEncodeLegacy_Envelope(t *testing.T) {
	kb := sampleKB(t)
	kb.Location = `C:\kb\cars.kb.json`
	data, err := Encode(kb, FormatLegacy)
	require.NoError(t, err)

	s := string(data)
	assert.Contains(t, s, `"__KnowledgeBase__"`)
	assert.Contains(t, s, `"__WindowsPath__"`)
	assert.Contains(t, s, `"_p_pos": 0.9`)
	assert.Contains(t, s, `"_p": 0.3`)
}

func TestDecodeYAML_RejectsBadLink(t *testing.T) {
	doc := `
name: broken
signs:
  - id: 0
    name: s
    question: q
hypos:
  - id: 0
    name: h
    desc: d
    init_p: 0.5
    signs:
      - sign_id: 0
        p_pos: 2
        p_neg: 0.5
`
	_, err := Decode([]byte(doc), FormatYAML)
	assert.Error(t, err)
}

func TestDetectAndParseFormat(t *testing.T) {
	assert.Equal(t, FormatLegacy, DetectFormat("x/Cars.KB.JSON"))
	assert.Equal(t, FormatJSON, DetectFormat("cars.json"))
	assert.Equal(t, FormatYAML, DetectFormat("cars.yml"))
	assert.Equal(t, FormatJSON, DetectFormat("cars"))

	f, err := ParseFormat("YAML")
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, f)
	_, err = ParseFormat("xml")
	assert.Error(t, err)
}

func TestLoadAndSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "cars.kb.json")

	kb := sampleKB(t)
	require.NoError(t, Save(path, kb, ""))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Cars", got.Name)
	assert.True(t, filepath.IsAbs(got.Location))
	assert.NotEqual(t, kb.ID, got.ID)

	// unnamed knowledge bases take the file name
	unnamed := filepath.Join(dir, "engines.yaml")
	require.NoError(t, os.WriteFile(unnamed, []byte("signs: []\nhypos: []\n"), 0644))
	got, err = Load(unnamed)
	require.NoError(t, err)
	assert.Equal(t, "engines", got.Name)

	_, err = Load(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
