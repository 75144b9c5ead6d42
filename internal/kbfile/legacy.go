package kbfile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/AbdouB/kbexpert/internal/models"
)

// The desktop constructor stores one knowledge base per *.kb.json file and
// wraps every object in a single-key envelope naming its type.

type legacyDoc struct {
	KB *legacyKB `json:"__KnowledgeBase__"`
}

type legacyKB struct {
	Name     string          `json:"name"`
	LastPath json.RawMessage `json:"last_path,omitempty"`
	Signs    []legacySignEnv `json:"signs"`
	Hypos    []legacyHypoEnv `json:"hypos"`
}

type legacySignEnv struct {
	Sign *models.Sign `json:"__Sign__"`
}

type legacyHypoEnv struct {
	Hypothesis *legacyHypo `json:"__Hypothesis__"`
}

type legacyHypo struct {
	ID    int              `json:"id"`
	Name  string           `json:"name"`
	Desc  string           `json:"desc"`
	P     legacyProb       `json:"_p"`
	Signs []legacyValueEnv `json:"signs"`
}

type legacyValueEnv struct {
	Value *legacyValue `json:"__SignValue__"`
}

type legacyValue struct {
	ID     int        `json:"id"`
	SignID int        `json:"sign_id"`
	PPos   legacyProb `json:"_p_pos"`
	PNeg   legacyProb `json:"_p_neg"`
}

// legacyProb accepts numbers and numeric strings with either decimal
// separator, as the desktop editor did.
type legacyProb float64

func (p *legacyProb) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		s, err := strconv.Unquote(string(data))
		if err != nil {
			return err
		}
		v, err := models.ParseProbability(s)
		if err != nil {
			return err
		}
		*p = legacyProb(v)
		return nil
	}
	v, err := models.ParseProbability(string(data))
	if err != nil {
		return err
	}
	*p = legacyProb(v)
	return nil
}

// isLegacy reports whether data looks like a type-tagged document
func isLegacy(data []byte) bool {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return false
	}
	_, ok := probe["__KnowledgeBase__"]
	return ok
}

func decodeLegacy(data []byte) (*models.KnowledgeBase, error) {
	var doc legacyDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse legacy knowledge base: %w", err)
	}
	if doc.KB == nil {
		return nil, fmt.Errorf("missing __KnowledgeBase__ object")
	}

	kb := models.NewKnowledgeBase(doc.KB.Name)
	kb.Location = legacyPath(doc.KB.LastPath)

	for i, env := range doc.KB.Signs {
		if env.Sign == nil {
			return nil, fmt.Errorf("signs[%d]: missing __Sign__ object", i)
		}
		s := *env.Sign
		kb.Signs = append(kb.Signs, &s)
	}

	for i, env := range doc.KB.Hypos {
		lh := env.Hypothesis
		if lh == nil {
			return nil, fmt.Errorf("hypos[%d]: missing __Hypothesis__ object", i)
		}
		h := models.NewHypothesis(lh.ID)
		h.Name = lh.Name
		h.Desc = lh.Desc
		if err := h.SetInitP(float64(lh.P)); err != nil {
			return nil, fmt.Errorf("hypothesis %d: %w", lh.ID, err)
		}
		for j, venv := range lh.Signs {
			if venv.Value == nil {
				return nil, fmt.Errorf("hypothesis %d signs[%d]: missing __SignValue__ object", lh.ID, j)
			}
			sv, err := models.NewSignValueWith(venv.Value.SignID, float64(venv.Value.PPos), float64(venv.Value.PNeg))
			if err != nil {
				return nil, fmt.Errorf("hypothesis %d sign %d: %w", lh.ID, venv.Value.SignID, err)
			}
			h.Signs = append(h.Signs, sv)
		}
		h.Reset()
		kb.Hypos = append(kb.Hypos, h)
	}

	return kb, nil
}

// legacyPath extracts the path from a {"__WindowsPath__": "..."} envelope
func legacyPath(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var env map[string]string
	if err := json.Unmarshal(raw, &env); err != nil {
		return ""
	}
	for k, v := range env {
		if strings.HasSuffix(k, "Path__") {
			return v
		}
	}
	return ""
}

func encodeLegacy(kb *models.KnowledgeBase) ([]byte, error) {
	out := legacyKB{
		Name:  kb.Name,
		Signs: make([]legacySignEnv, 0, len(kb.Signs)),
		Hypos: make([]legacyHypoEnv, 0, len(kb.Hypos)),
	}
	if kb.Location != "" {
		raw, err := json.Marshal(map[string]string{"__WindowsPath__": kb.Location})
		if err != nil {
			return nil, err
		}
		out.LastPath = raw
	}

	for _, s := range kb.Signs {
		sc := *s
		out.Signs = append(out.Signs, legacySignEnv{Sign: &sc})
	}

	for _, h := range kb.Hypos {
		lh := &legacyHypo{
			ID:    h.ID,
			Name:  h.Name,
			Desc:  h.Desc,
			P:     legacyProb(h.InitP),
			Signs: make([]legacyValueEnv, 0, len(h.Signs)),
		}
		for i, sv := range h.Signs {
			lh.Signs = append(lh.Signs, legacyValueEnv{Value: &legacyValue{
				ID:     i,
				SignID: sv.SignID,
				PPos:   legacyProb(sv.PPos()),
				PNeg:   legacyProb(sv.PNeg()),
			}})
		}
		out.Hypos = append(out.Hypos, legacyHypoEnv{Hypothesis: lh})
	}

	return json.MarshalIndent(legacyDoc{KB: &out}, "", "    ")
}
