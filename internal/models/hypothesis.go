package models

import (
	"fmt"
)

const (
	DefaultHypothesisName = "New Hypothesis"
	DefaultHypothesisDesc = "Empty description"
	DefaultPrior          = 1.0
)

// Hypothesis is a candidate diagnosis.
//
// InitP is the prior. P, PMax and PMin are run state: the current posterior
// and the projected best and worst final probability. They are not persisted
// and Reset must be called before every inference run.
type Hypothesis struct {
	ID    int          `json:"id" yaml:"id"`
	Name  string       `json:"name" yaml:"name"`
	Desc  string       `json:"desc" yaml:"desc"`
	InitP float64      `json:"init_p" yaml:"init_p"`
	Signs []*SignValue `json:"signs" yaml:"signs"`

	P    float64 `json:"-" yaml:"-"`
	PMax float64 `json:"-" yaml:"-"`
	PMin float64 `json:"-" yaml:"-"`
}

// NewHypothesis creates a hypothesis with default texts and prior
func NewHypothesis(id int) *Hypothesis {
	h := &Hypothesis{
		ID:    id,
		Name:  DefaultHypothesisName,
		Desc:  DefaultHypothesisDesc,
		InitP: DefaultPrior,
		Signs: []*SignValue{},
	}
	h.Reset()
	return h
}

// SetInitP sets the prior, rejecting values outside [0, 1]
func (h *Hypothesis) SetInitP(p float64) error {
	if !validProbability(p) {
		return fmt.Errorf("init_p %v: %w", p, ErrProbabilityOutOfRange)
	}
	h.InitP = p
	return nil
}

// Reset restores the run state to the prior
func (h *Hypothesis) Reset() {
	h.P = h.InitP
	h.PMax = h.InitP
	h.PMin = h.InitP
}

// AddSign links a sign with zero-information probabilities. If the sign is
// already linked the existing link is returned.
func (h *Hypothesis) AddSign(signID int) *SignValue {
	if sv, ok := h.GetLinkBySignID(signID); ok {
		return sv
	}
	sv := NewSignValue(signID)
	h.Signs = append(h.Signs, sv)
	return sv
}

// RemoveSign drops the link to signID and reports whether one existed
func (h *Hypothesis) RemoveSign(signID int) bool {
	for i, sv := range h.Signs {
		if sv.SignID == signID {
			h.Signs = append(h.Signs[:i], h.Signs[i+1:]...)
			return true
		}
	}
	return false
}

// GetLinkBySignID finds the link to signID
func (h *Hypothesis) GetLinkBySignID(signID int) (*SignValue, bool) {
	for _, sv := range h.Signs {
		if sv.SignID == signID {
			return sv, true
		}
	}
	return nil, false
}

// GetSignIDs returns the ids of linked signs in link order
func (h *Hypothesis) GetSignIDs() []int {
	ids := make([]int, 0, len(h.Signs))
	for _, sv := range h.Signs {
		ids = append(ids, sv.SignID)
	}
	return ids
}

// CountP applies one Bayesian update for an answered sign, scaled by the
// answer confidence r.
func (h *Hypothesis) CountP(answer bool, link *SignValue, r float64) {
	if answer {
		h.P = link.CountPByPos(h.P) * r
	} else {
		h.P = link.CountPByNeg(h.P) * r
	}
}

// CountPMax folds the positive update over every link, starting from the
// previous PMax. Repeated calls keep accumulating.
func (h *Hypothesis) CountPMax() float64 {
	for _, sv := range h.Signs {
		h.PMax = sv.CountPByPos(h.PMax)
	}
	return h.PMax
}

// CountPMin folds the negative update over every link, starting from the
// previous PMin. Repeated calls keep accumulating.
func (h *Hypothesis) CountPMin() float64 {
	for _, sv := range h.Signs {
		h.PMin = sv.CountPByNeg(h.PMin)
	}
	return h.PMin
}

// MaxAttestValueID returns the sign whose answer would move P the most.
// The first link wins ties.
func (h *Hypothesis) MaxAttestValueID() (int, bool) {
	best := -1.0
	bestID := 0
	found := false
	for _, sv := range h.Signs {
		v := sv.CountAttestValue(h.P)
		if v > best {
			best = v
			bestID = sv.SignID
			found = true
		}
	}
	return bestID, found
}

// Clone returns a deep copy, run state included
func (h *Hypothesis) Clone() *Hypothesis {
	c := *h
	c.Signs = make([]*SignValue, len(h.Signs))
	for i, sv := range h.Signs {
		c.Signs[i] = sv.Clone()
	}
	return &c
}
