package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const DefaultKnowledgeBaseName = "New Knowledge Base"

// KnowledgeBase is a set of signs and the hypotheses linked to them
type KnowledgeBase struct {
	ID               string        `json:"id" yaml:"-"`
	Name             string        `json:"name" yaml:"name"`
	Location         string        `json:"location,omitempty" yaml:"-"` // Opaque handle, e.g. the imported file
	Signs            []*Sign       `json:"signs" yaml:"signs"`
	Hypos            []*Hypothesis `json:"hypos" yaml:"hypos"`
	CreatedTimestamp float64       `json:"created_timestamp" yaml:"-"`
	UpdatedTimestamp *float64      `json:"updated_timestamp,omitempty" yaml:"-"`
}

// NewKnowledgeBase creates an empty knowledge base
func NewKnowledgeBase(name string) *KnowledgeBase {
	if name == "" {
		name = DefaultKnowledgeBaseName
	}
	return &KnowledgeBase{
		ID:               uuid.New().String(),
		Name:             name,
		Signs:            []*Sign{},
		Hypos:            []*Hypothesis{},
		CreatedTimestamp: float64(time.Now().UnixMilli()) / 1000.0,
	}
}

// Touch records a modification time
func (kb *KnowledgeBase) Touch() {
	now := float64(time.Now().UnixMilli()) / 1000.0
	kb.UpdatedTimestamp = &now
}

// AddSign appends a sign with id = max id + 1, or 0 when empty
func (kb *KnowledgeBase) AddSign() *Sign {
	id := 0
	for _, s := range kb.Signs {
		if s.ID >= id {
			id = s.ID + 1
		}
	}
	s := NewSign(id)
	kb.Signs = append(kb.Signs, s)
	return s
}

// AddHypos appends a hypothesis with id = max id + 1, or 0 when empty
func (kb *KnowledgeBase) AddHypos() *Hypothesis {
	id := 0
	for _, h := range kb.Hypos {
		if h.ID >= id {
			id = h.ID + 1
		}
	}
	h := NewHypothesis(id)
	kb.Hypos = append(kb.Hypos, h)
	return h
}

// GetSignByID looks up a sign
func (kb *KnowledgeBase) GetSignByID(id int) (*Sign, bool) {
	for _, s := range kb.Signs {
		if s.ID == id {
			return s, true
		}
	}
	return nil, false
}

// GetHypothesisByID looks up a hypothesis
func (kb *KnowledgeBase) GetHypothesisByID(id int) (*Hypothesis, bool) {
	for _, h := range kb.Hypos {
		if h.ID == id {
			return h, true
		}
	}
	return nil, false
}

// UpdateSign changes the texts of a sign. Empty values are left untouched.
func (kb *KnowledgeBase) UpdateSign(id int, name, question string) (*Sign, error) {
	s, ok := kb.GetSignByID(id)
	if !ok {
		return nil, fmt.Errorf("sign %d: %w", id, ErrSignNotFound)
	}
	if name != "" {
		s.Name = name
	}
	if question != "" {
		s.Question = question
	}
	return s, nil
}

// UpdateHypothesis changes a hypothesis. Nil arguments are left untouched.
func (kb *KnowledgeBase) UpdateHypothesis(id int, name, desc *string, initP *float64) (*Hypothesis, error) {
	h, ok := kb.GetHypothesisByID(id)
	if !ok {
		return nil, fmt.Errorf("hypothesis %d: %w", id, ErrHypothesisNotFound)
	}
	if initP != nil {
		if err := h.SetInitP(*initP); err != nil {
			return nil, err
		}
		h.Reset()
	}
	if name != nil {
		h.Name = *name
	}
	if desc != nil {
		h.Desc = *desc
	}
	return h, nil
}

// DeleteSign removes a sign and every link that references it
func (kb *KnowledgeBase) DeleteSign(id int) error {
	idx := -1
	for i, s := range kb.Signs {
		if s.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("sign %d: %w", id, ErrSignNotFound)
	}
	kb.Signs = append(kb.Signs[:idx], kb.Signs[idx+1:]...)
	for _, h := range kb.Hypos {
		h.RemoveSign(id)
	}
	return nil
}

// DeleteHypo removes a hypothesis together with its links
func (kb *KnowledgeBase) DeleteHypo(id int) error {
	for i, h := range kb.Hypos {
		if h.ID == id {
			kb.Hypos = append(kb.Hypos[:i], kb.Hypos[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("hypothesis %d: %w", id, ErrHypothesisNotFound)
}

// Link binds a sign to a hypothesis with the given probabilities, replacing
// the values of an existing link.
func (kb *KnowledgeBase) Link(hypoID, signID int, pPos, pNeg float64) (*SignValue, error) {
	h, ok := kb.GetHypothesisByID(hypoID)
	if !ok {
		return nil, fmt.Errorf("hypothesis %d: %w", hypoID, ErrHypothesisNotFound)
	}
	if _, ok := kb.GetSignByID(signID); !ok {
		return nil, fmt.Errorf("sign %d: %w", signID, ErrSignNotFound)
	}
	// validate both before touching an existing link
	if _, err := NewSignValueWith(signID, pPos, pNeg); err != nil {
		return nil, err
	}
	sv := h.AddSign(signID)
	_ = sv.SetPPos(pPos)
	_ = sv.SetPNeg(pNeg)
	return sv, nil
}

// DeleteLink unbinds a sign from a hypothesis
func (kb *KnowledgeBase) DeleteLink(hypoID, signID int) error {
	h, ok := kb.GetHypothesisByID(hypoID)
	if !ok {
		return fmt.Errorf("hypothesis %d: %w", hypoID, ErrHypothesisNotFound)
	}
	if !h.RemoveSign(signID) {
		return fmt.Errorf("hypothesis %d sign %d: %w", hypoID, signID, ErrLinkNotFound)
	}
	return nil
}

// HypoSigns returns the signs linked to h, in knowledge base order
func (kb *KnowledgeBase) HypoSigns(h *Hypothesis) []*Sign {
	var out []*Sign
	for _, s := range kb.Signs {
		if _, ok := h.GetLinkBySignID(s.ID); ok {
			out = append(out, s)
		}
	}
	return out
}

// HypoUnsigns returns the signs not yet linked to h
func (kb *KnowledgeBase) HypoUnsigns(h *Hypothesis) []*Sign {
	var out []*Sign
	for _, s := range kb.Signs {
		if _, ok := h.GetLinkBySignID(s.ID); !ok {
			out = append(out, s)
		}
	}
	return out
}

// ValidationIssue describes one problem found by Validate
type ValidationIssue struct {
	Severity     string `json:"severity"` // error, warning
	HypothesisID *int   `json:"hypothesis_id,omitempty"`
	SignID       *int   `json:"sign_id,omitempty"`
	Message      string `json:"message"`
}

// Validate checks referential integrity and flags links that make the
// Bayes update degenerate. Only issues with severity "error" make the
// knowledge base unusable for a consultation.
func (kb *KnowledgeBase) Validate() []ValidationIssue {
	var issues []ValidationIssue

	signIDs := make(map[int]bool, len(kb.Signs))
	for _, s := range kb.Signs {
		sid := s.ID
		if signIDs[s.ID] {
			issues = append(issues, ValidationIssue{Severity: "error", SignID: &sid, Message: "duplicate sign id"})
		}
		signIDs[s.ID] = true
	}

	hypoIDs := make(map[int]bool, len(kb.Hypos))
	for _, h := range kb.Hypos {
		hid := h.ID
		if hypoIDs[h.ID] {
			issues = append(issues, ValidationIssue{Severity: "error", HypothesisID: &hid, Message: "duplicate hypothesis id"})
		}
		hypoIDs[h.ID] = true

		if !validProbability(h.InitP) {
			issues = append(issues, ValidationIssue{Severity: "error", HypothesisID: &hid, Message: "prior outside [0, 1]"})
		}
		if len(h.Signs) == 0 {
			issues = append(issues, ValidationIssue{Severity: "warning", HypothesisID: &hid, Message: "hypothesis has no signs"})
		}

		seen := make(map[int]bool, len(h.Signs))
		for _, sv := range h.Signs {
			sid := sv.SignID
			if !signIDs[sv.SignID] {
				issues = append(issues, ValidationIssue{Severity: "error", HypothesisID: &hid, SignID: &sid, Message: "link references unknown sign"})
			}
			if seen[sv.SignID] {
				issues = append(issues, ValidationIssue{Severity: "error", HypothesisID: &hid, SignID: &sid, Message: "duplicate link"})
			}
			seen[sv.SignID] = true
			if sv.IsDegenerate() {
				issues = append(issues, ValidationIssue{Severity: "warning", HypothesisID: &hid, SignID: &sid, Message: "degenerate link, answers to this sign leave the posterior unchanged"})
			}
		}
	}

	return issues
}

// HasErrors reports whether any issue is an error
func HasErrors(issues []ValidationIssue) bool {
	for _, i := range issues {
		if i.Severity == "error" {
			return true
		}
	}
	return false
}

// Reset restores the run state of every hypothesis to its prior
func (kb *KnowledgeBase) Reset() {
	for _, h := range kb.Hypos {
		h.Reset()
	}
}

// Snapshot returns a deep copy whose hypotheses are reset. Edits to the
// original do not reach the copy.
func (kb *KnowledgeBase) Snapshot() *KnowledgeBase {
	c := *kb
	c.Signs = make([]*Sign, len(kb.Signs))
	for i, s := range kb.Signs {
		sc := *s
		c.Signs[i] = &sc
	}
	c.Hypos = make([]*Hypothesis, len(kb.Hypos))
	for i, h := range kb.Hypos {
		hc := h.Clone()
		hc.Reset()
		c.Hypos[i] = hc
	}
	if kb.UpdatedTimestamp != nil {
		ts := *kb.UpdatedTimestamp
		c.UpdatedTimestamp = &ts
	}
	return &c
}
