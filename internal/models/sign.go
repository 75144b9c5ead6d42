package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrProbabilityOutOfRange is returned when a probability falls outside [0, 1]
	ErrProbabilityOutOfRange = errors.New("probability must be within [0, 1]")
	// ErrSignNotFound is returned when a sign id is not part of a knowledge base
	ErrSignNotFound = errors.New("sign not found")
	// ErrHypothesisNotFound is returned when a hypothesis id is not part of a knowledge base
	ErrHypothesisNotFound = errors.New("hypothesis not found")
	// ErrLinkNotFound is returned when a hypothesis has no link to a sign
	ErrLinkNotFound = errors.New("link not found")
)

const (
	DefaultSignName     = "New Sign"
	DefaultSignQuestion = "How? What?"
	// NeutralProbability is the zero-information value given to new links
	NeutralProbability = 0.5
)

// Sign is a yes/no question or observable trait
type Sign struct {
	ID       int    `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	Question string `json:"question" yaml:"question"`
}

// NewSign creates a sign with default texts
func NewSign(id int) *Sign {
	return &Sign{
		ID:       id,
		Name:     DefaultSignName,
		Question: DefaultSignQuestion,
	}
}

// SignValue binds one sign to one hypothesis with the pair
// P(sign | H) and P(sign | not H).
type SignValue struct {
	SignID int
	pPos   float64
	pNeg   float64
}

// NewSignValue creates a zero-information link to a sign
func NewSignValue(signID int) *SignValue {
	return &SignValue{
		SignID: signID,
		pPos:   NeutralProbability,
		pNeg:   NeutralProbability,
	}
}

// NewSignValueWith creates a link with explicit probabilities
func NewSignValueWith(signID int, pPos, pNeg float64) (*SignValue, error) {
	sv := NewSignValue(signID)
	if err := sv.SetPPos(pPos); err != nil {
		return nil, err
	}
	if err := sv.SetPNeg(pNeg); err != nil {
		return nil, err
	}
	return sv, nil
}

// PPos returns P(sign observed | hypothesis true)
func (sv *SignValue) PPos() float64 { return sv.pPos }

// PNeg returns P(sign observed | hypothesis false)
func (sv *SignValue) PNeg() float64 { return sv.pNeg }

// SetPPos sets P(sign | H). Out-of-range values are rejected and the
// previous value is kept.
func (sv *SignValue) SetPPos(v float64) error {
	if !validProbability(v) {
		return fmt.Errorf("p_pos %v: %w", v, ErrProbabilityOutOfRange)
	}
	sv.pPos = v
	return nil
}

// SetPNeg sets P(sign | not H). Out-of-range values are rejected and the
// previous value is kept.
func (sv *SignValue) SetPNeg(v float64) error {
	if !validProbability(v) {
		return fmt.Errorf("p_neg %v: %w", v, ErrProbabilityOutOfRange)
	}
	sv.pNeg = v
	return nil
}

// CountPByPos returns the posterior of the hypothesis given the sign was
// observed. A zero denominator leaves p unchanged.
func (sv *SignValue) CountPByPos(p float64) float64 {
	num := sv.pPos * p
	den := num + sv.pNeg*(1-p)
	if den == 0 {
		return p
	}
	return num / den
}

// CountPByNeg returns the posterior of the hypothesis given the sign was
// not observed. A zero denominator leaves p unchanged.
func (sv *SignValue) CountPByNeg(p float64) float64 {
	num := (1 - sv.pPos) * p
	den := num + (1-sv.pNeg)*(1-p)
	if den == 0 {
		return p
	}
	return num / den
}

// CountAttestValue is the spread between the two possible posteriors, i.e.
// how strongly asking this sign can move belief from p.
func (sv *SignValue) CountAttestValue(p float64) float64 {
	return math.Abs(sv.CountPByPos(p) - sv.CountPByNeg(p))
}

// IsDegenerate reports whether one of the Bayes denominators can vanish
// for every prior (both probabilities 0, or both 1).
func (sv *SignValue) IsDegenerate() bool {
	return (sv.pPos == 0 && sv.pNeg == 0) || (sv.pPos == 1 && sv.pNeg == 1)
}

// Clone returns an independent copy
func (sv *SignValue) Clone() *SignValue {
	c := *sv
	return &c
}

type signValueJSON struct {
	SignID int     `json:"sign_id" yaml:"sign_id"`
	PPos   float64 `json:"p_pos" yaml:"p_pos"`
	PNeg   float64 `json:"p_neg" yaml:"p_neg"`
}

// MarshalJSON implements json.Marshaler
func (sv SignValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(signValueJSON{SignID: sv.SignID, PPos: sv.pPos, PNeg: sv.pNeg})
}

// UnmarshalJSON implements json.Unmarshaler and validates both probabilities
func (sv *SignValue) UnmarshalJSON(data []byte) error {
	var raw signValueJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	return sv.fromRaw(raw)
}

// MarshalYAML implements yaml.Marshaler
func (sv SignValue) MarshalYAML() (interface{}, error) {
	return signValueJSON{SignID: sv.SignID, PPos: sv.pPos, PNeg: sv.pNeg}, nil
}

// UnmarshalYAML implements the yaml.v3 obsolete-style unmarshaler so the
// models package does not import yaml directly.
func (sv *SignValue) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw signValueJSON
	if err := unmarshal(&raw); err != nil {
		return err
	}
	return sv.fromRaw(raw)
}

func (sv *SignValue) fromRaw(raw signValueJSON) error {
	parsed, err := NewSignValueWith(raw.SignID, raw.PPos, raw.PNeg)
	if err != nil {
		return fmt.Errorf("sign %d: %w", raw.SignID, err)
	}
	*sv = *parsed
	return nil
}

// ParseProbability parses user-entered probability text. Both "0.75" and
// "0,75" are accepted.
func ParseProbability(s string) (float64, error) {
	s = strings.TrimSpace(strings.Replace(s, ",", ".", 1))
	if s == "" {
		return 0, fmt.Errorf("empty probability")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid probability %q: %w", s, err)
	}
	if !validProbability(v) {
		return 0, fmt.Errorf("probability %v: %w", v, ErrProbabilityOutOfRange)
	}
	return v, nil
}

func validProbability(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}
