package models

import (
	"time"

	"github.com/google/uuid"
)

// ConsultationMode records where the answers of a run came from
type ConsultationMode string

const (
	ModeInteractive ConsultationMode = "interactive"
	ModeScripted    ConsultationMode = "scripted"
)

// HypothesisState is the run state of one hypothesis at a point in time
type HypothesisState struct {
	ID         int     `json:"id"`
	Name       string  `json:"name"`
	P          float64 `json:"p"`
	PMax       float64 `json:"p_max"`
	PMin       float64 `json:"p_min"`
	Eliminated bool    `json:"eliminated,omitempty"`
}

// StateOf captures the run state of h
func StateOf(h *Hypothesis, eliminated bool) HypothesisState {
	return HypothesisState{
		ID:         h.ID,
		Name:       h.Name,
		P:          h.P,
		PMax:       h.PMax,
		PMin:       h.PMin,
		Eliminated: eliminated,
	}
}

// StepRecord is one answered question of a consultation
type StepRecord struct {
	Index      int               `json:"index"`
	SignID     int               `json:"sign_id"`
	Question   string            `json:"question"`
	AnswerCode int               `json:"answer_code"`
	Answer     bool              `json:"answer"`
	R          float64           `json:"r"`
	Stop       bool              `json:"stop"`
	States     []HypothesisState `json:"states"`
}

// Consultation is a finished inference run over a knowledge base
type Consultation struct {
	ID                string            `json:"id" db:"id"`
	KnowledgeBaseID   string            `json:"knowledge_base_id" db:"knowledge_base_id"`
	KnowledgeBaseName string            `json:"knowledge_base_name" db:"knowledge_base_name"`
	Mode              ConsultationMode  `json:"mode" db:"mode"`
	StartedTimestamp  float64           `json:"started_timestamp" db:"started_timestamp"`
	FinishedTimestamp *float64          `json:"finished_timestamp,omitempty" db:"finished_timestamp"`
	WinnerID          *int              `json:"winner_id,omitempty" db:"winner_id"`
	WinnerName        *string           `json:"winner_name,omitempty" db:"winner_name"`
	WinnerDesc        *string           `json:"winner_desc,omitempty" db:"-"`
	WinnerP           *float64          `json:"winner_p,omitempty" db:"winner_p"`
	StepCount         int               `json:"step_count" db:"step_count"`
	Steps             []StepRecord      `json:"steps"`
	Final             []HypothesisState `json:"final"`
	ConsultationData  string            `json:"-" db:"consultation_data"` // Full JSON
}

// NewConsultation starts a consultation record
func NewConsultation(kb *KnowledgeBase, mode ConsultationMode) *Consultation {
	return &Consultation{
		ID:                uuid.New().String(),
		KnowledgeBaseID:   kb.ID,
		KnowledgeBaseName: kb.Name,
		Mode:              mode,
		StartedTimestamp:  float64(time.Now().UnixMilli()) / 1000.0,
		Steps:             []StepRecord{},
		Final:             []HypothesisState{},
	}
}

// Finish stamps the end time and the reported winner
func (c *Consultation) Finish(winner *Hypothesis, steps []StepRecord, final []HypothesisState) {
	now := float64(time.Now().UnixMilli()) / 1000.0
	c.FinishedTimestamp = &now
	c.Steps = steps
	c.StepCount = len(steps)
	c.Final = final
	if winner != nil {
		id, name, desc, p := winner.ID, winner.Name, winner.Desc, winner.P
		c.WinnerID = &id
		c.WinnerName = &name
		c.WinnerDesc = &desc
		c.WinnerP = &p
	}
}
