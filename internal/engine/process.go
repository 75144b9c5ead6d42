// Package engine runs sequential diagnosis over a knowledge base: it picks
// the most informative open question, applies Bayesian updates for each
// answer and stops once one hypothesis dominates or no question is left.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/AbdouB/kbexpert/internal/models"
	"go.uber.org/zap"
)

var (
	// ErrNoHypotheses is returned when a process is built without hypotheses
	ErrNoHypotheses = errors.New("no hypotheses to consider")
	// ErrNoSigns is returned when a process is built without signs
	ErrNoSigns = errors.New("no signs to ask")
	// ErrUnknownQuestion is returned when a step answers a sign that is not pending
	ErrUnknownQuestion = errors.New("question is not pending")
)

// Option configures a Process
type Option func(*Process)

// WithLogger sets the logger used for step tracing
func WithLogger(logger *zap.Logger) Option {
	return func(p *Process) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// Process is one inference run. It owns copies of the hypotheses and signs
// it was built from, so the knowledge base can be edited while it runs.
// A Process must not be used from more than one goroutine.
type Process struct {
	hypos        []*models.Hypothesis
	signs        map[int]models.Sign
	signsToCheck []int
	eliminated   map[int]bool
	source       AnswerSource
	logger       *zap.Logger

	currentQuestion int
	stop            bool
	steps           []models.StepRecord
}

// Result is the outcome of Calculate
type Result struct {
	WinnerID int                      `json:"winner_id"`
	Winner   *models.Hypothesis       `json:"winner"`
	Steps    []models.StepRecord      `json:"steps"`
	Final    []models.HypothesisState `json:"final"`
}

// New builds a process over the given hypotheses and eligible signs. Both
// are copied; the copies are reset and links to signs outside the eligible
// set are dropped. A nil source answers AnswerDontKnow to everything.
func New(hypos []*models.Hypothesis, signs []*models.Sign, source AnswerSource, opts ...Option) (*Process, error) {
	if len(hypos) == 0 {
		return nil, ErrNoHypotheses
	}
	if len(signs) == 0 {
		return nil, ErrNoSigns
	}
	if source == nil {
		source = NeutralSource()
	}

	p := &Process{
		signs:      make(map[int]models.Sign, len(signs)),
		eliminated: make(map[int]bool),
		source:     source,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}

	for _, s := range signs {
		if _, dup := p.signs[s.ID]; dup {
			continue
		}
		p.signs[s.ID] = *s
		p.signsToCheck = append(p.signsToCheck, s.ID)
	}

	for _, h := range hypos {
		c := h.Clone()
		c.Reset()
		kept := c.Signs[:0]
		seen := make(map[int]bool, len(c.Signs))
		for _, sv := range c.Signs {
			if _, ok := p.signs[sv.SignID]; !ok || seen[sv.SignID] {
				continue
			}
			seen[sv.SignID] = true
			kept = append(kept, sv)
		}
		c.Signs = kept
		p.hypos = append(p.hypos, c)
	}

	return p, nil
}

// FromKnowledgeBase builds a process over every hypothesis and sign of kb
func FromKnowledgeBase(kb *models.KnowledgeBase, source AnswerSource, opts ...Option) (*Process, error) {
	snap := kb.Snapshot()
	return New(snap.Hypos, snap.Signs, source, opts...)
}

// Stopped reports whether the run has reached its terminal state
func (p *Process) Stopped() bool { return p.stop }

// CurrentQuestion returns the sign asked last, or about to be asked
func (p *Process) CurrentQuestion() int { return p.currentQuestion }

// SignsToCheck returns the ids of signs not asked yet
func (p *Process) SignsToCheck() []int {
	out := make([]int, len(p.signsToCheck))
	copy(out, p.signsToCheck)
	return out
}

// Sign returns a pending or answered sign by id
func (p *Process) Sign(id int) (models.Sign, bool) {
	s, ok := p.signs[id]
	return s, ok
}

// IsEliminated reports whether a hypothesis can no longer win
func (p *Process) IsEliminated(id int) bool { return p.eliminated[id] }

// States returns the run state of every hypothesis
func (p *Process) States() []models.HypothesisState {
	out := make([]models.HypothesisState, 0, len(p.hypos))
	for _, h := range p.hypos {
		out = append(out, models.StateOf(h, p.eliminated[h.ID]))
	}
	return out
}

// Steps returns the answered steps so far
func (p *Process) Steps() []models.StepRecord {
	out := make([]models.StepRecord, len(p.steps))
	copy(out, p.steps)
	return out
}

// MaxHypothesis returns a copy of the active hypothesis with the highest
// posterior. The first one wins ties.
func (p *Process) MaxHypothesis() (*models.Hypothesis, bool) {
	h := p.leader()
	if h == nil {
		return nil, false
	}
	return h.Clone(), true
}

func (p *Process) leader() *models.Hypothesis {
	var best *models.Hypothesis
	for _, h := range p.active() {
		if best == nil || h.P > best.P {
			best = h
		}
	}
	return best
}

func (p *Process) active() []*models.Hypothesis {
	out := make([]*models.Hypothesis, 0, len(p.hypos))
	for _, h := range p.hypos {
		if !p.eliminated[h.ID] {
			out = append(out, h)
		}
	}
	return out
}

// NextQuestion picks the pending sign with the highest attestation value
// for the current leader. When the leader has no open links the best link
// of any active hypothesis is used, then the first pending sign.
func (p *Process) NextQuestion() (int, bool) {
	if len(p.signsToCheck) == 0 {
		return 0, false
	}

	if h := p.leader(); h != nil {
		if id, ok := h.MaxAttestValueID(); ok {
			return id, true
		}
	}

	best := -1.0
	bestID := 0
	found := false
	for _, h := range p.active() {
		for _, sv := range h.Signs {
			if v := sv.CountAttestValue(h.P); v > best {
				best = v
				bestID = sv.SignID
				found = true
			}
		}
	}
	if found {
		return bestID, true
	}

	return p.signsToCheck[0], true
}

// Step applies the answer code for questionID to every hypothesis, retires
// the sign and re-evaluates the stop condition.
func (p *Process) Step(code, questionID int) (bool, error) {
	if len(p.signsToCheck) == 0 {
		p.stop = true
		return p.stop, nil
	}

	idx := -1
	for i, id := range p.signsToCheck {
		if id == questionID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return p.stop, fmt.Errorf("sign %d: %w", questionID, ErrUnknownQuestion)
	}

	p.currentQuestion = questionID
	answer, r := DecodeAnswer(code)

	for _, h := range p.hypos {
		if link, ok := h.GetLinkBySignID(questionID); ok {
			h.CountP(answer, link, r)
		}
	}

	p.signsToCheck = append(p.signsToCheck[:idx], p.signsToCheck[idx+1:]...)
	for _, h := range p.hypos {
		h.RemoveSign(questionID)
	}

	globalMin, globalMax := p.updateBounds()
	p.stop = p.evaluateStop(globalMin, globalMax) || len(p.signsToCheck) == 0

	p.steps = append(p.steps, models.StepRecord{
		Index:      len(p.steps),
		SignID:     questionID,
		Question:   p.signs[questionID].Question,
		AnswerCode: NormalizeAnswer(code),
		Answer:     answer,
		R:          r,
		Stop:       p.stop,
		States:     p.States(),
	})

	p.logger.Debug("step applied",
		zap.Int("sign_id", questionID),
		zap.Int("answer_code", code),
		zap.Bool("answer", answer),
		zap.Float64("r", r),
		zap.Float64("global_min_bound", globalMin),
		zap.Float64("global_max_bound", globalMax),
		zap.Int("remaining", len(p.signsToCheck)),
		zap.Bool("stop", p.stop))

	return p.stop, nil
}

// updateBounds folds the remaining links into PMax/PMin of every active
// hypothesis. It returns the strongest secured worst case (max PMin) and the
// weakest reachable best case (min PMax). Eliminated hypotheses take no part.
func (p *Process) updateBounds() (globalMin, globalMax float64) {
	globalMin = math.Inf(-1)
	globalMax = math.Inf(1)
	for _, h := range p.active() {
		pMax := h.CountPMax()
		pMin := h.CountPMin()
		if pMin > globalMin {
			globalMin = pMin
		}
		if pMax < globalMax {
			globalMax = pMax
		}
	}
	return globalMin, globalMax
}

// evaluateStop eliminates hypotheses whose best case is below globalMin and
// reports whether fewer than two candidates remain. Only active hypotheses
// are considered, and the last one is never eliminated.
func (p *Process) evaluateStop(globalMin, globalMax float64) bool {
	active := p.active()

	var doomed []*models.Hypothesis
	for _, h := range active {
		if h.PMax < globalMin {
			doomed = append(doomed, h)
		}
	}
	if len(doomed) < len(active) {
		for _, h := range doomed {
			p.eliminated[h.ID] = true
			p.logger.Debug("hypothesis eliminated",
				zap.Int("hypothesis_id", h.ID),
				zap.Float64("p_max", h.PMax),
				zap.Float64("global_min_bound", globalMin))
		}
	} else if len(doomed) > 0 {
		p.logger.Debug("elimination skipped, it would leave no hypothesis",
			zap.Int("doomed", len(doomed)))
	}

	candidates := 0
	for _, h := range p.active() {
		if h.PMin < globalMax {
			candidates++
		}
	}
	return candidates < 2
}

// Calculate asks questions until the process stops and reports the
// active hypothesis with the highest posterior.
func (p *Process) Calculate(ctx context.Context) (*Result, error) {
	for !p.stop {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		q, ok := p.NextQuestion()
		if !ok {
			p.stop = true
			break
		}
		p.currentQuestion = q

		code, err := p.source.Answer(ctx, p.signs[q])
		if err != nil {
			return nil, fmt.Errorf("failed to get answer for sign %d: %w", q, err)
		}
		if _, err := p.Step(code, q); err != nil {
			return nil, err
		}
	}

	return p.Result(), nil
}

// Result reports the current leader together with the run history
func (p *Process) Result() *Result {
	res := &Result{
		Steps: p.Steps(),
		Final: p.States(),
	}
	if h, ok := p.MaxHypothesis(); ok {
		res.WinnerID = h.ID
		res.Winner = h
	}
	return res
}
