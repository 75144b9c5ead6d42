package engine

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/AbdouB/kbexpert/internal/models"
)

// Answer codes on the five-point scale
const (
	AnswerNo = iota
	AnswerProbablyNo
	AnswerDontKnow
	AnswerProbablyYes
	AnswerYes
)

// AnswerLabels maps answer codes to their prompt labels
var AnswerLabels = map[int]string{
	AnswerNo:          "No",
	AnswerProbablyNo:  "Probably no",
	AnswerDontKnow:    "Don't know",
	AnswerProbablyYes: "Probably yes",
	AnswerYes:         "Yes",
}

// DecodeAnswer maps an answer code to the observed branch and its
// confidence multiplier. Unknown codes are treated as AnswerDontKnow.
func DecodeAnswer(code int) (answer bool, r float64) {
	switch code {
	case AnswerNo:
		return false, 1.0
	case AnswerProbablyNo:
		return false, 0.75
	case AnswerProbablyYes:
		return true, 0.75
	case AnswerYes:
		return true, 1.0
	default:
		return true, 0.5
	}
}

// NormalizeAnswer coerces out-of-range codes to AnswerDontKnow
func NormalizeAnswer(code int) int {
	if code < AnswerNo || code > AnswerYes {
		return AnswerDontKnow
	}
	return code
}

// AnswerSource supplies the answer code for a question. Implementations may
// block; they should return ctx.Err() once ctx is done.
type AnswerSource interface {
	Answer(ctx context.Context, sign models.Sign) (int, error)
}

// PromptSource asks each question on a line-oriented terminal
type PromptSource struct {
	in  *bufio.Reader
	out io.Writer
}

// NewPromptSource reads answers from r and writes prompts to w
func NewPromptSource(r io.Reader, w io.Writer) *PromptSource {
	return &PromptSource{in: bufio.NewReader(r), out: w}
}

// Answer prints the question with the answer scale and reads one line of
// any length. Lines that are not an integer count as AnswerDontKnow. Only
// end of input with nothing read, or a read failure, is an error.
func (s *PromptSource) Answer(ctx context.Context, sign models.Sign) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	fmt.Fprintf(s.out, "\n%s\n", sign.Question)
	for code := AnswerNo; code <= AnswerYes; code++ {
		fmt.Fprintf(s.out, "  %d - %s\n", code, AnswerLabels[code])
	}
	fmt.Fprint(s.out, "> ")

	line, err := s.in.ReadString('\n')
	if err != nil {
		if err != io.EOF {
			return 0, fmt.Errorf("failed to read answer: %w", err)
		}
		if line == "" {
			return 0, io.EOF
		}
	}

	code, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil {
		return AnswerDontKnow, nil
	}
	return code, nil
}

// ScriptedSource replays a fixed sequence of codes, then answers
// AnswerDontKnow for every further question.
type ScriptedSource struct {
	codes []int
	next  int
}

// NewScriptedSource creates a source that replays codes in order
func NewScriptedSource(codes ...int) *ScriptedSource {
	return &ScriptedSource{codes: codes}
}

// NeutralSource answers AnswerDontKnow to everything. It is used for
// headless runs.
func NeutralSource() *ScriptedSource {
	return &ScriptedSource{}
}

// Answer returns the next scripted code
func (s *ScriptedSource) Answer(ctx context.Context, _ models.Sign) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s.next >= len(s.codes) {
		return AnswerDontKnow, nil
	}
	code := s.codes[s.next]
	s.next++
	return code, nil
}

// ParseAnswers parses a comma separated list of answer codes such as "4,2,0"
func ParseAnswers(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	codes := make([]int, 0, len(parts))
	for _, p := range parts {
		code, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid answer %q: %w", p, err)
		}
		codes = append(codes, code)
	}
	return codes, nil
}
