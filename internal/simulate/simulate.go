// Package simulate runs a trial fill of a form: questions are visited once,
// in order, and each relevant expression sees only the answers recorded for
// earlier questions.
package simulate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/adiatmad/xlsformbuilderku/internal/model"
	"github.com/adiatmad/xlsformbuilderku/internal/skiplogic"
)

// ChoiceLookup reports whether code is a valid option of the named list.
type ChoiceLookup func(list, code string) bool

// Step is the outcome of visiting one question.
type Step struct {
	Index    int    `json:"index"`
	Name     string `json:"name"`
	Visible  bool   `json:"visible"`
	Answered bool   `json:"answered"`
}

// Result summarizes a completed pass.
type Result struct {
	InstanceID string                              `json:"instance_id"`
	Answers    map[string]string                   `json:"answers"`
	Steps      []Step                              `json:"steps"`
	Warnings   []*model.MalformedExpressionWarning `json:"warnings,omitempty"`
}

// Simulation is the state of one pass. It is not safe for concurrent use.
type Simulation struct {
	questions []model.Question
	eval      *skiplogic.Evaluator
	lookup    ChoiceLookup

	instanceID string
	answers    map[string]string
	steps      []Step
	warnings   []*model.MalformedExpressionWarning
	next       int // index of the next question to present
	pending    int // index presented visible and awaiting Record, or -1
}

// New starts a pass over a snapshot of questions. lookup may be nil, in which
// case select answers are not checked against their choice lists.
func New(questions []model.Question, eval *skiplogic.Evaluator, lookup ChoiceLookup) *Simulation {
	if eval == nil {
		eval = skiplogic.NewEvaluator(nil, nil)
	}
	s := &Simulation{
		questions: append([]model.Question(nil), questions...),
		eval:      eval,
		lookup:    lookup,
	}
	s.Reset()
	return s
}

// Reset discards all collected answers and rewinds to the first question.
func (s *Simulation) Reset() {
	s.instanceID = "uuid:" + uuid.NewString()
	s.answers = make(map[string]string)
	s.steps = nil
	s.warnings = nil
	s.next = 0
	s.pending = -1
}

// Len returns the number of questions in the pass.
func (s *Simulation) Len() int {
	return len(s.questions)
}

// Question returns the question at index i.
func (s *Simulation) Question(i int) (model.Question, error) {
	if i < 0 || i >= len(s.questions) {
		return model.Question{}, &model.IndexError{Index: i, Len: len(s.questions)}
	}
	return s.questions[i], nil
}

// Done reports whether every question has been presented.
func (s *Simulation) Done() bool {
	return s.next >= len(s.questions)
}

// Present evaluates the visibility of the question at index i, which must be
// the next unvisited question. When it returns true the caller may Record an
// answer for it.
func (s *Simulation) Present(i int) (bool, error) {
	if i < 0 || i >= len(s.questions) {
		return false, &model.IndexError{Index: i, Len: len(s.questions)}
	}
	if i != s.next {
		return false, &model.ValidationError{
			Field:  "index",
			Value:  strconv.Itoa(i),
			Reason: fmt.Sprintf("is out of order, next question is %d", s.next),
		}
	}
	q := s.questions[i]
	visible, warn := s.eval.IsVisible(q.Name, q.Relevant, s.answers)
	if warn != nil {
		s.warnings = append(s.warnings, warn)
	}
	s.steps = append(s.steps, Step{Index: i, Name: q.Name, Visible: visible})
	s.next++
	s.pending = -1
	if visible {
		s.pending = i
	}
	return visible, nil
}

// Record stores the answer for the question most recently presented as
// visible. Each question is answered at most once per pass.
func (s *Simulation) Record(name, value string) error {
	if s.pending < 0 || s.questions[s.pending].Name != name {
		return &model.ValidationError{Field: "answer", Value: name, Reason: "is not for the question currently presented"}
	}
	q := s.questions[s.pending]
	value, err := s.check(q, value)
	if err != nil {
		return err
	}
	s.answers[name] = value
	s.steps[len(s.steps)-1].Answered = true
	s.pending = -1
	return nil
}

// check validates value against q and returns it in the form it is stored:
// trimmed, with select_multiple codes joined by single spaces.
func (s *Simulation) check(q model.Question, value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		if q.Required {
			return "", &model.ValidationError{Record: q.Name, Field: "answer", Reason: "is required"}
		}
		return "", nil
	}
	switch q.Type {
	case model.TypeNote:
		return "", &model.ValidationError{Record: q.Name, Field: "answer", Reason: "cannot be given for a note"}
	case model.TypeInteger:
		if _, err := strconv.ParseInt(trimmed, 10, 64); err != nil {
			return "", &model.ValidationError{Record: q.Name, Field: "answer", Value: value, Reason: "is not an integer"}
		}
	case model.TypeDecimal:
		if _, err := strconv.ParseFloat(trimmed, 64); err != nil {
			return "", &model.ValidationError{Record: q.Name, Field: "answer", Value: value, Reason: "is not a decimal number"}
		}
	case model.TypeSelectOne:
		if s.lookup != nil && !s.lookup(q.Name, trimmed) {
			return "", &model.ValidationError{Record: q.Name, Field: "answer", Value: value, Reason: "is not one of the choices"}
		}
	case model.TypeSelectMultiple:
		codes := strings.Fields(trimmed)
		if s.lookup != nil {
			for _, code := range codes {
				if !s.lookup(q.Name, code) {
					return "", &model.ValidationError{Record: q.Name, Field: "answer", Value: code, Reason: "is not one of the choices"}
				}
			}
		}
		return strings.Join(codes, " "), nil
	}
	return trimmed, nil
}

// Answers returns a copy of the answers recorded so far.
func (s *Simulation) Answers() map[string]string {
	out := make(map[string]string, len(s.answers))
	for k, v := range s.answers {
		out[k] = v
	}
	return out
}

// Result returns the state of the pass so far.
func (s *Simulation) Result() *Result {
	return &Result{
		InstanceID: s.instanceID,
		Answers:    s.Answers(),
		Steps:      append([]Step(nil), s.steps...),
		Warnings:   append([]*model.MalformedExpressionWarning(nil), s.warnings...),
	}
}

// Answerer supplies the answer for a visible question. ok=false leaves the
// question unanswered.
type Answerer func(q model.Question, answers map[string]string) (value string, ok bool, err error)

// Run resets the simulation and performs a full forward pass.
func (s *Simulation) Run(answer Answerer) (*Result, error) {
	s.Reset()
	for i := range s.questions {
		visible, err := s.Present(i)
		if err != nil {
			return nil, err
		}
		q := s.questions[i]
		if !visible || q.Type == model.TypeNote {
			continue
		}
		value, ok, err := answer(q, s.Answers())
		if err != nil {
			return nil, fmt.Errorf("answer %s: %w", q.Name, err)
		}
		if !ok {
			if q.Required {
				return nil, &model.ValidationError{Record: q.Name, Field: "answer", Reason: "is required"}
			}
			continue
		}
		if err := s.Record(q.Name, value); err != nil {
			return nil, err
		}
	}
	return s.Result(), nil
}

// FromMap answers each question from a fixed set of values keyed by name.
func FromMap(values map[string]string) Answerer {
	return func(q model.Question, _ map[string]string) (string, bool, error) {
		v, ok := values[q.Name]
		return v, ok, nil
	}
}
