// Package registry holds the ordered collection of question definitions.
package registry

import (
	"fmt"

	"github.com/adiatmad/xlsformbuilderku/internal/model"
)

// Direction selects the neighbor Move swaps with.
type Direction int

const (
	// Up swaps with the previous question.
	Up Direction = -1
	// Down swaps with the next question.
	Down Direction = 1
)

// ParseDirection converts "up" or "down" into a Direction.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "up":
		return Up, nil
	case "down":
		return Down, nil
	}
	return 0, &model.ValidationError{Field: "direction", Value: s, Reason: "must be 'up' or 'down'"}
}

func (d Direction) String() string {
	if d == Up {
		return "up"
	}
	return "down"
}

// Registry is an ordered list of questions with unique names. It is not safe
// for concurrent use; see session.Session.
type Registry struct {
	questions []model.Question
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{}
}

// Len returns the number of questions.
func (r *Registry) Len() int {
	return len(r.questions)
}

// At returns the question at index i.
func (r *Registry) At(i int) (model.Question, error) {
	if err := r.checkIndex(i); err != nil {
		return model.Question{}, err
	}
	return r.questions[i], nil
}

// Questions returns a copy of the questions in current order.
func (r *Registry) Questions() []model.Question {
	out := make([]model.Question, len(r.questions))
	copy(out, r.questions)
	return out
}

// IndexOf returns the position of the named question, or -1.
func (r *Registry) IndexOf(name string) int {
	for i, q := range r.questions {
		if q.Name == name {
			return i
		}
	}
	return -1
}

// Add appends q and returns its index.
func (r *Registry) Add(q model.Question) (int, error) {
	if err := r.validate(q, -1); err != nil {
		return 0, err
	}
	r.questions = append(r.questions, q)
	return len(r.questions) - 1, nil
}

// Update replaces the question at index i with q.
func (r *Registry) Update(i int, q model.Question) error {
	if err := r.checkIndex(i); err != nil {
		return err
	}
	if err := r.validate(q, i); err != nil {
		return err
	}
	r.questions[i] = q
	return nil
}

// Remove deletes the question at index i. References to it from other
// questions or from choice lists are left in place.
func (r *Registry) Remove(i int) error {
	if err := r.checkIndex(i); err != nil {
		return err
	}
	r.questions = append(r.questions[:i], r.questions[i+1:]...)
	return nil
}

// Move swaps the question at index i with its neighbor in direction d. The
// neighbor must exist.
func (r *Registry) Move(i int, d Direction) error {
	if err := r.checkIndex(i); err != nil {
		return err
	}
	if d != Up && d != Down {
		return &model.ValidationError{Field: "direction", Value: fmt.Sprint(int(d)), Reason: "must be up or down"}
	}
	j := i + int(d)
	if err := r.checkIndex(j); err != nil {
		return err
	}
	r.questions[i], r.questions[j] = r.questions[j], r.questions[i]
	return nil
}

// Reorder replaces the order so that the new position k holds the question
// previously at perm[k]. perm must be a permutation of 0..Len()-1.
func (r *Registry) Reorder(perm []int) error {
	if len(perm) != len(r.questions) {
		return &model.ValidationError{
			Field:  "order",
			Reason: fmt.Sprintf("has %d entries, want %d", len(perm), len(r.questions)),
		}
	}
	seen := make([]bool, len(perm))
	for _, p := range perm {
		if p < 0 || p >= len(perm) {
			return &model.ValidationError{Field: "order", Value: fmt.Sprint(p), Reason: "is not a valid index"}
		}
		if seen[p] {
			return &model.ValidationError{Field: "order", Value: fmt.Sprint(p), Reason: "appears more than once"}
		}
		seen[p] = true
	}
	reordered := make([]model.Question, len(perm))
	for k, p := range perm {
		reordered[k] = r.questions[p]
	}
	r.questions = reordered
	return nil
}

func (r *Registry) checkIndex(i int) error {
	if i < 0 || i >= len(r.questions) {
		return &model.IndexError{Index: i, Len: len(r.questions)}
	}
	return nil
}

// validate checks q against the record invariants and name uniqueness,
// ignoring the record at index skip.
func (r *Registry) validate(q model.Question, skip int) error {
	if err := model.ValidateQuestion(q); err != nil {
		return err
	}
	for i, existing := range r.questions {
		if i != skip && existing.Name == q.Name {
			return &model.ValidationError{Field: "name", Value: q.Name, Reason: "already exists"}
		}
	}
	return nil
}
