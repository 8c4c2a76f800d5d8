// Package session owns the state of one form being authored: its question
// registry, choice lists and settings, guarded by a single mutex.
package session

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/adiatmad/xlsformbuilderku/internal/choices"
	"github.com/adiatmad/xlsformbuilderku/internal/export"
	"github.com/adiatmad/xlsformbuilderku/internal/metrics"
	"github.com/adiatmad/xlsformbuilderku/internal/model"
	"github.com/adiatmad/xlsformbuilderku/internal/registry"
	"github.com/adiatmad/xlsformbuilderku/internal/simulate"
	"github.com/adiatmad/xlsformbuilderku/internal/skiplogic"
)

// Options configures a Session. The zero value is usable.
type Options struct {
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Clock   func() time.Time
}

// Session is one author's form. All methods are safe for concurrent use.
type Session struct {
	ID      string
	Created time.Time

	logger    *slog.Logger
	metrics   *metrics.Metrics
	eval      *skiplogic.Evaluator
	assembler *export.Assembler

	mu        sync.Mutex
	questions *registry.Registry
	choices   *choices.Store
	settings  model.Settings
}

// Snapshot is a point-in-time copy of a session's contents.
type Snapshot struct {
	ID        string                    `json:"id"`
	Created   time.Time                 `json:"created"`
	Questions []model.Question          `json:"questions"`
	Choices   map[string][]model.Choice `json:"choices"`
	Settings  model.Settings            `json:"settings"`
}

// New returns an empty session with the given id.
func New(id string, opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	var hook skiplogic.WarningHook
	if opts.Metrics != nil {
		hook = opts.Metrics.ObserveMalformed
	}
	logger = logger.With("session", id)
	return &Session{
		ID:        id,
		Created:   clock(),
		logger:    logger,
		metrics:   opts.Metrics,
		eval:      skiplogic.NewEvaluator(logger, hook),
		assembler: export.NewAssembler(logger).WithClock(clock),
		questions: registry.New(),
		choices:   choices.New(),
	}
}

func (s *Session) countQuestion(op string) {
	if s.metrics != nil {
		s.metrics.QuestionMutations.WithLabelValues(op).Inc()
	}
}

func (s *Session) countChoice(op string) {
	if s.metrics != nil {
		s.metrics.ChoiceMutations.WithLabelValues(op).Inc()
	}
}

// AddQuestion appends q and returns its index.
func (s *Session) AddQuestion(q model.Question) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, err := s.questions.Add(q)
	if err != nil {
		return 0, err
	}
	s.countQuestion("add")
	s.logger.Debug("question added", "index", i, "name", q.Name, "type", q.Type)
	return i, nil
}

// UpdateQuestion replaces the question at index i. When a select question is
// renamed its choice list follows it, unless a list with the new name exists.
func (s *Session) UpdateQuestion(i int, q model.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, err := s.questions.At(i)
	if err != nil {
		return err
	}
	moveList := old.Name != q.Name && q.Type.IsSelect() && s.choices.Count(q.Name) == 0 && s.choices.Count(old.Name) > 0
	if moveList {
		moved := slices.Collect(s.choices.ChoicesFor(old.Name))
		for k := range moved {
			moved[k].ListName = q.Name
		}
		if err := s.choices.Replace(q.Name, moved); err != nil {
			return fmt.Errorf("rename choice list: %w", err)
		}
	}
	if err := s.questions.Update(i, q); err != nil {
		if moveList {
			s.choices.DropList(q.Name)
		}
		return err
	}
	if moveList {
		s.choices.DropList(old.Name)
		s.logger.Debug("choice list renamed", "from", old.Name, "to", q.Name)
	}
	s.countQuestion("update")
	return nil
}

// RemoveQuestion deletes the question at index i. Its choice list and any
// references to it are left in place.
func (s *Session) RemoveQuestion(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, err := s.questions.At(i)
	if err != nil {
		return err
	}
	if err := s.questions.Remove(i); err != nil {
		return err
	}
	s.countQuestion("remove")
	s.logger.Debug("question removed", "index", i, "name", q.Name)
	return nil
}

// MoveQuestion swaps the question at index i with its neighbor.
func (s *Session) MoveQuestion(i int, dir registry.Direction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.questions.Move(i, dir); err != nil {
		return err
	}
	s.countQuestion("move")
	return nil
}

// ReorderQuestions applies a full permutation of the current order.
func (s *Session) ReorderQuestions(perm []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.questions.Reorder(perm); err != nil {
		return err
	}
	s.countQuestion("reorder")
	return nil
}

// Questions returns the questions in order.
func (s *Session) Questions() []model.Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.questions.Questions()
}

// Question returns the question at index i.
func (s *Session) Question(i int) (model.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.questions.At(i)
}

// AddChoice appends c to its list.
func (s *Session) AddChoice(c model.Choice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.choices.Add(c); err != nil {
		return err
	}
	s.countChoice("add")
	return nil
}

// ReplaceChoices rebuilds list from cs. An empty cs removes the list.
func (s *Session) ReplaceChoices(list string, cs []model.Choice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.choices.Replace(list, cs); err != nil {
		return err
	}
	s.countChoice("replace")
	return nil
}

// Choices returns a copy of list.
func (s *Session) Choices(list string) []model.Choice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Collect(s.choices.ChoicesFor(list))
}

// SetSettings replaces the form settings.
func (s *Session) SetSettings(settings model.Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
}

// Settings returns the form settings.
func (s *Session) Settings() model.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// Snapshot copies the session's contents.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ID:        s.ID,
		Created:   s.Created,
		Questions: s.questions.Questions(),
		Choices:   s.choiceMap(),
		Settings:  s.settings,
	}
}

func (s *Session) choiceMap() map[string][]model.Choice {
	m := make(map[string][]model.Choice)
	for _, list := range s.choices.Lists() {
		m[list] = slices.Collect(s.choices.ChoicesFor(list))
	}
	return m
}

// NewSimulation starts a trial fill over the current questions. Select
// answers are checked against the choice lists as they are now.
func (s *Session) NewSimulation() *simulate.Simulation {
	s.mu.Lock()
	questions := s.questions.Questions()
	lists := s.choiceMap()
	s.mu.Unlock()

	codes := make(map[string]map[string]bool, len(lists))
	for list, cs := range lists {
		set := make(map[string]bool, len(cs))
		for _, c := range cs {
			set[c.Name] = true
		}
		codes[list] = set
	}
	lookup := func(list, code string) bool { return codes[list][code] }
	return simulate.New(questions, s.eval, lookup)
}

// Preview runs a full pass answering each visible question from answers.
func (s *Session) Preview(answers map[string]string) (*simulate.Result, error) {
	res, err := s.NewSimulation().Run(simulate.FromMap(answers))
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.PreviewsTotal.Inc()
	}
	s.logger.Debug("preview finished", "instance", res.InstanceID,
		"answered", len(res.Answers), "warnings", len(res.Warnings))
	return res, nil
}

// Export assembles the workbook tables from the current state.
func (s *Session) Export() (*export.Bundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.assembler.Build(s.questions.Questions(), s.choices, s.settings)
}

// Lists returns the names of all choice lists in order of creation.
func (s *Session) Lists() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.choices.Lists()
}
