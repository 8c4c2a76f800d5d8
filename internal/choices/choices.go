// Package choices stores the named option lists used by select questions.
package choices

import (
	"iter"
	"slices"

	"github.com/adiatmad/xlsformbuilderku/internal/model"
)

// Store keeps choice lists keyed by list name. Lists and the choices within
// them keep insertion order. It is not safe for concurrent use.
type Store struct {
	lists map[string][]model.Choice
	order []string
}

// New returns an empty store.
func New() *Store {
	return &Store{lists: make(map[string][]model.Choice)}
}

// Add appends c to the list named c.ListName, creating the list if needed.
func (s *Store) Add(c model.Choice) error {
	if err := validate(c); err != nil {
		return err
	}
	if s.indexOf(c.ListName, c.Name) >= 0 {
		return duplicate(c)
	}
	if _, ok := s.lists[c.ListName]; !ok {
		s.order = append(s.order, c.ListName)
	}
	s.lists[c.ListName] = append(s.lists[c.ListName], c)
	return nil
}

// ChoicesFor yields the choices of list in insertion order. The sequence reads
// the store at iteration time, so it can be ranged over repeatedly.
func (s *Store) ChoicesFor(list string) iter.Seq[model.Choice] {
	return func(yield func(model.Choice) bool) {
		for _, c := range s.lists[list] {
			if !yield(c) {
				return
			}
		}
	}
}

// Count returns the number of choices in list.
func (s *Store) Count(list string) int {
	return len(s.lists[list])
}

// Lists returns the list names in order of first insertion.
func (s *Store) Lists() []string {
	return slices.Clone(s.order)
}

// Update replaces the choice at position i of list. The list name of c must
// match list.
func (s *Store) Update(list string, i int, c model.Choice) error {
	items := s.lists[list]
	if i < 0 || i >= len(items) {
		return &model.IndexError{Index: i, Len: len(items)}
	}
	if c.ListName == "" {
		c.ListName = list
	}
	if c.ListName != list {
		return &model.ValidationError{Record: c.Name, Field: "list_name", Value: c.ListName, Reason: "does not match list '" + list + "'"}
	}
	if err := validate(c); err != nil {
		return err
	}
	if j := s.indexOf(list, c.Name); j >= 0 && j != i {
		return duplicate(c)
	}
	items[i] = c
	return nil
}

// Remove deletes the choice at position i of list. Removing the last choice
// drops the list.
func (s *Store) Remove(list string, i int) error {
	items := s.lists[list]
	if i < 0 || i >= len(items) {
		return &model.IndexError{Index: i, Len: len(items)}
	}
	items = slices.Delete(items, i, i+1)
	if len(items) == 0 {
		s.DropList(list)
		return nil
	}
	s.lists[list] = items
	return nil
}

// Replace rebuilds list from cs. Either every choice is accepted or the store
// is left untouched. An empty cs drops the list.
func (s *Store) Replace(list string, cs []model.Choice) error {
	if err := model.ValidateName(list, "list_name", list); err != nil {
		return err
	}
	if len(cs) == 0 {
		s.DropList(list)
		return nil
	}
	seen := make(map[string]bool, len(cs))
	rebuilt := make([]model.Choice, 0, len(cs))
	for _, c := range cs {
		if c.ListName == "" {
			c.ListName = list
		}
		if c.ListName != list {
			return &model.ValidationError{Record: c.Name, Field: "list_name", Value: c.ListName, Reason: "does not match list '" + list + "'"}
		}
		if err := validate(c); err != nil {
			return err
		}
		if seen[c.Name] {
			return duplicate(c)
		}
		seen[c.Name] = true
		rebuilt = append(rebuilt, c)
	}
	if _, ok := s.lists[list]; !ok {
		s.order = append(s.order, list)
	}
	s.lists[list] = rebuilt
	return nil
}

// DropList removes list and all of its choices.
func (s *Store) DropList(list string) {
	if _, ok := s.lists[list]; !ok {
		return
	}
	delete(s.lists, list)
	s.order = slices.DeleteFunc(s.order, func(n string) bool { return n == list })
}

// Contains reports whether list has a choice with the given code.
func (s *Store) Contains(list, name string) bool {
	return s.indexOf(list, name) >= 0
}

func (s *Store) indexOf(list, name string) int {
	return slices.IndexFunc(s.lists[list], func(c model.Choice) bool { return c.Name == name })
}

func validate(c model.Choice) error {
	if err := model.ValidateName(c.ListName, "list_name", c.Name); err != nil {
		return err
	}
	if err := model.ValidateName(c.Name, "name", c.ListName); err != nil {
		return err
	}
	if c.Label == "" {
		return &model.ValidationError{Record: c.Name, Field: "label", Reason: "must not be empty"}
	}
	return nil
}

func duplicate(c model.Choice) error {
	return &model.ValidationError{
		Field:  "name",
		Value:  c.Name,
		Reason: "already exists in list '" + c.ListName + "'",
	}
}
