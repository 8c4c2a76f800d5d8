package choices

import (
	"errors"
	"slices"
	"testing"

	"github.com/adiatmad/xlsformbuilderku/internal/model"
)

func choice(list, name string) model.Choice {
	return model.Choice{ListName: list, Name: name, Label: "Label " + name}
}

func codes(s *Store, list string) []string {
	var out []string
	for c := range s.ChoicesFor(list) {
		out = append(out, c.Name)
	}
	return out
}

func TestAddAndChoicesFor(t *testing.T) {
	s := New()
	for _, c := range []model.Choice{
		choice("color", "red"),
		choice("color", "blue"),
		choice("size", "s"),
		choice("color", "green"),
	} {
		if err := s.Add(c); err != nil {
			t.Fatalf("Add(%+v): %v", c, err)
		}
	}

	if got := codes(s, "color"); !slices.Equal(got, []string{"red", "blue", "green"}) {
		t.Errorf("expected insertion order, got %v", got)
	}
	if got := codes(s, "color"); !slices.Equal(got, []string{"red", "blue", "green"}) {
		t.Errorf("sequence must be restartable, second pass got %v", got)
	}
	if got := codes(s, "missing"); len(got) != 0 {
		t.Errorf("unknown list should be empty, got %v", got)
	}
	if got := s.Lists(); !slices.Equal(got, []string{"color", "size"}) {
		t.Errorf("unexpected list order %v", got)
	}
	if s.Count("color") != 3 {
		t.Errorf("expected 3 colors, got %d", s.Count("color"))
	}
}

func TestChoicesForStopsEarly(t *testing.T) {
	s := New()
	s.Add(choice("l", "a"))
	s.Add(choice("l", "b"))
	s.Add(choice("l", "c"))

	var seen []string
	for c := range s.ChoicesFor("l") {
		seen = append(seen, c.Name)
		if c.Name == "b" {
			break
		}
	}
	if !slices.Equal(seen, []string{"a", "b"}) {
		t.Errorf("unexpected partial iteration %v", seen)
	}
}

func TestAddValidation(t *testing.T) {
	s := New()
	if err := s.Add(choice("color", "red")); err != nil {
		t.Fatalf("Add: %v", err)
	}

	tests := []struct {
		name string
		c    model.Choice
	}{
		{"duplicate in list", choice("color", "red")},
		{"empty name", model.Choice{ListName: "color", Label: "x"}},
		{"empty label", model.Choice{ListName: "color", Name: "x"}},
		{"empty list", model.Choice{Name: "x", Label: "x"}},
		{"space in list", model.Choice{ListName: "my list", Name: "x", Label: "x"}},
		{"space in name", model.Choice{ListName: "color", Name: "very good", Label: "Very good"}},
		{"tab in name", model.Choice{ListName: "color", Name: "a\tb", Label: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ve *model.ValidationError
			if err := s.Add(tt.c); !errors.As(err, &ve) {
				t.Errorf("expected ValidationError, got %v", err)
			}
		})
	}

	// Same code under another list is fine.
	if err := s.Add(choice("other", "red")); err != nil {
		t.Errorf("same code in a different list: %v", err)
	}
}

func TestUpdateAndRemove(t *testing.T) {
	s := New()
	s.Add(choice("l", "a"))
	s.Add(choice("l", "b"))
	s.Add(choice("l", "c"))

	if err := s.Update("l", 1, model.Choice{Name: "b2", Label: "B2"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got := codes(s, "l"); !slices.Equal(got, []string{"a", "b2", "c"}) {
		t.Errorf("after update %v", got)
	}

	var ve *model.ValidationError
	if err := s.Update("l", 1, choice("l", "a")); !errors.As(err, &ve) {
		t.Errorf("expected duplicate ValidationError, got %v", err)
	}
	if err := s.Update("l", 0, choice("other", "z")); !errors.As(err, &ve) {
		t.Errorf("expected list mismatch ValidationError, got %v", err)
	}
	var ie *model.IndexError
	if err := s.Update("l", 3, choice("l", "z")); !errors.As(err, &ie) {
		t.Errorf("expected IndexError, got %v", err)
	}

	if err := s.Remove("l", 0); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if got := codes(s, "l"); !slices.Equal(got, []string{"b2", "c"}) {
		t.Errorf("after remove %v", got)
	}
	s.Remove("l", 0)
	s.Remove("l", 0)
	if len(s.Lists()) != 0 {
		t.Errorf("emptied list should be dropped, lists = %v", s.Lists())
	}
	if err := s.Remove("l", 0); !errors.As(err, &ie) {
		t.Errorf("expected IndexError on empty list, got %v", err)
	}
}

func TestReplace(t *testing.T) {
	s := New()
	s.Add(choice("l", "a"))

	err := s.Replace("l", []model.Choice{
		{Name: "x", Label: "X"},
		{Name: "y", Label: "Y"},
	})
	if err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if got := codes(s, "l"); !slices.Equal(got, []string{"x", "y"}) {
		t.Errorf("after replace %v", got)
	}

	// A bad entry leaves the previous list in place.
	var ve *model.ValidationError
	err = s.Replace("l", []model.Choice{{Name: "p", Label: "P"}, {Name: "p", Label: "Q"}})
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if got := codes(s, "l"); !slices.Equal(got, []string{"x", "y"}) {
		t.Errorf("failed replace modified the list: %v", got)
	}

	if err := s.Replace("l", nil); err != nil {
		t.Fatalf("Replace(nil): %v", err)
	}
	if s.Count("l") != 0 || len(s.Lists()) != 0 {
		t.Error("empty replace should drop the list")
	}
}
