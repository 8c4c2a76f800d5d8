package session

import (
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/adiatmad/xlsformbuilderku/internal/metrics"
	"github.com/adiatmad/xlsformbuilderku/internal/model"
	"github.com/adiatmad/xlsformbuilderku/internal/registry"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	s := New("test", Options{Clock: func() time.Time { return time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC) }})
	s.SetSettings(model.Settings{FormTitle: "Test", FormID: "test"})
	return s
}

func mustAdd(t *testing.T, s *Session, q model.Question) {
	t.Helper()
	if _, err := s.AddQuestion(q); err != nil {
		t.Fatalf("AddQuestion(%s): %v", q.Name, err)
	}
}

func names(qs []model.Question) []string {
	out := make([]string, len(qs))
	for i, q := range qs {
		out[i] = q.Name
	}
	return out
}

func TestSessionExportSelectOne(t *testing.T) {
	s := newTestSession(t)
	mustAdd(t, s, model.Question{Name: "color", Label: "Color", Type: model.TypeSelectOne})
	for _, c := range []model.Choice{
		{ListName: "color", Name: "red", Label: "Red"},
		{ListName: "color", Name: "blue", Label: "Blue"},
	} {
		if err := s.AddChoice(c); err != nil {
			t.Fatalf("AddChoice: %v", err)
		}
	}

	b, err := s.Export()
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	survey, _ := b.Sheet("survey")
	if got := survey.Rows[0][0]; got != "select_one color" {
		t.Errorf("type cell = %q, want 'select_one color'", got)
	}
	settings, _ := b.Sheet("settings")
	if got := settings.Rows[0][2]; got != "2026010203" {
		t.Errorf("version = %q, want 2026010203", got)
	}
}

func TestSessionMoveAndReorder(t *testing.T) {
	s := newTestSession(t)
	for _, n := range []string{"a", "b", "c"} {
		mustAdd(t, s, model.Question{Name: n, Label: n, Type: model.TypeText})
	}

	if err := s.MoveQuestion(1, registry.Up); err != nil {
		t.Fatalf("MoveQuestion: %v", err)
	}
	if err := s.MoveQuestion(0, registry.Down); err != nil {
		t.Fatalf("MoveQuestion: %v", err)
	}
	if got := names(s.Questions()); !slices.Equal(got, []string{"a", "b", "c"}) {
		t.Errorf("after round trip = %v", got)
	}

	if err := s.ReorderQuestions([]int{2, 0, 1}); err != nil {
		t.Fatalf("ReorderQuestions: %v", err)
	}
	if got := names(s.Questions()); !slices.Equal(got, []string{"c", "a", "b"}) {
		t.Errorf("after reorder = %v", got)
	}

	var ie *model.IndexError
	if err := s.MoveQuestion(0, registry.Up); !errors.As(err, &ie) {
		t.Errorf("moving first question up: got %v, want IndexError", err)
	}
}

func TestSessionRenameCarriesChoices(t *testing.T) {
	s := newTestSession(t)
	mustAdd(t, s, model.Question{Name: "fruit", Label: "Fruit", Type: model.TypeSelectMultiple})
	if err := s.ReplaceChoices("fruit", []model.Choice{{Name: "apple", Label: "Apple"}}); err != nil {
		t.Fatalf("ReplaceChoices: %v", err)
	}

	if err := s.UpdateQuestion(0, model.Question{Name: "fruits", Label: "Fruits", Type: model.TypeSelectMultiple}); err != nil {
		t.Fatalf("UpdateQuestion: %v", err)
	}

	if got := s.Choices("fruits"); len(got) != 1 || got[0].ListName != "fruits" {
		t.Errorf("Choices(fruits) = %+v", got)
	}
	if got := s.Lists(); !slices.Equal(got, []string{"fruits"}) {
		t.Errorf("Lists() = %v, want [fruits]", got)
	}
}

func TestSessionRemoveDoesNotCascade(t *testing.T) {
	s := newTestSession(t)
	mustAdd(t, s, model.Question{Name: "q1", Label: "Q1", Type: model.TypeSelectOne})
	mustAdd(t, s, model.Question{Name: "q2", Label: "Q2", Type: model.TypeText, Relevant: "${q1} = 'yes'"})
	if err := s.AddChoice(model.Choice{ListName: "q1", Name: "yes", Label: "Yes"}); err != nil {
		t.Fatal(err)
	}

	if err := s.RemoveQuestion(0); err != nil {
		t.Fatalf("RemoveQuestion: %v", err)
	}
	snap := s.Snapshot()
	if len(snap.Choices["q1"]) != 1 {
		t.Errorf("choice list of removed question should stay, got %v", snap.Choices)
	}
	if snap.Questions[0].Relevant != "${q1} = 'yes'" {
		t.Errorf("relevant changed to %q", snap.Questions[0].Relevant)
	}

	b, err := s.Export()
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if len(b.Warnings) != 2 {
		t.Errorf("warnings = %+v, want unknown reference and orphaned list", b.Warnings)
	}
}

func TestSessionPreview(t *testing.T) {
	m := metrics.New()
	s := New("p", Options{Metrics: m})
	mustAdd(t, s, model.Question{Name: "q1", Label: "Q1", Type: model.TypeText})
	mustAdd(t, s, model.Question{Name: "q2", Label: "Q2", Type: model.TypeText, Relevant: "${q1} = 'yes'"})
	mustAdd(t, s, model.Question{Name: "q3", Label: "Q3", Type: model.TypeText, Relevant: "${q1} ==== 'yes'"})

	res, err := s.Preview(map[string]string{"q1": "no", "q2": "x"})
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if _, ok := res.Answers["q2"]; ok {
		t.Errorf("q2 should not be answered: %v", res.Answers)
	}
	if !res.Steps[2].Visible {
		t.Error("malformed relevant should leave q3 visible")
	}
	if got := testutil.ToFloat64(m.PreviewsTotal); got != 1 {
		t.Errorf("previews = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.MalformedExpressions); got != 1 {
		t.Errorf("malformed = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.QuestionMutations.WithLabelValues("add")); got != 3 {
		t.Errorf("add mutations = %v, want 3", got)
	}
}

func TestSessionPreviewChecksChoices(t *testing.T) {
	s := newTestSession(t)
	mustAdd(t, s, model.Question{Name: "color", Label: "Color", Type: model.TypeSelectOne})
	if err := s.AddChoice(model.Choice{ListName: "color", Name: "red", Label: "Red"}); err != nil {
		t.Fatal(err)
	}

	var ve *model.ValidationError
	if _, err := s.Preview(map[string]string{"color": "green"}); !errors.As(err, &ve) {
		t.Errorf("unknown choice: got %v, want ValidationError", err)
	}
	if _, err := s.Preview(map[string]string{"color": "red"}); err != nil {
		t.Errorf("known choice: %v", err)
	}
}

func TestSessionPreviewTrimsAnswers(t *testing.T) {
	s := newTestSession(t)
	mustAdd(t, s, model.Question{Name: "color", Label: "Color", Type: model.TypeSelectOne})
	mustAdd(t, s, model.Question{Name: "why", Label: "Why?", Type: model.TypeText, Relevant: "${color} = 'red'"})
	if err := s.AddChoice(model.Choice{ListName: "color", Name: "red", Label: "Red"}); err != nil {
		t.Fatal(err)
	}

	res, err := s.Preview(map[string]string{"color": " red"})
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if got := res.Answers["color"]; got != "red" {
		t.Errorf("stored answer = %q, want red", got)
	}
	if !res.Steps[1].Visible {
		t.Error("why should be visible after answering red")
	}
}

func TestSessionRenameKeepsStateOnChoiceError(t *testing.T) {
	s := newTestSession(t)
	mustAdd(t, s, model.Question{Name: "fruit", Label: "Fruit", Type: model.TypeSelectOne})
	mustAdd(t, s, model.Question{Name: "other", Label: "Other", Type: model.TypeText})
	if err := s.AddChoice(model.Choice{ListName: "fruit", Name: "apple", Label: "Apple"}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		rename string
	}{
		{"list name rejected", "bad name"},
		{"question name taken", "other"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ve *model.ValidationError
			err := s.UpdateQuestion(0, model.Question{Name: tt.rename, Label: "Fruit", Type: model.TypeSelectOne})
			if !errors.As(err, &ve) {
				t.Fatalf("UpdateQuestion: got %v, want ValidationError", err)
			}
			if got := names(s.Questions()); !slices.Equal(got, []string{"fruit", "other"}) {
				t.Errorf("questions = %v, want unchanged", got)
			}
			if got := s.Lists(); !slices.Equal(got, []string{"fruit"}) {
				t.Errorf("lists = %v, want unchanged", got)
			}
			if got := s.Choices("fruit"); len(got) != 1 {
				t.Errorf("Choices(fruit) = %+v", got)
			}
		})
	}
}

func TestSessionConcurrentAdds(t *testing.T) {
	s := newTestSession(t)
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.AddQuestion(model.Question{Name: "q" + string(rune('A'+i%26)), Label: "x", Type: model.TypeText})
		}()
	}
	wg.Wait()

	seen := make(map[string]bool)
	for _, n := range names(s.Questions()) {
		if seen[n] {
			t.Fatalf("duplicate name %q after concurrent adds", n)
		}
		seen[n] = true
	}
	if len(seen) != 26 {
		t.Errorf("got %d questions, want 26", len(seen))
	}
}

func TestManager(t *testing.T) {
	m := metrics.New()
	mgr := NewManager(Options{Metrics: m})

	a := mgr.Create()
	b := mgr.Create()
	if a.ID == b.ID {
		t.Fatal("session ids must differ")
	}
	if got := mgr.IDs(); !slices.Equal(got, []string{a.ID, b.ID}) {
		t.Errorf("IDs() = %v, want creation order", got)
	}

	got, err := mgr.Get(a.ID)
	if err != nil || got != a {
		t.Errorf("Get(%s) = %v, %v", a.ID, got, err)
	}
	if err := mgr.Delete(a.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := mgr.Get(a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete: %v, want ErrNotFound", err)
	}
	if err := mgr.Delete(a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete: %v, want ErrNotFound", err)
	}
	if got := testutil.ToFloat64(m.SessionsActive); got != 1 {
		t.Errorf("active sessions = %v, want 1", got)
	}
}
