package formfile

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/adiatmad/xlsformbuilderku/internal/model"
	"github.com/adiatmad/xlsformbuilderku/internal/session"
)

const yamlDef = `settings:
  form_title: Household survey
  form_id: household
questions:
  - name: consent
    label: Do you agree?
    type: select_one
    required: true
    choices_csv: "yes, no"
  - name: color
    label: Favourite color
    type: select_one
    relevant: "${consent} = 'yes'"
    choices:
      - {name: red, label: Red}
      - {name: blue, label: Blue, filter: cool}
  - name: notes
    label: Notes
    type: text
`

const jsonDef = `{
  "settings": {"form_title": "T", "form_id": "t"},
  "questions": [
    {"name": "q1", "label": "Q1", "type": "integer", "constraint": ". > 0"}
  ]
}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "form.yaml", yamlDef)

	def, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if def.Path != path {
		t.Errorf("Path = %q", def.Path)
	}
	if def.Settings.FormID != "household" {
		t.Errorf("form_id = %q", def.Settings.FormID)
	}
	if len(def.Questions) != 3 {
		t.Fatalf("got %d questions, want 3", len(def.Questions))
	}
	if !def.Questions[0].Required {
		t.Error("consent should be required")
	}
	if def.Questions[1].Relevant != "${consent} = 'yes'" {
		t.Errorf("relevant = %q", def.Questions[1].Relevant)
	}
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "form.json", jsonDef)

	def, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := def.Questions[0].Constraint; got != ". > 0" {
		t.Errorf("constraint = %q", got)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		data   string
	}{
		{"yaml", FormatYAML, "settings: {form_title: T, form_id: t}\nquestions:\n  - {name: q, label: Q, type: text, colour: red}\n"},
		{"json", FormatJSON, `{"settings": {}, "questions": [], "extra": 1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.data), tt.format); err == nil {
				t.Error("expected error for unknown field")
			}
		})
	}
}

func TestFormatForPath(t *testing.T) {
	tests := []struct {
		path    string
		want    Format
		wantErr bool
	}{
		{"a.yaml", FormatYAML, false},
		{"a.YML", FormatYAML, false},
		{"a.json", FormatJSON, false},
		{"a.xlsx", "", true},
	}
	for _, tt := range tests {
		got, err := FormatForPath(tt.path)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("FormatForPath(%q) = %q, %v", tt.path, got, err)
		}
	}
}

func TestApplyIntoSession(t *testing.T) {
	def, err := Parse([]byte(yamlDef), FormatYAML)
	if err != nil {
		t.Fatal(err)
	}
	s := session.New("t", session.Options{})
	if err := def.Apply(s); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if got := len(s.Questions()); got != 3 {
		t.Errorf("got %d questions, want 3", got)
	}
	if got := s.Choices("consent"); len(got) != 2 || got[0].Name != "yes" || got[1].Label != "no" {
		t.Errorf("consent choices = %+v", got)
	}
	if got := s.Choices("color"); len(got) != 2 || got[1].Filter != "cool" || got[1].ListName != "color" {
		t.Errorf("color choices = %+v", got)
	}

	b, err := s.Export()
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if len(b.Warnings) != 0 {
		t.Errorf("unexpected warnings %+v", b.Warnings)
	}
}

func TestApplyReportsPosition(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{
			"duplicate name",
			"questions:\n  - {name: q1, label: A, type: text}\n  - {name: q1, label: B, type: text}\n",
			"question 2: name 'q1' already exists",
		},
		{
			"choices on text",
			"questions:\n  - {name: q1, label: A, type: text, choices_csv: 'a, b'}\n",
			"question 1: choices of 'q1' given for a question that is not a select",
		},
		{
			"duplicate choice",
			"questions:\n  - {name: q1, label: A, type: select_one, choices_csv: 'a, a'}\n",
			"choices of question 1: name 'a' already exists in list 'q1'",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def, err := Parse([]byte(tt.data), FormatYAML)
			if err != nil {
				t.Fatal(err)
			}
			err = def.Apply(session.New("t", session.Options{}))
			var ve *model.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("got %v, want ValidationError", err)
			}
			if err.Error() != tt.want {
				t.Errorf("error = %q, want %q", err, tt.want)
			}
		})
	}
}

func TestSplitChoices(t *testing.T) {
	got := SplitChoices("l", " a ,b,, c ")
	var codes []string
	for _, c := range got {
		if c.ListName != "l" || c.Name != c.Label {
			t.Errorf("bad choice %+v", c)
		}
		codes = append(codes, c.Name)
	}
	if !slices.Equal(codes, []string{"a", "b", "c"}) {
		t.Errorf("codes = %v", codes)
	}

	got = SplitChoices("rating", "Very  good, Bad")
	want := []model.Choice{
		{ListName: "rating", Name: "Very_good", Label: "Very  good"},
		{ListName: "rating", Name: "Bad", Label: "Bad"},
	}
	if !slices.Equal(got, want) {
		t.Errorf("SplitChoices = %+v, want %+v", got, want)
	}
}

func TestMultiWordChoicesCanBeAnswered(t *testing.T) {
	def, err := Parse([]byte(`questions:
  - {name: rating, label: Rating, type: select_multiple, choices_csv: "Very good, Bad"}
`), FormatYAML)
	if err != nil {
		t.Fatal(err)
	}
	s := session.New("t", session.Options{})
	if err := def.Apply(s); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	res, err := s.Preview(map[string]string{"rating": "Very_good Bad"})
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if got := res.Answers["rating"]; got != "Very_good Bad" {
		t.Errorf("answer = %q", got)
	}
}

func TestExpand(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "forms/a.yaml", yamlDef)
	b := writeFile(t, dir, "forms/nested/b.yaml", yamlDef)
	writeFile(t, dir, "forms/nested/readme.txt", "x")

	got, err := Expand([]string{filepath.Join(dir, "forms/**/*.yaml"), a})
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	slices.Sort(got)
	if !slices.Equal(got, []string{a, b}) {
		t.Errorf("Expand = %v, want [%s %s]", got, a, b)
	}

	if _, err := Expand([]string{filepath.Join(dir, "*.json")}); err == nil || !strings.Contains(err.Error(), "no definition files") {
		t.Errorf("empty glob: %v", err)
	}
}
