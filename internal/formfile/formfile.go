// Package formfile reads form definitions from YAML or JSON files.
//
// A definition holds the settings block and the ordered questions. Select
// questions carry their options inline, either as a list of choices or as a
// comma-separated string:
//
//	settings:
//	  form_title: Household survey
//	  form_id: household
//	questions:
//	  - name: color
//	    label: Favourite color
//	    type: select_one
//	    choices_csv: red, green, blue
package formfile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/adiatmad/xlsformbuilderku/internal/model"
)

// Format is the encoding of a definition file.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatForPath picks the format from the file extension.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unsupported definition file extension %q", filepath.Ext(path))
}

// Definition is a whole form as written in a file.
type Definition struct {
	Path      string         `json:"-" yaml:"-"`
	Settings  model.Settings `json:"settings" yaml:"settings"`
	Questions []QuestionDef  `json:"questions" yaml:"questions"`
}

// QuestionDef is a question plus its inline choice list.
type QuestionDef struct {
	model.Question `yaml:",inline"`
	Choices        []model.Choice `json:"choices,omitempty" yaml:"choices,omitempty"`
	ChoicesCSV     string         `json:"choices_csv,omitempty" yaml:"choices_csv,omitempty"`
}

// Target receives the contents of a definition. *session.Session satisfies it.
type Target interface {
	AddQuestion(q model.Question) (int, error)
	ReplaceChoices(list string, cs []model.Choice) error
	SetSettings(s model.Settings)
}

// Load reads and decodes the definition at path.
func Load(path string) (*Definition, error) {
	format, err := FormatForPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	def, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	def.Path = path
	return def, nil
}

// Parse decodes a definition. Unknown fields are rejected.
func Parse(data []byte, format Format) (*Definition, error) {
	var def Definition
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&def); err != nil {
			return nil, err
		}
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&def); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
	return &def, nil
}

// SplitChoices turns "a, b, c" into choices of list. Each trimmed item is the
// label; its code is the item with runs of whitespace replaced by "_". Empty
// items are dropped.
func SplitChoices(list, csv string) []model.Choice {
	var out []model.Choice
	for _, item := range strings.Split(csv, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		code := strings.Join(strings.Fields(item), "_")
		out = append(out, model.Choice{ListName: list, Name: code, Label: item})
	}
	return out
}

// ChoicesOf returns the inline choices of q, with list names filled in.
func (q QuestionDef) ChoicesOf() ([]model.Choice, error) {
	if len(q.Choices) > 0 && q.ChoicesCSV != "" {
		return nil, &model.ValidationError{Record: q.Name, Field: "choices", Reason: "and choices_csv are mutually exclusive"}
	}
	cs := q.Choices
	if q.ChoicesCSV != "" {
		cs = SplitChoices(q.Name, q.ChoicesCSV)
	}
	if len(cs) > 0 && !q.Type.IsSelect() {
		return nil, &model.ValidationError{Record: q.Name, Field: "choices", Reason: "given for a question that is not a select"}
	}
	out := make([]model.Choice, len(cs))
	for i, c := range cs {
		if c.ListName == "" {
			c.ListName = q.Name
		}
		out[i] = c
	}
	return out, nil
}

// Apply adds the settings, questions and choice lists of d to t in file order.
// It stops at the first rejected record.
func (d *Definition) Apply(t Target) error {
	t.SetSettings(d.Settings)
	for i, q := range d.Questions {
		cs, err := q.ChoicesOf()
		if err != nil {
			return fmt.Errorf("question %d: %w", i+1, err)
		}
		if _, err := t.AddQuestion(q.Question); err != nil {
			return fmt.Errorf("question %d: %w", i+1, err)
		}
		if len(cs) > 0 {
			if err := t.ReplaceChoices(q.Name, cs); err != nil {
				return fmt.Errorf("choices of question %d: %w", i+1, err)
			}
		}
	}
	return nil
}

// Expand resolves file arguments. Patterns with glob characters, including
// "**", are matched against the file system; other arguments are kept as
// given. Results are de-duplicated in argument order.
func Expand(args []string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for _, arg := range args {
		if !strings.ContainsAny(arg, "*?[{") {
			add(arg)
			continue
		}
		matches, err := doublestar.FilepathGlob(arg, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("glob %s: %w", arg, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no definition files match %s", arg)
		}
		for _, m := range matches {
			add(m)
		}
	}
	return out, nil
}
