// Package export assembles the survey, choices and settings tables of an
// XLSForm workbook and writes them out.
package export

import (
	"encoding/json"
	"io"
)

// Sheet names and columns of the workbook.
const (
	SheetSurvey   = "survey"
	SheetChoices  = "choices"
	SheetSettings = "settings"
)

var (
	SurveyColumns  = []string{"type", "name", "label", "required", "constraint", "hint", "relevant"}
	ChoiceColumns  = []string{"list_name", "name", "label", "filter"}
	settingColumns = []string{"form_title", "form_id", "version"}
)

// Sheet is one table of the bundle. Every row has len(Columns) cells.
type Sheet struct {
	Name    string     `json:"name"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Records returns the rows keyed by column name.
func (s Sheet) Records() []map[string]string {
	out := make([]map[string]string, 0, len(s.Rows))
	for _, row := range s.Rows {
		rec := make(map[string]string, len(s.Columns))
		for i, col := range s.Columns {
			rec[col] = row[i]
		}
		out = append(out, rec)
	}
	return out
}

// WarningKind classifies a non-fatal export finding.
type WarningKind string

const (
	WarnOrphanedChoices     WarningKind = "orphaned_choices"
	WarnUnknownReference    WarningKind = "unknown_reference"
	WarnForwardReference    WarningKind = "forward_reference"
	WarnMalformedExpression WarningKind = "malformed_expression"
)

// Warning is a problem found during assembly that does not stop the export.
type Warning struct {
	Kind     WarningKind `json:"kind"`
	Question string      `json:"question,omitempty"`
	List     string      `json:"list,omitempty"`
	Message  string      `json:"message"`
}

// Bundle is the assembled export. It holds no references to the stores it was
// built from.
type Bundle struct {
	sheets   []Sheet
	Warnings []Warning
}

// Sheets returns the tables in workbook order.
func (b *Bundle) Sheets() []Sheet {
	return b.sheets
}

// Sheet returns the named table.
func (b *Bundle) Sheet(name string) (Sheet, bool) {
	for _, s := range b.sheets {
		if s.Name == name {
			return s, true
		}
	}
	return Sheet{}, false
}

// FormID returns the form_id cell of the settings sheet, or "" when the
// bundle has no settings row.
func (b *Bundle) FormID() string {
	s, ok := b.Sheet(SheetSettings)
	if !ok || len(s.Rows) == 0 {
		return ""
	}
	return s.Records()[0]["form_id"]
}

// Map returns the tables keyed by sheet name.
func (b *Bundle) Map() map[string]Sheet {
	m := make(map[string]Sheet, len(b.sheets))
	for _, s := range b.sheets {
		m[s.Name] = s
	}
	return m
}

type jsonBundle struct {
	Sheets   map[string][]map[string]string `json:"sheets"`
	Warnings []Warning                      `json:"warnings,omitempty"`
}

// MarshalJSON encodes the bundle as sheet name → list of row objects.
func (b *Bundle) MarshalJSON() ([]byte, error) {
	jb := jsonBundle{Sheets: make(map[string][]map[string]string, len(b.sheets)), Warnings: b.Warnings}
	for _, s := range b.sheets {
		jb.Sheets[s.Name] = s.Records()
	}
	return json.Marshal(jb)
}

// WriteJSON writes the bundle as indented JSON followed by a newline.
func WriteJSON(w io.Writer, b *Bundle) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(b)
}
