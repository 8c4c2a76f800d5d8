package export

import (
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/adiatmad/xlsformbuilderku/internal/model"
	"github.com/adiatmad/xlsformbuilderku/internal/skiplogic"
)

// ChoiceSource is the read side of a choice list store.
type ChoiceSource interface {
	ChoicesFor(list string) iter.Seq[model.Choice]
	Lists() []string
}

// ListName returns the choice list identifier used for a select question.
// The question name doubles as the list name everywhere: in the choice store,
// in the survey type cell and in the choices sheet.
func ListName(q model.Question) string {
	return q.Name
}

// Assembler builds bundles. The zero value is not usable; use NewAssembler.
type Assembler struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewAssembler returns an Assembler. A nil logger uses slog.Default.
func NewAssembler(logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{logger: logger, now: time.Now}
}

// WithClock returns a copy of a that stamps default versions using now.
func (a *Assembler) WithClock(now func() time.Time) *Assembler {
	cp := *a
	cp.now = now
	return &cp
}

// Build assembles questions, their choice lists and settings into a bundle.
func Build(questions []model.Question, choices ChoiceSource, settings model.Settings) (*Bundle, error) {
	return NewAssembler(nil).Build(questions, choices, settings)
}

// Build assembles questions, their choice lists and settings into a bundle.
//
// It fails with a *model.ValidationError for unusable settings or question
// records and with a *model.ExportError when the form is empty or a select
// question has no choices. Choice lists that belong to no select question are
// left out and reported in Bundle.Warnings, as are relevant expressions that
// cannot be parsed or refer to unknown or later questions.
func (a *Assembler) Build(questions []model.Question, choices ChoiceSource, settings model.Settings) (*Bundle, error) {
	settings, err := a.normalizeSettings(settings)
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, &model.ExportError{Reason: "form has no questions"}
	}

	b := &Bundle{}
	position := make(map[string]int, len(questions))
	for i, q := range questions {
		if err := model.ValidateQuestion(q); err != nil {
			return nil, err
		}
		if _, dup := position[q.Name]; dup {
			return nil, &model.ValidationError{Field: "name", Value: q.Name, Reason: "already exists"}
		}
		position[q.Name] = i
	}

	survey := Sheet{Name: SheetSurvey, Columns: SurveyColumns}
	choiceSheet := Sheet{Name: SheetChoices, Columns: ChoiceColumns}
	selectLists := make(map[string]bool)

	for i, q := range questions {
		typeCell := string(q.Type)
		if q.Type.IsSelect() {
			list := ListName(q)
			selectLists[list] = true
			n := 0
			for c := range choices.ChoicesFor(list) {
				choiceSheet.Rows = append(choiceSheet.Rows, []string{list, c.Name, c.Label, c.Filter})
				n++
			}
			if n == 0 {
				return nil, &model.ExportError{Question: q.Name, Reason: fmt.Sprintf("is %s but has no choices", q.Type)}
			}
			typeCell += " " + list
		}

		required := ""
		if q.Required {
			required = "yes"
		}
		survey.Rows = append(survey.Rows, []string{typeCell, q.Name, q.Label, required, q.Constraint, q.Hint, q.Relevant})
		b.Warnings = append(b.Warnings, referenceWarnings(i, q, position)...)
	}

	for _, list := range choices.Lists() {
		if selectLists[list] {
			continue
		}
		b.Warnings = append(b.Warnings, Warning{
			Kind:    WarnOrphanedChoices,
			List:    list,
			Message: fmt.Sprintf("choice list '%s' has no select question and was left out", list),
		})
	}

	b.sheets = append(b.sheets, survey)
	if len(selectLists) > 0 {
		b.sheets = append(b.sheets, choiceSheet)
	}
	b.sheets = append(b.sheets, settingsSheet(settings))

	for _, w := range b.Warnings {
		a.logger.Warn("export warning", "kind", w.Kind, "question", w.Question, "list", w.List, "message", w.Message)
	}
	a.logger.Debug("assembled export",
		"form_id", settings.FormID,
		"questions", len(survey.Rows),
		"choices", len(choiceSheet.Rows),
		"warnings", len(b.Warnings),
	)
	return b, nil
}

func (a *Assembler) normalizeSettings(s model.Settings) (model.Settings, error) {
	s.FormTitle = strings.TrimSpace(s.FormTitle)
	if s.FormTitle == "" {
		return s, &model.ValidationError{Field: "form_title", Reason: "must not be empty"}
	}
	if err := model.ValidateName(s.FormID, "form_id", s.FormTitle); err != nil {
		return s, err
	}
	if strings.TrimSpace(s.Version) == "" {
		s.Version = a.now().Format("2006010215")
	}
	return s, nil
}

func settingsSheet(s model.Settings) Sheet {
	sheet := Sheet{Name: SheetSettings, Columns: append([]string(nil), settingColumns...)}
	row := []string{s.FormTitle, s.FormID, s.Version}
	if s.InstanceName != "" {
		sheet.Columns = append(sheet.Columns, "instance_name")
		row = append(row, s.InstanceName)
	}
	if s.PublicKey != "" {
		sheet.Columns = append(sheet.Columns, "public_key")
		row = append(row, s.PublicKey)
	}
	sheet.Rows = [][]string{row}
	return sheet
}

func referenceWarnings(i int, q model.Question, position map[string]int) []Warning {
	if strings.TrimSpace(q.Relevant) == "" {
		return nil
	}
	refs, err := skiplogic.References(q.Relevant)
	if err != nil {
		return []Warning{{Kind: WarnMalformedExpression, Question: q.Name, Message: err.Error()}}
	}
	var out []Warning
	for _, ref := range refs {
		p, ok := position[ref]
		switch {
		case !ok:
			out = append(out, Warning{
				Kind:     WarnUnknownReference,
				Question: q.Name,
				Message:  fmt.Sprintf("relevant refers to unknown question '%s'", ref),
			})
		case p >= i:
			out = append(out, Warning{
				Kind:     WarnForwardReference,
				Question: q.Name,
				Message:  fmt.Sprintf("relevant refers to '%s', which is not an earlier question", ref),
			})
		}
	}
	return out
}
