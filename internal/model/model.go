package model

import (
	"strings"
	"unicode"
)

// QuestionType is the XLSForm type of a question.
type QuestionType string

const (
	TypeText           QuestionType = "text"
	TypeInteger        QuestionType = "integer"
	TypeDecimal        QuestionType = "decimal"
	TypeDate           QuestionType = "date"
	TypeTime           QuestionType = "time"
	TypeDateTime       QuestionType = "datetime"
	TypeSelectOne      QuestionType = "select_one"
	TypeSelectMultiple QuestionType = "select_multiple"
	TypeNote           QuestionType = "note"
	TypeImage          QuestionType = "image"
	TypeGeopoint       QuestionType = "geopoint"
)

// QuestionTypes lists every supported type in display order.
var QuestionTypes = []QuestionType{
	TypeText,
	TypeInteger,
	TypeDecimal,
	TypeDate,
	TypeTime,
	TypeDateTime,
	TypeSelectOne,
	TypeSelectMultiple,
	TypeNote,
	TypeImage,
	TypeGeopoint,
}

// Valid reports whether t is one of the supported question types.
func (t QuestionType) Valid() bool {
	for _, qt := range QuestionTypes {
		if t == qt {
			return true
		}
	}
	return false
}

// IsSelect reports whether questions of this type draw their options from a choice list.
func (t QuestionType) IsSelect() bool {
	return t == TypeSelectOne || t == TypeSelectMultiple
}

// Question is a single survey question definition.
type Question struct {
	Name       string       `json:"name" yaml:"name"`
	Label      string       `json:"label" yaml:"label"`
	Type       QuestionType `json:"type" yaml:"type"`
	Required   bool         `json:"required,omitempty" yaml:"required,omitempty"`
	Constraint string       `json:"constraint,omitempty" yaml:"constraint,omitempty"`
	Hint       string       `json:"hint,omitempty" yaml:"hint,omitempty"`
	Relevant   string       `json:"relevant,omitempty" yaml:"relevant,omitempty"`
}

// Choice is one option of a choice list. ListName refers to the owning
// select question's Name.
type Choice struct {
	ListName string `json:"list_name" yaml:"list_name"`
	Name     string `json:"name" yaml:"name"`
	Label    string `json:"label" yaml:"label"`
	Filter   string `json:"filter,omitempty" yaml:"filter,omitempty"`
}

// Settings holds the form-level values written to the settings sheet.
type Settings struct {
	FormTitle    string `json:"form_title" yaml:"form_title"`
	FormID       string `json:"form_id" yaml:"form_id"`
	Version      string `json:"version,omitempty" yaml:"version,omitempty"`
	InstanceName string `json:"instance_name,omitempty" yaml:"instance_name,omitempty"`
	PublicKey    string `json:"public_key,omitempty" yaml:"public_key,omitempty"`
}

// ValidateQuestion checks the record-local invariants of q. Uniqueness is the
// registry's concern.
func ValidateQuestion(q Question) error {
	if err := ValidateName(q.Name, "name", q.Name); err != nil {
		return err
	}
	if strings.TrimSpace(q.Label) == "" {
		return &ValidationError{Record: q.Name, Field: "label", Reason: "must not be empty"}
	}
	if !q.Type.Valid() {
		return &ValidationError{Record: q.Name, Field: "type", Value: string(q.Type), Reason: "is not a supported question type"}
	}
	return nil
}

// ValidateName checks that an identifier is non-empty and has no whitespace.
func ValidateName(name, field, record string) error {
	if name == "" {
		return &ValidationError{Record: record, Field: field, Reason: "must not be empty"}
	}
	if strings.IndexFunc(name, unicode.IsSpace) >= 0 {
		return &ValidationError{Record: record, Field: field, Value: name, Reason: "must not contain whitespace"}
	}
	return nil
}

// BuilderConfig holds runtime parameters set via CLI flags.
type BuilderConfig struct {
	Lang          string // default UI language for messages
	BasePath      string // URL prefix for sub-path deployments
	MaxBodyBytes  int64  // request body limit for the JSON API
	StrictExports bool   // treat export warnings as failures
}
