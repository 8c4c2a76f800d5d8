package model

import "fmt"

// ValidationError reports a bad identifier, an empty required field or an
// invalid reorder permutation.
type ValidationError struct {
	Record string // name of the offending record, if known
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	switch {
	case e.Value != "" && e.Field != "":
		return fmt.Sprintf("%s '%s' %s", e.Field, e.Value, e.Reason)
	case e.Record != "" && e.Field != "":
		return fmt.Sprintf("%s of '%s' %s", e.Field, e.Record, e.Reason)
	case e.Field != "":
		return fmt.Sprintf("%s %s", e.Field, e.Reason)
	default:
		return e.Reason
	}
}

// IndexError reports a reference to a record position that does not exist.
type IndexError struct {
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("index %d out of range [0, %d)", e.Index, e.Len)
}

// ExportError reports a structural precondition of the export that does not hold.
type ExportError struct {
	Question string
	Reason   string
}

func (e *ExportError) Error() string {
	if e.Question == "" {
		return "export: " + e.Reason
	}
	return fmt.Sprintf("export: question '%s' %s", e.Question, e.Reason)
}

// MalformedExpressionWarning describes a skip-logic expression that could not
// be parsed. It is recovered locally: the question is shown.
type MalformedExpressionWarning struct {
	Expression string
	Pos        int // byte offset of the failure in Expression
	Reason     string
}

func (w *MalformedExpressionWarning) Error() string {
	return fmt.Sprintf("malformed expression %q at offset %d: %s", w.Expression, w.Pos, w.Reason)
}
