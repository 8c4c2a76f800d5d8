package skiplogic

import (
	"errors"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/adiatmad/xlsformbuilderku/internal/model"
)

// Eval evaluates n against answers. A reference whose name is missing from
// answers (not yet presented, skipped, or unknown) reads as the empty string.
func Eval(n Node, answers map[string]string) bool {
	switch n := n.(type) {
	case *Comparison:
		return compare(n.Op, resolve(n.Left, answers), resolve(n.Right, answers))
	case *Logical:
		if n.Op == "and" {
			return Eval(n.Left, answers) && Eval(n.Right, answers)
		}
		return Eval(n.Left, answers) || Eval(n.Right, answers)
	}
	return true
}

// IsVisible reports whether a question with the given relevant expression is
// shown. An empty expression is always visible. An expression that cannot be
// parsed is visible as well, and the parse failure is returned as a warning.
func IsVisible(expr string, answers map[string]string) (bool, *model.MalformedExpressionWarning) {
	if strings.TrimSpace(expr) == "" {
		return true, nil
	}
	n, err := Parse(expr)
	if err != nil {
		return true, asWarning(expr, err)
	}
	return Eval(n, answers), nil
}

func resolve(o Operand, answers map[string]string) string {
	if o.Kind == Reference {
		return answers[o.Text]
	}
	return o.Text
}

// compare applies op numerically when both sides parse as finite numbers and
// as a byte-wise string comparison otherwise.
func compare(op Op, left, right string) bool {
	var c int
	ln, lok := number(left)
	rn, rok := number(right)
	if lok && rok {
		switch {
		case ln < rn:
			c = -1
		case ln > rn:
			c = 1
		}
	} else {
		c = strings.Compare(left, right)
	}

	switch op {
	case OpEq:
		return c == 0
	case OpNe:
		return c != 0
	case OpGt:
		return c > 0
	case OpLt:
		return c < 0
	case OpGe:
		return c >= 0
	case OpLe:
		return c <= 0
	}
	return false
}

func number(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func asWarning(expr string, err error) *model.MalformedExpressionWarning {
	var w *model.MalformedExpressionWarning
	if errors.As(err, &w) {
		return w
	}
	return &model.MalformedExpressionWarning{Expression: expr, Reason: err.Error()}
}

// WarningHook receives every malformed-expression warning an Evaluator emits.
type WarningHook func(question string, w *model.MalformedExpressionWarning)

// maxCached bounds the number of questions whose parsed expression is kept.
const maxCached = 1024

// Evaluator caches the parsed expression of each question and reports
// warnings through an optional hook. It is safe for concurrent use.
type Evaluator struct {
	logger *slog.Logger
	hook   WarningHook

	mu    sync.Mutex
	cache map[string]compiled // by question name
}

type compiled struct {
	expr string
	node Node
	warn *model.MalformedExpressionWarning
}

// NewEvaluator returns an Evaluator. A nil logger uses slog.Default and a nil
// hook is ignored.
func NewEvaluator(logger *slog.Logger, hook WarningHook) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{logger: logger, hook: hook, cache: make(map[string]compiled)}
}

// IsVisible evaluates expr for the named question. See the package-level
// IsVisible for the visibility rules.
func (e *Evaluator) IsVisible(question, expr string, answers map[string]string) (bool, *model.MalformedExpressionWarning) {
	if strings.TrimSpace(expr) == "" {
		return true, nil
	}
	c := e.compile(question, expr)
	if c.warn != nil {
		e.logger.Warn("malformed relevant expression, showing question",
			"question", question, "expression", expr, "pos", c.warn.Pos, "reason", c.warn.Reason)
		if e.hook != nil {
			e.hook(question, c.warn)
		}
		return true, c.warn
	}
	return Eval(c.node, answers), nil
}

// compile returns the parsed expr, reusing the entry for question when its
// expression is unchanged. Editing a question replaces its entry.
func (e *Evaluator) compile(question, expr string) compiled {
	e.mu.Lock()
	defer e.mu.Unlock()
	if c, ok := e.cache[question]; ok && c.expr == expr {
		return c
	}
	c := compiled{expr: expr}
	n, err := Parse(expr)
	if err != nil {
		c.warn = asWarning(expr, err)
	} else {
		c.node = n
	}
	if _, ok := e.cache[question]; !ok && len(e.cache) >= maxCached {
		clear(e.cache)
	}
	e.cache[question] = c
	return c
}
