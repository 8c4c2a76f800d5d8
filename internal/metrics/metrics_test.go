package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordExport(t *testing.T) {
	m := New()
	m.RecordExport("xlsx", OutcomeOK, []string{"orphaned_choices", "orphaned_choices"})
	m.RecordExport("json", OutcomeInvalid, nil)

	if got := testutil.ToFloat64(m.ExportsTotal.WithLabelValues("xlsx", OutcomeOK)); got != 1 {
		t.Errorf("xlsx ok exports = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ExportWarnings.WithLabelValues("orphaned_choices")); got != 2 {
		t.Errorf("orphaned warnings = %v, want 2", got)
	}
}

func TestInstancesAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.ObserveMalformed("q1", nil)

	if got := testutil.ToFloat64(a.MalformedExpressions); got != 1 {
		t.Errorf("a malformed = %v, want 1", got)
	}
	if got := testutil.ToFloat64(b.MalformedExpressions); got != 0 {
		t.Errorf("b malformed = %v, want 0", got)
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.PreviewsTotal.Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "formbuilder_previews_total 1") {
		t.Errorf("metrics output missing previews counter:\n%s", body)
	}
}
