// Package metrics provides Prometheus metrics for the form builder.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/adiatmad/xlsformbuilderku/internal/model"
)

// Export outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeInvalid = "invalid"
	OutcomeFailed  = "failed"
)

// Metrics holds the builder's collectors. Each instance owns its registry, so
// tests and multiple servers in one process do not collide.
type Metrics struct {
	reg *prometheus.Registry

	QuestionMutations    *prometheus.CounterVec
	ChoiceMutations      *prometheus.CounterVec
	ExportsTotal         *prometheus.CounterVec
	ExportWarnings       *prometheus.CounterVec
	MalformedExpressions prometheus.Counter
	PreviewsTotal        prometheus.Counter
	SessionsActive       prometheus.Gauge
}

// New creates and registers all metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		QuestionMutations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "formbuilder_question_mutations_total",
				Help: "Question registry changes by operation",
			},
			[]string{"op"},
		),
		ChoiceMutations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "formbuilder_choice_mutations_total",
				Help: "Choice list changes by operation",
			},
			[]string{"op"},
		),
		ExportsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "formbuilder_exports_total",
				Help: "Export attempts by format and outcome",
			},
			[]string{"format", "outcome"},
		),
		ExportWarnings: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "formbuilder_export_warnings_total",
				Help: "Non-fatal export findings by kind",
			},
			[]string{"kind"},
		),
		MalformedExpressions: f.NewCounter(
			prometheus.CounterOpts{
				Name: "formbuilder_malformed_expressions_total",
				Help: "Relevant expressions that failed to parse during preview",
			},
		),
		PreviewsTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "formbuilder_previews_total",
				Help: "Completed preview passes",
			},
		),
		SessionsActive: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "formbuilder_sessions_active",
				Help: "Open authoring sessions",
			},
		),
	}
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// RecordExport counts one export attempt.
func (m *Metrics) RecordExport(format, outcome string, warnings []string) {
	m.ExportsTotal.WithLabelValues(format, outcome).Inc()
	for _, kind := range warnings {
		m.ExportWarnings.WithLabelValues(kind).Inc()
	}
}

// ObserveMalformed has the shape of skiplogic.WarningHook.
func (m *Metrics) ObserveMalformed(_ string, _ *model.MalformedExpressionWarning) {
	m.MalformedExpressions.Inc()
}
