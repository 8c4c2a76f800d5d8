package handler

import (
	"bytes"
	"errors"
	"mime"
	"net/http"

	"github.com/adiatmad/xlsformbuilderku/internal/export"
	appI18n "github.com/adiatmad/xlsformbuilderku/internal/i18n"
	"github.com/adiatmad/xlsformbuilderku/internal/metrics"
	"github.com/adiatmad/xlsformbuilderku/internal/model"
	"github.com/adiatmad/xlsformbuilderku/internal/simulate"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type previewStep struct {
	simulate.Step
	Status string `json:"status"`
}

type previewResponse struct {
	InstanceID string                              `json:"instance_id"`
	Answers    map[string]string                   `json:"answers"`
	Steps      []previewStep                       `json:"steps"`
	Warnings   []*model.MalformedExpressionWarning `json:"warnings,omitempty"`
}

func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Answers map[string]string `json:"answers"`
	}
	if err := h.decode(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := sessionFrom(r).Preview(body.Answers)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := previewResponse{InstanceID: res.InstanceID, Answers: res.Answers, Warnings: res.Warnings}
	for _, st := range res.Steps {
		status := appI18n.T(r.Context(), "Hidden")
		if st.Visible {
			status = appI18n.T(r.Context(), "Visible")
		}
		resp.Steps = append(resp.Steps, previewStep{Step: st, Status: status})
	}
	writeJSON(w, http.StatusOK, resp)
}

// buildExport assembles the session's bundle and applies the strict-export
// policy. It records the attempt under format.
func (h *Handler) buildExport(r *http.Request, format string) (*export.Bundle, error) {
	b, err := sessionFrom(r).Export()
	if err == nil && h.config.StrictExports && len(b.Warnings) > 0 {
		err = &model.ExportError{Reason: appI18n.Tp(r.Context(), "WarningsFound", len(b.Warnings))}
	}
	if h.metrics != nil {
		var kinds []string
		if b != nil {
			for _, w := range b.Warnings {
				kinds = append(kinds, string(w.Kind))
			}
		}
		h.metrics.RecordExport(format, exportOutcome(err), kinds)
	}
	return b, err
}

func exportOutcome(err error) string {
	var (
		ve *model.ValidationError
		ee *model.ExportError
	)
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.As(err, &ve), errors.As(err, &ee):
		return metrics.OutcomeInvalid
	}
	return metrics.OutcomeFailed
}

func (h *Handler) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	b, err := h.buildExport(r, "xlsx")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, b); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": b.FormID() + ".xlsx"}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) handleExportJSON(w http.ResponseWriter, r *http.Request) {
	b, err := h.buildExport(r, "json")
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}
