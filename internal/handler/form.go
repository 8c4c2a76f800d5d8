package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/adiatmad/xlsformbuilderku/internal/formfile"
	"github.com/adiatmad/xlsformbuilderku/internal/model"
	"github.com/adiatmad/xlsformbuilderku/internal/registry"
)

// handleCreateSession opens a session. A non-empty body is a form definition
// in JSON, or YAML when the Content-Type says so.
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	data, err := h.readBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var def *formfile.Definition
	if len(strings.TrimSpace(string(data))) > 0 {
		format := formfile.FormatJSON
		if strings.Contains(r.Header.Get("Content-Type"), "yaml") {
			format = formfile.FormatYAML
		}
		def, err = formfile.Parse(data, format)
		if err != nil {
			writeError(w, r, &badRequest{err})
			return
		}
	}

	s := h.sessions.Create()
	if def != nil {
		if err := def.Apply(s); err != nil {
			_ = h.sessions.Delete(s.ID)
			writeError(w, r, err)
			return
		}
		slog.Info("session loaded from definition", "session", s.ID, "questions", len(def.Questions))
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": s.ID})
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionFrom(r).Snapshot())
}

func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Delete(sessionFrom(r).ID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListQuestions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionFrom(r).Questions())
}

func (h *Handler) handleAddQuestion(w http.ResponseWriter, r *http.Request) {
	var q model.Question
	if err := h.decode(w, r, &q); err != nil {
		writeError(w, r, err)
		return
	}
	i, err := sessionFrom(r).AddQuestion(q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"index": i, "question": q})
}

func (h *Handler) handleGetQuestion(w http.ResponseWriter, r *http.Request) {
	i, err := indexParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	q, err := sessionFrom(r).Question(i)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *Handler) handleUpdateQuestion(w http.ResponseWriter, r *http.Request) {
	i, err := indexParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var q model.Question
	if err := h.decode(w, r, &q); err != nil {
		writeError(w, r, err)
		return
	}
	if err := sessionFrom(r).UpdateQuestion(i, q); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *Handler) handleRemoveQuestion(w http.ResponseWriter, r *http.Request) {
	i, err := indexParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := sessionFrom(r).RemoveQuestion(i); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMoveQuestion(w http.ResponseWriter, r *http.Request) {
	i, err := indexParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	dir, err := registry.ParseDirection(r.URL.Query().Get("dir"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	s := sessionFrom(r)
	if err := s.MoveQuestion(i, dir); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Questions())
}

func (h *Handler) handleReorder(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Order []int `json:"order"`
	}
	if err := h.decode(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	s := sessionFrom(r)
	if err := s.ReorderQuestions(body.Order); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Questions())
}

func (h *Handler) handleGetChoices(w http.ResponseWriter, r *http.Request) {
	cs := sessionFrom(r).Choices(chi.URLParam(r, "list"))
	if cs == nil {
		cs = []model.Choice{}
	}
	writeJSON(w, http.StatusOK, cs)
}

func (h *Handler) handleAddChoice(w http.ResponseWriter, r *http.Request) {
	var c model.Choice
	if err := h.decode(w, r, &c); err != nil {
		writeError(w, r, err)
		return
	}
	if err := sessionFrom(r).AddChoice(c); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// handleReplaceChoices rebuilds a list from either a choices array or a
// comma-separated choices_csv string.
func (h *Handler) handleReplaceChoices(w http.ResponseWriter, r *http.Request) {
	list := chi.URLParam(r, "list")
	var body struct {
		Choices    []model.Choice `json:"choices"`
		ChoicesCSV string         `json:"choices_csv"`
	}
	if err := h.decode(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	cs := body.Choices
	if body.ChoicesCSV != "" {
		if len(cs) > 0 {
			writeError(w, r, &model.ValidationError{Record: list, Field: "choices", Reason: "and choices_csv are mutually exclusive"})
			return
		}
		cs = formfile.SplitChoices(list, body.ChoicesCSV)
	}
	s := sessionFrom(r)
	if err := s.ReplaceChoices(list, cs); err != nil {
		writeError(w, r, err)
		return
	}
	out := s.Choices(list)
	if out == nil {
		out = []model.Choice{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleSetSettings(w http.ResponseWriter, r *http.Request) {
	var settings model.Settings
	if err := h.decode(w, r, &settings); err != nil {
		writeError(w, r, err)
		return
	}
	sessionFrom(r).SetSettings(settings)
	writeJSON(w, http.StatusOK, settings)
}
