package http

import (
	"net/http"

	"budgetplaner/internal/core"
	"budgetplaner/internal/services"
)

type runFailure struct {
	DefinitionID string `json:"definitionId"`
	Error        string `json:"error"`
}

// runResponse is services.ProcessResult in wire form.
type runResponse struct {
	Checked int                         `json:"checked"`
	Created []core.Transaction          `json:"created"`
	Skipped map[services.SkipReason]int `json:"skipped"`
	Failed  []runFailure                `json:"failed"`
}

func newRunResponse(res services.ProcessResult) runResponse {
	out := runResponse{
		Checked: res.Checked,
		Created: res.Created,
		Skipped: res.Skipped,
		Failed:  make([]runFailure, 0, len(res.Failed)),
	}
	if out.Created == nil {
		out.Created = []core.Transaction{}
	}
	if out.Skipped == nil {
		out.Skipped = map[services.SkipReason]int{}
	}
	for _, f := range res.Failed {
		out.Failed = append(out.Failed, runFailure{DefinitionID: f.DefinitionID, Error: f.Err.Error()})
	}
	return out
}

func (s *Server) handleListRecurring(w http.ResponseWriter, r *http.Request) {
	defs, err := s.deps.Recurring.List(r.Context(), owner(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, defs)
}

func (s *Server) handleCreateRecurring(w http.ResponseWriter, r *http.Request) {
	var draft core.RecurringDraft
	if err := decodeJSON(w, r, &draft); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	def, err := s.deps.Recurring.Create(r.Context(), owner(r), draft)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, def)
}

func (s *Server) handleUpdateRecurring(w http.ResponseWriter, r *http.Request) {
	var patch core.RecurringPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	def, err := s.deps.Recurring.Update(r.Context(), owner(r), r.PathValue("id"), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, def)
}

func (s *Server) handleDeleteRecurring(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Recurring.Delete(r.Context(), owner(r), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRunRecurring evaluates the caller's definitions now.
func (s *Server) handleRunRecurring(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Processor.ProcessOwner(r.Context(), owner(r), s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newRunResponse(res))
}
