package http

import (
	"net/http"

	"budgetplaner/internal/core"
)

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.deps.Categories.List(r.Context(), owner(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var c core.Category
	if err := decodeJSON(w, r, &c); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	created, err := s.deps.Categories.Create(r.Context(), owner(r), c)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	var patch core.CategoryPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	c, err := s.deps.Categories.Update(r.Context(), owner(r), r.PathValue("key"), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// handleDeleteCategory refuses categories still in use unless force=true.
func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	force := queryBool(r.URL.Query(), "force")
	if err := s.deps.Categories.Delete(r.Context(), owner(r), r.PathValue("key"), force); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.deps.Settings.Get(r.Context(), owner(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var patch core.SettingsPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	settings, err := s.deps.Settings.Update(r.Context(), owner(r), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}
