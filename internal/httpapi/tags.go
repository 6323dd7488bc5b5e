package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/belkahq/belka/internal/store"
)

type tagJSON struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Server) ListTags(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "no user in context", nil)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	tags, err := s.repo.ListTags(r.Context(), user.ID, r.URL.Query().Get("q"), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to list tags", map[string]any{"error": err.Error()})
		return
	}
	resp := make([]tagJSON, 0, len(tags))
	for _, t := range tags {
		resp = append(resp, tagJSON{ID: t.ID, Name: t.Name, CreatedAt: t.CreatedAt})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) TagStats(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "no user in context", nil)
		return
	}
	usage, err := s.repo.TagUsage(r.Context(), user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to compute tag stats", map[string]any{"error": err.Error()})
		return
	}
	if usage == nil {
		usage = []store.TagUsage{}
	}
	writeJSON(w, http.StatusOK, usage)
}

func (s *Server) CleanupTags(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "no user in context", nil)
		return
	}
	removed, err := s.repo.CleanupUnusedTags(r.Context(), user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to clean up tags", map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (s *Server) DeleteTag(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "no user in context", nil)
		return
	}
	if err := s.repo.DeleteTag(r.Context(), user.ID, chi.URLParam(r, "name")); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, store.ErrNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, status, "not_found", "tag not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
