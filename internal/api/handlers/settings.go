// settings.go — обработчики /api/admin/settings и /api/admin/dashboard.
package handlers

import (
	"net/http"

	"github.com/Noctifera-Records/nexdrak-site-sub000/internal/api/middleware"
)

// ListSettings — GET /api/admin/settings.
func (h *APIHandler) ListSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settings.List(r.Context(), middleware.IdentityFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// UpsertSettings — PUT /api/admin/settings, тело {key, value} или {settings: {...}}.
func (h *APIHandler) UpsertSettings(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}

	saved, err := h.settings.Upsert(r.Context(), middleware.IdentityFromContext(r.Context()), body)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mutationResponse{Message: "Настройки сохранены", Data: saved})
}

// DeleteSetting — DELETE /api/admin/settings, тело {key}.
func (h *APIHandler) DeleteSetting(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}

	if err := h.settings.Delete(r.Context(), middleware.IdentityFromContext(r.Context()), body); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mutationResponse{Message: "Настройка удалена"})
}

// GetDashboard — GET /api/admin/dashboard.
func (h *APIHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.dashboard.Stats(r.Context(), middleware.IdentityFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
