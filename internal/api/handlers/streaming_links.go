// streaming_links.go — обработчики /api/admin/streaming-links.
// Список и удаление — обобщённые; создание, обновление и выбор основной
// ссылки проверяют инварианты ссылок песни.
package handlers

import (
	"net/http"

	"github.com/Noctifera-Records/nexdrak-site-sub000/internal/api/middleware"
)

// CreateStreamingLink — POST /api/admin/streaming-links.
func (h *APIHandler) CreateStreamingLink(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}

	row, err := h.links.Create(r.Context(), middleware.IdentityFromContext(r.Context()), body)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mutationResponse{Message: "Ссылка добавлена", Data: row})
}

// UpdateStreamingLink — PUT /api/admin/streaming-links.
func (h *APIHandler) UpdateStreamingLink(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}

	row, err := h.links.Update(r.Context(), middleware.IdentityFromContext(r.Context()), body)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mutationResponse{Message: "Ссылка обновлена", Data: row})
}

// SetPrimaryStreamingLink — POST /api/admin/streaming-links/primary, тело {song_id, link_id}.
func (h *APIHandler) SetPrimaryStreamingLink(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}

	row, err := h.links.SetPrimary(r.Context(), middleware.IdentityFromContext(r.Context()), body)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mutationResponse{Message: "Основная ссылка изменена", Data: row})
}
