// users.go — обработчики /api/admin/users и /api/admin/me.
package handlers

import (
	"net/http"

	"github.com/Noctifera-Records/nexdrak-site-sub000/internal/api/middleware"
)

// currentAdmin — ответ GET /api/admin/me.
type currentAdmin struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// ListUsers — GET /api/admin/users. Профили с email из auth API.
func (h *APIHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListUsers(r.Context(), middleware.IdentityFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// CreateUser — POST /api/admin/users.
func (h *APIHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}

	user, err := h.users.CreateUser(r.Context(), middleware.IdentityFromContext(r.Context()), body)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mutationResponse{Message: "Пользователь создан", Data: user})
}

// UpdateUser — PUT /api/admin/users, тело {id, role, username?}.
func (h *APIHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}

	profile, err := h.users.UpdateUser(r.Context(), middleware.IdentityFromContext(r.Context()), body)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mutationResponse{Message: "Пользователь обновлён", Data: profile})
}

// DeleteUser — DELETE /api/admin/users, тело {id}.
// Удаляет профиль и учётную запись; успех только если выполнены оба шага.
func (h *APIHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}

	if err := h.users.DeleteUser(r.Context(), middleware.IdentityFromContext(r.Context()), body); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mutationResponse{Message: "Пользователь удалён"})
}

// GetCurrentAdmin — GET /api/admin/me.
func (h *APIHandler) GetCurrentAdmin(w http.ResponseWriter, r *http.Request) {
	me, err := h.users.Me(r.Context(), middleware.IdentityFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, currentAdmin{ID: me.ID, Email: me.Email, Role: me.Role})
}
