// resources.go — обобщённые обработчики /api/admin/<entity>:
// GET (список), POST (создание), PUT (обновление), DELETE, PATCH /toggle.
package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/oapi-codegen/runtime"
	"github.com/samber/lo"

	apierrors "github.com/Noctifera-Records/nexdrak-site-sub000/internal/api/errors"
	"github.com/Noctifera-Records/nexdrak-site-sub000/internal/api/middleware"
	"github.com/Noctifera-Records/nexdrak-site-sub000/internal/resource"
)

// ListResource — GET /api/admin/<entity>. Query-параметры из def.Filters
// становятся фильтрами равенства; флаги is_* разбираются как bool.
// limit ограничивает количество строк.
func (h *APIHandler) ListResource(def *resource.Definition) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eq, err := bindFilters(r, def)
		if err != nil {
			apierrors.ValidationError(w, err.Error())
			return
		}
		var limit *int
		if err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &limit); err != nil {
			apierrors.ValidationError(w, "некорректный параметр limit: "+err.Error())
			return
		}

		rows, err := h.resources.List(r.Context(), middleware.IdentityFromContext(r.Context()), def, eq, lo.FromPtr(limit))
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rows)
	}
}

// CreateResource — POST /api/admin/<entity>.
func (h *APIHandler) CreateResource(def *resource.Definition) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, ok := readBody(w, r)
		if !ok {
			return
		}

		row, err := h.resources.Create(r.Context(), middleware.IdentityFromContext(r.Context()), def, body)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, mutationResponse{Message: "Запись создана", Data: row})
	}
}

// UpdateResource — PUT /api/admin/<entity>, тело {id, ...}.
func (h *APIHandler) UpdateResource(def *resource.Definition) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, ok := readBody(w, r)
		if !ok {
			return
		}

		row, err := h.resources.Update(r.Context(), middleware.IdentityFromContext(r.Context()), def, body)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, mutationResponse{Message: "Запись обновлена", Data: row})
	}
}

// DeleteResource — DELETE /api/admin/<entity>, тело {id}.
func (h *APIHandler) DeleteResource(def *resource.Definition) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, ok := readBody(w, r)
		if !ok {
			return
		}

		if err := h.resources.Delete(r.Context(), middleware.IdentityFromContext(r.Context()), def, body); err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, mutationResponse{Message: "Запись удалена"})
	}
}

// ToggleResource — PATCH /api/admin/<entity>/toggle, тело {id, field, value}.
func (h *APIHandler) ToggleResource(def *resource.Definition) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, ok := readBody(w, r)
		if !ok {
			return
		}

		row, err := h.resources.Toggle(r.Context(), middleware.IdentityFromContext(r.Context()), def, body)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, mutationResponse{Message: "Запись обновлена", Data: row})
	}
}

// bindFilters разбирает query-параметры списка по правилам OpenAPI (style=form).
func bindFilters(r *http.Request, def *resource.Definition) (map[string]any, error) {
	query := r.URL.Query()
	eq := make(map[string]any)

	for _, col := range def.Filters {
		if strings.HasPrefix(col, "is_") {
			var v *bool
			if err := runtime.BindQueryParameter("form", true, false, col, query, &v); err != nil {
				return nil, fmt.Errorf("некорректный параметр %s: %w", col, err)
			}
			if v != nil {
				eq[col] = *v
			}
			continue
		}

		var v *string
		if err := runtime.BindQueryParameter("form", true, false, col, query, &v); err != nil {
			return nil, fmt.Errorf("некорректный параметр %s: %w", col, err)
		}
		if v != nil && *v != "" {
			eq[col] = *v
		}
	}
	return eq, nil
}
