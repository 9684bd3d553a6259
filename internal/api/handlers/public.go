// public.go — публичные endpoints сайта (без аутентификации).
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"

	apierrors "github.com/Noctifera-Records/nexdrak-site-sub000/internal/api/errors"
	"github.com/Noctifera-Records/nexdrak-site-sub000/internal/repository"
)

// downloadResponse — ответ POST /api/downloads/{id}/download.
type downloadResponse struct {
	FileURL       string `json:"file_url"`
	DownloadCount any    `json:"download_count"`
}

// writeRows отдаёт выборку или ошибку сервиса.
func (h *APIHandler) writeRows(w http.ResponseWriter, r *http.Request, rows []repository.Row, err error) {
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// PublicSongs — GET /api/songs.
func (h *APIHandler) PublicSongs(w http.ResponseWriter, r *http.Request) {
	rows, err := h.public.Songs(r.Context())
	h.writeRows(w, r, rows, err)
}

// PublicSongLinks — GET /api/songs/{id}/links.
func (h *APIHandler) PublicSongLinks(w http.ResponseWriter, r *http.Request) {
	id, ok := bindID(w, r)
	if !ok {
		return
	}
	rows, err := h.public.SongLinks(r.Context(), id.String())
	h.writeRows(w, r, rows, err)
}

// PublicReleases — GET /api/releases.
func (h *APIHandler) PublicReleases(w http.ResponseWriter, r *http.Request) {
	rows, err := h.public.Releases(r.Context())
	h.writeRows(w, r, rows, err)
}

// PublicEvents — GET /api/events. Только опубликованные, по дате.
func (h *APIHandler) PublicEvents(w http.ResponseWriter, r *http.Request) {
	rows, err := h.public.Events(r.Context())
	h.writeRows(w, r, rows, err)
}

// PublicMerch — GET /api/merch. Только товары в наличии.
func (h *APIHandler) PublicMerch(w http.ResponseWriter, r *http.Request) {
	rows, err := h.public.Merch(r.Context())
	h.writeRows(w, r, rows, err)
}

// PublicDownloads — GET /api/downloads.
func (h *APIHandler) PublicDownloads(w http.ResponseWriter, r *http.Request) {
	rows, err := h.public.Downloads(r.Context())
	h.writeRows(w, r, rows, err)
}

// PublicSettings — GET /api/settings. Объект ключ → значение.
func (h *APIHandler) PublicSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.public.Settings(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// CountDownload — POST /api/downloads/{id}/download.
// Увеличивает счётчик скачиваний и возвращает ссылку на файл.
func (h *APIHandler) CountDownload(w http.ResponseWriter, r *http.Request) {
	id, ok := bindID(w, r)
	if !ok {
		return
	}

	row, err := h.public.CountDownload(r.Context(), id.String())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, downloadResponse{
		FileURL:       row.String("file_url"),
		DownloadCount: row["download_count"],
	})
}

// bindID разбирает UUID из path-параметра {id}.
func bindID(w http.ResponseWriter, r *http.Request) (openapi_types.UUID, bool) {
	var id openapi_types.UUID
	err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		apierrors.ValidationError(w, "Некорректный параметр id: ожидается UUID")
		return id, false
	}
	return id, true
}
