// Пакет handlers — HTTP-обработчики API сайта.
// handler.go — основной обработчик: связывает маршруты с сервисным слоем
// и переводит ошибки сервисов в стандартный формат ответа.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	apierrors "github.com/Noctifera-Records/nexdrak-site-sub000/internal/api/errors"
	"github.com/Noctifera-Records/nexdrak-site-sub000/internal/api/middleware"
	"github.com/Noctifera-Records/nexdrak-site-sub000/internal/service"
)

// maxBodySize — ограничение тела запроса админских форм.
const maxBodySize = 1 << 20

// APIHandler — основной обработчик API сайта.
type APIHandler struct {
	health    *HealthHandler
	resources *service.ResourceService
	links     *service.StreamingLinkService
	users     *service.AdminUserService
	settings  *service.SettingsService
	dashboard *service.DashboardService
	public    *service.PublicService
	gate      *service.Gate
	logger    *slog.Logger
}

// Services — сервисы, которыми пользуются обработчики.
type Services struct {
	Resources *service.ResourceService
	Links     *service.StreamingLinkService
	Users     *service.AdminUserService
	Settings  *service.SettingsService
	Dashboard *service.DashboardService
	Public    *service.PublicService
	Gate      *service.Gate
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(health *HealthHandler, svc Services, logger *slog.Logger) *APIHandler {
	return &APIHandler{
		health:    health,
		resources: svc.Resources,
		links:     svc.Links,
		users:     svc.Users,
		settings:  svc.Settings,
		dashboard: svc.Dashboard,
		public:    svc.Public,
		gate:      svc.Gate,
		logger:    logger.With(slog.String("component", "api_handler")),
	}
}

// HealthLive — проверка liveness (делегируется в HealthHandler).
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady — проверка readiness (делегируется в HealthHandler).
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics — Prometheus метрики (делегируется в HealthHandler).
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// RequireAdmin — middleware /api/admin: роль проверяется до чтения тела
// и разбора параметров, поэтому анонимный запрос получает 401, а не 400.
// Сервисы повторяют проверку сами.
func (h *APIHandler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := h.gate.Authorize(r.Context(), middleware.IdentityFromContext(r.Context()))
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(middleware.WithIdentity(r.Context(), identity)))
	})
}

// --- Вспомогательные функции ---

// mutationResponse — ответ на создание и обновление.
type mutationResponse struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// readBody читает тело запроса с ограничением размера.
// Пустое тело допустимо: его отклонит валидация формы.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		apierrors.ValidationError(w, "Не удалось прочитать тело запроса: "+err.Error())
		return nil, false
	}
	return body, true
}

// writeServiceError переводит ошибку сервисного слоя в HTTP-ответ.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validationErr *service.ValidationError
		partialErr    *service.PartialFailure
		storeErr      *service.StoreError
	)

	switch {
	case errors.As(err, &validationErr):
		apierrors.ValidationError(w, validationErr.Message)
	case errors.Is(err, service.ErrUnauthorized):
		apierrors.Unauthorized(w, err.Error())
	case errors.Is(err, service.ErrForbidden):
		apierrors.Forbidden(w, err.Error())
	case errors.As(err, &partialErr):
		h.logger.Error("Составная операция выполнена частично",
			slog.String("path", r.URL.Path),
			slog.String("completed", partialErr.Completed),
			slog.String("failed", partialErr.Failed),
			slog.String("error", partialErr.Err.Error()),
		)
		apierrors.PartialFailure(w, partialErr.Error())
	case errors.As(err, &storeErr):
		h.logger.Error("Ошибка хранилища",
			slog.String("path", r.URL.Path),
			slog.String("op", storeErr.Op),
			slog.String("error", err.Error()),
		)
		apierrors.StoreError(w, storeErr.Error())
	default:
		h.logger.Error("Внутренняя ошибка",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка сервера")
	}
}
