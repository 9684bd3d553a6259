// Пакет server — HTTP-сервер сайта с graceful shutdown.
// Без TLS: TLS termination выполняет reverse proxy перед сервисом.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/Noctifera-Records/nexdrak-site-sub000/internal/api/handlers"
	"github.com/Noctifera-Records/nexdrak-site-sub000/internal/api/middleware"
	"github.com/Noctifera-Records/nexdrak-site-sub000/internal/config"
	"github.com/Noctifera-Records/nexdrak-site-sub000/internal/resource"
)

// Server — HTTP-сервер сайта.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер поверх готового роутера.
func New(cfg *config.Config, logger *slog.Logger, router http.Handler) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// NewRouter регистрирует маршруты и middleware.
// jwtAuth применяется только к /api/admin (nil — без проверки токена, для тестов).
func NewRouter(h *handlers.APIHandler, openAPI http.HandlerFunc, jwtAuth *middleware.JWTAuth, logger *slog.Logger) chi.Router {
	router := chi.NewRouter()

	// Глобальные middleware (применяются ко ВСЕМ маршрутам)
	router.Use(chimw.RequestID)
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))
	router.Use(chimw.Recoverer)

	// Health и metrics — без аутентификации.
	router.Get("/health/live", h.HealthLive)
	router.Get("/health/ready", h.HealthReady)
	router.Get("/metrics", h.GetMetrics)

	router.Route("/api", func(r chi.Router) {
		if openAPI != nil {
			r.Get("/openapi.json", openAPI)
		}

		// Публичные данные сайта
		r.Get("/songs", h.PublicSongs)
		r.Get("/songs/{id}/links", h.PublicSongLinks)
		r.Get("/releases", h.PublicReleases)
		r.Get("/events", h.PublicEvents)
		r.Get("/merch", h.PublicMerch)
		r.Get("/downloads", h.PublicDownloads)
		r.Post("/downloads/{id}/download", h.CountDownload)
		r.Get("/settings", h.PublicSettings)

		// Админка: Authorization Gate до разбора запроса и повторно в каждом сервисе.
		r.Route("/admin", func(r chi.Router) {
			if jwtAuth != nil {
				r.Use(jwtAuth.Middleware())
			}
			r.Use(h.RequireAdmin)

			for _, def := range resource.Simple() {
				r.Route("/"+def.Name, func(r chi.Router) {
					r.Get("/", h.ListResource(def))
					r.Post("/", h.CreateResource(def))
					r.Put("/", h.UpdateResource(def))
					r.Delete("/", h.DeleteResource(def))
					if len(def.Toggles) > 0 {
						r.Patch("/toggle", h.ToggleResource(def))
					}
				})
			}

			r.Route("/"+resource.StreamingLinks.Name, func(r chi.Router) {
				r.Get("/", h.ListResource(resource.StreamingLinks))
				r.Post("/", h.CreateStreamingLink)
				r.Put("/", h.UpdateStreamingLink)
				r.Delete("/", h.DeleteResource(resource.StreamingLinks))
				r.Post("/primary", h.SetPrimaryStreamingLink)
			})

			r.Route("/users", func(r chi.Router) {
				r.Get("/", h.ListUsers)
				r.Post("/", h.CreateUser)
				r.Put("/", h.UpdateUser)
				r.Delete("/", h.DeleteUser)
			})

			r.Route("/settings", func(r chi.Router) {
				r.Get("/", h.ListSettings)
				r.Put("/", h.UpsertSettings)
				r.Post("/", h.UpsertSettings)
				r.Delete("/", h.DeleteSetting)
			})

			r.Get("/dashboard", h.GetDashboard)
			r.Get("/me", h.GetCurrentAdmin)
		})
	})

	return router
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
