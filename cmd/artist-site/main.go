// Точка входа API сайта артиста.
// Загружает конфигурацию, подключается к PostgreSQL хранилища BaaS,
// при необходимости применяет миграции, создаёт клиент auth API,
// сервисный слой и HTTP-обработчики, запускает topologymetrics
// и HTTP-сервер с JWT middleware и graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/Noctifera-Records/nexdrak-site-sub000/internal/api/handlers"
	"github.com/Noctifera-Records/nexdrak-site-sub000/internal/api/middleware"
	"github.com/Noctifera-Records/nexdrak-site-sub000/internal/api/openapi"
	"github.com/Noctifera-Records/nexdrak-site-sub000/internal/authapi"
	"github.com/Noctifera-Records/nexdrak-site-sub000/internal/config"
	"github.com/Noctifera-Records/nexdrak-site-sub000/internal/database"
	"github.com/Noctifera-Records/nexdrak-site-sub000/internal/repository"
	"github.com/Noctifera-Records/nexdrak-site-sub000/internal/server"
	"github.com/Noctifera-Records/nexdrak-site-sub000/internal/service"
)

func main() {
	// 1. .env и конфигурация из переменных окружения
	envFile := os.Getenv("SITE_ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := config.LoadDotEnv(envFile); err != nil {
		slog.Error("Ошибка загрузки .env", slog.String("error", err.Error()))
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("API сайта запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	// 3. Миграции (только если схема управляется этим сервисом)
	if cfg.DBMigrate {
		logger.Info("Применение миграций БД...")
		if err := database.Migrate(cfg, logger); err != nil {
			logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// Адаптер pgxpool → *sql.DB для topologymetrics.
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. HTTP-клиент к BaaS (auth API и JWKS)
	httpClient, err := authapi.NewHTTPClient(cfg.CACertPath)
	if err != nil {
		logger.Error("Ошибка загрузки CA-сертификата",
			slog.String("path", cfg.CACertPath),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	authClient := authapi.New(cfg.BaaSURL, cfg.BaaSServiceRoleKey, httpClient, logger).
		WithAnonKey(cfg.BaaSAnonKey)

	// 6. Repositories
	store := repository.NewTableStore(pool)
	profiles := repository.NewProfileRepository(pool)
	settings := repository.NewSettingsRepository(pool)

	// 7. Services
	retry := service.NewRetrier(cfg.RetryAttempts, cfg.RetryBaseDelay, logger)
	cache := service.NewCacheService(cfg.CacheSize, cfg.CacheTTL)
	gate := service.NewGate(profiles, retry, logger)

	services := handlers.Services{
		Resources: service.NewResourceService(store, gate, retry, cache, logger),
		Links:     service.NewStreamingLinkService(store, gate, retry, cache, logger),
		Users:     service.NewAdminUserService(profiles, authClient, gate, retry, logger),
		Settings:  service.NewSettingsService(settings, gate, retry, cache, logger),
		Dashboard: service.NewDashboardService(store, gate, retry),
		Public:    service.NewPublicService(store, retry, cache, logger),
		Gate:      gate,
	}

	// 8. topologymetrics — мониторинг зависимостей (PostgreSQL + auth API)
	dephealthSvc, dephealthErr := service.NewDephealthService(service.DephealthConfig{
		ServiceID:     "artist-site",
		Group:         cfg.DephealthGroup,
		DB:            pgDB,
		PGConnURL:     cfg.DatabaseURL(),
		BaaSURL:       cfg.BaaSURL,
		CheckInterval: cfg.DephealthCheckInterval,
	}, logger)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
		dephealthSvc = nil
	} else if startErr := dephealthSvc.Start(ctx); startErr != nil {
		logger.Warn("Ошибка запуска topologymetrics", slog.String("error", startErr.Error()))
	} else {
		logger.Info("topologymetrics запущен",
			slog.String("group", cfg.DephealthGroup),
			slog.String("check_interval", cfg.DephealthCheckInterval.String()),
		)
	}

	// 9. Health и API handler
	checks := []handlers.Check{
		{Name: "postgresql", Checker: database.NewReadinessChecker(pool)},
		{Name: "auth_api", Checker: authClient},
		{Name: "public_cache", Checker: cache, Optional: true},
	}
	if dephealthSvc != nil {
		checks = append(checks, handlers.Check{Name: "dependencies", Checker: dephealthSvc, Optional: true})
	}
	healthHandler := handlers.NewHealthHandler(checks...)
	apiHandler := handlers.NewAPIHandler(healthHandler, services, logger)

	doc, err := openapi.Load(ctx)
	if err != nil {
		logger.Error("Ошибка загрузки OpenAPI документа", slog.String("error", err.Error()))
		os.Exit(1)
	}
	openAPIHandler, err := handlers.NewOpenAPIHandler(doc)
	if err != nil {
		logger.Error("Ошибка сериализации OpenAPI документа", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 10. JWT middleware
	jwtAuth, err := newJWTAuth(cfg, httpClient, logger)
	if err != nil {
		logger.Error("Ошибка создания JWT middleware", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 11. HTTP-сервер
	router := server.NewRouter(apiHandler, openAPIHandler, jwtAuth, logger)
	srv := server.New(cfg, logger, router)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}
	logger.Info("API сайта остановлен")
}

// newJWTAuth выбирает проверку подписи: общий секрет HS256 или JWKS BaaS.
func newJWTAuth(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) (*middleware.JWTAuth, error) {
	if cfg.JWTSecret != "" {
		logger.Info("JWT middleware: HS256 с общим секретом", slog.String("issuer", cfg.JWTIssuer))
		return middleware.NewJWTAuthWithSecret(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTLeeway, logger), nil
	}

	jwtAuth, err := middleware.NewJWTAuth(
		cfg.JWTJWKSURL,
		httpClient,
		cfg.JWTIssuer,
		cfg.JWKSRefreshInterval,
		cfg.JWTLeeway,
		logger,
	)
	if err != nil {
		return nil, err
	}
	logger.Info("JWT middleware: JWKS",
		slog.String("jwks_url", cfg.JWTJWKSURL),
		slog.String("issuer", cfg.JWTIssuer),
	)
	return jwtAuth, nil
}
