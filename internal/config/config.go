// Пакет config — загрузка и валидация конфигурации API сайта
// из переменных окружения (и необязательного .env файла).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации сервиса.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Таймауты HTTP-сервера
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration

	// --- PostgreSQL (хранилище BaaS) ---

	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string
	// Применять встроенные миграции при старте
	DBMigrate bool

	// --- BaaS (auth API) ---

	// Базовый URL BaaS (например, https://xyz.supabase.co)
	BaaSURL string
	// Публичный anon-ключ (заголовок apikey)
	BaaSAnonKey string
	// Сервисный ключ для admin API пользователей
	BaaSServiceRoleKey string
	// Путь к CA-сертификату для TLS-соединений с BaaS (опционально)
	CACertPath string

	// --- JWT ---

	// Issuer JWT (авто-вычисляется из BaaSURL, если не задан)
	JWTIssuer string
	// URL JWKS endpoint (авто-вычисляется из BaaSURL, если не задан)
	JWTJWKSURL string
	// Общий секрет HS256 (если задан, JWKS не используется)
	JWTSecret string
	// Допуск по времени при проверке exp/nbf
	JWTLeeway time.Duration
	// Интервал обновления JWKS
	JWKSRefreshInterval time.Duration

	// --- Повторы запросов к BaaS ---

	RetryAttempts  int
	RetryBaseDelay time.Duration

	// --- Кэш публичных данных ---

	CacheSize int
	CacheTTL  time.Duration

	// --- topologymetrics ---

	DephealthGroup         string
	DephealthCheckInterval time.Duration

	// --- Graceful shutdown ---

	ShutdownTimeout time.Duration
}

// LoadDotEnv подгружает переменные из .env файла. Уже заданные переменные
// окружения не перезаписываются, отсутствие файла не является ошибкой.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("загрузка %s: %w", path, err)
	}
	return nil
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	cfg.Port, err = getEnvInt("SITE_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("SITE_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("SITE_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	cfg.LogLevel, err = parseLogLevel(getEnvDefault("SITE_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("SITE_LOG_LEVEL: %w", err)
	}

	cfg.LogFormat = getEnvDefault("SITE_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("SITE_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	if cfg.HTTPReadTimeout, err = getEnvDuration("SITE_HTTP_READ_TIMEOUT", 30*time.Second); err != nil {
		return nil, fmt.Errorf("SITE_HTTP_READ_TIMEOUT: %w", err)
	}
	if cfg.HTTPWriteTimeout, err = getEnvDuration("SITE_HTTP_WRITE_TIMEOUT", 60*time.Second); err != nil {
		return nil, fmt.Errorf("SITE_HTTP_WRITE_TIMEOUT: %w", err)
	}
	if cfg.HTTPIdleTimeout, err = getEnvDuration("SITE_HTTP_IDLE_TIMEOUT", 120*time.Second); err != nil {
		return nil, fmt.Errorf("SITE_HTTP_IDLE_TIMEOUT: %w", err)
	}

	// --- PostgreSQL ---

	if cfg.DBHost, err = getEnvRequired("SITE_DB_HOST"); err != nil {
		return nil, err
	}
	cfg.DBPort, err = getEnvInt("SITE_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("SITE_DB_PORT: %w", err)
	}
	if cfg.DBName, err = getEnvRequired("SITE_DB_NAME"); err != nil {
		return nil, err
	}
	if cfg.DBUser, err = getEnvRequired("SITE_DB_USER"); err != nil {
		return nil, err
	}
	if cfg.DBPassword, err = getEnvRequired("SITE_DB_PASSWORD"); err != nil {
		return nil, err
	}

	cfg.DBSSLMode = getEnvDefault("SITE_DB_SSL_MODE", "require")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("SITE_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	cfg.DBMigrate, err = getEnvBool("SITE_DB_MIGRATE", false)
	if err != nil {
		return nil, fmt.Errorf("SITE_DB_MIGRATE: %w", err)
	}

	// --- BaaS ---

	if cfg.BaaSURL, err = getEnvRequired("SITE_BAAS_URL"); err != nil {
		return nil, err
	}
	cfg.BaaSURL = strings.TrimRight(cfg.BaaSURL, "/")

	if cfg.BaaSAnonKey, err = getEnvRequired("SITE_BAAS_ANON_KEY"); err != nil {
		return nil, err
	}
	if cfg.BaaSServiceRoleKey, err = getEnvRequired("SITE_BAAS_SERVICE_ROLE_KEY"); err != nil {
		return nil, err
	}
	cfg.CACertPath = getEnvDefault("SITE_CA_CERT_PATH", "")

	// --- JWT ---

	cfg.JWTIssuer = getEnvDefault("SITE_JWT_ISSUER", cfg.BaaSURL+"/auth/v1")
	cfg.JWTJWKSURL = getEnvDefault("SITE_JWT_JWKS_URL", cfg.BaaSURL+"/auth/v1/.well-known/jwks.json")
	cfg.JWTSecret = getEnvDefault("SITE_JWT_SECRET", "")

	if cfg.JWTLeeway, err = getEnvDuration("SITE_JWT_LEEWAY", 30*time.Second); err != nil {
		return nil, fmt.Errorf("SITE_JWT_LEEWAY: %w", err)
	}
	if cfg.JWKSRefreshInterval, err = getEnvDuration("SITE_JWKS_REFRESH_INTERVAL", 15*time.Minute); err != nil {
		return nil, fmt.Errorf("SITE_JWKS_REFRESH_INTERVAL: %w", err)
	}

	// --- Повторы ---

	cfg.RetryAttempts, err = getEnvInt("SITE_RETRY_ATTEMPTS", 3)
	if err != nil {
		return nil, fmt.Errorf("SITE_RETRY_ATTEMPTS: %w", err)
	}
	if cfg.RetryAttempts < 1 || cfg.RetryAttempts > 10 {
		return nil, fmt.Errorf("SITE_RETRY_ATTEMPTS: значение %d вне допустимого диапазона 1-10", cfg.RetryAttempts)
	}
	if cfg.RetryBaseDelay, err = getEnvDuration("SITE_RETRY_BASE_DELAY", 200*time.Millisecond); err != nil {
		return nil, fmt.Errorf("SITE_RETRY_BASE_DELAY: %w", err)
	}

	// --- Кэш ---

	cfg.CacheSize, err = getEnvInt("SITE_CACHE_SIZE", 128)
	if err != nil {
		return nil, fmt.Errorf("SITE_CACHE_SIZE: %w", err)
	}
	if cfg.CacheSize < 1 {
		return nil, fmt.Errorf("SITE_CACHE_SIZE: значение %d должно быть положительным", cfg.CacheSize)
	}
	if cfg.CacheTTL, err = getEnvDuration("SITE_CACHE_TTL", time.Minute); err != nil {
		return nil, fmt.Errorf("SITE_CACHE_TTL: %w", err)
	}

	// --- topologymetrics ---

	cfg.DephealthGroup = getEnvDefault("SITE_DEPHEALTH_GROUP", "artist-site")
	if cfg.DephealthCheckInterval, err = getEnvDuration("SITE_DEPHEALTH_CHECK_INTERVAL", 15*time.Second); err != nil {
		return nil, fmt.Errorf("SITE_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// --- Graceful shutdown ---

	if cfg.ShutdownTimeout, err = getEnvDuration("SITE_SHUTDOWN_TIMEOUT", 5*time.Second); err != nil {
		return nil, fmt.Errorf("SITE_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL PostgreSQL без пароля (для лейблов метрик).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%d/%s", c.DBHost, c.DBPort, c.DBName)
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное логическое значение: %q", val)
	}
	return b, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
