// Пакет repository — слой доступа к данным PostgreSQL (хранилище BaaS).
// Все запросы — чистый SQL через pgx, без ORM.
package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ошибки слоя репозиториев.
var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("запись не найдена")
	// ErrConflict — конфликт уникальности (дублирующийся ресурс).
	ErrConflict = errors.New("конфликт — запись уже существует")
)

// DBTX — интерфейс для выполнения SQL-запросов.
// Реализуется как *pgxpool.Pool, так и pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Prometheus-метрики операций с хранилищем.
var (
	storeOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "site_store_operation_duration_seconds",
		Help:    "Длительность операций с хранилищем.",
		Buckets: prometheus.DefBuckets,
	}, []string{"table", "operation"})

	storeOperationErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "site_store_operation_errors_total",
		Help: "Количество ошибок операций с хранилищем.",
	}, []string{"table", "operation"})
)

// isUniqueViolation проверяет, является ли ошибка нарушением уникальности PostgreSQL.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
