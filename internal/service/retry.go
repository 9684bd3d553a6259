// retry.go — повтор чтений из хранилища и auth API с линейной задержкой.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Noctifera-Records/nexdrak-site-sub000/internal/authapi"
	"github.com/Noctifera-Records/nexdrak-site-sub000/internal/repository"
)

// Retrier выполняет операцию до attempts раз с задержкой base × номер попытки.
// Ошибки аутентификации, прав и «не найдено» не повторяются.
type Retrier struct {
	attempts int
	base     time.Duration
	logger   *slog.Logger
}

// NewRetrier создаёт Retrier. attempts < 1 трактуется как одна попытка.
func NewRetrier(attempts int, base time.Duration, logger *slog.Logger) *Retrier {
	if attempts < 1 {
		attempts = 1
	}
	return &Retrier{
		attempts: attempts,
		base:     base,
		logger:   logger.With(slog.String("component", "retry")),
	}
}

// Do выполняет fn с повторами. op — имя операции для логов.
func (r *Retrier) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	b := backoff.WithContext(
		backoff.WithMaxRetries(&linearBackOff{base: r.base}, uint64(r.attempts-1)),
		ctx,
	)

	return backoff.RetryNotify(func() error {
		err := fn(ctx)
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b, func(err error, next time.Duration) {
		r.logger.Warn("Повтор операции",
			slog.String("op", op),
			slog.Duration("next_in", next),
			slog.String("error", err.Error()),
		)
	})
}

// linearBackOff — задержка base, 2×base, 3×base, ...
type linearBackOff struct {
	base time.Duration
	n    int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.n++
	return time.Duration(b.n) * b.base
}

func (b *linearBackOff) Reset() { b.n = 0 }

// retryable сообщает, имеет ли смысл повторять операцию после err.
func retryable(err error) bool {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrForbidden),
		errors.Is(err, authapi.ErrUnauthorized):
		return false
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, authapi.ErrNotFound),
		errors.Is(err, repository.ErrConflict):
		return false
	}

	var statusErr *authapi.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= 500 || statusErr.StatusCode == 429
	}

	// Ошибки данных, ограничений, синтаксиса и прав PostgreSQL не исправятся повтором.
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		for _, class := range []string{"22", "23", "42"} {
			if strings.HasPrefix(pgErr.Code, class) {
				return false
			}
		}
		return true
	}
	return true
}
