// gate.go — Authorization Gate: проверка, что запрос выполняет администратор.
// Вызывается первым шагом каждой привилегированной операции, результат не кэшируется.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Noctifera-Records/nexdrak-site-sub000/internal/domain/model"
	"github.com/Noctifera-Records/nexdrak-site-sub000/internal/domain/rbac"
	"github.com/Noctifera-Records/nexdrak-site-sub000/internal/repository"
)

// Gate проверяет роль пользователя по таблице profiles.
type Gate struct {
	profiles repository.ProfileRepository
	retry    *Retrier
	logger   *slog.Logger
}

// NewGate создаёт Authorization Gate.
func NewGate(profiles repository.ProfileRepository, retry *Retrier, logger *slog.Logger) *Gate {
	return &Gate{
		profiles: profiles,
		retry:    retry,
		logger:   logger.With(slog.String("component", "gate")),
	}
}

// Authorize возвращает копию identity с заполненной ролью или
// ErrUnauthorized (нет identity) / ErrForbidden (нет профиля, ошибка чтения, роль не admin).
func (g *Gate) Authorize(ctx context.Context, identity *model.Identity) (*model.Identity, error) {
	if identity == nil || identity.ID == "" {
		return nil, ErrUnauthorized
	}

	var profile *model.Profile
	err := g.retry.Do(ctx, "profile_lookup", func(ctx context.Context) error {
		var err error
		profile, err = g.profiles.GetByID(ctx, identity.ID)
		return err
	})
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			g.logger.Warn("Ошибка чтения профиля, доступ запрещён",
				slog.String("user_id", identity.ID),
				slog.String("error", err.Error()),
			)
		}
		return nil, ErrForbidden
	}

	if !rbac.IsAdmin(profile.Role) {
		g.logger.Info("Отказ в доступе: роль не admin",
			slog.String("user_id", identity.ID),
			slog.String("role", profile.Role),
		)
		return nil, ErrForbidden
	}

	caller := *identity
	caller.Role = profile.Role
	return &caller, nil
}
