// admin_users.go — управление пользователями: профили (роль) из хранилища
// и учётные записи из admin API аутентификации.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/samber/lo"

	"github.com/Noctifera-Records/nexdrak-site-sub000/internal/authapi"
	"github.com/Noctifera-Records/nexdrak-site-sub000/internal/domain/model"
	"github.com/Noctifera-Records/nexdrak-site-sub000/internal/repository"
	"github.com/Noctifera-Records/nexdrak-site-sub000/internal/resource"
)

// AuthAdmin — операции admin API аутентификации, нужные сервису.
type AuthAdmin interface {
	ListUsers(ctx context.Context) ([]authapi.User, error)
	CreateUser(ctx context.Context, req authapi.CreateUserRequest) (*authapi.User, error)
	DeleteUser(ctx context.Context, id string) error
}

// AdminUserService — список, создание, смена роли и удаление пользователей.
type AdminUserService struct {
	profiles repository.ProfileRepository
	auth     AuthAdmin
	gate     *Gate
	retry    *Retrier
	logger   *slog.Logger
}

// NewAdminUserService создаёт сервис управления пользователями.
func NewAdminUserService(
	profiles repository.ProfileRepository,
	auth AuthAdmin,
	gate *Gate,
	retry *Retrier,
	logger *slog.Logger,
) *AdminUserService {
	return &AdminUserService{
		profiles: profiles,
		auth:     auth,
		gate:     gate,
		retry:    retry,
		logger:   logger.With(slog.String("component", "admin_users_service")),
	}
}

// ListUsers возвращает профили, дополненные email из auth API.
// Профиль без учётной записи получает email "N/A". Сбой auth API
// (после повторов) — StoreError с сообщением BaaS.
func (s *AdminUserService) ListUsers(ctx context.Context, identity *model.Identity) ([]model.AdminUser, error) {
	if _, err := s.gate.Authorize(ctx, identity); err != nil {
		return nil, err
	}

	var profiles []*model.Profile
	err := s.retry.Do(ctx, "profiles.list", func(ctx context.Context) error {
		var err error
		profiles, err = s.profiles.List(ctx)
		return err
	})
	if err != nil {
		return nil, storeError("select", err)
	}

	var accounts []authapi.User
	err = s.retry.Do(ctx, "auth.list_users", func(ctx context.Context) error {
		var err error
		accounts, err = s.auth.ListUsers(ctx)
		return err
	})
	if err != nil {
		return nil, storeError("auth.list_users", err)
	}

	return MergeUsers(profiles, accounts), nil
}

// MergeUsers соединяет профили с учётными записями по id (left join по профилям).
func MergeUsers(profiles []*model.Profile, accounts []authapi.User) []model.AdminUser {
	byID := lo.KeyBy(accounts, func(u authapi.User) string { return u.ID })

	return lo.Map(profiles, func(p *model.Profile, _ int) model.AdminUser {
		email := model.EmailNotAvailable
		if acc, ok := byID[p.ID]; ok && acc.Email != "" {
			email = acc.Email
		}
		return model.AdminUser{
			ID:        p.ID,
			Email:     email,
			Role:      p.Role,
			Username:  p.Username,
			CreatedAt: p.CreatedAt,
		}
	})
}

// CreateUser создаёт учётную запись, затем профиль с ролью.
// Если профиль не сохранён, учётная запись остаётся (PartialFailure).
func (s *AdminUserService) CreateUser(ctx context.Context, identity *model.Identity, body []byte) (*model.AdminUser, error) {
	caller, err := s.gate.Authorize(ctx, identity)
	if err != nil {
		return nil, err
	}

	var form resource.NewUser
	if err := decodeForm(body, &form); err != nil {
		return nil, err
	}

	req := authapi.CreateUserRequest{
		Email:        form.Email,
		Password:     form.Password,
		EmailConfirm: true,
	}
	if form.Username != nil {
		req.UserMetadata = map[string]any{"username": *form.Username}
	}

	account, err := s.auth.CreateUser(ctx, req)
	if err != nil {
		return nil, storeError("auth.create_user", err)
	}

	profile := form.Profile(account.ID)
	if err := s.profiles.Upsert(ctx, profile); err != nil {
		s.logger.Error("Учётная запись создана, профиль не сохранён",
			slog.String("user_id", account.ID),
			slog.String("error", err.Error()),
		)
		return nil, &PartialFailure{
			Completed: fmt.Sprintf("учётная запись %s создана", account.ID),
			Failed:    "профиль не сохранён",
			Err:       err,
		}
	}

	s.logger.Info("Пользователь создан",
		slog.String("user_id", account.ID),
		slog.String("role", profile.Role),
		slog.String("by", caller.ID),
	)
	return &model.AdminUser{
		ID:        account.ID,
		Email:     account.Email,
		Role:      profile.Role,
		Username:  profile.Username,
		CreatedAt: profile.CreatedAt,
	}, nil
}

// UpdateUser меняет роль (и, если передано, имя) пользователя.
func (s *AdminUserService) UpdateUser(ctx context.Context, identity *model.Identity, body []byte) (*model.Profile, error) {
	caller, err := s.gate.Authorize(ctx, identity)
	if err != nil {
		return nil, err
	}

	var form resource.UserRole
	if err := decodeForm(body, &form); err != nil {
		return nil, err
	}

	profile, err := s.profiles.UpdateRole(ctx, form.ID, form.Role, form.Username)
	if err != nil {
		return nil, storeError("update", err)
	}

	s.logger.Info("Роль пользователя изменена",
		slog.String("user_id", form.ID),
		slog.String("role", form.Role),
		slog.String("by", caller.ID),
	)
	return profile, nil
}

// DeleteUser удаляет профиль, затем учётную запись. Успех — только если
// выполнены оба шага; сбой второго шага оставляет учётную запись без профиля.
func (s *AdminUserService) DeleteUser(ctx context.Context, identity *model.Identity, body []byte) error {
	caller, err := s.gate.Authorize(ctx, identity)
	if err != nil {
		return err
	}

	var ref resource.Ref
	if err := decodeForm(body, &ref); err != nil {
		return err
	}
	if ref.ID == caller.ID {
		return invalid("нельзя удалить собственную учётную запись")
	}

	if err := s.profiles.Delete(ctx, ref.ID); err != nil {
		return storeError("delete", err)
	}

	// Отсутствующая учётная запись означает, что удалять уже нечего.
	if err := s.auth.DeleteUser(ctx, ref.ID); err != nil && !errors.Is(err, authapi.ErrNotFound) {
		s.logger.Error("Профиль удалён, учётная запись не удалена",
			slog.String("user_id", ref.ID),
			slog.String("error", err.Error()),
		)
		return &PartialFailure{
			Completed: fmt.Sprintf("профиль %s удалён", ref.ID),
			Failed:    "учётная запись не удалена",
			Err:       err,
		}
	}

	s.logger.Info("Пользователь удалён",
		slog.String("user_id", ref.ID),
		slog.String("by", caller.ID),
	)
	return nil
}

// Me возвращает identity текущего администратора с ролью из профиля.
func (s *AdminUserService) Me(ctx context.Context, identity *model.Identity) (*model.Identity, error) {
	return s.gate.Authorize(ctx, identity)
}
