package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Noctifera-Records/nexdrak-site-sub000/internal/domain/model"
)

// ProfileRepository — доступ к таблице profiles (роль и имя пользователя).
type ProfileRepository interface {
	// GetByID возвращает профиль по id учётной записи. Если не найден — ErrNotFound.
	GetByID(ctx context.Context, id string) (*model.Profile, error)
	// List возвращает все профили, новые первыми.
	List(ctx context.Context) ([]*model.Profile, error)
	// Upsert создаёт или обновляет профиль.
	Upsert(ctx context.Context, p *model.Profile) error
	// UpdateRole меняет роль и имя пользователя. Если не найден — ErrNotFound.
	UpdateRole(ctx context.Context, id, role string, username *string) (*model.Profile, error)
	// Delete удаляет профиль. Если не найден — ErrNotFound.
	Delete(ctx context.Context, id string) error
}

type profileRepo struct {
	db DBTX
}

// NewProfileRepository создаёт репозиторий профилей.
func NewProfileRepository(db DBTX) ProfileRepository {
	return &profileRepo{db: db}
}

const profileColumns = `id::text, role, username, created_at, updated_at`

func scanProfile(row pgx.Row) (*model.Profile, error) {
	p := &model.Profile{}
	if err := row.Scan(&p.ID, &p.Role, &p.Username, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *profileRepo) GetByID(ctx context.Context, id string) (*model.Profile, error) {
	query := fmt.Sprintf(`SELECT %s FROM profiles WHERE id = $1`, profileColumns)

	p, err := scanProfile(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения профиля %s: %w", id, err)
	}
	return p, nil
}

func (r *profileRepo) List(ctx context.Context) ([]*model.Profile, error) {
	query := fmt.Sprintf(`SELECT %s FROM profiles ORDER BY created_at DESC`, profileColumns)

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка профилей: %w", err)
	}
	defer rows.Close()

	profiles := make([]*model.Profile, 0)
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования профиля: %w", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// Upsert создаёт или обновляет профиль (INSERT ... ON CONFLICT DO UPDATE).
func (r *profileRepo) Upsert(ctx context.Context, p *model.Profile) error {
	query := `
		INSERT INTO profiles (id, role, username)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			role = EXCLUDED.role,
			username = EXCLUDED.username,
			updated_at = NOW()
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query, p.ID, p.Role, p.Username).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("ошибка upsert профиля %s: %w", p.ID, err)
	}
	return nil
}

func (r *profileRepo) UpdateRole(ctx context.Context, id, role string, username *string) (*model.Profile, error) {
	query := fmt.Sprintf(`
		UPDATE profiles
		SET role = $2, username = COALESCE($3, username), updated_at = NOW()
		WHERE id = $1
		RETURNING %s`, profileColumns)

	p, err := scanProfile(r.db.QueryRow(ctx, query, id, role, username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("профиль %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("ошибка обновления профиля %s: %w", id, err)
	}
	return p, nil
}

func (r *profileRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM profiles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления профиля %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("профиль %s: %w", id, ErrNotFound)
	}
	return nil
}
