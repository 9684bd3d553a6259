package repository

import (
	"context"
	"fmt"
	"time"
)

// SiteSetting — запись таблицы site_settings.
type SiteSetting struct {
	// Ключ настройки (например "hero_title")
	Key string `json:"key"`
	// Значение настройки (строковое представление)
	Value string `json:"value"`
	// Кто обновил настройку (email администратора)
	UpdatedBy *string `json:"updated_by"`
	// Время последнего обновления
	UpdatedAt time.Time `json:"updated_at"`
}

// SettingsRepository — интерфейс для таблицы site_settings.
type SettingsRepository interface {
	// Set создаёт или обновляет настройку (upsert по key).
	Set(ctx context.Context, key, value, updatedBy string) (*SiteSetting, error)
	// List возвращает все настройки, отсортированные по ключу.
	List(ctx context.Context) ([]SiteSetting, error)
	// Delete удаляет настройку по ключу. Если не найдена — ErrNotFound.
	Delete(ctx context.Context, key string) error
}

type settingsRepo struct {
	db DBTX
}

// NewSettingsRepository создаёт репозиторий настроек сайта.
func NewSettingsRepository(db DBTX) SettingsRepository {
	return &settingsRepo{db: db}
}

// Set создаёт или обновляет настройку (INSERT ... ON CONFLICT DO UPDATE).
func (r *settingsRepo) Set(ctx context.Context, key, value, updatedBy string) (*SiteSetting, error) {
	query := `
		INSERT INTO site_settings (key, value, updated_by)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value,
			updated_by = EXCLUDED.updated_by,
			updated_at = NOW()
		RETURNING key, value, updated_by, updated_at`

	s := &SiteSetting{}
	err := r.db.QueryRow(ctx, query, key, value, updatedBy).Scan(&s.Key, &s.Value, &s.UpdatedBy, &s.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("ошибка сохранения site_settings[%s]: %w", key, err)
	}
	return s, nil
}

func (r *settingsRepo) List(ctx context.Context) ([]SiteSetting, error) {
	query := `
		SELECT key, value, updated_by, updated_at
		FROM site_settings
		ORDER BY key`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка site_settings: %w", err)
	}
	defer rows.Close()

	settings := make([]SiteSetting, 0)
	for rows.Next() {
		var s SiteSetting
		if err := rows.Scan(&s.Key, &s.Value, &s.UpdatedBy, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования site_settings: %w", err)
		}
		settings = append(settings, s)
	}
	return settings, rows.Err()
}

func (r *settingsRepo) Delete(ctx context.Context, key string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM site_settings WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("ошибка удаления site_settings[%s]: %w", key, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("site_settings[%s]: %w", key, ErrNotFound)
	}
	return nil
}
