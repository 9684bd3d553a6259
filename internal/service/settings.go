// settings.go — настройки сайта (ключ/значение) с аудитом updated_by.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/Noctifera-Records/nexdrak-site-sub000/internal/domain/model"
	"github.com/Noctifera-Records/nexdrak-site-sub000/internal/repository"
	"github.com/Noctifera-Records/nexdrak-site-sub000/internal/resource"
)

const settingsTable = "site_settings"

// SettingsService — чтение и upsert настроек сайта.
type SettingsService struct {
	repo   repository.SettingsRepository
	gate   *Gate
	retry  *Retrier
	cache  *CacheService
	logger *slog.Logger
}

// NewSettingsService создаёт сервис настроек.
func NewSettingsService(
	repo repository.SettingsRepository,
	gate *Gate,
	retry *Retrier,
	cache *CacheService,
	logger *slog.Logger,
) *SettingsService {
	return &SettingsService{
		repo:   repo,
		gate:   gate,
		retry:  retry,
		cache:  cache,
		logger: logger.With(slog.String("component", "settings_service")),
	}
}

// List возвращает все настройки, отсортированные по ключу.
func (s *SettingsService) List(ctx context.Context, identity *model.Identity) ([]repository.SiteSetting, error) {
	if _, err := s.gate.Authorize(ctx, identity); err != nil {
		return nil, err
	}

	var settings []repository.SiteSetting
	err := s.retry.Do(ctx, "settings.list", func(ctx context.Context) error {
		var err error
		settings, err = s.repo.List(ctx)
		return err
	})
	if err != nil {
		return nil, storeError("select", err)
	}
	return settings, nil
}

// Upsert сохраняет одну настройку ({key, value}) или пакет ({settings: {k: v}}).
// Пакет записывается по ключам в алфавитном порядке без транзакции.
func (s *SettingsService) Upsert(ctx context.Context, identity *model.Identity, body []byte) ([]repository.SiteSetting, error) {
	caller, err := s.gate.Authorize(ctx, identity)
	if err != nil {
		return nil, err
	}

	pairs, err := decodeSettings(body)
	if err != nil {
		return nil, err
	}

	updatedBy := caller.Email
	if updatedBy == "" {
		updatedBy = caller.ID
	}

	saved := make([]repository.SiteSetting, 0, len(pairs))
	for _, p := range pairs {
		setting, err := s.repo.Set(ctx, p.Key, p.Value, updatedBy)
		if err != nil {
			if len(saved) == 0 {
				return nil, storeError("upsert", err)
			}
			return nil, &PartialFailure{
				Completed: fmt.Sprintf("сохранено настроек: %d", len(saved)),
				Failed:    fmt.Sprintf("настройка %q не сохранена", p.Key),
				Err:       err,
			}
		}
		saved = append(saved, *setting)
	}

	s.cache.Invalidate(settingsTable)
	s.logger.Info("Настройки сохранены",
		slog.Int("count", len(saved)),
		slog.String("by", updatedBy),
	)
	return saved, nil
}

// Delete удаляет настройку по ключу ({key}).
func (s *SettingsService) Delete(ctx context.Context, identity *model.Identity, body []byte) error {
	if _, err := s.gate.Authorize(ctx, identity); err != nil {
		return err
	}

	var ref struct {
		Key string `json:"key" validate:"required"`
	}
	if err := decodeForm(body, &ref); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, ref.Key); err != nil {
		return storeError("delete", err)
	}
	s.cache.Invalidate(settingsTable)
	return nil
}

// decodeSettings разбирает тело upsert в список проверенных пар.
func decodeSettings(body []byte) ([]resource.Setting, error) {
	var batch struct {
		Settings map[string]string `json:"settings"`
	}
	if err := json.Unmarshal(body, &batch); err == nil && len(batch.Settings) > 0 {
		keys := make([]string, 0, len(batch.Settings))
		for k := range batch.Settings {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		pairs := make([]resource.Setting, 0, len(keys))
		for _, k := range keys {
			p := resource.Setting{Key: k, Value: batch.Settings[k]}
			if err := resource.Normalize(&p); err != nil {
				return nil, invalid("настройка %q: %v", strings.TrimSpace(k), err)
			}
			if err := resource.Validate(&p); err != nil {
				return nil, invalid("настройка %q: %v", strings.TrimSpace(k), err)
			}
			pairs = append(pairs, p)
		}
		return pairs, nil
	}

	var one resource.Setting
	if err := decodeForm(body, &one); err != nil {
		return nil, err
	}
	return []resource.Setting{one}, nil
}
