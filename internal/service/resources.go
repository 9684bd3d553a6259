// resources.go — обобщённые операции админки над сущностями:
// gate → разбор и валидация формы → одна мутация хранилища.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"slices"

	"github.com/Noctifera-Records/nexdrak-site-sub000/internal/domain/model"
	"github.com/Noctifera-Records/nexdrak-site-sub000/internal/repository"
	"github.com/Noctifera-Records/nexdrak-site-sub000/internal/resource"
)

// ResourceService — List/Create/Update/Delete/Toggle для сущностей из resource.Definition.
type ResourceService struct {
	store  repository.TableStore
	gate   *Gate
	retry  *Retrier
	cache  *CacheService
	logger *slog.Logger
}

// NewResourceService создаёт сервис обобщённых операций.
func NewResourceService(
	store repository.TableStore,
	gate *Gate,
	retry *Retrier,
	cache *CacheService,
	logger *slog.Logger,
) *ResourceService {
	return &ResourceService{
		store:  store,
		gate:   gate,
		retry:  retry,
		cache:  cache,
		logger: logger.With(slog.String("component", "resource_service")),
	}
}

// List возвращает все записи сущности в порядке определения.
// eq — фильтры равенства; колонки вне def.Filters отклоняются.
// limit > 0 ограничивает количество строк.
func (s *ResourceService) List(ctx context.Context, identity *model.Identity, def *resource.Definition, eq map[string]any, limit int) ([]repository.Row, error) {
	if _, err := s.gate.Authorize(ctx, identity); err != nil {
		return nil, err
	}
	for col := range eq {
		if !slices.Contains(def.Filters, col) {
			return nil, invalid("фильтр %q не поддерживается для %s", col, def.Name)
		}
	}
	if limit < 0 {
		return nil, invalid("limit должен быть положительным")
	}

	var rows []repository.Row
	err := s.retry.Do(ctx, def.Table+".select", func(ctx context.Context) error {
		var err error
		rows, err = s.store.Select(ctx, def.Table, repository.Filter{
			Eq:      eq,
			OrderBy: def.OrderBy,
			Desc:    def.Desc,
			Limit:   limit,
		})
		return err
	})
	if err != nil {
		return nil, storeError("select", err)
	}
	return rows, nil
}

// Create проверяет форму и вставляет запись.
func (s *ResourceService) Create(ctx context.Context, identity *model.Identity, def *resource.Definition, body []byte) (repository.Row, error) {
	caller, err := s.gate.Authorize(ctx, identity)
	if err != nil {
		return nil, err
	}

	form := def.New()
	if err := decodeForm(body, form); err != nil {
		return nil, err
	}

	row, err := s.store.Insert(ctx, def.Table, resource.ToRow(form))
	if err != nil {
		return nil, storeError("insert", err)
	}

	s.cache.Invalidate(def.Table)
	s.logger.Info("Запись создана",
		slog.String("table", def.Table),
		slog.String("id", row.ID()),
		slog.String("by", caller.ID),
	)
	return row, nil
}

// Update заменяет все редактируемые поля записи id из тела запроса.
func (s *ResourceService) Update(ctx context.Context, identity *model.Identity, def *resource.Definition, body []byte) (repository.Row, error) {
	caller, err := s.gate.Authorize(ctx, identity)
	if err != nil {
		return nil, err
	}

	var ref resource.Ref
	if err := decodeForm(body, &ref); err != nil {
		return nil, err
	}
	form := def.New()
	if err := decodeForm(body, form); err != nil {
		return nil, err
	}

	row, err := s.store.Update(ctx, def.Table, ref.ID, resource.ToRow(form))
	if err != nil {
		return nil, storeError("update", err)
	}

	s.cache.Invalidate(def.Table)
	s.logger.Info("Запись обновлена",
		slog.String("table", def.Table),
		slog.String("id", ref.ID),
		slog.String("by", caller.ID),
	)
	return row, nil
}

// Delete удаляет запись по id из тела запроса.
// Отсутствующая запись — ошибка хранилища.
func (s *ResourceService) Delete(ctx context.Context, identity *model.Identity, def *resource.Definition, body []byte) error {
	caller, err := s.gate.Authorize(ctx, identity)
	if err != nil {
		return err
	}

	var ref resource.Ref
	if err := decodeForm(body, &ref); err != nil {
		return err
	}

	if err := s.store.Delete(ctx, def.Table, ref.ID); err != nil {
		return storeError("delete", err)
	}

	s.cache.Invalidate(def.Table)
	for _, table := range def.Cascades {
		s.cache.Invalidate(table)
	}
	s.logger.Info("Запись удалена",
		slog.String("table", def.Table),
		slog.String("id", ref.ID),
		slog.String("by", caller.ID),
	)
	return nil
}

// Toggle записывает значение булева флага и возвращает обновлённую запись.
// Клиент применяет новое состояние только после успешного ответа.
func (s *ResourceService) Toggle(ctx context.Context, identity *model.Identity, def *resource.Definition, body []byte) (repository.Row, error) {
	if _, err := s.gate.Authorize(ctx, identity); err != nil {
		return nil, err
	}

	var t resource.Toggle
	if err := decodeForm(body, &t); err != nil {
		return nil, err
	}
	if !def.CanToggle(t.Field) {
		return nil, invalid("поле %q нельзя переключать для %s", t.Field, def.Name)
	}

	row, err := s.store.Update(ctx, def.Table, t.ID, repository.Row{t.Field: *t.Value})
	if err != nil {
		return nil, storeError("toggle", err)
	}

	s.cache.Invalidate(def.Table)
	return row, nil
}

// decodeForm разбирает JSON в form, нормализует и валидирует её.
func decodeForm(body []byte, form any) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return invalid("тело запроса пустое")
	}
	if err := json.Unmarshal(body, form); err != nil {
		return invalid("некорректный JSON: %v", err)
	}
	if err := resource.Normalize(form); err != nil {
		return invalid("некорректная форма: %v", err)
	}
	if err := resource.Validate(form); err != nil {
		return &ValidationError{Message: err.Error()}
	}
	return nil
}
