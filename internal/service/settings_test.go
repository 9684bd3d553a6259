package service

import (
	"context"
	"errors"
	"testing"

	"github.com/Noctifera-Records/nexdrak-site-sub000/internal/repository"
)

func (f *fixture) settingsService() *SettingsService {
	return NewSettingsService(f.settings, f.gate, f.retry, f.cache, testLogger())
}

func TestSettings_UpsertSingle(t *testing.T) {
	f := newFixture()

	saved, err := f.settingsService().Upsert(context.Background(), adminIdentity(),
		[]byte(`{"key":"hero_title","value":" Nexdrak "}`))
	if err != nil {
		t.Fatalf("Upsert() ошибка: %v", err)
	}
	if len(saved) != 1 || saved[0].Value != "Nexdrak" {
		t.Fatalf("Upsert() = %+v", saved)
	}
	if saved[0].UpdatedBy == nil || *saved[0].UpdatedBy != "admin@site.test" {
		t.Errorf("updated_by = %v, ожидается email администратора", saved[0].UpdatedBy)
	}
}

func TestSettings_UpsertBatch(t *testing.T) {
	f := newFixture()
	f.cache.Set(settingsTable, "all", f.cache.Generation(settingsTable), []repository.Row{})

	saved, err := f.settingsService().Upsert(context.Background(), adminIdentity(),
		[]byte(`{"settings":{"b_key":"2","a_key":"1"}}`))
	if err != nil {
		t.Fatalf("Upsert() ошибка: %v", err)
	}
	if len(saved) != 2 || saved[0].Key != "a_key" || saved[1].Key != "b_key" {
		t.Errorf("пакет должен сохраняться по ключам в алфавитном порядке: %+v", saved)
	}
	if _, ok := f.cache.Get(settingsTable, "all"); ok {
		t.Error("кэш настроек не сброшен")
	}
}

func TestSettings_UpsertValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"нет значения", `{"key":"hero_title"}`},
		{"пустое значение в пакете", `{"settings":{"a":"1","b":" "}}`},
		{"пустое тело", ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			_, err := f.settingsService().Upsert(context.Background(), adminIdentity(), []byte(tt.body))
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("ожидалась ошибка валидации, получено %v", err)
			}
			if len(f.settings.items) != 0 {
				t.Error("настройки записаны при невалидной форме")
			}
		})
	}
}

func TestSettings_UpsertBatchPartialFailure(t *testing.T) {
	f := newFixture()
	f.settings.failOn["b_key"] = errBoom

	_, err := f.settingsService().Upsert(context.Background(), adminIdentity(),
		[]byte(`{"settings":{"a_key":"1","b_key":"2"}}`))
	var pf *PartialFailure
	if !errors.As(err, &pf) {
		t.Fatalf("ожидалась PartialFailure, получено %v", err)
	}
	if _, ok := f.settings.items["a_key"]; !ok {
		t.Error("первая настройка должна остаться сохранённой")
	}
}

func TestSettings_Forbidden(t *testing.T) {
	f := newFixture()

	if _, err := f.settingsService().List(context.Background(), userIdentity()); !errors.Is(err, ErrForbidden) {
		t.Fatalf("ожидалась ErrForbidden, получено %v", err)
	}
}

func TestSettings_Delete(t *testing.T) {
	f := newFixture()
	svc := f.settingsService()
	ctx := context.Background()

	if _, err := svc.Upsert(ctx, adminIdentity(), []byte(`{"key":"k","value":"v"}`)); err != nil {
		t.Fatalf("Upsert() ошибка: %v", err)
	}
	if err := svc.Delete(ctx, adminIdentity(), []byte(`{"key":"k"}`)); err != nil {
		t.Fatalf("Delete() ошибка: %v", err)
	}
	err := svc.Delete(ctx, adminIdentity(), []byte(`{"key":"k"}`))
	if !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("повторное удаление: ожидалась ErrNotFound, получено %v", err)
	}
}
