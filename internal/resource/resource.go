// Пакет resource — описания управляемых сущностей админки:
// таблица, порядок выборки, форма с правилами валидации,
// разрешённые фильтры и переключаемые флаги.
package resource

import "slices"

// Definition — описание сущности для обобщённого Resource Endpoint.
type Definition struct {
	// Name — сегмент URL (/api/admin/<Name>)
	Name string
	// Table — таблица хранилища
	Table string
	// OrderBy и Desc — порядок выборки списка
	OrderBy string
	Desc    bool
	// Filters — колонки, по которым список можно фильтровать через query string
	Filters []string
	// Toggles — булевы колонки, доступные для PATCH /toggle
	Toggles []string
	// Cascades — таблицы, строки которых удаляются вместе с записью (ON DELETE CASCADE)
	Cascades []string
	// New создаёт пустую форму сущности
	New func() any
}

// CanToggle сообщает, разрешено ли переключать колонку field.
func (d *Definition) CanToggle(field string) bool {
	return slices.Contains(d.Toggles, field)
}

// Сущности, обслуживаемые обобщённым обработчиком.
var (
	Songs = &Definition{
		Name:     "songs",
		Table:    "songs",
		OrderBy:  "created_at",
		Desc:     true,
		Filters:  []string{"type"},
		Cascades: []string{"streaming_links"},
		New:      func() any { return &Song{} },
	}
	Releases = &Definition{
		Name:    "releases",
		Table:   "releases",
		OrderBy: "release_date",
		Desc:    true,
		New:     func() any { return &Release{} },
	}
	MerchItems = &Definition{
		Name:    "merch",
		Table:   "merch",
		OrderBy: "created_at",
		Desc:    true,
		Filters: []string{"category", "is_available"},
		Toggles: []string{"is_available"},
		New:     func() any { return &Merch{} },
	}
	Events = &Definition{
		Name:    "events",
		Table:   "events",
		OrderBy: "date",
		Filters: []string{"is_published", "is_featured"},
		Toggles: []string{"is_featured", "is_published"},
		New:     func() any { return &Event{} },
	}
	Downloads = &Definition{
		Name:    "downloads",
		Table:   "downloads",
		OrderBy: "created_at",
		Desc:    true,
		Filters: []string{"category", "is_featured"},
		Toggles: []string{"is_featured"},
		New:     func() any { return &Download{} },
	}
	StreamingLinks = &Definition{
		Name:    "streaming-links",
		Table:   "streaming_links",
		OrderBy: "created_at",
		Filters: []string{"song_id", "platform"},
		New:     func() any { return &StreamingLink{} },
	}
)

// Simple возвращает сущности без составных операций,
// для которых достаточно обобщённого List/Create/Update/Delete.
func Simple() []*Definition {
	return []*Definition{Songs, Releases, MerchItems, Events, Downloads}
}
