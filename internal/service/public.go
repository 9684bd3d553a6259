// public.go — данные публичных страниц сайта (без аутентификации).
// Выборки кэшируются в CacheService, админские мутации сбрасывают кэш.
package service

import (
	"context"
	"log/slog"

	"github.com/Noctifera-Records/nexdrak-site-sub000/internal/repository"
	"github.com/Noctifera-Records/nexdrak-site-sub000/internal/resource"
)

// PublicService — чтение каталога, релизов, событий, мерча, загрузок и настроек.
type PublicService struct {
	store  repository.TableStore
	retry  *Retrier
	cache  *CacheService
	logger *slog.Logger
}

// NewPublicService создаёт сервис публичных данных.
func NewPublicService(store repository.TableStore, retry *Retrier, cache *CacheService, logger *slog.Logger) *PublicService {
	return &PublicService{
		store:  store,
		retry:  retry,
		cache:  cache,
		logger: logger.With(slog.String("component", "public_service")),
	}
}

// Songs возвращает каталог песен, новые первыми.
func (s *PublicService) Songs(ctx context.Context) ([]repository.Row, error) {
	return s.cached(ctx, resource.Songs.Table, "all", repository.Filter{OrderBy: "created_at", Desc: true})
}

// SongLinks возвращает ссылки песни, основная первой.
func (s *PublicService) SongLinks(ctx context.Context, songID string) ([]repository.Row, error) {
	return s.cached(ctx, linksTable, "song="+songID, repository.Filter{
		Eq:      map[string]any{"song_id": songID},
		OrderBy: "is_primary",
		Desc:    true,
	})
}

// Releases возвращает релизы, свежие первыми.
func (s *PublicService) Releases(ctx context.Context) ([]repository.Row, error) {
	return s.cached(ctx, resource.Releases.Table, "all", repository.Filter{OrderBy: "release_date", Desc: true})
}

// Events возвращает опубликованные события по дате.
func (s *PublicService) Events(ctx context.Context) ([]repository.Row, error) {
	return s.cached(ctx, resource.Events.Table, "published", repository.Filter{
		Eq:      map[string]any{"is_published": true},
		OrderBy: "date",
	})
}

// Merch возвращает товары в наличии.
func (s *PublicService) Merch(ctx context.Context) ([]repository.Row, error) {
	return s.cached(ctx, resource.MerchItems.Table, "available", repository.Filter{
		Eq:      map[string]any{"is_available": true},
		OrderBy: "created_at",
		Desc:    true,
	})
}

// Downloads возвращает загружаемые материалы.
func (s *PublicService) Downloads(ctx context.Context) ([]repository.Row, error) {
	return s.cached(ctx, resource.Downloads.Table, "all", repository.Filter{OrderBy: "created_at", Desc: true})
}

// Settings возвращает настройки сайта как ключ → значение.
func (s *PublicService) Settings(ctx context.Context) (map[string]string, error) {
	rows, err := s.cached(ctx, settingsTable, "all", repository.Filter{OrderBy: "key"})
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.String("key")] = r.String("value")
	}
	return out, nil
}

// CountDownload атомарно увеличивает download_count и возвращает запись.
func (s *PublicService) CountDownload(ctx context.Context, id string) (repository.Row, error) {
	row, err := s.store.Increment(ctx, resource.Downloads.Table, id, "download_count")
	if err != nil {
		return nil, storeError("increment", err)
	}
	s.cache.Invalidate(resource.Downloads.Table)
	return row, nil
}

func (s *PublicService) cached(ctx context.Context, table, variant string, f repository.Filter) ([]repository.Row, error) {
	if rows, ok := s.cache.Get(table, variant); ok {
		return rows, nil
	}

	gen := s.cache.Generation(table)
	var rows []repository.Row
	err := s.retry.Do(ctx, table+".select", func(ctx context.Context) error {
		var err error
		rows, err = s.store.Select(ctx, table, f)
		return err
	})
	if err != nil {
		return nil, storeError("select", err)
	}

	if !s.cache.Set(table, variant, gen, rows) {
		s.logger.Debug("Выборка устарела во время чтения, в кэш не сохранена",
			slog.String("table", table),
			slog.String("variant", variant),
		)
	}
	return rows, nil
}
