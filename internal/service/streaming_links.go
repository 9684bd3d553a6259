// streaming_links.go — ссылки песен на стриминговые платформы.
// Инварианты: не более одной ссылки на платформу для песни
// и не более одной основной (is_primary) ссылки.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/Noctifera-Records/nexdrak-site-sub000/internal/domain/model"
	"github.com/Noctifera-Records/nexdrak-site-sub000/internal/repository"
	"github.com/Noctifera-Records/nexdrak-site-sub000/internal/resource"
)

const linksTable = "streaming_links"

// StreamingLinkService — составные операции со ссылками.
// Проверка дубликата и смена основной ссылки выполняются без транзакции:
// параллельные запросы могут нарушить инварианты.
type StreamingLinkService struct {
	store  repository.TableStore
	gate   *Gate
	retry  *Retrier
	cache  *CacheService
	logger *slog.Logger
}

// NewStreamingLinkService создаёт сервис ссылок.
func NewStreamingLinkService(
	store repository.TableStore,
	gate *Gate,
	retry *Retrier,
	cache *CacheService,
	logger *slog.Logger,
) *StreamingLinkService {
	return &StreamingLinkService{
		store:  store,
		gate:   gate,
		retry:  retry,
		cache:  cache,
		logger: logger.With(slog.String("component", "streaming_links_service")),
	}
}

// Create добавляет ссылку, если для песни ещё нет ссылки на этой платформе.
// is_primary=true в форме делает новую ссылку основной.
func (s *StreamingLinkService) Create(ctx context.Context, identity *model.Identity, body []byte) (repository.Row, error) {
	if _, err := s.gate.Authorize(ctx, identity); err != nil {
		return nil, err
	}

	var form resource.StreamingLink
	if err := decodeForm(body, &form); err != nil {
		return nil, err
	}

	if err := s.checkPlatformFree(ctx, form.SongID, form.Platform, ""); err != nil {
		return nil, err
	}

	row, err := s.store.Insert(ctx, linksTable, resource.ToRow(&form))
	if err != nil {
		return nil, storeError("insert", err)
	}
	s.cache.Invalidate(linksTable)

	if form.IsPrimary != nil && *form.IsPrimary {
		primary, err := s.setPrimary(ctx, form.SongID, row.ID())
		if err != nil {
			return nil, primaryFailure("ссылка добавлена", err)
		}
		row = primary
	}
	return row, nil
}

// Update заменяет поля ссылки. Перенос на платформу, уже занятую
// другой ссылкой песни, отклоняется.
func (s *StreamingLinkService) Update(ctx context.Context, identity *model.Identity, body []byte) (repository.Row, error) {
	if _, err := s.gate.Authorize(ctx, identity); err != nil {
		return nil, err
	}

	var ref resource.Ref
	if err := decodeForm(body, &ref); err != nil {
		return nil, err
	}
	var form resource.StreamingLink
	if err := decodeForm(body, &form); err != nil {
		return nil, err
	}

	existing, err := s.store.Get(ctx, linksTable, ref.ID)
	if err != nil {
		return nil, storeError("get", err)
	}
	if err := s.checkPlatformFree(ctx, form.SongID, form.Platform, ref.ID); err != nil {
		return nil, err
	}

	makePrimary := form.IsPrimary != nil && *form.IsPrimary
	row := resource.ToRow(&form)
	// Основная ссылка, перенесённая к другой песне, перестаёт быть основной:
	// у новой песни может уже быть своя.
	movedSong := existing.String("song_id") != form.SongID
	if (form.IsPrimary != nil && !*form.IsPrimary) || (movedSong && !makePrimary) {
		row["is_primary"] = false
	}
	updated, err := s.store.Update(ctx, linksTable, ref.ID, row)
	if err != nil {
		return nil, storeError("update", err)
	}
	s.cache.Invalidate(linksTable)

	if makePrimary {
		primary, err := s.setPrimary(ctx, form.SongID, ref.ID)
		if err != nil {
			return nil, primaryFailure("ссылка обновлена", err)
		}
		updated = primary
	}
	return updated, nil
}

// SetPrimary делает ссылку основной для её песни: сначала снимает флаг
// со всех ссылок песни, затем ставит его выбранной.
func (s *StreamingLinkService) SetPrimary(ctx context.Context, identity *model.Identity, body []byte) (repository.Row, error) {
	caller, err := s.gate.Authorize(ctx, identity)
	if err != nil {
		return nil, err
	}

	var form resource.SetPrimary
	if err := decodeForm(body, &form); err != nil {
		return nil, err
	}

	link, err := s.store.Get(ctx, linksTable, form.LinkID)
	if err != nil {
		return nil, storeError("get", err)
	}
	if link.String("song_id") != form.SongID {
		return nil, invalid("ссылка %s не принадлежит песне %s", form.LinkID, form.SongID)
	}

	row, err := s.setPrimary(ctx, form.SongID, form.LinkID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Основная ссылка изменена",
		slog.String("song_id", form.SongID),
		slog.String("link_id", form.LinkID),
		slog.String("by", caller.ID),
	)
	return row, nil
}

// setPrimary — две последовательные записи без транзакции.
// Если вторая не удалась, у песни не остаётся основной ссылки.
func (s *StreamingLinkService) setPrimary(ctx context.Context, songID, linkID string) (repository.Row, error) {
	if _, err := s.store.UpdateWhere(ctx, linksTable,
		map[string]any{"song_id": songID},
		repository.Row{"is_primary": false},
	); err != nil {
		return nil, storeError("clear_primary", err)
	}
	s.cache.Invalidate(linksTable)

	row, err := s.store.Update(ctx, linksTable, linkID, repository.Row{"is_primary": true})
	if err != nil {
		s.logger.Error("Основная ссылка сброшена, новая не установлена",
			slog.String("song_id", songID),
			slog.String("link_id", linkID),
			slog.String("error", err.Error()),
		)
		return nil, &PartialFailure{
			Completed: "основная ссылка песни сброшена",
			Failed:    "новая основная ссылка не установлена",
			Err:       err,
		}
	}
	return row, nil
}

// primaryFailure описывает сбой setPrimary после записи самой ссылки.
// PartialFailure второго шага дополняется, а не оборачивается повторно.
func primaryFailure(completed string, err error) *PartialFailure {
	var pf *PartialFailure
	if errors.As(err, &pf) {
		return &PartialFailure{
			Completed: completed + ", " + pf.Completed,
			Failed:    pf.Failed,
			Err:       pf.Err,
		}
	}
	return &PartialFailure{
		Completed: completed,
		Failed:    "основная ссылка не установлена",
		Err:       err,
	}
}

// checkPlatformFree отклоняет форму, если у песни уже есть ссылка
// на платформе (кроме ссылки exceptID). Проверка выполняется до записи.
func (s *StreamingLinkService) checkPlatformFree(ctx context.Context, songID, platform, exceptID string) error {
	var links []repository.Row
	err := s.retry.Do(ctx, linksTable+".select", func(ctx context.Context) error {
		var err error
		links, err = s.store.Select(ctx, linksTable, repository.Filter{
			Eq: map[string]any{"song_id": songID},
		})
		return err
	})
	if err != nil {
		return storeError("select", err)
	}

	for _, l := range links {
		if l.ID() != exceptID && strings.EqualFold(l.String("platform"), platform) {
			return invalid("для песни уже есть ссылка на платформе %s", platform)
		}
	}
	return nil
}
