// dashboard.go — счётчики для главной страницы админки.
package service

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/Noctifera-Records/nexdrak-site-sub000/internal/domain/model"
	"github.com/Noctifera-Records/nexdrak-site-sub000/internal/repository"
)

// DashboardStats — количество записей в основных таблицах.
type DashboardStats struct {
	Songs     int64 `json:"songs"`
	Releases  int64 `json:"releases"`
	Merch     int64 `json:"merch"`
	Events    int64 `json:"events"`
	Downloads int64 `json:"downloads"`
	Users     int64 `json:"users"`
}

// DashboardService выполняет шесть независимых подсчётов параллельно.
type DashboardService struct {
	store repository.TableStore
	gate  *Gate
	retry *Retrier
}

// NewDashboardService создаёт сервис счётчиков.
func NewDashboardService(store repository.TableStore, gate *Gate, retry *Retrier) *DashboardService {
	return &DashboardService{store: store, gate: gate, retry: retry}
}

// Stats возвращает счётчики. Ошибка любого подсчёта отменяет остальные.
func (s *DashboardService) Stats(ctx context.Context, identity *model.Identity) (*DashboardStats, error) {
	if _, err := s.gate.Authorize(ctx, identity); err != nil {
		return nil, err
	}

	stats := &DashboardStats{}
	targets := []struct {
		table string
		dst   *int64
	}{
		{"songs", &stats.Songs},
		{"releases", &stats.Releases},
		{"merch", &stats.Merch},
		{"events", &stats.Events},
		{"downloads", &stats.Downloads},
		{"profiles", &stats.Users},
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, t := range targets {
		g.Go(func() error {
			return s.retry.Do(gctx, t.table+".count", func(ctx context.Context) error {
				n, err := s.store.Count(ctx, t.table, nil)
				if err != nil {
					return err
				}
				*t.dst = n
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, storeError("count", err)
	}
	return stats, nil
}
