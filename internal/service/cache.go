// cache.go — LRU-кэш публичных выборок с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable. Админские мутации
// сбрасывают записи своей таблицы и увеличивают её поколение:
// выборка, начатая до сброса, в кэш не попадает.
package service

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Noctifera-Records/nexdrak-site-sub000/internal/repository"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "site_cache_hits_total",
		Help: "Общее количество попаданий в кэш публичных выборок.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "site_cache_misses_total",
		Help: "Общее количество промахов кэша публичных выборок.",
	})
)

// CacheService — кэш публичных выборок. Ключ — "<таблица>:<вариант>".
type CacheService struct {
	cache *expirable.LRU[string, []repository.Row]

	mu          sync.Mutex
	generations map[string]uint64 // таблица → номер сброса
}

// NewCacheService создаёт кэш с максимальным размером maxSize и временем жизни ttl.
func NewCacheService(maxSize int, ttl time.Duration) *CacheService {
	return &CacheService{
		cache:       expirable.NewLRU[string, []repository.Row](maxSize, nil, ttl),
		generations: make(map[string]uint64),
	}
}

func cacheKey(table, variant string) string {
	return table + ":" + variant
}

// Get возвращает выборку из кэша. Обновляет метрики hit/miss.
func (c *CacheService) Get(table, variant string) ([]repository.Row, bool) {
	rows, ok := c.cache.Get(cacheKey(table, variant))
	if ok {
		cacheHitsTotal.Inc()
		return rows, true
	}
	cacheMissesTotal.Inc()
	return nil, false
}

// Generation возвращает текущее поколение таблицы. Читается до выборки
// из хранилища и передаётся в Set.
func (c *CacheService) Generation(table string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[table]
}

// Set сохраняет выборку, если с момента Generation таблица не сбрасывалась.
// Возвращает false, если выборка устарела и не сохранена.
func (c *CacheService) Set(table, variant string, gen uint64, rows []repository.Row) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[table] != gen {
		return false
	}
	c.cache.Add(cacheKey(table, variant), rows)
	return true
}

// Invalidate удаляет все выборки таблицы и увеличивает её поколение.
func (c *CacheService) Invalidate(table string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generations[table]++

	prefix := table + ":"
	for _, key := range c.cache.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.cache.Remove(key)
		}
	}
}

// Len возвращает количество записей в кэше.
func (c *CacheService) Len() int {
	return c.cache.Len()
}

// CheckReady сообщает заполненность кэша для /health/ready.
func (c *CacheService) CheckReady() (status string, message string) {
	return "ok", fmt.Sprintf("записей в кэше: %d", c.Len())
}
