// Package cache держит горячие чтения таблицы рекордов в памяти процесса.
package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/annel0/coin-collector/internal/storage"
	"github.com/dgraph-io/ristretto"
)

// Metrics - статистика попаданий в кеш
type Metrics struct {
	Hits     uint64  `json:"hits"`
	Misses   uint64  `json:"misses"`
	HitRatio float64 `json:"hit_ratio"`
}

// ScoreCache - storage.ScoreRepo, у которого Top отдаётся из кеша до истечения TTL.
// Save и Get идут напрямую в хранилище, поэтому таблица может отставать не больше чем на TTL.
type ScoreCache struct {
	storage.ScoreRepo

	cache *ristretto.Cache
	ttl   time.Duration
}

// NewScoreCache оборачивает repo кешем. ttl <= 0 выключает кеширование.
func NewScoreCache(repo storage.ScoreRepo, ttl time.Duration) (*ScoreCache, error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1000,
		MaxCost:     10000, // стоимость записи - число строк таблицы
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("create score cache: %w", err)
	}
	return &ScoreCache{ScoreRepo: repo, cache: c, ttl: ttl}, nil
}

func topKey(n int) string {
	return "top:" + strconv.Itoa(n)
}

// Top возвращает n лучших результатов
func (c *ScoreCache) Top(ctx context.Context, n int) ([]storage.ScoreRecord, error) {
	if c.ttl <= 0 {
		return c.ScoreRepo.Top(ctx, n)
	}

	key := topKey(n)
	if v, ok := c.cache.Get(key); ok {
		return append([]storage.ScoreRecord(nil), v.([]storage.ScoreRecord)...), nil
	}

	recs, err := c.ScoreRepo.Top(ctx, n)
	if err != nil {
		return nil, err
	}
	c.cache.SetWithTTL(key, append([]storage.ScoreRecord(nil), recs...), int64(len(recs))+1, c.ttl)
	c.cache.Wait()
	return recs, nil
}

// Invalidate сбрасывает все закешированные ответы
func (c *ScoreCache) Invalidate() {
	c.cache.Clear()
}

// Metrics возвращает статистику попаданий
func (c *ScoreCache) Metrics() Metrics {
	m := c.cache.Metrics
	return Metrics{Hits: m.Hits(), Misses: m.Misses(), HitRatio: m.Ratio()}
}

// Close освобождает кеш и закрывает хранилище
func (c *ScoreCache) Close() error {
	c.cache.Close()
	return c.ScoreRepo.Close()
}
