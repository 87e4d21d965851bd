package storage

import (
	"context"
	"sort"
	"sync"
)

// MemoryScoreRepo реализует ScoreRepo в памяти.
// Используется по умолчанию и в тестах. Данные теряются при перезапуске сервера.
type MemoryScoreRepo struct {
	mu   sync.RWMutex
	data map[string]ScoreRecord
}

// NewMemoryScoreRepo создает репозиторий в памяти
func NewMemoryScoreRepo() *MemoryScoreRepo {
	return &MemoryScoreRepo{data: make(map[string]ScoreRecord)}
}

func (r *MemoryScoreRepo) Save(ctx context.Context, rec ScoreRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.data[rec.SessionID]; ok && old.Score > rec.Score {
		rec.Score = old.Score
	}
	r.data[rec.SessionID] = rec
	return nil
}

func (r *MemoryScoreRepo) Get(ctx context.Context, sessionID string) (ScoreRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return ScoreRecord{}, false, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.data[sessionID]
	return rec, ok, nil
}

func (r *MemoryScoreRepo) Top(ctx context.Context, n int) ([]ScoreRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}

	r.mu.RLock()
	out := make([]ScoreRecord, 0, len(r.data))
	for _, rec := range r.data {
		out = append(out, rec)
	}
	r.mu.RUnlock()

	SortRecords(out)
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (r *MemoryScoreRepo) Close() error { return nil }

// SortRecords упорядочивает записи: больший счёт раньше, при равенстве - кто набрал раньше
func SortRecords(recs []ScoreRecord) {
	sort.Slice(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.Before(b.UpdatedAt)
		}
		return a.SessionID < b.SessionID
	})
}
