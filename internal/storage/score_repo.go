// Package storage хранит таблицу рекордов: счёт каждой игровой сессии.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/annel0/coin-collector/internal/config"
)

// ErrInvalidRecord - запись без сессии или игрока
var ErrInvalidRecord = errors.New("invalid score record")

// ScoreRecord - счёт игрока за одну сессию.
// Идентификатор игрока выдаётся заново при каждом запуске сервера, поэтому ключ - SessionID.
type ScoreRecord struct {
	SessionID string    `json:"session_id" bson:"session_id"`
	PlayerID  uint32    `json:"player_id" bson:"player_id"`
	Score     uint32    `json:"score" bson:"score"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// Validate проверяет обязательные поля
func (r ScoreRecord) Validate() error {
	if r.SessionID == "" {
		return fmt.Errorf("%w: empty session id", ErrInvalidRecord)
	}
	if r.PlayerID == 0 {
		return fmt.Errorf("%w: player id 0", ErrInvalidRecord)
	}
	return nil
}

// ScoreRepo определяет хранилище рекордов.
type ScoreRepo interface {
	// Save сохраняет запись. Счёт сессии никогда не уменьшается.
	Save(ctx context.Context, rec ScoreRecord) error

	// Get возвращает запись сессии; false если её нет
	Get(ctx context.Context, sessionID string) (ScoreRecord, bool, error)

	// Top возвращает до n лучших записей по убыванию счёта
	Top(ctx context.Context, n int) ([]ScoreRecord, error)

	Close() error
}

// Open создаёт репозиторий по настройкам
func Open(ctx context.Context, cfg config.StorageConfig) (ScoreRepo, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryScoreRepo(), nil
	case "redis":
		return NewRedisScoreRepo(ctx, cfg.RedisURL)
	case "mysql":
		return NewMariaScoreRepo(ctx, cfg.MySQLDSN)
	case "mongo":
		return NewMongoScoreRepo(ctx, cfg.MongoURI, cfg.MongoDB)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
