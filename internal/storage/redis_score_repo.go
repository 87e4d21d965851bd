package storage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	redisLeaderboardKey = "coin:leaderboard"
	redisSessionPrefix  = "coin:session:"
)

// RedisScoreRepo хранит таблицу рекордов в Redis: ZSET по счёту и hash с деталями сессии
type RedisScoreRepo struct {
	client *redis.Client
}

// NewRedisScoreRepo подключается к Redis по URL вида redis://localhost:6379/0
func NewRedisScoreRepo(ctx context.Context, url string) (*RedisScoreRepo, error) {
	if url == "" {
		url = "redis://localhost:6379/0"
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisScoreRepo{client: client}, nil
}

func (r *RedisScoreRepo) Save(ctx context.Context, rec ScoreRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAddArgs(ctx, redisLeaderboardKey, redis.ZAddArgs{
			GT:      true,
			Members: []redis.Z{{Score: float64(rec.Score), Member: rec.SessionID}},
		})
		pipe.HSet(ctx, redisSessionPrefix+rec.SessionID,
			"player_id", rec.PlayerID,
			"updated_at", rec.UpdatedAt.UnixMilli(),
		)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save %s: %w", rec.SessionID, err)
	}
	return nil
}

func (r *RedisScoreRepo) Get(ctx context.Context, sessionID string) (ScoreRecord, bool, error) {
	score, err := r.client.ZScore(ctx, redisLeaderboardKey, sessionID).Result()
	if err == redis.Nil {
		return ScoreRecord{}, false, nil
	}
	if err != nil {
		return ScoreRecord{}, false, err
	}

	rec, err := r.loadDetails(ctx, sessionID)
	if err != nil {
		return ScoreRecord{}, false, err
	}
	rec.Score = uint32(score)
	return rec, true, nil
}

func (r *RedisScoreRepo) Top(ctx context.Context, n int) ([]ScoreRecord, error) {
	if n <= 0 {
		return nil, nil
	}
	entries, err := r.client.ZRevRangeWithScores(ctx, redisLeaderboardKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis top: %w", err)
	}

	out := make([]ScoreRecord, 0, len(entries))
	for _, z := range entries {
		sid, _ := z.Member.(string)
		rec, err := r.loadDetails(ctx, sid)
		if err != nil {
			return nil, err
		}
		rec.Score = uint32(z.Score)
		out = append(out, rec)
	}
	return out, nil
}

func (r *RedisScoreRepo) loadDetails(ctx context.Context, sessionID string) (ScoreRecord, error) {
	fields, err := r.client.HGetAll(ctx, redisSessionPrefix+sessionID).Result()
	if err != nil {
		return ScoreRecord{}, fmt.Errorf("redis details %s: %w", sessionID, err)
	}

	rec := ScoreRecord{SessionID: sessionID}
	if v, err := strconv.ParseUint(fields["player_id"], 10, 32); err == nil {
		rec.PlayerID = uint32(v)
	}
	if v, err := strconv.ParseInt(fields["updated_at"], 10, 64); err == nil {
		rec.UpdatedAt = time.UnixMilli(v).UTC()
	}
	return rec, nil
}

func (r *RedisScoreRepo) Close() error {
	return r.client.Close()
}
