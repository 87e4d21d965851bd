package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

// MariaScoreRepo реализует ScoreRepo для MariaDB/MySQL.
// Использует таблицу coin_scores.
type MariaScoreRepo struct {
	db *sql.DB
}

// NewMariaScoreRepo подключается к базе и создаёт таблицу, если её нет.
// dsn: user:pass@tcp(host:port)/dbname; parseTime включается принудительно.
func NewMariaScoreRepo(ctx context.Context, dsn string) (*MariaScoreRepo, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("некорректный DSN: %w", err)
	}
	cfg.ParseTime = true

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("не удалось подключиться к MariaDB: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось проверить соединение с MariaDB: %w", err)
	}

	repo := &MariaScoreRepo{db: db}
	if err := repo.createTable(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось создать таблицу: %w", err)
	}
	return repo, nil
}

func (r *MariaScoreRepo) createTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS coin_scores (
			session_id CHAR(36)     PRIMARY KEY,
			player_id  INT UNSIGNED NOT NULL,
			score      INT UNSIGNED NOT NULL DEFAULT 0,
			updated_at DATETIME(3)  NOT NULL,
			INDEX idx_score (score DESC, updated_at)
		) ENGINE=InnoDB
	`
	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("ошибка создания таблицы coin_scores: %w", err)
	}
	return nil
}

// Save сохраняет запись; счёт обновляется через GREATEST и не уменьшается.
func (r *MariaScoreRepo) Save(ctx context.Context, rec ScoreRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO coin_scores (session_id, player_id, score, updated_at)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			player_id = VALUES(player_id),
			score = GREATEST(score, VALUES(score)),
			updated_at = VALUES(updated_at)
	`
	if _, err := r.db.ExecContext(ctx, query, rec.SessionID, rec.PlayerID, rec.Score, rec.UpdatedAt.UTC()); err != nil {
		return fmt.Errorf("ошибка сохранения счёта сессии %s: %w", rec.SessionID, err)
	}
	return nil
}

func (r *MariaScoreRepo) Get(ctx context.Context, sessionID string) (ScoreRecord, bool, error) {
	query := `SELECT session_id, player_id, score, updated_at FROM coin_scores WHERE session_id = ?`

	var rec ScoreRecord
	err := r.db.QueryRowContext(ctx, query, sessionID).Scan(&rec.SessionID, &rec.PlayerID, &rec.Score, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return ScoreRecord{}, false, nil
	}
	if err != nil {
		return ScoreRecord{}, false, fmt.Errorf("ошибка загрузки счёта сессии %s: %w", sessionID, err)
	}
	return rec, true, nil
}

func (r *MariaScoreRepo) Top(ctx context.Context, n int) ([]ScoreRecord, error) {
	if n <= 0 {
		return nil, nil
	}

	query := `
		SELECT session_id, player_id, score, updated_at
		FROM coin_scores
		ORDER BY score DESC, updated_at ASC, session_id ASC
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, n)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения таблицы рекордов: %w", err)
	}
	defer rows.Close()

	var out []ScoreRecord
	for rows.Next() {
		var rec ScoreRecord
		if err := rows.Scan(&rec.SessionID, &rec.PlayerID, &rec.Score, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close закрывает соединение с базой данных.
func (r *MariaScoreRepo) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}
