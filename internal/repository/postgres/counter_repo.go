package postgres

import (
	"context"
	"fmt"
	"time"

	"taskbot/internal/logger"
	"taskbot/internal/models"
	repo "taskbot/internal/repository"
)

// AllocateNextID bumps the named counter atomically in storage. Concurrent
// creators each get a distinct value; an in-process counter would race
// across handler goroutines and restarts.
func (s *Storage) AllocateNextID(ctx context.Context, name string) (int64, error) {
	start := time.Now()
	defer warnSlow("allocate_next_id", start)

	query := `INSERT INTO counters (name, value) VALUES ($1, 1)
			ON CONFLICT (name) DO UPDATE SET value = counters.value + 1
			RETURNING value`

	var value int64
	if err := s.pool.QueryRow(ctx, query, name).Scan(&value); err != nil {
		logger.Error("Repository: failed to allocate id", err)
		return 0, fmt.Errorf("allocate next id: %w", err)
	}
	return value, nil
}

func (s *Storage) UpsertUser(ctx context.Context, u *models.User) error {
	start := time.Now()
	defer warnSlow("upsert_user", start)

	query := `INSERT INTO users (id, username, chat_id) VALUES ($1, $2, $3)
			ON CONFLICT (id) DO UPDATE SET username = $2, chat_id = $3`

	if _, err := s.pool.Exec(ctx, query, u.ID, u.Username, u.ChatID); err != nil {
		logger.Error("Repository: failed to upsert user", err)
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

func (s *Storage) GetUser(ctx context.Context, id int64) (*models.User, error) {
	start := time.Now()
	defer warnSlow("get_user", start)

	query := `SELECT id, username, chat_id, created_at FROM users WHERE id = $1`

	u := &models.User{}
	err := s.pool.QueryRow(ctx, query, id).Scan(&u.ID, &u.Username, &u.ChatID, &u.CreatedAt)
	if err != nil {
		return nil, repo.ErrNotFound
	}
	return u, nil
}
