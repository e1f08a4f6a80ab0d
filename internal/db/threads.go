package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/dotnet/mbmlbook-sub000/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrThreadNotFound is returned when a requested thread cannot be found.
var ErrThreadNotFound = errors.New("thread not found")

// SaveThread saves or updates a thread in the database.
func SaveThread(ctx context.Context, pool *pgxpool.Pool, thread *models.Thread) error {
	var threadID string

	err := pool.QueryRow(ctx, `
		INSERT INTO threads (user_id, stable_thread_id, subject)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, stable_thread_id) DO UPDATE SET
			subject = EXCLUDED.subject
		RETURNING id
	`, thread.UserID, thread.StableThreadID, thread.Subject).Scan(&threadID)

	if err != nil {
		return fmt.Errorf("failed to save thread: %w", err)
	}

	thread.ID = threadID
	return nil
}

// GetThreadByStableID returns a thread by its stable thread ID.
func GetThreadByStableID(ctx context.Context, pool *pgxpool.Pool, userID, stableThreadID string) (*models.Thread, error) {
	var thread models.Thread

	err := pool.QueryRow(ctx, `
		SELECT id, user_id, stable_thread_id, subject
		FROM threads
		WHERE user_id = $1 AND stable_thread_id = $2
	`, userID, stableThreadID).Scan(
		&thread.ID,
		&thread.UserID,
		&thread.StableThreadID,
		&thread.Subject,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrThreadNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get thread: %w", err)
	}

	return &thread, nil
}

// CountThreads returns the number of threads stored for a user.
func CountThreads(ctx context.Context, pool *pgxpool.Pool, userID string) (int, error) {
	var count int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM threads WHERE user_id = $1`, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count threads: %w", err)
	}
	return count, nil
}
