package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dotnet/mbmlbook-sub000/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrEmptyEmail is returned when a mailbox owner has no email address.
var ErrEmptyEmail = errors.New("user email is empty")

// GetOrCreateUser returns the mailbox owner with the given email, creating it if needed.
// Emails are stored lowercased so differently cased owner addresses map to one user.
// A non-empty displayName replaces the stored one.
func GetOrCreateUser(ctx context.Context, pool *pgxpool.Pool, email, displayName string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, ErrEmptyEmail
	}

	var user models.User
	err := pool.QueryRow(ctx, `
		INSERT INTO users (email, display_name)
		VALUES ($1, $2)
		ON CONFLICT (email) DO UPDATE
		SET display_name = CASE WHEN EXCLUDED.display_name = '' THEN users.display_name ELSE EXCLUDED.display_name END,
		    updated_at = now()
		RETURNING id, email, display_name, created_at, updated_at
	`, email, strings.TrimSpace(displayName)).Scan(&user.ID, &user.Email, &user.DisplayName, &user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		return nil, fmt.Errorf("failed to get or create user: %w", err)
	}

	return &user, nil
}
