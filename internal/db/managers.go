package db

import (
	"context"
	"fmt"

	"github.com/dotnet/mbmlbook-sub000/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SaveManager records who manages a person. A person has at most one manager.
func SaveManager(ctx context.Context, pool *pgxpool.Pool, link *models.ManagerLink) error {
	_, err := pool.Exec(ctx, `
		INSERT INTO managers (user_id, person_email, manager_email)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, person_email) DO UPDATE SET
			manager_email = EXCLUDED.manager_email
	`, link.UserID, link.PersonEmail, link.ManagerEmail)
	if err != nil {
		return fmt.Errorf("failed to save manager: %w", err)
	}
	return nil
}

// GetManagers returns all manager links of a user.
func GetManagers(ctx context.Context, pool *pgxpool.Pool, userID string) ([]models.ManagerLink, error) {
	rows, err := pool.Query(ctx, `
		SELECT user_id, person_email, manager_email
		FROM managers
		WHERE user_id = $1
		ORDER BY person_email
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get managers: %w", err)
	}
	defer rows.Close()

	var links []models.ManagerLink
	for rows.Next() {
		var link models.ManagerLink
		if err := rows.Scan(&link.UserID, &link.PersonEmail, &link.ManagerEmail); err != nil {
			return nil, fmt.Errorf("failed to scan manager: %w", err)
		}
		links = append(links, link)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating managers: %w", err)
	}

	return links, nil
}
