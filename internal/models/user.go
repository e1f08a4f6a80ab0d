package models

import (
	"time"
)

// User is the owner of one imported mailbox.
type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ManagerLink records that ManagerEmail manages PersonEmail in the user's organisation.
type ManagerLink struct {
	UserID       string `json:"user_id"`
	PersonEmail  string `json:"person_email"`
	ManagerEmail string `json:"manager_email"`
}
