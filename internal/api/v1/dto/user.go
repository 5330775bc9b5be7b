package dto

import "time"

// UserResponseDTO is returned by the auth callback.
type UserResponseDTO struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}
