package models

import "time"

// User is a registered account. HashedPassword never leaves the backend.
type User struct {
	ID             int64     `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	Mobile         string    `json:"mobile"`
	HashedPassword string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}
