package domain

import "time"

// User is an account known to the token service.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Role         Role
	Enabled      bool
	CreatedAt    time.Time
}
