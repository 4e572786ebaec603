package users

import "time"

// User is a registered principal. Stored credentials and session tokens are
// bound to the username, which is immutable after registration.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
}
