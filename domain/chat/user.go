package chat

import "time"

// User is an account as held by the user store.
type User struct {
	ID           UserID
	Username     string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
}

// Identity returns the session identity of the account.
func (u User) Identity() Identity {
	return Identity{ID: u.ID, Username: u.Username, Role: u.Role}
}
