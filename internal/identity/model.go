package identity

import "time"

// User is a registered player account.
type User struct {
	ID           string
	Username     string
	Email        string
	Avatar       string
	PasswordHash []byte
	TokenVersion int
	CreatedAt    time.Time
	LastActive   time.Time
}

// Registration carries the sign-up form.
type Registration struct {
	Username string
	Email    string
	Password string
}

// Credentials carries the login form.
type Credentials struct {
	Username string
	Password string
}
