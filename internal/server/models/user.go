package models

import "time"

// User is an account that owns tournaments. Token is the raw 32-byte access
// token; it is valid until TokenExpiration.
type User struct {
	ID              int64
	Email           string
	PasswordHash    string
	Token           []byte
	TokenExpiration *time.Time
}
