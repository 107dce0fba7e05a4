package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}

// ActorID returns the acting user id, or nil for system callers.
func (c *JWTClaims) ActorID() *string {
	if c == nil || c.UserID == "" {
		return nil
	}
	id := c.UserID
	return &id
}
