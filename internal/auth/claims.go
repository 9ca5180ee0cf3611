package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims are the only supported JWT claims shape for this service.
// Every caller acts on behalf of exactly one account; AccountID scopes all
// deployment and usage operations.
type Claims struct {
	jwt.RegisteredClaims

	UserID    string    `json:"user_id"`
	AccountID string    `json:"account_id"`
	Role      string    `json:"role"`
	TokenType TokenType `json:"token_type"`
}
