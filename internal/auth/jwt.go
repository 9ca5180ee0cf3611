package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"voice-agent-platform/internal/config"
)

type Manager struct {
	secret     []byte
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewManager(cfg config.AuthConfig) (*Manager, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	return &Manager{
		secret:     []byte(cfg.JWTSecret),
		issuer:     cfg.JWTIssuer,
		audience:   cfg.JWTAudience,
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
	}, nil
}

var (
	ErrTokenTypeMismatch = errors.New("token_type mismatch")
	ErrMissingIdentity   = errors.New("token is missing identity claims")
)

type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// IssuePair signs an access and a refresh token for one account member.
// Refresh tokens do not carry a role.
func (m *Manager) IssuePair(now time.Time, userID, accountID, role string) (TokenPair, error) {
	access, err := m.issue(
		now,
		TokenTypeAccess,
		userID,
		accountID,
		role,
		m.accessTTL,
	)
	if err != nil {
		return TokenPair{}, err
	}

	refresh, err := m.issue(
		now,
		TokenTypeRefresh,
		userID,
		accountID,
		"",
		m.refreshTTL,
	)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}

// Verify parses and validates a token of the expected type at time now.
func (m *Manager) Verify(tokenString string, expected TokenType, now time.Time) (Claims, error) {
	var claims Claims

	// Time-based claims are validated below against now, not the wall clock.
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	_, err := parser.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil {
		return Claims{}, err
	}

	opts := []jwt.ParserOption{
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithLeeway(30 * time.Second),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	}

	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}
	if m.audience != "" {
		opts = append(opts, jwt.WithAudience(m.audience))
	}

	validator := jwt.NewValidator(opts...)
	if err := validator.Validate(claims.RegisteredClaims); err != nil {
		return Claims{}, err
	}

	if claims.TokenType != expected {
		return Claims{}, ErrTokenTypeMismatch
	}
	if claims.UserID == "" || claims.AccountID == "" {
		return Claims{}, ErrMissingIdentity
	}
	if expected == TokenTypeAccess && claims.Role == "" {
		return Claims{}, fmt.Errorf("%w: role", ErrMissingIdentity)
	}

	return claims, nil
}

func (m *Manager) issue(
	now time.Time,
	tokenType TokenType,
	userID,
	accountID,
	role string,
	ttl time.Duration,
) (string, error) {

	jti := uuid.NewString()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Audience:  audienceOrNil(m.audience),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        jti,
		},
		UserID:      userID,
		AccountID: accountID,
		Role:        role,
		TokenType:   tokenType,
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(m.secret)
}

func audienceOrNil(aud string) jwt.ClaimStrings {
	if aud == "" {
		return nil
	}
	return jwt.ClaimStrings{aud}
}
