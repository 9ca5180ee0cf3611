package sipgateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/livekit/protocol/auth"
)

// WorkerTokenTTL is the lifetime of tokens handed to deployed agent workers.
const WorkerTokenTTL = 24 * time.Hour

// WorkerClaims is the gateway JWT payload as seen by a verifier.
type WorkerClaims struct {
	Video    *auth.VideoGrant `json:"video,omitempty"`
	Metadata string           `json:"metadata,omitempty"`
	jwt.RegisteredClaims
}

// TokenSigner mints worker tokens with the gateway SDK and verifies them
// against the same API key pair.
type TokenSigner struct {
	apiKey    string
	apiSecret string
	// now is the verification clock; issuance uses the SDK's wall clock.
	now func() time.Time
}

func NewTokenSigner(apiKey, apiSecret string) (*TokenSigner, error) {
	if apiKey == "" || apiSecret == "" {
		return nil, errors.New("sipgateway: api key and secret are required")
	}
	return &TokenSigner{apiKey: apiKey, apiSecret: apiSecret, now: time.Now}, nil
}

func (s *TokenSigner) MintWorkerToken(identity string, ttl time.Duration, metadata map[string]any) (string, error) {
	const op = "mint_worker_token"
	if identity == "" {
		return "", &GatewayError{Kind: KindInvalid, Op: op, Message: "identity is required"}
	}
	if ttl <= 0 {
		return "", &GatewayError{Kind: KindInvalid, Op: op, Message: "ttl must be > 0"}
	}

	grant := &auth.VideoGrant{RoomJoin: true, Agent: true}
	grant.SetCanPublish(true)
	grant.SetCanSubscribe(true)

	at := auth.NewAccessToken(s.apiKey, s.apiSecret).
		SetIdentity(identity).
		SetValidFor(ttl).
		SetVideoGrant(grant)
	if len(metadata) > 0 {
		b, err := json.Marshal(metadata)
		if err != nil {
			return "", &GatewayError{Kind: KindInvalid, Op: op, Message: "metadata is not serializable", Err: err}
		}
		at.SetMetadata(string(b))
	}

	signed, err := at.ToJWT()
	if err != nil {
		return "", &GatewayError{Kind: KindUnknown, Op: op, Message: "signing failed", Err: err}
	}
	return signed, nil
}

// ParseWorkerToken verifies a worker token and returns its claims and decoded metadata.
func (s *TokenSigner) ParseWorkerToken(tokenStr string) (*WorkerClaims, map[string]any, error) {
	claims := &WorkerClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.apiKey),
		jwt.WithTimeFunc(s.now),
	)
	tok, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		return []byte(s.apiSecret), nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("sipgateway: parse worker token: %w", err)
	}
	if !tok.Valid {
		return nil, nil, errors.New("sipgateway: invalid worker token")
	}

	md := map[string]any{}
	if claims.Metadata != "" {
		if err := json.Unmarshal([]byte(claims.Metadata), &md); err != nil {
			return nil, nil, fmt.Errorf("sipgateway: decode metadata: %w", err)
		}
	}
	return claims, md, nil
}
