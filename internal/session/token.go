// Package session issues and validates claim-session tokens. A session is
// one user's pass through the wizard; every wizard endpoint is scoped to it.
package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dErrors "flightclaim/pkg/domain-errors"
)

// Claims are the JWT claims carried by a session token.
type Claims struct {
	SessionID string `json:"session_id"`
	Device    string `json:"device,omitempty"`
	jwt.RegisteredClaims
}

// TokenService creates and validates session tokens.
type TokenService struct {
	signingKey []byte
	issuer     string
	ttl        time.Duration
}

func NewTokenService(signingKey string, ttl time.Duration) *TokenService {
	return &TokenService{
		signingKey: []byte(signingKey),
		issuer:     "flightclaim",
		ttl:        ttl,
	}
}

// Issue mints a fresh session ID and its signed token.
func (s *TokenService) Issue(device string) (sessionID, token string, err error) {
	sessionID = uuid.NewString()
	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		SessionID: sessionID,
		Device:    device,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    s.issuer,
			ID:        uuid.NewString(),
		},
	})
	token, err = newToken.SignedString(s.signingKey)
	if err != nil {
		return "", "", err
	}
	return sessionID, token, nil
}

// ValidateToken checks signature and expiry and returns the session ID.
// Satisfies middleware.SessionValidator.
func (s *TokenService) ValidateToken(tokenString string) (string, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", dErrors.New(dErrors.CodeUnauthorized, "session has expired")
		}
		return "", dErrors.New(dErrors.CodeUnauthorized, "invalid session token")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.SessionID == "" {
		return "", dErrors.New(dErrors.CodeUnauthorized, "invalid session token")
	}
	return claims.SessionID, nil
}
