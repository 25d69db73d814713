// Package auth issues session tokens and hashes member passwords.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "rendez-vous"

// ErrInvalidToken is returned for tokens that are malformed, expired or
// signed with another key.
var ErrInvalidToken = errors.New("auth: invalid token")

// Claims identify the member a token was issued to.
type Claims struct {
	MemberID string `json:"mid"`
	IsAdmin  bool   `json:"adm,omitempty"`
	jwt.RegisteredClaims
}

// TokenService signs and validates HS256 session tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService returns a TokenService. A non-positive ttl defaults to 24h.
func NewTokenService(secret string, ttl time.Duration, now func() time.Time) (*TokenService, error) {
	if secret == "" {
		return nil, errors.New("auth: token secret is required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if now == nil {
		now = time.Now
	}
	return &TokenService{secret: []byte(secret), ttl: ttl, now: now}, nil
}

// Issue returns a signed token for memberID and its expiry.
func (s *TokenService) Issue(memberID string, isAdmin bool) (string, time.Time, error) {
	now := s.now()
	expires := now.Add(s.ttl).Truncate(time.Second)
	claims := Claims{
		MemberID: memberID,
		IsAdmin:  isAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   memberID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return token, expires, nil
}

// Validate parses token and returns its claims.
func (s *TokenService) Validate(token string) (Claims, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.now),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.MemberID == "" {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}
