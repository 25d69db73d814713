package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/rendez-vous/internal/auth"
	"github.com/example/rendez-vous/internal/persistence"
)

// CredentialStore exposes the member lookups required by the auth service.
type CredentialStore interface {
	GetMember(ctx context.Context, id string) (persistence.Member, error)
	GetMemberByEmail(ctx context.Context, email string) (persistence.Member, error)
}

// TokenIssuer signs and validates session tokens.
type TokenIssuer interface {
	Issue(memberID string, isAdmin bool) (string, time.Time, error)
	Validate(token string) (auth.Claims, error)
}

// PasswordVerifier compares a stored hash with a candidate password.
type PasswordVerifier func(hashedPassword, password string) error

// AuthService coordinates login and token validation.
type AuthService struct {
	credentials    CredentialStore
	tokens         TokenIssuer
	verifyPassword PasswordVerifier
	logger         *slog.Logger
}

// NewAuthService constructs an AuthService. A nil verifier uses argon2id.
func NewAuthService(credentials CredentialStore, tokens TokenIssuer, verify PasswordVerifier, logger *slog.Logger) *AuthService {
	if verify == nil {
		verify = auth.VerifyPassword
	}
	return &AuthService{
		credentials:    credentials,
		tokens:         tokens,
		verifyPassword: verify,
		logger:         defaultLogger(logger),
	}
}

func (s *AuthService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AuthService", operation, attrs...)
}

// Authenticate verifies the credentials and issues a session token.
func (s *AuthService) Authenticate(ctx context.Context, params AuthenticateParams) (result AuthenticateResult, err error) {
	if s == nil || s.credentials == nil || s.tokens == nil {
		return AuthenticateResult{}, fmt.Errorf("AuthService is not configured")
	}

	email := strings.TrimSpace(strings.ToLower(params.Email))
	logger := s.loggerWith(ctx, "Authenticate", "email", email)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "authentication failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "authentication succeeded", "member_id", result.Member.ID)
	}()

	if email == "" || params.Password == "" {
		return AuthenticateResult{}, ErrInvalidCredentials
	}

	stored, err := s.credentials.GetMemberByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return AuthenticateResult{}, ErrInvalidCredentials
		}
		return AuthenticateResult{}, err
	}
	if err := s.verifyPassword(stored.PasswordHash, params.Password); err != nil {
		return AuthenticateResult{}, ErrInvalidCredentials
	}

	token, expires, err := s.tokens.Issue(stored.ID, stored.IsAdmin)
	if err != nil {
		return AuthenticateResult{}, err
	}
	return AuthenticateResult{
		Token:     token,
		ExpiresAt: expires,
		Principal: Principal{UserID: stored.ID, IsAdmin: stored.IsAdmin},
		Member:    toMember(stored),
	}, nil
}

// ValidateToken resolves the principal behind token. The admin flag is read
// from storage so revoked privileges take effect before the token expires.
func (s *AuthService) ValidateToken(ctx context.Context, token string) (Principal, error) {
	if s == nil || s.credentials == nil || s.tokens == nil {
		return Principal{}, fmt.Errorf("AuthService is not configured")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return Principal{}, ErrInvalidCredentials
	}

	claims, err := s.tokens.Validate(token)
	if err != nil {
		s.loggerWith(ctx, "ValidateToken").DebugContext(ctx, "token rejected", "error", err)
		return Principal{}, ErrInvalidCredentials
	}
	stored, err := s.credentials.GetMember(ctx, claims.MemberID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return Principal{}, ErrInvalidCredentials
		}
		return Principal{}, err
	}
	return Principal{UserID: stored.ID, IsAdmin: stored.IsAdmin}, nil
}
