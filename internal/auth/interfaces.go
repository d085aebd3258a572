package auth

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/redmonkez12/taskboard-api/internal/user"
)

// TokenService signs and verifies access tokens.
// The production implementation is JWTService (HS256).
type TokenService interface {
	CreateToken(u *user.User) (string, error)
	VerifyToken(tokenStr string) (*Claims, error)
	ExpiresIn() int64
	TokenDuration() time.Duration
}

// UserStore is the account store consumed by the auth flow. Implemented
// by user.Repository.
type UserStore interface {
	Create(ctx context.Context, nu user.NewUser) (*user.User, error)
	GetByEmail(ctx context.Context, email string) (*user.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
	GetByConfirmationToken(ctx context.Context, token string) (*user.User, error)
	ConfirmEmail(ctx context.Context, userID uuid.UUID) error
	UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error
}

// ExternalLoginStore persists (provider, provider key) → account links
type ExternalLoginStore interface {
	Find(ctx context.Context, provider, providerKey string) (uuid.UUID, error)
	Link(ctx context.Context, userID uuid.UUID, provider, providerKey string) error
}

// PasswordResetStore holds short-lived password reset tokens
type PasswordResetStore interface {
	Store(ctx context.Context, userID uuid.UUID, token string) error
	Lookup(ctx context.Context, token string) (uuid.UUID, error)
	Delete(ctx context.Context, token string) error
}

// SessionStore tracks revoked tokens and sessions. Tokens themselves
// are stateless; this store is consulted only to honor logout and
// password-change revocation.
type SessionStore interface {
	RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error
	RevokeAllUserSessions(ctx context.Context, userID uuid.UUID) error
	IsRevoked(ctx context.Context, claims *Claims) (bool, error)
}

// LoginStateStore holds the pending external-login flow between the
// initiate redirect and the provider callback
type LoginStateStore interface {
	Store(ctx context.Context, state string, ls LoginState) error
	Consume(ctx context.Context, state string) (*LoginState, error)
}

// EmailService defines the interface for email operations
type EmailService interface {
	SendConfirmationEmail(ctx context.Context, toEmail, token string) error
	SendPasswordResetEmail(ctx context.Context, toEmail, token string) error
}
