package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/redmonkez12/taskboard-api/internal/logging"
	"github.com/redmonkez12/taskboard-api/internal/user"
)

// Argon2id parameters
// Time: 3, Memory: 64MB, Threads: 4, KeyLen: 32 bytes
const (
	argon2Time    = 3
	argon2Memory  = 64 * 1024 // 64 MB
	argon2Threads = 4
	argon2KeyLen  = 32
	saltLen       = 16
)

// Service handles authentication business logic
type Service struct {
	users       UserStore
	logins      ExternalLoginStore
	resetTokens PasswordResetStore
	sessions    SessionStore
	states      LoginStateStore
	tokens      TokenService
	email       EmailService
	providers   map[string]Provider
	logger      *logging.Logger
}

func NewService(
	users UserStore,
	logins ExternalLoginStore,
	resetTokens PasswordResetStore,
	sessions SessionStore,
	states LoginStateStore,
	tokens TokenService,
	email EmailService,
	providers []Provider,
	logger *logging.Logger,
) *Service {
	byName := make(map[string]Provider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}

	return &Service{
		users:       users,
		logins:      logins,
		resetTokens: resetTokens,
		sessions:    sessions,
		states:      states,
		tokens:      tokens,
		email:       email,
		providers:   byName,
		logger:      logger,
	}
}

// Register creates a new account and issues an email confirmation
// token. It does not log the user in.
func (s *Service) Register(ctx context.Context, email, password, firstName, lastName string) (*user.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, ErrEmailRequired
	}
	if len(email) > 254 {
		return nil, ErrInvalidEmailFormat
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidEmailFormat
	}
	if password == "" {
		return nil, ErrPasswordRequired
	}
	if len(password) < 8 {
		return nil, ErrPasswordTooShort
	}
	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)
	if firstName == "" {
		return nil, ErrFirstNameRequired
	}
	if lastName == "" {
		return nil, ErrLastNameRequired
	}
	if len(firstName) > 100 || len(lastName) > 100 {
		return nil, ErrNameTooLong
	}

	passwordHash, err := s.hashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	confirmationToken, err := generateRandomToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate confirmation token: %w", err)
	}

	newUser, err := s.users.Create(ctx, user.NewUser{
		Email:             email,
		PasswordHash:      passwordHash,
		FirstName:         firstName,
		LastName:          lastName,
		ConfirmationToken: confirmationToken,
	})
	if err != nil {
		if errors.Is(err, user.ErrDuplicateEmail) {
			return nil, user.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	// Send confirmation email in a goroutine (non-blocking). Delivery
	// failure is not a registration failure.
	go func() {
		emailCtx := context.Background()
		if err := s.email.SendConfirmationEmail(emailCtx, email, confirmationToken); err != nil {
			s.logger.Warn("failed to send confirmation email", "email", email, "error", err)
		}
	}()

	return newUser, nil
}

// Token implements the password grant: verifies credentials and mints
// an access token. Unknown email and wrong password produce the same
// error so callers cannot enumerate accounts.
func (s *Service) Token(ctx context.Context, email, password string) (*TokenResult, error) {
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !s.verifyPassword(existing.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	return s.issueToken(existing)
}

// issueToken mints an access token for the user
func (s *Service) issueToken(u *user.User) (*TokenResult, error) {
	accessToken, err := s.tokens.CreateToken(u)
	if err != nil {
		return nil, fmt.Errorf("failed to create access token: %w", err)
	}

	return &TokenResult{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   s.tokens.ExpiresIn(),
	}, nil
}

// VerifyAccessToken validates a bearer token and checks it has not
// been revoked
func (s *Service) VerifyAccessToken(ctx context.Context, tokenStr string) (*Claims, error) {
	claims, err := s.tokens.VerifyToken(tokenStr)
	if err != nil {
		return nil, err
	}

	revoked, err := s.sessions.IsRevoked(ctx, claims)
	if err != nil {
		return nil, fmt.Errorf("failed to check revocation: %w", err)
	}
	if revoked {
		return nil, ErrTokenRevoked
	}

	return claims, nil
}

// Logout revokes the presented token and every other outstanding
// session of the same account. A nil claim set (anonymous caller) is a
// no-op: logout is idempotent.
func (s *Service) Logout(ctx context.Context, claims *Claims) error {
	if claims == nil {
		return nil
	}

	if claims.ExpiresAt != nil {
		if err := s.sessions.RevokeToken(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
			return fmt.Errorf("failed to revoke token: %w", err)
		}
	}

	userID, err := subjectID(claims)
	if err != nil {
		return err
	}
	if err := s.sessions.RevokeAllUserSessions(ctx, userID); err != nil {
		return fmt.Errorf("failed to revoke user sessions: %w", err)
	}

	return nil
}

// ConfirmEmail confirms a user's email using the confirmation token
func (s *Service) ConfirmEmail(ctx context.Context, token string) error {
	existing, err := s.users.GetByConfirmationToken(ctx, token)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrConfirmationNotFound
		}
		return fmt.Errorf("failed to find user by confirmation token: %w", err)
	}

	if err := s.users.ConfirmEmail(ctx, existing.ID); err != nil {
		return fmt.Errorf("failed to confirm email: %w", err)
	}

	return nil
}

// RequestPasswordReset initiates the password reset process.
// Always returns nil to prevent email enumeration attacks.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		// Don't reveal if the account exists
		if !errors.Is(err, user.ErrNotFound) {
			s.logger.Warn("failed to get user for password reset", "error", err)
		}
		return nil
	}

	token, err := generateRandomToken()
	if err != nil {
		s.logger.Warn("failed to generate password reset token", "error", err)
		return nil
	}

	if err := s.resetTokens.Store(ctx, existing.ID, token); err != nil {
		s.logger.Warn("failed to store password reset token", "error", err)
		return nil
	}

	go func() {
		emailCtx := context.Background()
		if err := s.email.SendPasswordResetEmail(emailCtx, email, token); err != nil {
			s.logger.Warn("failed to send password reset email", "email", email, "error", err)
		}
	}()

	return nil
}

// ResetPassword applies a new password using a valid reset token. The
// token must belong to the account identified by email.
func (s *Service) ResetPassword(ctx context.Context, email, token, newPassword string) error {
	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrInvalidRequest
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	if newPassword == "" {
		return ErrPasswordRequired
	}
	if len(newPassword) < 8 {
		return ErrPasswordTooShort
	}

	userID, err := s.resetTokens.Lookup(ctx, token)
	if err != nil {
		if errors.Is(err, ErrResetTokenNotFound) {
			return ErrResetTokenNotFound
		}
		return fmt.Errorf("failed to get password reset token: %w", err)
	}
	if userID != existing.ID {
		return ErrResetTokenNotFound
	}

	passwordHash, err := s.hashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, existing.ID, passwordHash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	if err := s.resetTokens.Delete(ctx, token); err != nil {
		s.logger.Warn("failed to delete password reset token", "error", err)
	}

	// Outstanding sessions die with the old password
	if err := s.sessions.RevokeAllUserSessions(ctx, existing.ID); err != nil {
		s.logger.Warn("failed to revoke user sessions after password reset", "error", err)
	}

	return nil
}

// hashPassword creates an argon2id hash of the password
func (s *Service) hashPassword(password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey(
		[]byte(password),
		salt,
		argon2Time,
		argon2Memory,
		argon2Threads,
		argon2KeyLen,
	)

	// Encode as: $argon2id$v=19$m=65536,t=3,p=4$salt$hash
	encodedSalt := base64.RawStdEncoding.EncodeToString(salt)
	encodedHash := base64.RawStdEncoding.EncodeToString(hash)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argon2Memory,
		argon2Time,
		argon2Threads,
		encodedSalt,
		encodedHash,
	), nil
}

// verifyPassword checks if a password matches the stored hash. Accounts
// created from an external login carry an empty hash and never match.
func (s *Service) verifyPassword(encodedHash, password string) bool {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		return false
	}

	var version int
	var memory, time uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return false
	}
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	decodedHash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false
	}

	inputHash := argon2.IDKey(
		[]byte(password),
		salt,
		time,
		memory,
		threads,
		uint32(len(decodedHash)),
	)

	return subtle.ConstantTimeCompare(decodedHash, inputHash) == 1
}

// generateRandomToken creates a cryptographically secure random token
func generateRandomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
