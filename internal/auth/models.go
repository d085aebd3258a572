package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailRequired      = errors.New("email is required")
	ErrInvalidEmailFormat = errors.New("invalid email format")
	ErrPasswordRequired   = errors.New("password is required")
	ErrPasswordTooShort   = errors.New("password must be at least 8 characters")
	ErrFirstNameRequired  = errors.New("first name is required")
	ErrLastNameRequired   = errors.New("last name is required")
	ErrNameTooLong        = errors.New("name must be at most 100 characters")

	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
	ErrTokenRevoked = errors.New("token has been revoked")

	ErrUnknownProvider      = errors.New("provider is not configured")
	ErrLoginStateNotFound   = errors.New("external login state not found")
	ErrEmailClaimMissing    = errors.New("external provider did not supply an email")
	ErrExternalLoginNotFound = errors.New("external login not found")
	ErrExternalLoginTaken    = errors.New("external login is already linked to another account")

	ErrInvalidRequest        = errors.New("invalid request")
	ErrResetTokenNotFound    = errors.New("password reset token not found")
	ErrConfirmationNotFound  = errors.New("confirmation token not found")
)

// TokenResult is the response body of a successful token grant
type TokenResult struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// ExternalIdentity is what an OAuth provider tells us about a user
// after a successful code exchange.
type ExternalIdentity struct {
	Provider    string
	ProviderKey string // provider-assigned stable user id
	Email       string
	FirstName   string
	LastName    string
}

// LoginState is the pending external-login flow stored between the
// initiate redirect and the provider callback.
type LoginState struct {
	Provider  string
	ReturnURL string
}

// hashToken hashes opaque tokens before they are used as storage keys,
// so a leaked store dump does not yield usable tokens
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
