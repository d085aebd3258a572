package auth

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/redmonkez12/taskboard-api/internal/user"
)

// Claims is the claim set minted into every access token
type Claims struct {
	Email string   `json:"email"`
	Name  string   `json:"name"`
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// JWTService signs and verifies HS256 access tokens. The symmetric
// secret, issuer and audience come from configuration and never change
// after construction.
type JWTService struct {
	secret   []byte
	issuer   string
	audience string
	duration time.Duration
}

func NewJWTService(secret []byte, issuer, audience string, duration time.Duration) (*JWTService, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("signing secret must be at least 32 bytes, got %d", len(secret))
	}

	return &JWTService{
		secret:   secret,
		issuer:   issuer,
		audience: audience,
		duration: duration,
	}, nil
}

// CreateToken mints a signed access token for the user. The role claim
// always contains "user" plus every role assigned to the account,
// deduplicated.
func (s *JWTService) CreateToken(u *user.User) (string, error) {
	now := time.Now()

	claims := &Claims{
		Email: u.Email,
		Name:  u.DisplayName(),
		Roles: buildRoleSet(u.Roles),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   u.ID.String(),
			Audience:  jwt.ClaimStrings{s.audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(s.duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(), // jti, used for revocation
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// VerifyToken validates signature, issuer, audience and expiry, and
// returns the embedded claims
func (s *JWTService) VerifyToken(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
	)

	_, err := parser.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// ExpiresIn returns the configured token lifetime in whole seconds,
// for the expires_in response field
func (s *JWTService) ExpiresIn() int64 {
	return int64(s.duration.Seconds())
}

// TokenDuration returns the configured token lifetime
func (s *JWTService) TokenDuration() time.Duration {
	return s.duration
}

// subjectID parses the subject claim back into a user id
func subjectID(claims *Claims) (uuid.UUID, error) {
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}
	return id, nil
}

// buildRoleSet merges the implicit "user" role with assigned roles and
// drops duplicates
func buildRoleSet(assigned []string) []string {
	seen := map[string]bool{"user": true}
	roles := []string{"user"}
	for _, role := range assigned {
		if role == "" || seen[role] {
			continue
		}
		seen[role] = true
		roles = append(roles, role)
	}
	sort.Strings(roles[1:])
	return roles
}
