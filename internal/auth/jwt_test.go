package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/taskboard-api/internal/user"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestJWTService(t *testing.T, duration time.Duration) *JWTService {
	t.Helper()

	svc, err := NewJWTService(testSecret, "taskboard-api", "taskboard-clients", duration)
	require.NoError(t, err)
	return svc
}

func testUser() *user.User {
	return &user.User{
		ID:        uuid.New(),
		Email:     "alice@example.com",
		FirstName: "Alice",
		LastName:  "Smith",
	}
}

func TestNewJWTService_RejectsShortSecret(t *testing.T) {
	_, err := NewJWTService([]byte("too-short"), "iss", "aud", time.Hour)
	assert.Error(t, err)
}

func TestCreateToken_ClaimSet(t *testing.T) {
	svc := newTestJWTService(t, time.Hour)
	u := testUser()

	tokenStr, err := svc.CreateToken(u)
	require.NoError(t, err)

	claims, err := svc.VerifyToken(tokenStr)
	require.NoError(t, err)

	assert.Equal(t, u.ID.String(), claims.Subject)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.Equal(t, "Alice Smith", claims.Name)
	assert.Equal(t, "taskboard-api", claims.Issuer)
	assert.Contains(t, claims.Audience, "taskboard-clients")
	assert.NotEmpty(t, claims.ID, "every token carries a unique jti")
	assert.Contains(t, claims.Roles, "user")

	require.NotNil(t, claims.ExpiresAt)
	require.NotNil(t, claims.IssuedAt)
	lifetime := claims.ExpiresAt.Time.Sub(claims.IssuedAt.Time)
	assert.Equal(t, time.Hour, lifetime)
}

func TestCreateToken_RolesDeduplicated(t *testing.T) {
	svc := newTestJWTService(t, time.Hour)
	u := testUser()
	u.Roles = []string{"admin", "user", "admin", ""}

	tokenStr, err := svc.CreateToken(u)
	require.NoError(t, err)

	claims, err := svc.VerifyToken(tokenStr)
	require.NoError(t, err)

	assert.Equal(t, []string{"user", "admin"}, claims.Roles)
}

func TestCreateToken_UniqueJTI(t *testing.T) {
	svc := newTestJWTService(t, time.Hour)
	u := testUser()

	first, err := svc.CreateToken(u)
	require.NoError(t, err)
	second, err := svc.CreateToken(u)
	require.NoError(t, err)

	firstClaims, err := svc.VerifyToken(first)
	require.NoError(t, err)
	secondClaims, err := svc.VerifyToken(second)
	require.NoError(t, err)

	assert.NotEqual(t, firstClaims.ID, secondClaims.ID)
}

func TestVerifyToken_WrongSecret(t *testing.T) {
	svc := newTestJWTService(t, time.Hour)

	other, err := NewJWTService([]byte("another-secret-another-secret-32"), "taskboard-api", "taskboard-clients", time.Hour)
	require.NoError(t, err)

	tokenStr, err := other.CreateToken(testUser())
	require.NoError(t, err)

	_, err = svc.VerifyToken(tokenStr)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyToken_WrongAudience(t *testing.T) {
	svc := newTestJWTService(t, time.Hour)

	other, err := NewJWTService(testSecret, "taskboard-api", "someone-else", time.Hour)
	require.NoError(t, err)

	tokenStr, err := other.CreateToken(testUser())
	require.NoError(t, err)

	_, err = svc.VerifyToken(tokenStr)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyToken_Expired(t *testing.T) {
	svc := newTestJWTService(t, -time.Minute)

	tokenStr, err := svc.CreateToken(testUser())
	require.NoError(t, err)

	_, err = svc.VerifyToken(tokenStr)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestVerifyToken_Garbage(t *testing.T) {
	svc := newTestJWTService(t, time.Hour)

	_, err := svc.VerifyToken("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestExpiresIn(t *testing.T) {
	svc := newTestJWTService(t, time.Hour)
	assert.Equal(t, int64(3600), svc.ExpiresIn())
}
