package auth

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SessionRepository tracks revoked tokens in Redis. Two mechanisms:
// a per-token denylist keyed by jti, and a per-user cutoff timestamp
// that invalidates every token issued at or before it. Both entries
// expire once no affected token can still be alive.
type SessionRepository struct {
	client      *redis.Client
	maxTokenTTL time.Duration
}

func NewSessionRepository(client *redis.Client, maxTokenTTL time.Duration) *SessionRepository {
	return &SessionRepository{client: client, maxTokenTTL: maxTokenTTL}
}

func revokedTokenKey(jti string) string {
	return fmt.Sprintf("revoked_token:%s", hashToken(jti))
}

func userCutoffKey(userID uuid.UUID) string {
	return fmt.Sprintf("revoked_sessions:%s", userID.String())
}

// RevokeToken marks a single token as revoked until it would have
// expired anyway
func (r *SessionRepository) RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil // already expired, nothing to deny
	}

	if err := r.client.Set(ctx, revokedTokenKey(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}

	return nil
}

// RevokeAllUserSessions invalidates every token the user holds right
// now by recording a cutoff instant
func (r *SessionRepository) RevokeAllUserSessions(ctx context.Context, userID uuid.UUID) error {
	now := strconv.FormatInt(time.Now().Unix(), 10)

	if err := r.client.Set(ctx, userCutoffKey(userID), now, r.maxTokenTTL).Err(); err != nil {
		return fmt.Errorf("failed to revoke user sessions: %w", err)
	}

	return nil
}

// IsRevoked reports whether the token behind the claims has been
// revoked, either individually or by a user-wide cutoff
func (r *SessionRepository) IsRevoked(ctx context.Context, claims *Claims) (bool, error) {
	denied, err := r.client.Exists(ctx, revokedTokenKey(claims.ID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token denylist: %w", err)
	}
	if denied > 0 {
		return true, nil
	}

	userID, err := subjectID(claims)
	if err != nil {
		return false, err
	}

	cutoffStr, err := r.client.Get(ctx, userCutoffKey(userID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check session cutoff: %w", err)
	}

	cutoffUnix, err := strconv.ParseInt(cutoffStr, 10, 64)
	if err != nil {
		return false, fmt.Errorf("failed to parse session cutoff: %w", err)
	}

	if claims.IssuedAt == nil {
		return true, nil // no issue time, cannot prove it postdates the cutoff
	}

	return !claims.IssuedAt.Time.After(time.Unix(cutoffUnix, 0)), nil
}

var _ SessionStore = (*SessionRepository)(nil)
