package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const loginStateTTL = 15 * time.Minute

// LoginStateRepository holds pending external-login flows in Redis
type LoginStateRepository struct {
	client *redis.Client
}

func NewLoginStateRepository(client *redis.Client) *LoginStateRepository {
	return &LoginStateRepository{client: client}
}

func loginStateKey(state string) string {
	return fmt.Sprintf("external_login_state:%s", hashToken(state))
}

// Store persists a pending flow under its state nonce with a short TTL
func (r *LoginStateRepository) Store(ctx context.Context, state string, ls LoginState) error {
	key := loginStateKey(state)

	pipe := r.client.Pipeline()
	pipe.HSet(ctx, key, map[string]any{
		"provider":   ls.Provider,
		"return_url": ls.ReturnURL,
	})
	pipe.Expire(ctx, key, loginStateTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store login state: %w", err)
	}

	return nil
}

// Consume retrieves and deletes a pending flow. A state can only be
// redeemed once.
func (r *LoginStateRepository) Consume(ctx context.Context, state string) (*LoginState, error) {
	key := loginStateKey(state)

	data, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get login state: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrLoginStateNotFound
	}

	if err := r.client.Del(ctx, key).Err(); err != nil {
		return nil, fmt.Errorf("failed to delete login state: %w", err)
	}

	return &LoginState{
		Provider:  data["provider"],
		ReturnURL: data["return_url"],
	}, nil
}

var _ LoginStateStore = (*LoginStateRepository)(nil)
