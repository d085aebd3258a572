package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/redmonkez12/taskboard-api/internal/database"
)

// ExternalLoginRepository persists provider identity links in postgres
type ExternalLoginRepository struct {
	db *bun.DB
}

func NewExternalLoginRepository(db *bun.DB) *ExternalLoginRepository {
	return &ExternalLoginRepository{db: db}
}

// Find returns the user linked to (provider, providerKey)
func (r *ExternalLoginRepository) Find(ctx context.Context, provider, providerKey string) (uuid.UUID, error) {
	link := new(database.ExternalLogin)
	err := r.db.NewSelect().
		Model(link).
		Where("provider = ?", provider).
		Where("provider_key = ?", providerKey).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.Nil, ErrExternalLoginNotFound
		}
		return uuid.Nil, fmt.Errorf("failed to find external login: %w", err)
	}

	return link.UserID, nil
}

// Link records that (provider, providerKey) signs in as userID. The
// unique constraint on (provider, provider_key) rejects links already
// claimed by another account.
func (r *ExternalLoginRepository) Link(ctx context.Context, userID uuid.UUID, provider, providerKey string) error {
	link := &database.ExternalLogin{
		UserID:      userID,
		Provider:    provider,
		ProviderKey: providerKey,
	}

	_, err := r.db.NewInsert().
		Model(link).
		Exec(ctx)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key value violates unique constraint") {
			return ErrExternalLoginTaken
		}
		return fmt.Errorf("failed to link external login: %w", err)
	}

	return nil
}

var _ ExternalLoginStore = (*ExternalLoginRepository)(nil)
