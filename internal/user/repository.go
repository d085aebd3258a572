package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/redmonkez12/taskboard-api/internal/database"
)

var (
	ErrNotFound       = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already exists")
)

// Repository handles user data persistence
type Repository struct {
	db *bun.DB
}

func NewRepository(db *bun.DB) *Repository {
	return &Repository{db: db}
}

// NewUser carries the fields needed to create an account. Password hash
// is empty for accounts created from an external login.
type NewUser struct {
	Email             string
	PasswordHash      string
	FirstName         string
	LastName          string
	EmailConfirmed    bool
	ConfirmationToken string
}

// Create inserts a new user into the database
func (r *Repository) Create(ctx context.Context, nu NewUser) (*User, error) {
	dbUser := &database.User{
		Email:          nu.Email,
		PasswordHash:   nu.PasswordHash,
		FirstName:      nu.FirstName,
		LastName:       nu.LastName,
		Roles:          []string{},
		EmailConfirmed: nu.EmailConfirmed,
	}
	if nu.ConfirmationToken != "" {
		now := time.Now()
		dbUser.EmailConfirmationToken = &nu.ConfirmationToken
		dbUser.ConfirmationSentAt = &now
	}

	_, err := r.db.NewInsert().
		Model(dbUser).
		Returning("*").
		Exec(ctx)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key value violates unique constraint") {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// GetByEmail retrieves a user by email
func (r *Repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	dbUser := new(database.User)
	err := r.db.NewSelect().
		Model(dbUser).
		Where("email = ?", email).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// GetByID retrieves a user by ID
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	dbUser := new(database.User)
	err := r.db.NewSelect().
		Model(dbUser).
		Where("id = ?", id).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// GetByConfirmationToken retrieves an unconfirmed user by confirmation token
func (r *Repository) GetByConfirmationToken(ctx context.Context, token string) (*User, error) {
	dbUser := new(database.User)
	err := r.db.NewSelect().
		Model(dbUser).
		Where("email_confirmation_token = ?", token).
		Where("email_confirmed = ?", false).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by confirmation token: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// ConfirmEmail marks a user's email as confirmed and clears the token
func (r *Repository) ConfirmEmail(ctx context.Context, userID uuid.UUID) error {
	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("email_confirmed = ?", true).
		Set("email_confirmation_token = ?", nil).
		Set("confirmation_sent_at = ?", nil).
		Set("updated_at = NOW()").
		Where("id = ?", userID).
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to confirm email: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// UpdatePassword updates a user's password hash
func (r *Repository) UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("password_hash = ?", passwordHash).
		Set("updated_at = NOW()").
		Where("id = ?", userID).
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// mapDBUserToModel converts database model to domain model
func mapDBUserToModel(dbu *database.User) *User {
	return &User{
		ID:                     dbu.ID,
		Email:                  dbu.Email,
		PasswordHash:           dbu.PasswordHash,
		FirstName:              dbu.FirstName,
		LastName:               dbu.LastName,
		Bio:                    dbu.Bio,
		Roles:                  dbu.Roles,
		EmailConfirmed:         dbu.EmailConfirmed,
		EmailConfirmationToken: dbu.EmailConfirmationToken,
		ConfirmationSentAt:     dbu.ConfirmationSentAt,
		CreatedAt:              dbu.CreatedAt,
		UpdatedAt:              dbu.UpdatedAt,
	}
}
