package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the bun model for the users table
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID                     uuid.UUID  `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	Email                  string     `bun:"email,notnull,unique"`
	PasswordHash           string     `bun:"password_hash,notnull,default:''"`
	FirstName              string     `bun:"first_name,notnull,default:''"`
	LastName               string     `bun:"last_name,notnull,default:''"`
	Bio                    string     `bun:"bio,notnull,default:''"`
	Roles                  []string   `bun:"roles,array"`
	EmailConfirmed         bool       `bun:"email_confirmed,notnull,default:false"`
	EmailConfirmationToken *string    `bun:"email_confirmation_token"`
	ConfirmationSentAt     *time.Time `bun:"confirmation_sent_at"`
	CreatedAt              time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt              time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
}

// ExternalLogin links a local user to a third-party provider identity.
// (provider, provider_key) is unique: one external identity can back at
// most one local account.
type ExternalLogin struct {
	bun.BaseModel `bun:"table:external_logins,alias:el"`

	ID          int64     `bun:"id,pk,autoincrement"`
	UserID      uuid.UUID `bun:"user_id,notnull,type:uuid"`
	Provider    string    `bun:"provider,notnull"`
	ProviderKey string    `bun:"provider_key,notnull"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// Task is the bun model for the tasks table. Version backs optimistic
// concurrency on updates.
type Task struct {
	bun.BaseModel `bun:"table:tasks,alias:t"`

	ID          int64      `bun:"id,pk,autoincrement"`
	Title       string     `bun:"title,notnull"`
	Description string     `bun:"description,notnull,default:''"`
	Status      string     `bun:"status,notnull"`
	DueDate     *time.Time `bun:"due_date"`
	UserID      uuid.UUID  `bun:"user_id,notnull,type:uuid"`
	Version     int64      `bun:"version,notnull,default:1"`
	CreatedAt   time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt   time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
}
