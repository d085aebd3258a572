package user

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID                     uuid.UUID  `json:"id"`
	Email                  string     `json:"email"`
	PasswordHash           string     `json:"-"` // Never expose password hash in JSON
	FirstName              string     `json:"first_name"`
	LastName               string     `json:"last_name"`
	Bio                    string     `json:"bio"`
	Roles                  []string   `json:"roles"`
	EmailConfirmed         bool       `json:"email_confirmed"`
	EmailConfirmationToken *string    `json:"-"`
	ConfirmationSentAt     *time.Time `json:"-"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// DisplayName returns the user's full name for the token name claim
func (u *User) DisplayName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
