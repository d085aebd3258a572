package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/redmonkez12/taskboard-api/internal/user"
)

// BeginExternalLogin starts the external-login flow for a configured
// provider: persists the pending state and returns the provider URL to
// redirect the client to.
func (s *Service) BeginExternalLogin(ctx context.Context, providerName, returnURL string) (string, error) {
	provider, ok := s.providers[providerName]
	if !ok {
		return "", ErrUnknownProvider
	}

	state, err := generateRandomToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate login state: %w", err)
	}

	if err := s.states.Store(ctx, state, LoginState{Provider: providerName, ReturnURL: returnURL}); err != nil {
		return "", fmt.Errorf("failed to store login state: %w", err)
	}

	return provider.LoginURL(state), nil
}

// CompleteExternalLogin finishes the callback leg: consumes the pending
// state, exchanges the authorization code, then signs the caller in by
// their linked external identity, linking or creating an account first
// when needed.
func (s *Service) CompleteExternalLogin(ctx context.Context, state, code string) (*TokenResult, error) {
	pending, err := s.states.Consume(ctx, state)
	if err != nil {
		if errors.Is(err, ErrLoginStateNotFound) {
			return nil, ErrLoginStateNotFound
		}
		return nil, fmt.Errorf("failed to load login state: %w", err)
	}

	provider, ok := s.providers[pending.Provider]
	if !ok {
		return nil, ErrUnknownProvider
	}

	identity, err := provider.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	// Existing link: sign in directly
	linkedUserID, err := s.logins.Find(ctx, identity.Provider, identity.ProviderKey)
	if err == nil {
		linked, err := s.users.GetByID(ctx, linkedUserID)
		if err != nil {
			return nil, fmt.Errorf("failed to get linked user: %w", err)
		}
		s.logger.Info("external login for linked account",
			"provider", identity.Provider, "user_id", linked.ID)
		return s.issueToken(linked)
	}
	if !errors.Is(err, ErrExternalLoginNotFound) {
		return nil, fmt.Errorf("failed to find external login: %w", err)
	}

	// No link yet. An email claim is the only way to identify or
	// create the account; without it the flow fails hard.
	if identity.Email == "" {
		return nil, ErrEmailClaimMissing
	}

	account, err := s.users.GetByEmail(ctx, identity.Email)
	if err != nil {
		if !errors.Is(err, user.ErrNotFound) {
			return nil, fmt.Errorf("failed to get user by email: %w", err)
		}

		// The external provider vouches for the address, so the
		// account starts out confirmed.
		account, err = s.users.Create(ctx, user.NewUser{
			Email:          identity.Email,
			FirstName:      identity.FirstName,
			LastName:       identity.LastName,
			EmailConfirmed: true,
		})
		if err != nil {
			if errors.Is(err, user.ErrDuplicateEmail) {
				return nil, user.ErrDuplicateEmail
			}
			return nil, fmt.Errorf("failed to create user from external login: %w", err)
		}
		s.logger.Info("account created from external login",
			"provider", identity.Provider, "user_id", account.ID)
	}

	if err := s.logins.Link(ctx, account.ID, identity.Provider, identity.ProviderKey); err != nil {
		if errors.Is(err, ErrExternalLoginTaken) {
			return nil, ErrExternalLoginTaken
		}
		return nil, fmt.Errorf("failed to link external login: %w", err)
	}

	return s.issueToken(account)
}
