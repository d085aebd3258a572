package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/taskboard-api/internal/logging"
	"github.com/redmonkez12/taskboard-api/internal/user"
)

// --- in-memory fakes ---

type fakeUserStore struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]*user.User
	byEmail map[string]*user.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{
		byID:    make(map[uuid.UUID]*user.User),
		byEmail: make(map[string]*user.User),
	}
}

func (f *fakeUserStore) Create(ctx context.Context, nu user.NewUser) (*user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.byEmail[nu.Email]; exists {
		return nil, user.ErrDuplicateEmail
	}

	u := &user.User{
		ID:             uuid.New(),
		Email:          nu.Email,
		PasswordHash:   nu.PasswordHash,
		FirstName:      nu.FirstName,
		LastName:       nu.LastName,
		EmailConfirmed: nu.EmailConfirmed,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	if nu.ConfirmationToken != "" {
		token := nu.ConfirmationToken
		u.EmailConfirmationToken = &token
	}
	f.byID[u.ID] = u
	f.byEmail[u.Email] = u
	return u, nil
}

func (f *fakeUserStore) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.byEmail[email]
	if !ok {
		return nil, user.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUserStore) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.byID[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUserStore) GetByConfirmationToken(ctx context.Context, token string) (*user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range f.byID {
		if u.EmailConfirmationToken != nil && *u.EmailConfirmationToken == token && !u.EmailConfirmed {
			copied := *u
			return &copied, nil
		}
	}
	return nil, user.ErrNotFound
}

func (f *fakeUserStore) ConfirmEmail(ctx context.Context, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.byID[userID]
	if !ok {
		return user.ErrNotFound
	}
	u.EmailConfirmed = true
	u.EmailConfirmationToken = nil
	return nil
}

func (f *fakeUserStore) UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.byID[userID]
	if !ok {
		return user.ErrNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

type fakeExternalLoginStore struct {
	mu    sync.Mutex
	links map[string]uuid.UUID // provider + "|" + providerKey
}

func newFakeExternalLoginStore() *fakeExternalLoginStore {
	return &fakeExternalLoginStore{links: make(map[string]uuid.UUID)}
}

func (f *fakeExternalLoginStore) Find(ctx context.Context, provider, providerKey string) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id, ok := f.links[provider+"|"+providerKey]
	if !ok {
		return uuid.Nil, ErrExternalLoginNotFound
	}
	return id, nil
}

func (f *fakeExternalLoginStore) Link(ctx context.Context, userID uuid.UUID, provider, providerKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := provider + "|" + providerKey
	if _, exists := f.links[key]; exists {
		return ErrExternalLoginTaken
	}
	f.links[key] = userID
	return nil
}

type fakePasswordResetStore struct {
	mu     sync.Mutex
	tokens map[string]uuid.UUID
}

func newFakePasswordResetStore() *fakePasswordResetStore {
	return &fakePasswordResetStore{tokens: make(map[string]uuid.UUID)}
}

func (f *fakePasswordResetStore) Store(ctx context.Context, userID uuid.UUID, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens[token] = userID
	return nil
}

func (f *fakePasswordResetStore) Lookup(ctx context.Context, token string) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id, ok := f.tokens[token]
	if !ok {
		return uuid.Nil, ErrResetTokenNotFound
	}
	return id, nil
}

func (f *fakePasswordResetStore) Delete(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tokens, token)
	return nil
}

type fakeSessionStore struct {
	mu          sync.Mutex
	revokedJTIs map[string]bool
	cutoffs     map[uuid.UUID]time.Time
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{
		revokedJTIs: make(map[string]bool),
		cutoffs:     make(map[uuid.UUID]time.Time),
	}
}

func (f *fakeSessionStore) RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revokedJTIs[jti] = true
	return nil
}

func (f *fakeSessionStore) RevokeAllUserSessions(ctx context.Context, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoffs[userID] = time.Now()
	return nil
}

func (f *fakeSessionStore) IsRevoked(ctx context.Context, claims *Claims) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.revokedJTIs[claims.ID] {
		return true, nil
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return false, nil
	}
	cutoff, ok := f.cutoffs[id]
	if !ok {
		return false, nil
	}
	if claims.IssuedAt == nil {
		return true, nil
	}
	return !claims.IssuedAt.Time.After(cutoff), nil
}

type fakeLoginStateStore struct {
	mu     sync.Mutex
	states map[string]LoginState
}

func newFakeLoginStateStore() *fakeLoginStateStore {
	return &fakeLoginStateStore{states: make(map[string]LoginState)}
}

func (f *fakeLoginStateStore) Store(ctx context.Context, state string, ls LoginState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[state] = ls
	return nil
}

func (f *fakeLoginStateStore) Consume(ctx context.Context, state string) (*LoginState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ls, ok := f.states[state]
	if !ok {
		return nil, ErrLoginStateNotFound
	}
	delete(f.states, state)
	return &ls, nil
}

type fakeEmailService struct {
	mu             sync.Mutex
	confirmations  []string
	passwordResets []string
}

func (f *fakeEmailService) SendConfirmationEmail(ctx context.Context, toEmail, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmations = append(f.confirmations, toEmail)
	return nil
}

func (f *fakeEmailService) SendPasswordResetEmail(ctx context.Context, toEmail, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.passwordResets = append(f.passwordResets, toEmail)
	return nil
}

// fakeProvider returns a canned identity for any code
type fakeProvider struct {
	name     string
	identity *ExternalIdentity
	err      error
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) LoginURL(state string) string {
	return "https://provider.example/authorize?state=" + state
}

func (p *fakeProvider) Exchange(ctx context.Context, code string) (*ExternalIdentity, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.identity, nil
}

type serviceEnv struct {
	service *Service
	users   *fakeUserStore
	logins  *fakeExternalLoginStore
	resets  *fakePasswordResetStore
	states  *fakeLoginStateStore
	email   *fakeEmailService
}

func newServiceEnv(t *testing.T, providers ...Provider) *serviceEnv {
	t.Helper()

	tokens, err := NewJWTService(testSecret, "taskboard-api", "taskboard-clients", time.Hour)
	require.NoError(t, err)

	env := &serviceEnv{
		users:  newFakeUserStore(),
		logins: newFakeExternalLoginStore(),
		resets: newFakePasswordResetStore(),
		states: newFakeLoginStateStore(),
		email:  &fakeEmailService{},
	}
	env.service = NewService(
		env.users,
		env.logins,
		env.resets,
		newFakeSessionStore(),
		env.states,
		tokens,
		env.email,
		providers,
		logging.NewLogger(true),
	)
	return env
}

// --- register + password grant ---

func TestRegisterThenToken(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	registered, err := env.service.Register(ctx, "bob@example.com", "s3cretpass", "Bob", "Jones")
	require.NoError(t, err)
	require.NotNil(t, registered)
	assert.False(t, registered.EmailConfirmed)

	tokens, err := env.service.Token(ctx, "bob@example.com", "s3cretpass")
	require.NoError(t, err)
	assert.Equal(t, "Bearer", tokens.TokenType)
	assert.Equal(t, int64(3600), tokens.ExpiresIn)

	claims, err := env.service.VerifyAccessToken(ctx, tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, registered.ID.String(), claims.Subject)
	assert.Equal(t, "bob@example.com", claims.Email)
	assert.Equal(t, "Bob Jones", claims.Name)
}

func TestRegister_Validation(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		email     string
		password  string
		firstName string
		lastName  string
		wantErr   error
	}{
		{"empty email", "", "s3cretpass", "Bob", "Jones", ErrEmailRequired},
		{"bad email", "not-an-email", "s3cretpass", "Bob", "Jones", ErrInvalidEmailFormat},
		{"empty password", "bob@example.com", "", "Bob", "Jones", ErrPasswordRequired},
		{"short password", "bob@example.com", "short", "Bob", "Jones", ErrPasswordTooShort},
		{"missing first name", "bob@example.com", "s3cretpass", "", "Jones", ErrFirstNameRequired},
		{"missing last name", "bob@example.com", "s3cretpass", "Bob", "", ErrLastNameRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.service.Register(ctx, tt.email, tt.password, tt.firstName, tt.lastName)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	_, err := env.service.Register(ctx, "bob@example.com", "s3cretpass", "Bob", "Jones")
	require.NoError(t, err)

	_, err = env.service.Register(ctx, "bob@example.com", "otherpass1", "Bobby", "Jones")
	assert.ErrorIs(t, err, user.ErrDuplicateEmail)
}

func TestToken_UniformError(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	_, err := env.service.Register(ctx, "bob@example.com", "s3cretpass", "Bob", "Jones")
	require.NoError(t, err)

	// Wrong password and unknown account must be indistinguishable
	_, wrongPassErr := env.service.Token(ctx, "bob@example.com", "wrongpass1")
	_, unknownErr := env.service.Token(ctx, "nobody@example.com", "s3cretpass")

	assert.ErrorIs(t, wrongPassErr, ErrInvalidCredentials)
	assert.ErrorIs(t, unknownErr, ErrInvalidCredentials)
	assert.Equal(t, wrongPassErr, unknownErr)
}

func TestToken_EmptyHashNeverMatches(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	// Accounts created via external login have no password hash
	_, err := env.users.Create(ctx, user.NewUser{Email: "ext@example.com", EmailConfirmed: true})
	require.NoError(t, err)

	_, err = env.service.Token(ctx, "ext@example.com", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = env.service.Token(ctx, "ext@example.com", "anypassword")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

// --- logout ---

func TestLogout_RevokesToken(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	_, err := env.service.Register(ctx, "bob@example.com", "s3cretpass", "Bob", "Jones")
	require.NoError(t, err)

	tokens, err := env.service.Token(ctx, "bob@example.com", "s3cretpass")
	require.NoError(t, err)

	claims, err := env.service.VerifyAccessToken(ctx, tokens.AccessToken)
	require.NoError(t, err)

	require.NoError(t, env.service.Logout(ctx, claims))

	_, err = env.service.VerifyAccessToken(ctx, tokens.AccessToken)
	assert.ErrorIs(t, err, ErrTokenRevoked)
}

func TestLogout_AnonymousIsNoop(t *testing.T) {
	env := newServiceEnv(t)
	assert.NoError(t, env.service.Logout(context.Background(), nil))
}

// --- email confirmation ---

func TestConfirmEmail(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	registered, err := env.service.Register(ctx, "bob@example.com", "s3cretpass", "Bob", "Jones")
	require.NoError(t, err)

	stored, err := env.users.GetByID(ctx, registered.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.EmailConfirmationToken)

	require.NoError(t, env.service.ConfirmEmail(ctx, *stored.EmailConfirmationToken))

	confirmed, err := env.users.GetByID(ctx, registered.ID)
	require.NoError(t, err)
	assert.True(t, confirmed.EmailConfirmed)

	// Tokens are single use
	err = env.service.ConfirmEmail(ctx, *stored.EmailConfirmationToken)
	assert.ErrorIs(t, err, ErrConfirmationNotFound)
}

func TestConfirmEmail_UnknownToken(t *testing.T) {
	env := newServiceEnv(t)
	err := env.service.ConfirmEmail(context.Background(), "no-such-token")
	assert.ErrorIs(t, err, ErrConfirmationNotFound)
}

// --- password reset ---

func TestRequestPasswordReset_AlwaysSucceeds(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	_, err := env.service.Register(ctx, "bob@example.com", "s3cretpass", "Bob", "Jones")
	require.NoError(t, err)

	assert.NoError(t, env.service.RequestPasswordReset(ctx, "bob@example.com"))
	assert.NoError(t, env.service.RequestPasswordReset(ctx, "nobody@example.com"))
}

func TestResetPassword(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	registered, err := env.service.Register(ctx, "bob@example.com", "s3cretpass", "Bob", "Jones")
	require.NoError(t, err)

	require.NoError(t, env.resets.Store(ctx, registered.ID, "reset-token"))

	require.NoError(t, env.service.ResetPassword(ctx, "bob@example.com", "reset-token", "newpassword1"))

	// Old password no longer works, new one does
	_, err = env.service.Token(ctx, "bob@example.com", "s3cretpass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = env.service.Token(ctx, "bob@example.com", "newpassword1")
	assert.NoError(t, err)

	// Token is consumed
	err = env.service.ResetPassword(ctx, "bob@example.com", "reset-token", "anotherpass1")
	assert.ErrorIs(t, err, ErrResetTokenNotFound)
}

func TestResetPassword_UnknownEmail(t *testing.T) {
	env := newServiceEnv(t)
	err := env.service.ResetPassword(context.Background(), "nobody@example.com", "token", "newpassword1")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestResetPassword_TokenForDifferentUser(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	_, err := env.service.Register(ctx, "bob@example.com", "s3cretpass", "Bob", "Jones")
	require.NoError(t, err)
	other, err := env.service.Register(ctx, "eve@example.com", "s3cretpass", "Eve", "Adams")
	require.NoError(t, err)

	require.NoError(t, env.resets.Store(ctx, other.ID, "eves-token"))

	err = env.service.ResetPassword(ctx, "bob@example.com", "eves-token", "newpassword1")
	assert.ErrorIs(t, err, ErrResetTokenNotFound)
}

func TestResetPassword_WeakPassword(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	registered, err := env.service.Register(ctx, "bob@example.com", "s3cretpass", "Bob", "Jones")
	require.NoError(t, err)
	require.NoError(t, env.resets.Store(ctx, registered.ID, "reset-token"))

	err = env.service.ResetPassword(ctx, "bob@example.com", "reset-token", "short")
	assert.ErrorIs(t, err, ErrPasswordTooShort)
}

func TestResetPassword_RevokesSessions(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	registered, err := env.service.Register(ctx, "bob@example.com", "s3cretpass", "Bob", "Jones")
	require.NoError(t, err)

	tokens, err := env.service.Token(ctx, "bob@example.com", "s3cretpass")
	require.NoError(t, err)

	// The new token is valid until the password changes
	_, err = env.service.VerifyAccessToken(ctx, tokens.AccessToken)
	require.NoError(t, err)

	require.NoError(t, env.resets.Store(ctx, registered.ID, "reset-token"))
	require.NoError(t, env.service.ResetPassword(ctx, "bob@example.com", "reset-token", "newpassword1"))

	_, err = env.service.VerifyAccessToken(ctx, tokens.AccessToken)
	assert.ErrorIs(t, err, ErrTokenRevoked)
}

// --- external login ---

func TestBeginExternalLogin(t *testing.T) {
	provider := &fakeProvider{name: "google"}
	env := newServiceEnv(t, provider)
	ctx := context.Background()

	redirectURL, err := env.service.BeginExternalLogin(ctx, "google", "/dashboard")
	require.NoError(t, err)
	assert.Contains(t, redirectURL, "https://provider.example/authorize?state=")
}

func TestBeginExternalLogin_UnknownProvider(t *testing.T) {
	env := newServiceEnv(t)
	_, err := env.service.BeginExternalLogin(context.Background(), "myspace", "")
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestCompleteExternalLogin_CreatesAccount(t *testing.T) {
	provider := &fakeProvider{
		name: "google",
		identity: &ExternalIdentity{
			Provider:    "google",
			ProviderKey: "g-123",
			Email:       "carol@example.com",
			FirstName:   "Carol",
			LastName:    "White",
		},
	}
	env := newServiceEnv(t, provider)
	ctx := context.Background()

	require.NoError(t, env.states.Store(ctx, "state-1", LoginState{Provider: "google"}))

	tokens, err := env.service.CompleteExternalLogin(ctx, "state-1", "code")
	require.NoError(t, err)

	claims, err := env.service.VerifyAccessToken(ctx, tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "carol@example.com", claims.Email)

	// The new account is pre-confirmed and linked
	created, err := env.users.GetByEmail(ctx, "carol@example.com")
	require.NoError(t, err)
	assert.True(t, created.EmailConfirmed)

	linkedID, err := env.logins.Find(ctx, "google", "g-123")
	require.NoError(t, err)
	assert.Equal(t, created.ID, linkedID)
}

func TestCompleteExternalLogin_LinksExistingAccount(t *testing.T) {
	provider := &fakeProvider{
		name: "google",
		identity: &ExternalIdentity{
			Provider:    "google",
			ProviderKey: "g-123",
			Email:       "bob@example.com",
		},
	}
	env := newServiceEnv(t, provider)
	ctx := context.Background()

	registered, err := env.service.Register(ctx, "bob@example.com", "s3cretpass", "Bob", "Jones")
	require.NoError(t, err)

	require.NoError(t, env.states.Store(ctx, "state-1", LoginState{Provider: "google"}))

	tokens, err := env.service.CompleteExternalLogin(ctx, "state-1", "code")
	require.NoError(t, err)

	claims, err := env.service.VerifyAccessToken(ctx, tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, registered.ID.String(), claims.Subject)

	linkedID, err := env.logins.Find(ctx, "google", "g-123")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, linkedID)
}

func TestCompleteExternalLogin_ExistingLink(t *testing.T) {
	provider := &fakeProvider{
		name: "google",
		identity: &ExternalIdentity{
			Provider:    "google",
			ProviderKey: "g-123",
			// No email claim: an already-linked identity must still work
		},
	}
	env := newServiceEnv(t, provider)
	ctx := context.Background()

	registered, err := env.service.Register(ctx, "bob@example.com", "s3cretpass", "Bob", "Jones")
	require.NoError(t, err)
	require.NoError(t, env.logins.Link(ctx, registered.ID, "google", "g-123"))

	require.NoError(t, env.states.Store(ctx, "state-1", LoginState{Provider: "google"}))

	tokens, err := env.service.CompleteExternalLogin(ctx, "state-1", "code")
	require.NoError(t, err)

	claims, err := env.service.VerifyAccessToken(ctx, tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, registered.ID.String(), claims.Subject)
}

func TestCompleteExternalLogin_MissingEmailClaim(t *testing.T) {
	provider := &fakeProvider{
		name:     "google",
		identity: &ExternalIdentity{Provider: "google", ProviderKey: "g-999"},
	}
	env := newServiceEnv(t, provider)
	ctx := context.Background()

	require.NoError(t, env.states.Store(ctx, "state-1", LoginState{Provider: "google"}))

	_, err := env.service.CompleteExternalLogin(ctx, "state-1", "code")
	assert.ErrorIs(t, err, ErrEmailClaimMissing)
}

func TestCompleteExternalLogin_UnknownState(t *testing.T) {
	env := newServiceEnv(t, &fakeProvider{name: "google"})
	_, err := env.service.CompleteExternalLogin(context.Background(), "never-stored", "code")
	assert.ErrorIs(t, err, ErrLoginStateNotFound)
}

func TestCompleteExternalLogin_StateIsSingleUse(t *testing.T) {
	provider := &fakeProvider{
		name: "google",
		identity: &ExternalIdentity{
			Provider:    "google",
			ProviderKey: "g-123",
			Email:       "carol@example.com",
		},
	}
	env := newServiceEnv(t, provider)
	ctx := context.Background()

	require.NoError(t, env.states.Store(ctx, "state-1", LoginState{Provider: "google"}))

	_, err := env.service.CompleteExternalLogin(ctx, "state-1", "code")
	require.NoError(t, err)

	_, err = env.service.CompleteExternalLogin(ctx, "state-1", "code")
	assert.ErrorIs(t, err, ErrLoginStateNotFound)
}
