package auth

import (
	"sync"
	"testing"
	"time"

	"easychat/internal/models"

	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory CredentialStore.
type fakeStore struct {
	mu     sync.Mutex
	users  map[string]UserCredentials
	nextID int64
	err    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: make(map[string]UserCredentials)}
}

func (f *fakeStore) CreateCredentials(creds UserCredentials) (UserCredentials, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return UserCredentials{}, f.err
	}
	if _, ok := f.users[creds.UserName]; ok {
		return UserCredentials{}, ErrUserExists
	}
	f.nextID++
	creds.ID = f.nextID
	f.users[creds.UserName] = creds
	return creds, nil
}

func (f *fakeStore) UpsertCredentials(creds UserCredentials) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[creds.UserName] = creds
	return nil
}

func (f *fakeStore) ListCredentials() ([]UserCredentials, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]UserCredentials, 0, len(f.users))
	for _, c := range f.users {
		out = append(out, c)
	}
	return out, nil
}

func newService(t *testing.T) (*AuthService, *fakeStore) {
	t.Helper()
	verifier := newVerifier(t, "service-secret")
	store := newFakeStore()
	svc, err := NewAuthService(verifier, store)
	require.NoError(t, err)
	return svc, store
}

func TestAuthService_AddUser(t *testing.T) {
	svc, store := newService(t)

	user, err := svc.AddUser("alice", "password123", "Alice")
	require.NoError(t, err)
	require.Equal(t, int64(1), user.ID)
	require.Equal(t, "alice", user.UserName)
	require.Equal(t, "Alice", user.DisplayName)
	require.Equal(t, models.UserStatusActive, user.Status)

	// Password is stored hashed, never in the clear.
	require.NotEmpty(t, store.users["alice"].PasswordHash)
	require.NotEqual(t, "password123", store.users["alice"].PasswordHash)

	_, err = svc.AddUser("alice", "other", "")
	require.ErrorIs(t, err, ErrUserExists)
}

func TestAuthService_Login(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.AddUser("alice", "password123", "")
	require.NoError(t, err)

	resp := svc.Login(LoginRequest{Username: "alice", Password: "password123"})
	require.True(t, resp.Success)
	require.NotEmpty(t, resp.Token)
	require.Greater(t, resp.TokenExpiry, time.Now().Unix())
	require.Equal(t, "alice", resp.User.UserName)

	// The issued token verifies and carries the user's identity.
	claims, err := svc.VerifyToken(resp.Token)
	require.NoError(t, err)
	require.Equal(t, resp.User.ID, claims.UserID)
	require.Equal(t, "alice", claims.Username)
}

func TestAuthService_LoginFailures(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.AddUser("alice", "password123", "")
	require.NoError(t, err)

	resp := svc.Login(LoginRequest{Username: "alice", Password: "wrong"})
	require.False(t, resp.Success)
	require.Equal(t, loginFailedMessage, resp.Message)
	require.Empty(t, resp.Token)

	resp = svc.Login(LoginRequest{Username: "nobody", Password: "password123"})
	require.False(t, resp.Success)
	require.Equal(t, loginFailedMessage, resp.Message)
}

func TestAuthService_LoginThrottling(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.AddUser("alice", "password123", "")
	require.NoError(t, err)

	currentTime := time.Unix(1700000000, 0)
	svc.now = func() time.Time { return currentTime }

	for range 5 {
		resp := svc.Login(LoginRequest{Username: "alice", Password: "wrong"})
		require.False(t, resp.Success)
	}

	// Even the correct password is rejected while throttled.
	resp := svc.Login(LoginRequest{Username: "alice", Password: "password123"})
	require.False(t, resp.Success)
	require.Contains(t, resp.Message, "Too many failed login attempts")

	// After the backoff window the login succeeds again.
	currentTime = currentTime.Add(time.Hour)
	resp = svc.Login(LoginRequest{Username: "alice", Password: "password123"})
	require.True(t, resp.Success)
}

func TestAuthService_LoadsExistingUsers(t *testing.T) {
	verifier := newVerifier(t, "service-secret")
	store := newFakeStore()

	hash, err := HashPassword("password123")
	require.NoError(t, err)
	_, err = store.CreateCredentials(UserCredentials{
		User: models.User{
			UserName:    "bob",
			DisplayName: "Bob",
			Status:      models.UserStatusActive,
		},
		PasswordHash: hash,
	})
	require.NoError(t, err)

	svc, err := NewAuthService(verifier, store)
	require.NoError(t, err)

	resp := svc.Login(LoginRequest{Username: "bob", Password: "password123"})
	require.True(t, resp.Success)

	user, ok := svc.GetUser("bob")
	require.True(t, ok)
	require.Equal(t, "Bob", user.DisplayName)
}

func TestGeneratePassword(t *testing.T) {
	p1, err := GeneratePassword()
	require.NoError(t, err)
	p2, err := GeneratePassword()
	require.NoError(t, err)
	require.NotEqual(t, p1, p2)
	require.GreaterOrEqual(t, len(p1), 16)
}
