package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"easychat/internal/models"

	"github.com/c-pro/geche"
	"golang.org/x/crypto/bcrypt"
)

const loginFailedMessage = "Login failed"

var (
	ErrUserExists = errors.New("user already exists")
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Success     bool        `json:"success"`
	Message     string      `json:"message,omitempty"`
	Token       string      `json:"token,omitempty"`
	TokenExpiry int64       `json:"tokenExpiry,omitempty"`
	User        models.User `json:"user"`
}

type UserCredentials struct {
	models.User
	PasswordHash string
	// Counter for consecutive failed login attempts to throttle brute
	// force attacks. Kept in memory only.
	FailedLoginAttempts int64
	LastAttemptTime     int64
}

func (uc *UserCredentials) resetFailedLoginAttempts(now time.Time) {
	uc.FailedLoginAttempts = 0
	uc.LastAttemptTime = now.Unix()
}

func (uc *UserCredentials) incrementFailedLoginAttempts(now time.Time) {
	uc.FailedLoginAttempts++
	uc.LastAttemptTime = now.Unix()
}

// CredentialStore is the persistence surface the service needs.
// Implemented by storage.BboltStorage.
type CredentialStore interface {
	CreateCredentials(creds UserCredentials) (UserCredentials, error)
	UpsertCredentials(creds UserCredentials) error
	ListCredentials() ([]UserCredentials, error)
}

// AuthService manages user credentials and issues bearer tokens.
// Credentials are cached in memory and written through to storage.
type AuthService struct {
	tokens *TokenVerifier
	store  CredentialStore
	users  *geche.Locker[string, *UserCredentials]
	now    func() time.Time
}

func NewAuthService(tokens *TokenVerifier, store CredentialStore) (*AuthService, error) {
	as := &AuthService{
		tokens: tokens,
		store:  store,
		users:  geche.NewLocker[string, *UserCredentials](geche.NewMapCache[string, *UserCredentials]()),
		now:    time.Now,
	}

	existing, err := store.ListCredentials()
	if err != nil {
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}

	tx := as.users.Lock()
	defer tx.Unlock()
	for i := range existing {
		creds := existing[i]
		tx.Set(creds.UserName, &creds)
	}

	return as, nil
}

// HashPassword returns a bcrypt hash of the password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// GeneratePassword returns a random password for bootstrap-created users.
func GeneratePassword() (string, error) {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate password: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func (as *AuthService) AddUser(username, password, displayName string) (models.User, error) {
	tx := as.users.Lock()
	defer tx.Unlock()
	if _, err := tx.Get(username); err == nil {
		return models.User{}, ErrUserExists
	}

	passwordHash, err := HashPassword(password)
	if err != nil {
		return models.User{}, err
	}

	if displayName == "" {
		displayName = username
	}

	creds, err := as.store.CreateCredentials(UserCredentials{
		User: models.User{
			UserName:    username,
			DisplayName: displayName,
			Status:      models.UserStatusActive,
		},
		PasswordHash: passwordHash,
	})
	if err != nil {
		return models.User{}, err
	}

	tx.Set(username, &creds)
	return creds.User, nil
}

func (as *AuthService) Login(req LoginRequest) LoginResponse {
	now := as.now()
	tx := as.users.Lock()
	defer tx.Unlock()
	user, err := tx.Get(req.Username)
	if err != nil || user.Status != models.UserStatusActive {
		return LoginResponse{Success: false, Message: loginFailedMessage}
	}

	if user.FailedLoginAttempts > 3 {
		nextAttempt := user.LastAttemptTime + 30*(user.FailedLoginAttempts*user.FailedLoginAttempts)
		if now.Unix() < nextAttempt {
			return LoginResponse{
				Success: false,
				Message: fmt.Sprintf("Too many failed login attempts. Next attempt in %d seconds", nextAttempt-now.Unix()),
			}
		}
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		user.incrementFailedLoginAttempts(now)
		return LoginResponse{Success: false, Message: loginFailedMessage}
	}

	token, expiresAt, err := as.tokens.Generate(user.ID, user.UserName)
	if err != nil {
		slog.Error("login failed", "user_id", user.ID, "error", err)
		return LoginResponse{Success: false, Message: "internal error"}
	}

	user.resetFailedLoginAttempts(now)

	return LoginResponse{
		Success:     true,
		Token:       token,
		TokenExpiry: expiresAt.Unix(),
		User:        user.User,
	}
}

// VerifyToken validates a bearer token and returns the identity bound
// to it.
func (as *AuthService) VerifyToken(token string) (Claims, error) {
	return as.tokens.Verify(token)
}

// GetUser returns the user record for the given username.
func (as *AuthService) GetUser(username string) (models.User, bool) {
	tx := as.users.Lock()
	defer tx.Unlock()
	creds, err := tx.Get(username)
	if err != nil {
		return models.User{}, false
	}
	return creds.User, true
}
