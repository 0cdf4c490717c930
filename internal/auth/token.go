package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const DefaultTokenExpiry = 24 * time.Hour

// ErrInvalidToken covers malformed, mis-signed and expired tokens
// alike; callers must not be able to distinguish why a credential was
// rejected.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the verified identity extracted from a bearer token.
type Claims struct {
	UserID    int64
	Username  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type TokenConfig struct {
	Secret      string
	TokenExpiry time.Duration
}

func (c *TokenConfig) Validate() error {
	if c.Secret == "" {
		return errors.New("token secret is required")
	}
	if c.TokenExpiry == 0 {
		c.TokenExpiry = DefaultTokenExpiry
	}
	return nil
}

type tokenClaims struct {
	UserID int64 `json:"userId"`
	jwt.RegisteredClaims
}

// TokenVerifier issues and verifies HS256 bearer tokens. It holds only
// the immutable signing key and is safe for concurrent use.
type TokenVerifier struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

func NewTokenVerifier(config TokenConfig) (*TokenVerifier, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &TokenVerifier{
		secret: []byte(config.Secret),
		expiry: config.TokenExpiry,
		now:    time.Now,
	}, nil
}

// Generate signs a token for the given user. The subject carries the
// username, the userId claim the numeric id.
func (v *TokenVerifier) Generate(userID int64, username string) (string, time.Time, error) {
	now := v.now()
	expiresAt := now.Add(v.expiry)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})

	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify parses and validates a bearer token and returns the identity
// it carries. Any failure is reported as ErrInvalidToken.
func (v *TokenVerifier) Verify(token string) (Claims, error) {
	var claims tokenClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithTimeFunc(v.now))
	if err != nil || !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}

	if claims.UserID == 0 {
		return Claims{}, ErrInvalidToken
	}

	result := Claims{
		UserID:   claims.UserID,
		Username: claims.Subject,
	}
	if claims.IssuedAt != nil {
		result.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		result.ExpiresAt = claims.ExpiresAt.Time
	}
	return result, nil
}
