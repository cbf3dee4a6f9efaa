// Package auth handles user signup, login and access tokens.
//
// Passwords are stored as bcrypt hashes. Access tokens are HS256 JWTs that
// carry the username and expire after the configured TTL. A token is only
// accepted while its user still exists in the store.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidInput is returned when username or password is empty.
	ErrInvalidInput = errors.New("invalid input: username and password are required")

	// ErrInvalidCredentials is returned by Login for an unknown user or a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUserExists is returned by Signup and UserStore.CreateUser for a taken username.
	ErrUserExists = errors.New("user already exists")

	// ErrNotFound is returned by UserStore.GetUser for an unknown username.
	ErrNotFound = errors.New("user not found")

	// ErrTokenMissing is returned by Verify for an empty token.
	ErrTokenMissing = errors.New("token is missing")

	// ErrTokenInvalid is returned by Verify for a bad signature, an expired
	// token or a token whose user no longer exists.
	ErrTokenInvalid = errors.New("token is invalid")
)

// DefaultTokenTTL is used when Options.TokenTTL is zero.
const DefaultTokenTTL = 30 * time.Minute

// User is a registered account.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// UserStore persists users. CreateUser must return ErrUserExists for a
// duplicate username and GetUser must return ErrNotFound for an unknown one.
type UserStore interface {
	CreateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, username string) (User, error)
}

// Options configures a Manager.
type Options struct {
	// Secret signs tokens. Empty means a random per-process secret.
	Secret string
	// TokenTTL is the token lifetime (default: DefaultTokenTTL).
	TokenTTL time.Duration
	// BcryptCost is the hashing cost (default: bcrypt.DefaultCost).
	BcryptCost int
}

// Claims are the JWT claims of an access token.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Manager issues and verifies access tokens for users in a UserStore.
type Manager struct {
	store  UserStore
	secret []byte
	ttl    time.Duration
	cost   int
	now    func() time.Time
}

// NewManager creates a Manager. A random 32-byte secret is generated when
// opts.Secret is empty; tokens then stop verifying after a restart.
func NewManager(store UserStore, opts Options) (*Manager, error) {
	if store == nil {
		return nil, errors.New("auth: nil user store")
	}

	secret := []byte(opts.Secret)
	if len(secret) == 0 {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("generate token secret: %w", err)
		}
		secret = []byte(hex.EncodeToString(buf))
		slog.Warn("JWT_SECRET not set, using a random secret; tokens will not survive a restart")
	}

	ttl := opts.TokenTTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	cost := opts.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	return &Manager{
		store:  store,
		secret: secret,
		ttl:    ttl,
		cost:   cost,
		now:    time.Now,
	}, nil
}

// Signup registers a new user with a bcrypt-hashed password.
func (m *Manager) Signup(ctx context.Context, username, password string) (User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return User{}, ErrInvalidInput
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), m.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return User{}, fmt.Errorf("%w: password longer than 72 bytes", ErrInvalidInput)
		}
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	user := User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    m.now().UTC(),
	}
	if err := m.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, ErrUserExists) {
			return User{}, ErrUserExists
		}
		return User{}, fmt.Errorf("create user: %w", err)
	}

	slog.Info("user created", "username", user.Username, "user_id", user.ID)
	return user, nil
}

// Login checks the password and returns a signed access token.
func (m *Manager) Login(ctx context.Context, username, password string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return "", ErrInvalidInput
	}

	user, err := m.store.GetUser(ctx, username)
	if errors.Is(err, ErrNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", fmt.Errorf("load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	return m.issueToken(user.Username, m.now())
}

// Verify parses a token and returns its user.
func (m *Manager) Verify(ctx context.Context, token string) (User, error) {
	if token == "" {
		return User{}, ErrTokenMissing
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return User{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !parsed.Valid || claims.Username == "" {
		return User{}, ErrTokenInvalid
	}

	user, err := m.store.GetUser(ctx, claims.Username)
	if errors.Is(err, ErrNotFound) {
		return User{}, fmt.Errorf("%w: user %q no longer exists", ErrTokenInvalid, claims.Username)
	}
	if err != nil {
		return User{}, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

// issueToken signs a token for username, valid from issuedAt for the TTL.
func (m *Manager) issueToken(username string, issuedAt time.Time) (string, error) {
	claims := Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			Subject:   username,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
