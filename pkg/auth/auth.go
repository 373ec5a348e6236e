// Package auth provides user accounts and opaque session tokens for the
// HTTP API.
//
// Passwords are hashed with bcrypt and never stored or returned in plain
// text. A successful Authenticate issues a random 128-bit session token
// that stays valid until its TTL expires or Revoke is called. Tokens are
// opaque handles into server memory, not claims: restarting the process
// invalidates all sessions.
//
// Example Usage:
//
//	a := auth.NewAuthenticator(auth.DefaultConfig())
//	if _, err := a.CreateUser("odin", "ravenspass"); err != nil {
//		log.Fatal(err)
//	}
//
//	session, err := a.Authenticate("odin", "ravenspass")
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println("token:", session.Token)
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Errors returned by authenticator operations.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrPasswordTooShort   = errors.New("password too short")
	ErrSessionExpired     = errors.New("session expired or unknown")
)

// User is an account record. PasswordHash is never serialised.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
	LastLogin time.Time `json:"lastLogin,omitempty"`

	PasswordHash string `json:"-"`
}

// Session is an issued token with its expiry.
type Session struct {
	Token     string    `json:"token"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Config tunes the authenticator.
type Config struct {
	// BcryptCost for password hashing. Defaults to bcrypt.DefaultCost.
	BcryptCost int
	// MinPasswordLength for the password policy.
	MinPasswordLength int
	// SessionTTL is how long issued tokens stay valid.
	SessionTTL time.Duration
}

// DefaultConfig returns the standard policy.
func DefaultConfig() Config {
	return Config{
		BcryptCost:        bcrypt.DefaultCost,
		MinPasswordLength: 8,
		SessionTTL:        24 * time.Hour,
	}
}

// Authenticator manages users and sessions in memory.
//
// Safe for concurrent use.
type Authenticator struct {
	mu       sync.RWMutex
	config   Config
	users    map[string]*User
	sessions map[string]*Session
}

// NewAuthenticator creates an authenticator. Zero config fields fall back
// to defaults.
func NewAuthenticator(config Config) *Authenticator {
	def := DefaultConfig()
	if config.BcryptCost < bcrypt.MinCost {
		config.BcryptCost = def.BcryptCost
	}
	if config.MinPasswordLength <= 0 {
		config.MinPasswordLength = def.MinPasswordLength
	}
	if config.SessionTTL <= 0 {
		config.SessionTTL = def.SessionTTL
	}
	return &Authenticator{
		config:   config,
		users:    make(map[string]*User),
		sessions: make(map[string]*Session),
	}
}

// CreateUser registers an account. The password is hashed immediately.
func (a *Authenticator) CreateUser(username, password string) (*User, error) {
	if username == "" {
		return nil, fmt.Errorf("%w: empty username", ErrInvalidCredentials)
	}
	if len(password) < a.config.MinPasswordLength {
		return nil, fmt.Errorf("%w: need at least %d characters",
			ErrPasswordTooShort, a.config.MinPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.config.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.users[username]; exists {
		return nil, fmt.Errorf("%w: %s", ErrUserExists, username)
	}

	user := &User{
		ID:           generateToken(),
		Username:     username,
		CreatedAt:    time.Now(),
		PasswordHash: string(hash),
	}
	a.users[username] = user
	return copyUser(user), nil
}

// Authenticate verifies credentials and issues a session token.
// Failures always return ErrInvalidCredentials so callers cannot probe
// which usernames exist.
func (a *Authenticator) Authenticate(username, password string) (*Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	user, exists := a.users[username]
	if !exists {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	user.LastLogin = time.Now()

	session := &Session{
		Token:     generateToken(),
		Username:  username,
		ExpiresAt: time.Now().Add(a.config.SessionTTL),
	}
	a.sessions[session.Token] = session

	copied := *session
	return &copied, nil
}

// ValidateToken resolves a session token to its username. Expired sessions
// are removed on sight.
func (a *Authenticator) ValidateToken(token string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	session, ok := a.sessions[token]
	if !ok {
		return "", ErrSessionExpired
	}
	if time.Now().After(session.ExpiresAt) {
		delete(a.sessions, token)
		return "", ErrSessionExpired
	}
	return session.Username, nil
}

// Revoke invalidates a session token. Revoking an unknown token is a
// no-op.
func (a *Authenticator) Revoke(token string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.sessions, token)
}

// ChangePassword rotates a user's password after verifying the old one.
// All of the user's sessions are revoked.
func (a *Authenticator) ChangePassword(username, oldPassword, newPassword string) error {
	if len(newPassword) < a.config.MinPasswordLength {
		return fmt.Errorf("%w: need at least %d characters",
			ErrPasswordTooShort, a.config.MinPasswordLength)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	user, exists := a.users[username]
	if !exists {
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)); err != nil {
		return ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), a.config.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = string(hash)

	for token, session := range a.sessions {
		if session.Username == username {
			delete(a.sessions, token)
		}
	}
	return nil
}

// GetUser returns a copy of the account record.
func (a *Authenticator) GetUser(username string) (*User, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	user, exists := a.users[username]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, username)
	}
	return copyUser(user), nil
}

// UserCount returns the number of registered accounts.
func (a *Authenticator) UserCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.users)
}

// copyUser returns a copy with the password hash stripped.
func copyUser(u *User) *User {
	copied := *u
	copied.PasswordHash = ""
	return &copied
}

func generateToken() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

// SecureCompare performs a constant-time string comparison to keep token
// checks timing-safe.
func SecureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
