package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Authenticator errors. Handlers map these to response codes; anything else
// is a directory failure and stays out of client responses.
var (
	// ErrInvalidCredentials means the directory rejected the
	// username/password pair, or the user does not exist. Clients get the
	// same answer either way.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrMissingCredentials means the request itself was malformed: no
	// username or no password. Detected before any directory contact.
	ErrMissingCredentials = errors.New("username and password are required")
)

// Directory is the slice of the directory service the authenticator needs.
type Directory interface {
	ValidateCredentials(ctx context.Context, username, password string) (bool, error)
	UserGroups(ctx context.Context, username string) ([]string, error)
}

// Token is an issued credential.
type Token struct {
	Value     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Authenticator validates portal logins against the directory and issues
// bearer tokens for the ones that check out.
type Authenticator struct {
	dir    Directory
	issuer *Issuer
	logger *slog.Logger
}

// NewAuthenticator wires the directory and the token issuer together.
func NewAuthenticator(dir Directory, issuer *Issuer, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{dir: dir, issuer: issuer, logger: logger}
}

// Login authenticates the username/password pair and returns a signed token
// whose roles are derived from the user's directory groups. Wrong
// credentials return ErrInvalidCredentials; a directory outage returns the
// underlying error so callers can distinguish "no" from "don't know".
func (a *Authenticator) Login(ctx context.Context, username, password string) (Token, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return Token{}, ErrMissingCredentials
	}

	valid, err := a.dir.ValidateCredentials(ctx, username, password)
	if err != nil {
		return Token{}, fmt.Errorf("validate credentials: %w", err)
	}
	if !valid {
		a.logger.Info("login rejected", "username", username)
		return Token{}, ErrInvalidCredentials
	}

	groups, err := a.dir.UserGroups(ctx, username)
	if err != nil {
		return Token{}, fmt.Errorf("resolve groups: %w", err)
	}

	roles := RolesFromGroups(groups)
	signed, expiresAt, err := a.issuer.Issue(username, roles)
	if err != nil {
		return Token{}, fmt.Errorf("issue token: %w", err)
	}

	a.logger.Info("login succeeded", "username", username, "roles", len(roles))
	return Token{Value: signed, ExpiresAt: expiresAt}, nil
}
