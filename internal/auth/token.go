// Package auth turns directory answers into portal credentials: it
// authenticates username/password pairs against the directory service and
// issues signed bearer tokens carrying the caller's roles.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTokenTTL is the token lifetime used when none is configured.
const DefaultTokenTTL = 24 * time.Hour

// ErrInvalidToken indicates the token failed validation.
var ErrInvalidToken = errors.New("invalid token")

// Claims represents the JWT claims used across the service.
type Claims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies portal tokens with a shared HS256 secret.
// The secret is mandatory: construction fails without one so a
// misconfigured deployment dies at startup instead of minting
// unverifiable tokens.
type Issuer struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration

	// now is replaced in tests to pin expiry arithmetic.
	now func() time.Time
}

// NewIssuer builds a token issuer. The secret must be non-empty; a
// non-positive ttl falls back to DefaultTokenTTL.
func NewIssuer(secret, issuer, audience string, ttl time.Duration) (*Issuer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth secret is not configured")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Issuer{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
		ttl:      ttl,
		now:      time.Now,
	}, nil
}

// Issue signs a token for the given subject and roles. Returns the signed
// token and its expiry time.
func (i *Issuer) Issue(subject string, roles []string) (string, time.Time, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", time.Time{}, errors.New("subject is required")
	}

	now := i.now().UTC()
	expiresAt := now.Add(i.ttl)

	claims := Claims{
		Roles: dedupeRoles(roles),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Audience:  jwt.ClaimStrings{i.audience},
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify checks the token signature and claims and returns the parsed
// claims. Every failure mode collapses to ErrInvalidToken; callers have no
// business distinguishing a bad signature from an expired token.
func (i *Issuer) Verify(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return i.now().UTC() }))
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if err := i.validateClaims(claims); err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (i *Issuer) validateClaims(claims *Claims) error {
	if claims.Issuer != i.issuer {
		return fmt.Errorf("unexpected issuer: %s", claims.Issuer)
	}
	if i.audience != "" {
		found := false
		for _, aud := range claims.Audience {
			if aud == i.audience {
				found = true
				break
			}
		}
		if !found {
			return errors.New("audience mismatch")
		}
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return errors.New("subject missing")
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return errors.New("timestamps missing")
	}
	if claims.ExpiresAt.Time.Before(claims.IssuedAt.Time) {
		return errors.New("token expiry precedes issued-at")
	}
	return nil
}

// RolesFromGroups derives portal roles from directory group names: groups
// carrying the role prefix become roles with the prefix stripped, all other
// groups are ignored.
func RolesFromGroups(groups []string) []string {
	const rolePrefix = "Role_"

	var roles []string
	for _, group := range groups {
		if !strings.HasPrefix(group, rolePrefix) {
			continue
		}
		role := group[len(rolePrefix):]
		if role == "" {
			continue
		}
		roles = append(roles, role)
	}
	return dedupeRoles(roles)
}

func dedupeRoles(roles []string) []string {
	if len(roles) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(roles))
	var normalized []string
	for _, role := range roles {
		role = strings.TrimSpace(role)
		if role == "" {
			continue
		}
		if _, ok := seen[role]; ok {
			continue
		}
		seen[role] = struct{}{}
		normalized = append(normalized, role)
	}
	return normalized
}
