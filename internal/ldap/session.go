package ldap

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// liveSession wraps a real directory connection behind the Session
// interface. Sessions are acquired per attempt and never shared across
// requests.
type liveSession struct {
	conn *ldap.Conn
}

func (s *liveSession) Bind(username, password string) error {
	return s.conn.Bind(username, password)
}

func (s *liveSession) Search(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
	return s.conn.Search(req)
}

func (s *liveSession) Modify(req *ldap.ModifyRequest) error {
	return s.conn.Modify(req)
}

func (s *liveSession) Close() error {
	return s.conn.Close()
}

// DialDirectory is the live Dialer. It connects to the given endpoint,
// upgrades to TLS when configured, applies the operation timeout and
// performs the service bind. The returned session is bound and ready; the
// caller owns it and must Close it on every exit path.
func DialDirectory(_ context.Context, cfg *Config, endpoint string) (Session, error) {
	url := endpointURL(endpoint, cfg.UseTLS && !cfg.SkipTLS)

	var conn *ldap.Conn
	var err error

	if cfg.UseTLS && !cfg.SkipTLS {
		// Direct TLS connection (LDAPS)
		conn, err = ldap.DialURL(url, ldap.DialWithTLSConfig(cfg.TLSConfig))
	} else {
		conn, err = ldap.DialURL(url)
		if err == nil && cfg.UseTLS {
			// Upgrade to TLS using StartTLS
			err = conn.StartTLS(cfg.TLSConfig)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}

	if cfg.Timeout > 0 {
		conn.SetTimeout(cfg.Timeout)
	}

	if err := serviceBind(conn, cfg, endpoint); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to bind to %s: %w", url, err)
	}

	return &liveSession{conn: conn}, nil
}

// serviceBind authenticates the service account on a fresh connection.
// Kerberos takes priority when configured, then simple bind, then an
// anonymous bind for directories that allow unauthenticated search.
func serviceBind(conn *ldap.Conn, cfg *Config, endpoint string) error {
	switch {
	case cfg.HasKerberos():
		return kerberosBind(conn, cfg, endpoint)
	case cfg.HasServiceBind():
		return conn.Bind(cfg.BindUsername, cfg.BindPassword)
	default:
		return conn.UnauthenticatedBind("")
	}
}

// endpointURL normalizes a controller endpoint into a dialable URL.
// Bare hostnames get the scheme and default port appropriate for the TLS
// mode; values that already carry a scheme pass through unchanged.
func endpointURL(endpoint string, ldaps bool) string {
	if strings.Contains(endpoint, "://") {
		return endpoint
	}

	scheme, port := "ldap", "389"
	if ldaps {
		scheme, port = "ldaps", "636"
	}
	if strings.Contains(endpoint, ":") {
		return fmt.Sprintf("%s://%s", scheme, endpoint)
	}
	return fmt.Sprintf("%s://%s:%s", scheme, endpoint, port)
}
