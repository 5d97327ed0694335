package ldap

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/go-ldap/ldap/v3"
)

// Config holds directory connection configuration.
type Config struct {
	// Connection settings
	Controllers []string      // Domain controller addresses (host, host:port, or ldap(s):// URL)
	Domain      string        // Fallback address when no controllers are configured
	BaseDN      string        // Base DN / container for searches
	Timeout     time.Duration // Per-session network timeout

	// Service account used to bind before searches and mutations
	BindUsername string // DN, UPN, or SAM format
	BindPassword string // Password for simple bind

	// Kerberos settings (GSSAPI bind used instead of simple bind when set)
	KerberosRealm  string // Kerberos realm
	KerberosKeytab string // Path to keytab file
	KerberosConfig string // Path to krb5.conf (defaults to /etc/krb5.conf)

	// TLS settings
	TLSConfig *tls.Config // Custom TLS configuration
	UseTLS    bool        // Connect over LDAPS / upgrade via StartTLS
	SkipTLS   bool        // Skip TLS entirely (not recommended)
}

// DefaultConfig returns a secure default configuration.
func DefaultConfig() *Config {
	return &Config{
		Timeout: 30 * time.Second,
		UseTLS:  true,
		TLSConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}
}

// HasKerberos reports whether the service account binds via GSSAPI.
func (c *Config) HasKerberos() bool {
	return c.KerberosRealm != "" && (c.KerberosKeytab != "" || c.BindUsername != "")
}

// HasServiceBind reports whether any service-account bind is configured.
// Without one, sessions are used unbound (anonymous), which most directories
// only permit for credential validation.
func (c *Config) HasServiceBind() bool {
	return c.HasKerberos() || (c.BindUsername != "" && c.BindPassword != "")
}

// UserPrincipal is the application's typed view of a directory user.
// All fields default to the empty string when the underlying attribute is
// absent; Groups preserves the directory's memberOf order.
type UserPrincipal struct {
	AccountName string   `json:"accountName"`
	DisplayName string   `json:"displayName"`
	EmployeeID  string   `json:"employeeId"`
	Title       string   `json:"title"`
	Department  string   `json:"department"`
	Email       string   `json:"email"`
	Phone       string   `json:"phone"`
	Groups      []string `json:"groups"`

	// Directory identifiers, decoded from their binary attribute forms.
	// Empty when absent or undecodable.
	ObjectGUID string `json:"objectGUID,omitempty"`
	ObjectSid  string `json:"objectSid,omitempty"`
}

// ResourceGroup is a directory group repurposed to represent an
// access-controllable resource, identified by the "Resource:" description
// prefix. Description carries the text after the prefix, trimmed; Owner is
// the trimmed remainder after the first "Owner:" marker, empty when absent.
type ResourceGroup struct {
	Name             string   `json:"name"`
	Description      string   `json:"description"`
	GroupAccountName string   `json:"groupAccountName"`
	Owner            string   `json:"owner"`
	Members          []string `json:"members"`
}

// Session is one connection to a single directory endpoint, already bound
// with the service account when one is configured. Implementations must be
// released through Close on every exit path; WithSession guarantees that.
type Session interface {
	// Bind re-binds the session as the given principal. Used for
	// credential validation after the user DN has been resolved.
	Bind(username, password string) error

	// Search executes one search request.
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)

	// Modify executes one modify request.
	Modify(req *ldap.ModifyRequest) error

	// Close releases the underlying connection.
	Close() error
}

// Dialer opens a session against a specific endpoint. The production dialer
// performs the network dial, optional StartTLS upgrade, and service bind;
// tests substitute deterministic fakes.
type Dialer func(ctx context.Context, cfg *Config, endpoint string) (Session, error)
