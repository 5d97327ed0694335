package ldap

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-ldap/ldap/v3"
	"github.com/go-ldap/ldap/v3/gssapi"
	krb5client "github.com/jcmturner/gokrb5/v8/client"
)

// kerberosBind performs a GSSAPI bind with the service account credentials.
// Credential priority: keytab when configured, otherwise the service
// account password.
func kerberosBind(conn *ldap.Conn, cfg *Config, endpoint string) error {
	gssapiClient, err := newGSSAPIClient(cfg)
	if err != nil {
		return fmt.Errorf("failed to create GSSAPI client: %w", err)
	}
	defer func() {
		_ = gssapiClient.DeleteSecContext()
	}()

	spn, err := servicePrincipal(endpoint)
	if err != nil {
		return err
	}

	if err := conn.GSSAPIBind(gssapiClient, spn, ""); err != nil {
		return fmt.Errorf("GSSAPI bind failed: %w", err)
	}
	return nil
}

// newGSSAPIClient creates the GSSAPI client from the configured credentials.
func newGSSAPIClient(cfg *Config) (ldap.GSSAPIClient, error) {
	krb5confPath := cfg.KerberosConfig
	if krb5confPath == "" {
		krb5confPath = "/etc/krb5.conf"
	}
	if !fileExists(krb5confPath) {
		return nil, fmt.Errorf("kerberos configuration file not found at %s", krb5confPath)
	}

	principal, realm := splitPrincipal(cfg.BindUsername, cfg.KerberosRealm)
	if realm == "" {
		return nil, fmt.Errorf("kerberos realm is required (set the realm or include it in the bind username)")
	}
	if principal == "" {
		return nil, fmt.Errorf("bind username (principal) is required for kerberos authentication")
	}

	if cfg.KerberosKeytab != "" {
		if !fileExists(cfg.KerberosKeytab) {
			return nil, fmt.Errorf("kerberos keytab not found at %s", cfg.KerberosKeytab)
		}
		return gssapi.NewClientWithKeytab(principal, realm, cfg.KerberosKeytab, krb5confPath, krb5client.DisablePAFXFAST(true))
	}

	if cfg.BindPassword != "" {
		return gssapi.NewClientWithPassword(principal, realm, cfg.BindPassword, krb5confPath, krb5client.DisablePAFXFAST(true))
	}

	return nil, fmt.Errorf("no suitable credentials found for kerberos authentication")
}

// servicePrincipal constructs the directory SPN for an endpoint. The port,
// if present, is stripped: SPNs name hosts, not sockets.
func servicePrincipal(endpoint string) (string, error) {
	host := endpoint
	if i := strings.Index(host, "://"); i != -1 {
		host = host[i+3:]
	}
	if i := strings.IndexByte(host, ':'); i != -1 {
		host = host[:i]
	}
	if host == "" {
		return "", fmt.Errorf("hostname is required for service principal")
	}
	return fmt.Sprintf("ldap/%s", host), nil
}

// splitPrincipal separates a user@REALM bind username into its parts,
// preferring an explicitly configured realm.
func splitPrincipal(username, realm string) (string, string) {
	if user, domain, ok := strings.Cut(username, "@"); ok {
		if realm == "" {
			realm = domain
		}
		return user, realm
	}
	return username, realm
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
