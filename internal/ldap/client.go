package ldap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-ldap/ldap/v3"
)

// searchPageSize is the paging-control page size for directory-wide
// searches.
const searchPageSize = 1000

// Client performs directory operations against a single endpoint per call.
// It holds no connection state: every operation acquires a fresh session
// through the dialer and releases it before returning, so a failed endpoint
// never poisons later calls. Retry and endpoint selection live in the
// Executor, not here.
type Client struct {
	cfg    *Config
	dial   Dialer
	logger *slog.Logger
}

// NewClient builds a directory client. A nil dialer selects the production
// network dialer.
func NewClient(cfg *Config, dial Dialer, logger *slog.Logger) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if dial == nil {
		dial = DialDirectory
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, dial: dial, logger: logger}
}

// withSession acquires a session against the endpoint, runs fn, and releases
// the session on every exit path.
func (c *Client) withSession(ctx context.Context, op, endpoint string, fn func(sess Session) error) error {
	sess, err := c.dial(ctx, c.cfg, endpoint)
	if err != nil {
		return wrapOp(op, endpoint, err)
	}
	defer sess.Close()
	return wrapOp(op, endpoint, fn(sess))
}

// ValidateCredentials checks username and password against the endpoint.
// A rejected password or an unknown user returns (false, nil): wrong
// credentials are an answer, not a failure. Errors are reserved for the
// directory itself misbehaving.
func (c *Client) ValidateCredentials(ctx context.Context, endpoint, username, password string) (bool, error) {
	if username == "" || password == "" {
		return false, ErrMalformedRequest
	}

	valid := false
	err := c.withSession(ctx, "validate_credentials", endpoint, func(sess Session) error {
		entry, err := c.findUserEntry(sess, username, []string{"distinguishedName"})
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				c.logger.Debug("credential validation for unknown account", "username", username)
				return nil
			}
			return err
		}

		if err := sess.Bind(entry.DN, password); err != nil {
			var le *ldap.Error
			if errors.As(err, &le) && le.ResultCode == ldap.LDAPResultInvalidCredentials {
				return nil
			}
			return err
		}

		valid = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return valid, nil
}

// FindUser resolves one account by its sAMAccountName or UPN. Returns
// ErrNotFound when no matching entry exists.
func (c *Client) FindUser(ctx context.Context, endpoint, accountName string) (UserPrincipal, error) {
	if accountName == "" {
		return UserPrincipal{}, ErrMalformedRequest
	}

	var user UserPrincipal
	err := c.withSession(ctx, "find_user", endpoint, func(sess Session) error {
		entry, err := c.findUserEntry(sess, accountName, userAttributes)
		if err != nil {
			return err
		}
		user = UserFromEntry(entry)
		return nil
	})
	if err != nil {
		return UserPrincipal{}, err
	}
	return user, nil
}

// SearchUsers returns every user principal in the configured container.
// Individual entries that fail to map (no account name) are skipped and
// logged rather than failing the whole search.
func (c *Client) SearchUsers(ctx context.Context, endpoint string) ([]UserPrincipal, error) {
	var users []UserPrincipal
	err := c.withSession(ctx, "search_users", endpoint, func(sess Session) error {
		entries, err := c.searchAllPages(sess,
			"(&(objectClass=user)(objectCategory=person))", userAttributes)
		if err != nil {
			return err
		}

		users = make([]UserPrincipal, 0, len(entries))
		for _, entry := range entries {
			user := UserFromEntry(entry)
			if user.AccountName == "" {
				c.logger.Warn("skipping directory entry without account name", "dn", entry.DN)
				continue
			}
			users = append(users, user)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}

// SearchResources returns every resource group in the configured container,
// i.e. groups whose description carries the "Resource:" prefix. Groups
// without the prefix are silently excluded; entries that fail to map are
// skipped and logged.
func (c *Client) SearchResources(ctx context.Context, endpoint string) ([]ResourceGroup, error) {
	var resources []ResourceGroup
	err := c.withSession(ctx, "search_resources", endpoint, func(sess Session) error {
		entries, err := c.searchAllPages(sess, "(objectClass=group)", groupAttributes)
		if err != nil {
			return err
		}

		resources = make([]ResourceGroup, 0, len(entries))
		for _, entry := range entries {
			resource, ok := ResourceFromEntry(entry)
			if !ok {
				continue
			}
			if resource.Name == "" {
				c.logger.Warn("skipping group entry without name", "dn", entry.DN)
				continue
			}
			resources = append(resources, resource)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resources, nil
}

// UserGroups returns the names of the groups the account is a member of,
// in directory order. Returns ErrNotFound for unknown accounts.
func (c *Client) UserGroups(ctx context.Context, endpoint, accountName string) ([]string, error) {
	if accountName == "" {
		return nil, ErrMalformedRequest
	}

	var groups []string
	err := c.withSession(ctx, "user_groups", endpoint, func(sess Session) error {
		entry, err := c.findUserEntry(sess, accountName, []string{"memberOf"})
		if err != nil {
			return err
		}
		groups = groupNamesFromDNs(entry.GetAttributeValues("memberOf"))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return groups, nil
}

// ModifyMembership adds the user to or removes the user from the named
// group. The operation is idempotent: adding an existing member or removing
// an absent one succeeds. Unknown users or groups return ErrNotFound.
func (c *Client) ModifyMembership(ctx context.Context, endpoint, accountName, groupName string, add bool) error {
	if accountName == "" || groupName == "" {
		return ErrMalformedRequest
	}

	op := "remove_member"
	if add {
		op = "add_member"
	}

	return c.withSession(ctx, op, endpoint, func(sess Session) error {
		userEntry, err := c.findUserEntry(sess, accountName, []string{"distinguishedName"})
		if err != nil {
			return err
		}
		groupDN, err := c.findGroupDN(sess, groupName)
		if err != nil {
			return err
		}

		req := ldap.NewModifyRequest(groupDN, nil)
		if add {
			req.Add("member", []string{userEntry.DN})
		} else {
			req.Delete("member", []string{userEntry.DN})
		}

		if err := sess.Modify(req); err != nil {
			if membershipAlreadySettled(err, add) {
				c.logger.Debug("membership already in desired state",
					"username", accountName,
					"group", groupName,
					"add", add,
				)
				return nil
			}
			return err
		}
		return nil
	})
}

// membershipAlreadySettled reports whether a modify failure means the
// membership is already in the requested state. The directory answers an
// add of an existing member with an exists-class code and a removal of an
// absent member with a no-such-attribute code.
func membershipAlreadySettled(err error, add bool) bool {
	var le *ldap.Error
	if !errors.As(err, &le) {
		return false
	}
	if add {
		return le.ResultCode == ldap.LDAPResultEntryAlreadyExists ||
			le.ResultCode == ldap.LDAPResultAttributeOrValueExists
	}
	return le.ResultCode == ldap.LDAPResultNoSuchAttribute
}

// findUserEntry resolves a single user entry by account name or UPN.
func (c *Client) findUserEntry(sess Session, accountName string, attributes []string) (*ldap.Entry, error) {
	name := ldap.EscapeFilter(accountName)
	filter := fmt.Sprintf(
		"(&(objectClass=user)(objectCategory=person)(|(sAMAccountName=%s)(userPrincipalName=%s)))",
		name, name)

	req := ldap.NewSearchRequest(
		c.cfg.BaseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		2, 0, false,
		filter,
		attributes,
		nil,
	)

	result, err := sess.Search(req)
	if err != nil {
		// Directories report a missing search base as no-such-object;
		// for a lookup that simply means the account does not exist.
		var le *ldap.Error
		if errors.As(err, &le) && le.ResultCode == ldap.LDAPResultNoSuchObject {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if len(result.Entries) == 0 {
		return nil, ErrNotFound
	}
	return result.Entries[0], nil
}

// findGroupDN resolves a group DN by common name or account name.
func (c *Client) findGroupDN(sess Session, groupName string) (string, error) {
	name := ldap.EscapeFilter(groupName)
	filter := fmt.Sprintf(
		"(&(objectClass=group)(|(cn=%s)(sAMAccountName=%s)))",
		name, name)

	req := ldap.NewSearchRequest(
		c.cfg.BaseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		2, 0, false,
		filter,
		[]string{"distinguishedName"},
		nil,
	)

	result, err := sess.Search(req)
	if err != nil {
		var le *ldap.Error
		if errors.As(err, &le) && le.ResultCode == ldap.LDAPResultNoSuchObject {
			return "", ErrNotFound
		}
		return "", err
	}
	if len(result.Entries) == 0 {
		return "", ErrNotFound
	}
	return result.Entries[0].DN, nil
}

// searchAllPages runs a subtree search with the paging control and collects
// every page.
func (c *Client) searchAllPages(sess Session, filter string, attributes []string) ([]*ldap.Entry, error) {
	paging := ldap.NewControlPaging(searchPageSize)
	var entries []*ldap.Entry

	for {
		req := ldap.NewSearchRequest(
			c.cfg.BaseDN,
			ldap.ScopeWholeSubtree,
			ldap.NeverDerefAliases,
			0, 0, false,
			filter,
			attributes,
			[]ldap.Control{paging},
		)

		result, err := sess.Search(req)
		if err != nil {
			return nil, err
		}
		entries = append(entries, result.Entries...)

		ctrl := ldap.FindControl(result.Controls, ldap.ControlTypePaging)
		next, ok := ctrl.(*ldap.ControlPaging)
		if !ok || len(next.Cookie) == 0 {
			return entries, nil
		}
		paging.SetCookie(next.Cookie)
	}
}
