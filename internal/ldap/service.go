package ldap

import (
	"context"
)

// Service is the directory facade the rest of the application talks to.
// It binds the per-endpoint Client to the retrying Executor: callers never
// see endpoints, and every operation gets bounded failover across the
// configured controllers.
type Service struct {
	client *Client
	exec   *Executor
}

// NewService composes a client and an executor into the directory facade.
func NewService(client *Client, exec *Executor) *Service {
	return &Service{client: client, exec: exec}
}

// ValidateCredentials reports whether the username and password pair is
// accepted by the directory. A false result means the credentials are wrong;
// an error means the directory could not be asked.
func (s *Service) ValidateCredentials(ctx context.Context, username, password string) (bool, error) {
	if username == "" || password == "" {
		return false, ErrMalformedRequest
	}
	return Execute(ctx, s.exec, "validate_credentials", func(ctx context.Context, endpoint string) (bool, error) {
		return s.client.ValidateCredentials(ctx, endpoint, username, password)
	})
}

// FindUser resolves one account. Returns ErrNotFound for unknown accounts.
func (s *Service) FindUser(ctx context.Context, accountName string) (UserPrincipal, error) {
	if accountName == "" {
		return UserPrincipal{}, ErrMalformedRequest
	}
	return Execute(ctx, s.exec, "find_user", func(ctx context.Context, endpoint string) (UserPrincipal, error) {
		return s.client.FindUser(ctx, endpoint, accountName)
	})
}

// Users lists every user principal in the configured container.
func (s *Service) Users(ctx context.Context) ([]UserPrincipal, error) {
	return Execute(ctx, s.exec, "search_users", func(ctx context.Context, endpoint string) ([]UserPrincipal, error) {
		return s.client.SearchUsers(ctx, endpoint)
	})
}

// Resources lists every resource group in the configured container.
func (s *Service) Resources(ctx context.Context) ([]ResourceGroup, error) {
	return Execute(ctx, s.exec, "search_resources", func(ctx context.Context, endpoint string) ([]ResourceGroup, error) {
		return s.client.SearchResources(ctx, endpoint)
	})
}

// UserGroups returns the group names the account is a member of.
func (s *Service) UserGroups(ctx context.Context, accountName string) ([]string, error) {
	if accountName == "" {
		return nil, ErrMalformedRequest
	}
	return Execute(ctx, s.exec, "user_groups", func(ctx context.Context, endpoint string) ([]string, error) {
		return s.client.UserGroups(ctx, endpoint, accountName)
	})
}

// AddMember adds the user to the named group. Adding an existing member
// succeeds.
func (s *Service) AddMember(ctx context.Context, accountName, groupName string) error {
	return s.modifyMembership(ctx, accountName, groupName, true)
}

// RemoveMember removes the user from the named group. Removing an absent
// member succeeds.
func (s *Service) RemoveMember(ctx context.Context, accountName, groupName string) error {
	return s.modifyMembership(ctx, accountName, groupName, false)
}

func (s *Service) modifyMembership(ctx context.Context, accountName, groupName string, add bool) error {
	if accountName == "" || groupName == "" {
		return ErrMalformedRequest
	}
	op := "remove_member"
	if add {
		op = "add_member"
	}
	return s.exec.Do(ctx, op, func(ctx context.Context, endpoint string) error {
		return s.client.ModifyMembership(ctx, endpoint, accountName, groupName, add)
	})
}
