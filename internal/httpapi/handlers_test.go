package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/portcullis-auth/portcullis/internal/auth"
	"github.com/portcullis-auth/portcullis/internal/ldap"
)

type fakeDirectory struct {
	users     []ldap.UserPrincipal
	resources []ldap.ResourceGroup
	groups    []string
	err       error

	membershipCalls []string
}

func (d *fakeDirectory) FindUser(ctx context.Context, accountName string) (ldap.UserPrincipal, error) {
	if d.err != nil {
		return ldap.UserPrincipal{}, d.err
	}
	for _, u := range d.users {
		if u.AccountName == accountName {
			return u, nil
		}
	}
	return ldap.UserPrincipal{}, ldap.ErrNotFound
}

func (d *fakeDirectory) Users(ctx context.Context) ([]ldap.UserPrincipal, error) {
	return d.users, d.err
}

func (d *fakeDirectory) Resources(ctx context.Context) ([]ldap.ResourceGroup, error) {
	return d.resources, d.err
}

func (d *fakeDirectory) UserGroups(ctx context.Context, accountName string) ([]string, error) {
	return d.groups, d.err
}

func (d *fakeDirectory) AddMember(ctx context.Context, accountName, groupName string) error {
	d.membershipCalls = append(d.membershipCalls, "add:"+accountName+":"+groupName)
	return d.err
}

func (d *fakeDirectory) RemoveMember(ctx context.Context, accountName, groupName string) error {
	d.membershipCalls = append(d.membershipCalls, "remove:"+accountName+":"+groupName)
	return d.err
}

type fakeLogin struct {
	token auth.Token
	err   error
}

func (l *fakeLogin) Login(ctx context.Context, username, password string) (auth.Token, error) {
	return l.token, l.err
}

func newTestAPI(t *testing.T, dir *fakeDirectory, login *fakeLogin) (*API, string) {
	t.Helper()
	issuer, err := auth.NewIssuer("test-secret", "portcullis", "portal", time.Hour)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	bearer, _, err := issuer.Issue("jdoe", []string{"Admin"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	api := New(dir, login, issuer, slog.New(slog.NewTextHandler(io.Discard, nil)), Options{})
	return api, bearer
}

func doRequest(api *API, method, path, bearer, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	api.Router().ServeHTTP(rec, req)
	return rec
}

func TestLoginSuccess(t *testing.T) {
	expires := time.Now().Add(24 * time.Hour).UTC().Truncate(time.Second)
	api, _ := newTestAPI(t, &fakeDirectory{}, &fakeLogin{
		token: auth.Token{Value: "signed-token", ExpiresAt: expires},
	})

	rec := doRequest(api, http.MethodPost, "/auth/login", "", `{"username":"jdoe","password":"hunter2"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp loginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Token != "signed-token" {
		t.Errorf("token = %q", resp.Token)
	}
	if !resp.ExpiresAt.Equal(expires) {
		t.Errorf("expiresAt = %v, want %v", resp.ExpiresAt, expires)
	}
}

func TestLoginErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "invalid credentials",
			err:        auth.ErrInvalidCredentials,
			wantStatus: http.StatusUnauthorized,
			wantBody:   "Invalid username or password",
		},
		{
			name:       "missing credentials",
			err:        auth.ErrMissingCredentials,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "directory outage stays generic",
			err:        &ldap.UnavailableError{Op: "validate_credentials", Attempts: 3, Err: errors.New("dc1 refused connection")},
			wantStatus: http.StatusInternalServerError,
			wantBody:   "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api, _ := newTestAPI(t, &fakeDirectory{}, &fakeLogin{err: tt.err})

			rec := doRequest(api, http.MethodPost, "/auth/login", "", `{"username":"jdoe","password":"x"}`)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantBody != "" && !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.wantBody)
			}
			// Directory internals never leak into responses.
			if strings.Contains(rec.Body.String(), "dc1") {
				t.Errorf("response leaks directory detail: %s", rec.Body.String())
			}
		})
	}
}

func TestLoginRejectsBadBody(t *testing.T) {
	api, _ := newTestAPI(t, &fakeDirectory{}, &fakeLogin{})

	rec := doRequest(api, http.MethodPost, "/auth/login", "", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestDirectoryRoutesRequireToken(t *testing.T) {
	api, bearer := newTestAPI(t, &fakeDirectory{}, &fakeLogin{})

	paths := []string{"/directory/users", "/directory/resources", "/directory/users/jdoe"}
	for _, path := range paths {
		rec := doRequest(api, http.MethodGet, path, "", "")
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("GET %s without token: status = %d, want 401", path, rec.Code)
		}

		rec = doRequest(api, http.MethodGet, path, "garbage", "")
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("GET %s with bad token: status = %d, want 401", path, rec.Code)
		}
	}

	rec := doRequest(api, http.MethodGet, "/directory/users", bearer, "")
	if rec.Code != http.StatusOK {
		t.Errorf("GET /directory/users with token: status = %d, want 200", rec.Code)
	}
}

func TestGetUser(t *testing.T) {
	dir := &fakeDirectory{users: []ldap.UserPrincipal{{
		AccountName: "jdoe",
		DisplayName: "Jane Doe",
		Department:  "Engineering",
	}}}
	api, bearer := newTestAPI(t, dir, &fakeLogin{})

	rec := doRequest(api, http.MethodGet, "/directory/users/jdoe", bearer, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var user ldap.UserPrincipal
	if err := json.Unmarshal(rec.Body.Bytes(), &user); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if user.AccountName != "jdoe" || user.Department != "Engineering" {
		t.Errorf("user = %+v", user)
	}

	rec = doRequest(api, http.MethodGet, "/directory/users/ghost", bearer, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown user: status = %d, want 404", rec.Code)
	}
}

func TestListResources(t *testing.T) {
	dir := &fakeDirectory{resources: []ldap.ResourceGroup{{
		Name:        "Printers",
		Description: "shared printer pool Owner: jdoe",
		Owner:       "jdoe",
	}}}
	api, bearer := newTestAPI(t, dir, &fakeLogin{})

	rec := doRequest(api, http.MethodGet, "/directory/resources", bearer, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resources []ldap.ResourceGroup
	if err := json.Unmarshal(rec.Body.Bytes(), &resources); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resources) != 1 || resources[0].Owner != "jdoe" {
		t.Errorf("resources = %+v", resources)
	}
}

func TestMembershipEndpoints(t *testing.T) {
	dir := &fakeDirectory{}
	api, bearer := newTestAPI(t, dir, &fakeLogin{})

	rec := doRequest(api, http.MethodPost, "/directory/memberships", bearer, `{"username":"jdoe","groupName":"Printers"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("add: status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(api, http.MethodDelete, "/directory/memberships", bearer, `{"username":"jdoe","groupName":"Printers"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("remove: status = %d", rec.Code)
	}

	want := []string{"add:jdoe:Printers", "remove:jdoe:Printers"}
	if len(dir.membershipCalls) != 2 || dir.membershipCalls[0] != want[0] || dir.membershipCalls[1] != want[1] {
		t.Errorf("membership calls = %v, want %v", dir.membershipCalls, want)
	}

	rec = doRequest(api, http.MethodPost, "/directory/memberships", bearer, `{"username":"","groupName":"Printers"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty username: status = %d, want 400", rec.Code)
	}

	dir.err = ldap.ErrNotFound
	rec = doRequest(api, http.MethodPost, "/directory/memberships", bearer, `{"username":"ghost","groupName":"Printers"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown principal: status = %d, want 404", rec.Code)
	}
}

func TestDirectoryOutageStaysGenericOnReads(t *testing.T) {
	dir := &fakeDirectory{err: &ldap.UnavailableError{
		Op:       "search_users",
		Attempts: 3,
		Err:      errors.New("ldaps://dc1:636 connection refused"),
	}}
	api, bearer := newTestAPI(t, dir, &fakeLogin{})

	rec := doRequest(api, http.MethodGet, "/directory/users", bearer, "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "dc1") || strings.Contains(rec.Body.String(), "ldaps") {
		t.Errorf("response leaks directory detail: %s", rec.Body.String())
	}
}

func TestHealthz(t *testing.T) {
	api, _ := newTestAPI(t, &fakeDirectory{}, &fakeLogin{})

	rec := doRequest(api, http.MethodGet, "/healthz", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
