// Package httpapi exposes the portal's HTTP surface: login and the
// directory read/membership endpoints. Handlers translate adapter errors
// into response codes and keep directory detail out of client responses.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/portcullis-auth/portcullis/internal/auth"
	"github.com/portcullis-auth/portcullis/internal/ldap"
	"github.com/portcullis-auth/portcullis/internal/obs"
)

// Directory is the slice of the directory service the API serves.
type Directory interface {
	FindUser(ctx context.Context, accountName string) (ldap.UserPrincipal, error)
	Users(ctx context.Context) ([]ldap.UserPrincipal, error)
	Resources(ctx context.Context) ([]ldap.ResourceGroup, error)
	UserGroups(ctx context.Context, accountName string) ([]string, error)
	AddMember(ctx context.Context, accountName, groupName string) error
	RemoveMember(ctx context.Context, accountName, groupName string) error
}

// LoginService authenticates portal logins.
type LoginService interface {
	Login(ctx context.Context, username, password string) (auth.Token, error)
}

// TokenVerifier validates bearer tokens on protected routes.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// Options tunes the API's outer middleware.
type Options struct {
	CORSAllowedOrigins []string
	LoginRateRPS       float64
	LoginRateBurst     int
}

// API wires handlers to their dependencies.
type API struct {
	dir    Directory
	login  LoginService
	tokens TokenVerifier
	logger *slog.Logger
	opts   Options
}

// New builds the API.
func New(dir Directory, login LoginService, tokens TokenVerifier, logger *slog.Logger, opts Options) *API {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.LoginRateRPS <= 0 {
		opts.LoginRateRPS = 5
	}
	if opts.LoginRateBurst <= 0 {
		opts.LoginRateBurst = 10
	}
	if len(opts.CORSAllowedOrigins) == 0 {
		opts.CORSAllowedOrigins = []string{"*"}
	}
	return &API{dir: dir, login: login, tokens: tokens, logger: logger, opts: opts}
}

// Router assembles the HTTP routes and middleware stack.
func (a *API) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(obs.Instrument)
	r.Use(a.logging)
	r.Use(securityHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   a.opts.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           600,
	}))

	r.Get("/healthz", a.handleHealth)
	r.Method(http.MethodGet, "/metrics", obs.Handler())

	r.Group(func(r chi.Router) {
		r.Use(rateLimit(a.opts.LoginRateRPS, a.opts.LoginRateBurst))
		r.Post("/auth/login", a.handleLogin)
	})

	r.Route("/directory", func(r chi.Router) {
		r.Use(a.requireToken)
		r.Get("/users", a.handleListUsers)
		r.Get("/users/{accountName}", a.handleGetUser)
		r.Get("/users/{accountName}/groups", a.handleUserGroups)
		r.Get("/resources", a.handleListResources)
		r.Post("/memberships", a.handleAddMember)
		r.Delete("/memberships", a.handleRemoveMember)
	})

	return r
}
