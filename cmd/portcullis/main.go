// Command portcullis runs the access-request portal's identity adapter:
// directory-backed authentication, user and resource lookups, and group
// membership management over HTTP.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/portcullis-auth/portcullis/internal/auth"
	"github.com/portcullis-auth/portcullis/internal/config"
	"github.com/portcullis-auth/portcullis/internal/httpapi"
	"github.com/portcullis-auth/portcullis/internal/ldap"
	"github.com/portcullis-auth/portcullis/internal/obs"
)

var version = "1.0.0"

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	obs.Init()
	logger := obs.NewLogger(cfg.SlogLevel())

	dirCfg := ldap.DefaultConfig()
	dirCfg.Controllers = cfg.Directory.Controllers
	dirCfg.Domain = cfg.Directory.Domain
	dirCfg.BaseDN = cfg.Directory.BaseDN
	dirCfg.BindUsername = cfg.Directory.BindUsername
	dirCfg.BindPassword = cfg.Directory.BindPassword
	dirCfg.Timeout = cfg.Directory.Timeout()
	dirCfg.UseTLS = cfg.Directory.UseTLS
	dirCfg.SkipTLS = cfg.Directory.SkipTLS
	dirCfg.KerberosRealm = cfg.Directory.KerberosRealm
	dirCfg.KerberosKeytab = cfg.Directory.KerberosKeytab
	dirCfg.KerberosConfig = cfg.Directory.KerberosConfig

	selector := ldap.NewRandomSelector(dirCfg.Controllers, dirCfg.Domain, time.Now().UnixNano())
	executor := ldap.NewExecutor(selector, ldap.Policy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.Retry.BaseDelay(),
		MaxDelay:    cfg.Retry.MaxDelay(),
	}, logger)
	executor.SetAttemptObserver(obs.ObserveDirectoryAttempt)

	client := ldap.NewClient(dirCfg, nil, logger)
	directory := ldap.NewService(client, executor)

	issuer, err := auth.NewIssuer(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Audience, cfg.JWT.TTL())
	if err != nil {
		log.Fatalf("token issuer: %v", err)
	}
	authenticator := auth.NewAuthenticator(directory, issuer, logger)

	api := httpapi.New(directory, authenticator, issuer, logger, httpapi.Options{
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		LoginRateRPS:       cfg.RateLimit.RPS,
		LoginRateBurst:     cfg.RateLimit.Burst,
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.Router(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("starting portcullis",
		"version", version,
		"addr", srv.Addr,
		"controllers", selector.Endpoints(),
	)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)

	logger.Info("stopped")
}
