// Package server wires hookcord's components into an HTTP server.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/crypto/acme/autocert"
	"golang.org/x/net/netutil"

	"github.com/codeGROOVE-dev/hookcord/pkg/config"
	"github.com/codeGROOVE-dev/hookcord/pkg/discord"
	"github.com/codeGROOVE-dev/hookcord/pkg/github"
	"github.com/codeGROOVE-dev/hookcord/pkg/logger"
	"github.com/codeGROOVE-dev/hookcord/pkg/notify"
	"github.com/codeGROOVE-dev/hookcord/pkg/security"
	"github.com/codeGROOVE-dev/hookcord/pkg/webhook"
)

const (
	readTimeout     = 30 * time.Second
	idleTimeout     = 120 * time.Second
	shutdownTimeout = 10 * time.Second
	// maxLookupBackoff matches the retry cap in pkg/github.
	maxLookupBackoff = 5 * time.Second
)

// NewHandler builds the router: the webhook route, a health check and the
// shared middleware.
func NewHandler(cfg *config.Config) (http.Handler, error) {
	gh, err := github.NewClient(github.Options{
		BaseURL:  cfg.GitHubAPIURL,
		Token:    cfg.GitHubToken,
		Attempts: uint(cfg.LookupAttempts), //nolint:gosec // validated >= 1
		Timeout:  cfg.OutboundTimeout,
	})
	if err != nil {
		return nil, err
	}

	var allow *security.IPAllowlist
	if cfg.GitHubIPsOnly {
		if allow, err = security.NewIPAllowlist(security.GitHubHookCIDRs); err != nil {
			return nil, err
		}
	}

	n := notify.New(gh, discord.NewClient(cfg.DiscordWebhookURL, cfg.OutboundTimeout), cfg.AvatarURL)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(security.Middleware(allow))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodPost, cfg.Path, webhook.NewHandler(n, cfg.WebhookSecret))

	return r, nil
}

// writeTimeout leaves room for the description lookup (with its retries)
// followed by the Discord delivery.
func writeTimeout(cfg *config.Config) time.Duration {
	attempts := time.Duration(cfg.LookupAttempts)
	return (attempts+1)*cfg.OutboundTimeout + (attempts-1)*maxLookupBackoff + 10*time.Second
}

func newHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Handler:           h,
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      writeTimeout(cfg),
		IdleTimeout:       idleTimeout,
		MaxHeaderBytes:    1 << 20, // 1MB
		ErrorLog:          errorLog(),
	}
}

// errorLog routes net/http's internal errors (TLS handshakes, bad requests)
// through the structured logger.
func errorLog() *log.Logger {
	return slog.NewLogLogger(logger.Default().Handler(), slog.LevelWarn)
}

// Run listens on the configured port (or :443 with Let's Encrypt) until ctx
// is canceled, then shuts down gracefully.
func Run(ctx context.Context, cfg *config.Config) error {
	addr := cfg.Addr()
	var tlsConfig *tls.Config

	if cfg.LetsEncrypt {
		if err := os.MkdirAll(cfg.LECacheDir, 0o700); err != nil {
			return fmt.Errorf("failed to create Let's Encrypt cache directory: %w", err)
		}
		certManager := &autocert.Manager{
			Prompt:     autocert.AcceptTOS,
			HostPolicy: autocert.HostWhitelist(cfg.LEDomains...),
			Cache:      autocert.DirCache(cfg.LECacheDir),
			Email:      cfg.LEEmail,
		}
		tlsConfig = &tls.Config{
			GetCertificate: certManager.GetCertificate,
			MinVersion:     tls.VersionTLS12,
		}

		// The configured port answers ACME HTTP-01 challenges and redirects
		// everything else to HTTPS.
		acme := &http.Server{
			Addr:              cfg.Addr(),
			Handler:           certManager.HTTPHandler(nil),
			ReadHeaderTimeout: 10 * time.Second,
			ErrorLog:          errorLog(),
		}
		go func() {
			logger.Info(ctx, "starting HTTP server for Let's Encrypt ACME challenges", logger.Fields{"addr": acme.Addr})
			if err := acme.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error(ctx, "ACME HTTP server error; certificate issuance may fail", err, nil)
			}
		}()
		defer func() {
			if err := acme.Close(); err != nil {
				logger.Warn(ctx, "ACME server close failed", logger.Fields{"error": err.Error()})
			}
		}()
		addr = ":443"
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	if tlsConfig != nil {
		ln = tls.NewListener(ln, tlsConfig)
	}

	logger.Info(ctx, "starting hookcord", logger.Fields{
		"addr":      addr,
		"path":      cfg.Path,
		"tls":       tlsConfig != nil,
		"max_conns": cfg.MaxConns,
	})
	return Serve(ctx, cfg, ln)
}

// Serve accepts connections on ln until ctx is canceled. When cfg.MaxConns
// is positive, at most that many connections are served at once.
func Serve(ctx context.Context, cfg *config.Config, ln net.Listener) error {
	h, err := NewHandler(cfg)
	if err != nil {
		_ = ln.Close()
		return err
	}
	if cfg.MaxConns > 0 {
		ln = netutil.LimitListener(ln, cfg.MaxConns)
	}

	srv := newHTTPServer(cfg, h)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info(ctx, "shutting down server", nil)
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info(ctx, "server stopped", nil)
	return nil
}
