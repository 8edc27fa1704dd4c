// Package config loads hookcord's startup configuration from flags, the
// environment, an optional .env file and, for secrets, Google Secret Manager.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/codeGROOVE-dev/hookcord/pkg/notify"
)

// Environment variable names that double as Secret Manager secret names.
const (
	EnvWebhookSecret     = "GITHUB_WEBHOOK_SECRET"
	EnvDiscordWebhookURL = "DISCORD_WEBHOOK_URL"
)

const (
	keyWebhookSecret   = "webhook-secret"
	keyDiscordURL      = "discord-webhook-url"
	keyPort            = "port"
	keyPath            = "path"
	keyAvatarURL       = "avatar-url"
	keyGitHubAPIURL    = "github-api-url"
	keyGitHubToken     = "github-token"
	keyLookupAttempts  = "lookup-attempts"
	keyOutboundTimeout = "outbound-timeout"
	keyMaxConns        = "max-conns"
	keyGitHubIPsOnly   = "github-ips-only"
	keyLetsEncrypt     = "letsencrypt"
	keyLEDomains       = "le-domains"
	keyLECacheDir      = "le-cache-dir"
	keyLEEmail         = "le-email"
	keyGCPProject      = "gcp-project"
	keyGCPCredentials  = "gcp-credentials"
	keyLogLevel        = "log-level"
	keyLogFormat       = "log-format"
)

var envNames = map[string]string{
	keyWebhookSecret:   EnvWebhookSecret,
	keyDiscordURL:      EnvDiscordWebhookURL,
	keyPort:            "PORT",
	keyPath:            "HOOKCORD_PATH",
	keyAvatarURL:       "HOOKCORD_AVATAR_URL",
	keyGitHubAPIURL:    "GITHUB_API_URL",
	keyGitHubToken:     "GITHUB_TOKEN",
	keyLookupAttempts:  "HOOKCORD_LOOKUP_ATTEMPTS",
	keyOutboundTimeout: "HOOKCORD_OUTBOUND_TIMEOUT",
	keyMaxConns:        "HOOKCORD_MAX_CONNS",
	keyGitHubIPsOnly:   "HOOKCORD_GITHUB_IPS_ONLY",
	keyLetsEncrypt:     "HOOKCORD_LETSENCRYPT",
	keyLEDomains:       "HOOKCORD_LE_DOMAINS",
	keyLECacheDir:      "HOOKCORD_LE_CACHE_DIR",
	keyLEEmail:         "HOOKCORD_LE_EMAIL",
	keyGCPProject:      "GCP_PROJECT",
	keyGCPCredentials:  "GOOGLE_APPLICATION_CREDENTIALS",
	keyLogLevel:        "HOOKCORD_LOG_LEVEL",
	keyLogFormat:       "HOOKCORD_LOG_FORMAT",
}

// Config is built once at startup and treated as read-only afterwards.
type Config struct {
	WebhookSecret     string
	DiscordWebhookURL string
	Path              string
	AvatarURL         string
	GitHubAPIURL      string
	GitHubToken       string
	LECacheDir        string
	LEEmail           string
	GCPProject        string
	GCPCredentials    string
	LogLevel          string
	LogFormat         string
	LEDomains         []string
	OutboundTimeout   time.Duration
	Port              int
	LookupAttempts    int
	MaxConns          int
	GitHubIPsOnly     bool
	LetsEncrypt       bool
}

// SecretSource resolves secrets that were not supplied by flag or environment.
type SecretSource interface {
	Get(ctx context.Context, name string) (string, error)
}

// BindFlags registers hookcord's flags on fs and binds each one, together with
// its environment variable, into v.
func BindFlags(fs *pflag.FlagSet, v *viper.Viper) error {
	fs.String(keyWebhookSecret, "", "GitHub webhook secret for signature verification (env "+EnvWebhookSecret+")")
	fs.String(keyDiscordURL, "", "Discord webhook URL notifications are posted to (env "+EnvDiscordWebhookURL+")")
	fs.Int(keyPort, 80, "Port to listen on (env PORT)")
	fs.String(keyPath, "/github-webhook", "Route that receives GitHub deliveries")
	fs.String(keyAvatarURL, notify.DefaultAvatarURL, "Avatar shown on Discord messages")
	fs.String(keyGitHubAPIURL, "https://api.github.com/", "GitHub REST API root")
	fs.String(keyGitHubToken, "", "Optional GitHub token for repository lookups (env GITHUB_TOKEN)")
	fs.Int(keyLookupAttempts, 1, "Attempts per repository description lookup")
	fs.Duration(keyOutboundTimeout, 10*time.Second, "Timeout for each outbound HTTP request")
	fs.Int(keyMaxConns, 0, "Maximum concurrent inbound connections (0 = unlimited)")
	fs.Bool(keyGitHubIPsOnly, false, "Reject requests from outside GitHub's published hook ranges")
	fs.Bool(keyLetsEncrypt, false, "Use Let's Encrypt for automatic TLS certificates")
	fs.String(keyLEDomains, "", "Comma-separated list of domains for Let's Encrypt certificates")
	fs.String(keyLECacheDir, "./.letsencrypt", "Cache directory for Let's Encrypt certificates")
	fs.String(keyLEEmail, "", "Contact email for Let's Encrypt notifications")
	fs.String(keyGCPProject, "", "Google Cloud project to read missing secrets from Secret Manager")
	fs.String(keyGCPCredentials, "", "Credentials file for Secret Manager (default: application default credentials)")
	fs.String(keyLogLevel, "info", "Log level: debug, info, warn or error")
	fs.String(keyLogFormat, "text", "Log format: text or json")

	for key, env := range envNames {
		if err := v.BindPFlag(key, fs.Lookup(key)); err != nil {
			return fmt.Errorf("binding flag %s: %w", key, err)
		}
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("binding env %s: %w", env, err)
		}
	}
	return nil
}

// LoadEnvFile loads variables from a .env file without overriding variables
// already set in the environment. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// Load reads the bound values from v. It does not validate; call
// ResolveSecrets and Validate afterwards.
func Load(v *viper.Viper) Config {
	return Config{
		WebhookSecret:     v.GetString(keyWebhookSecret),
		DiscordWebhookURL: v.GetString(keyDiscordURL),
		Port:              v.GetInt(keyPort),
		Path:              v.GetString(keyPath),
		AvatarURL:         v.GetString(keyAvatarURL),
		GitHubAPIURL:      v.GetString(keyGitHubAPIURL),
		GitHubToken:       v.GetString(keyGitHubToken),
		LookupAttempts:    v.GetInt(keyLookupAttempts),
		OutboundTimeout:   v.GetDuration(keyOutboundTimeout),
		MaxConns:          v.GetInt(keyMaxConns),
		GitHubIPsOnly:     v.GetBool(keyGitHubIPsOnly),
		LetsEncrypt:       v.GetBool(keyLetsEncrypt),
		LEDomains:         splitList(v.GetString(keyLEDomains)),
		LECacheDir:        v.GetString(keyLECacheDir),
		LEEmail:           v.GetString(keyLEEmail),
		GCPProject:        v.GetString(keyGCPProject),
		GCPCredentials:    v.GetString(keyGCPCredentials),
		LogLevel:          v.GetString(keyLogLevel),
		LogFormat:         v.GetString(keyLogFormat),
	}
}

// NeedsSecrets reports whether either secret is still unset.
func (c *Config) NeedsSecrets() bool {
	return c.WebhookSecret == "" || c.DiscordWebhookURL == ""
}

// ResolveSecrets fills unset secrets from src. Values already present win.
func (c *Config) ResolveSecrets(ctx context.Context, src SecretSource) error {
	for _, s := range []struct {
		dst  *string
		name string
	}{
		{dst: &c.WebhookSecret, name: EnvWebhookSecret},
		{dst: &c.DiscordWebhookURL, name: EnvDiscordWebhookURL},
	} {
		if *s.dst != "" {
			continue
		}
		v, err := src.Get(ctx, s.name)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", s.name, err)
		}
		*s.dst = v
	}
	return nil
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	if c.WebhookSecret == "" {
		return fmt.Errorf("webhook secret is required (set --%s or %s)", keyWebhookSecret, EnvWebhookSecret)
	}
	if c.DiscordWebhookURL == "" {
		return fmt.Errorf("discord webhook URL is required (set --%s or %s)", keyDiscordURL, EnvDiscordWebhookURL)
	}
	if err := validateHTTPURL(c.DiscordWebhookURL); err != nil {
		return fmt.Errorf("invalid discord webhook URL: %w", err)
	}
	if err := validateHTTPURL(c.GitHubAPIURL); err != nil {
		return fmt.Errorf("invalid GitHub API URL: %w", err)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if !strings.HasPrefix(c.Path, "/") {
		return fmt.Errorf("path %q must start with /", c.Path)
	}
	if c.LookupAttempts < 1 {
		return fmt.Errorf("lookup attempts must be at least 1, got %d", c.LookupAttempts)
	}
	if c.OutboundTimeout <= 0 {
		return fmt.Errorf("outbound timeout must be positive, got %s", c.OutboundTimeout)
	}
	if c.MaxConns < 0 {
		return fmt.Errorf("max conns must not be negative, got %d", c.MaxConns)
	}
	if c.LetsEncrypt && len(c.LEDomains) == 0 {
		return errors.New("Let's Encrypt requires --le-domains to be specified")
	}
	return nil
}

// Addr is the plain HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme %q is not http or https", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
