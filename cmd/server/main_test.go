package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/codeGROOVE-dev/hookcord/pkg/config"
	"github.com/codeGROOVE-dev/hookcord/pkg/webhook"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSignFromStdin(t *testing.T) {
	body := `{"zen":"Keep it logically awesome."}`
	out, err := execute(t, body, "sign", "--secret", "s3cret")
	if err != nil {
		t.Fatalf("sign error = %v", err)
	}
	if want := webhook.Sign("s3cret", []byte(body)) + "\n"; out != want {
		t.Errorf("sign output = %q, want %q", out, want)
	}
}

func TestSignFromFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "payload.json")
	if err := os.WriteFile(path, []byte("{}"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(config.EnvWebhookSecret, "from-env")

	out, err := execute(t, "", "sign", "-f", path)
	if err != nil {
		t.Fatalf("sign error = %v", err)
	}
	if !strings.HasPrefix(out, "sha1=") || strings.TrimSpace(out) != webhook.Sign("from-env", []byte("{}")) {
		t.Errorf("sign output = %q", out)
	}
}

func TestSignRequiresSecret(t *testing.T) {
	t.Setenv(config.EnvWebhookSecret, "")
	missing := filepath.Join(t.TempDir(), "absent.env")
	if _, err := execute(t, "{}", "sign", "--env-file", missing); err == nil {
		t.Error("sign without a secret succeeded")
	}
}

func TestSignReadsSecretFromEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	if err := os.WriteFile(envFile, []byte(config.EnvWebhookSecret+"=dotenv-secret\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	// Registered so the value loaded from the file is removed afterwards.
	t.Setenv(config.EnvWebhookSecret, "")
	if err := os.Unsetenv(config.EnvWebhookSecret); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "{}", "sign", "--env-file", envFile)
	if err != nil {
		t.Fatalf("sign error = %v", err)
	}
	if got, want := strings.TrimSpace(out), webhook.Sign("dotenv-secret", []byte("{}")); got != want {
		t.Errorf("sign output = %q, want %q", got, want)
	}
}

func TestServeRejectsIncompleteConfig(t *testing.T) {
	t.Setenv(config.EnvWebhookSecret, "")
	t.Setenv(config.EnvDiscordWebhookURL, "")
	missing := filepath.Join(t.TempDir(), "absent.env")

	_, err := execute(t, "", "serve", "--env-file", missing, "--discord-webhook-url", "https://discord.com/api/webhooks/1/abc")
	if err == nil || !strings.Contains(err.Error(), "webhook secret is required") {
		t.Errorf("serve error = %v, want missing secret", err)
	}
}

func TestServeRejectsBadLogLevel(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.env")
	_, err := execute(t, "", "serve", "--env-file", missing, "--log-level", "loud")
	if err == nil {
		t.Error("serve with an unknown log level succeeded")
	}
}
