// Package main implements hookcord, a relay that verifies GitHub webhook
// deliveries and posts a summary of public repository activity to a Discord
// channel.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/codeGROOVE-dev/hookcord/pkg/config"
	"github.com/codeGROOVE-dev/hookcord/pkg/logger"
	"github.com/codeGROOVE-dev/hookcord/pkg/secrets"
	"github.com/codeGROOVE-dev/hookcord/pkg/server"
	"github.com/codeGROOVE-dev/hookcord/pkg/webhook"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "hookcord",
		Short:        "Relay GitHub webhook events to Discord",
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newSignCmd())
	return root
}

func newServeCmd() *cobra.Command {
	v := viper.New()
	var envFile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the webhook relay",
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Reading the .env file after flag parsing still works: viper
			// consults the environment lazily.
			if err := config.LoadEnvFile(envFile); err != nil {
				return err
			}
			cfg := config.Load(v)

			if err := setupLogger(cmd.ErrOrStderr(), &cfg); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := resolveSecrets(ctx, &cfg); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			err := server.Run(ctx, &cfg)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "Optional .env file loaded before reading the environment")
	if err := config.BindFlags(cmd.Flags(), v); err != nil {
		panic(err)
	}
	return cmd
}

func setupLogger(w io.Writer, cfg *config.Config) error {
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	asJSON, err := logger.ParseFormat(cfg.LogFormat)
	if err != nil {
		return err
	}
	logger.SetDefault(logger.New(w, logger.Options{Level: level, JSON: asJSON}))
	return nil
}

// resolveSecrets consults Secret Manager only when a secret is still missing
// and a project is configured.
func resolveSecrets(ctx context.Context, cfg *config.Config) error {
	if !cfg.NeedsSecrets() || cfg.GCPProject == "" {
		return nil
	}
	sm, err := secrets.New(ctx, cfg.GCPProject, cfg.GCPCredentials)
	if err != nil {
		return err
	}
	defer func() {
		if err := sm.Close(); err != nil {
			logger.Warn(ctx, "failed to close Secret Manager client", logger.Fields{"error": err.Error()})
		}
	}()
	logger.Info(ctx, "resolving secrets from Secret Manager", logger.Fields{"project": cfg.GCPProject})
	return cfg.ResolveSecrets(ctx, sm)
}

func newSignCmd() *cobra.Command {
	var secret, file, envFile string

	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Print the X-Hub-Signature value for a payload",
		Long: "Computes the signature GitHub would send for a payload, for use when\n" +
			"testing a deployment with curl. Reads the payload from --file or stdin.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadEnvFile(envFile); err != nil {
				return err
			}
			if secret == "" {
				secret = os.Getenv(config.EnvWebhookSecret)
			}
			if secret == "" {
				return fmt.Errorf("a secret is required (set --secret or %s)", config.EnvWebhookSecret)
			}

			var body []byte
			var err error
			if file == "" || file == "-" {
				body, err = io.ReadAll(cmd.InOrStdin())
			} else {
				body, err = os.ReadFile(file)
			}
			if err != nil {
				return fmt.Errorf("reading payload: %w", err)
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), webhook.Sign(secret, body))
			return err
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "Webhook secret (env "+config.EnvWebhookSecret+")")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Payload file (default: stdin)")
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "Optional .env file consulted when the secret is not set")
	return cmd
}
