// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the applytrack CLI. Each subcommand
// builds a reconciliation engine against the configured marketplace,
// synchronizes it, and reports or mutates application state. The sandbox
// subcommand serves a local marketplace backed by SQLite.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/applytrack/internal/secrets"
	"github.com/pdiddy/applytrack/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// cfg is populated by PersistentPreRunE before any subcommand runs.
var cfg types.Config

var log = logrus.New()

var rootCmd = &cobra.Command{
	Use:   "applytrack",
	Short: "Reconcile marketplace application status from every source",
	Long: `applytrack resolves the status of a developer's marketplace applications
from the full applications list, the applied-ids index, and local optimistic
writes, and shows one canonical status per project.

Use status and applications to inspect, apply and withdraw to mutate, export
to write a snapshot, and sandbox to run a local marketplace for testing.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig()
		if err != nil {
			return err
		}
		if err := configureLogger(log, c.Log); err != nil {
			return err
		}

		secretsDir, _ := cmd.Flags().GetString("secrets-dir")
		token, err := secrets.Token(c.Marketplace.APIToken, secretsDir, log)
		if err != nil {
			return err
		}
		c.Marketplace.APIToken = token

		if err := c.Validate(); err != nil {
			return err
		}
		cfg = c
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default: ./applytrack.yaml or ~/.config/applytrack/applytrack.yaml)")
	flags.String("secrets-dir", ".secrets", "directory holding secret files such as "+secrets.MarketplaceToken)
	flags.String("base-url", "", "marketplace API base URL")
	flags.String("log-level", "", "log level: trace, debug, info, warn, error")
	flags.String("log-format", "", "log format: text or json")

	for key, flag := range map[string]string{
		"marketplace.base_url": "base-url",
		"log.level":            "log-level",
		"log.format":           "log-format",
	} {
		_ = viper.BindPFlag(key, flags.Lookup(flag))
	}
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("applytrack")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "applytrack"))
		}
	}

	viper.SetEnvPrefix("APPLYTRACK")
	viper.SetEnvKeyReplacer(envReplacer())
	viper.AutomaticEnv()
	setDefaults(viper.GetViper(), types.DefaultConfig())

	if err := viper.ReadInConfig(); err == nil {
		log.WithField("file", viper.ConfigFileUsed()).Debug("using config file")
	}
}

// envReplacer maps nested keys to variable names:
// marketplace.base_url reads APPLYTRACK_MARKETPLACE_BASE_URL.
func envReplacer() *strings.Replacer {
	return strings.NewReplacer(".", "_")
}

// setDefaults registers every key so environment variables resolve even
// when no config file mentions them.
func setDefaults(v *viper.Viper, d types.Config) {
	v.SetDefault("marketplace.base_url", d.Marketplace.BaseURL)
	v.SetDefault("marketplace.api_token", d.Marketplace.APIToken)
	v.SetDefault("marketplace.timeout", d.Marketplace.Timeout)
	v.SetDefault("marketplace.user_agent", d.Marketplace.UserAgent)
	v.SetDefault("marketplace.requests_per_second", d.Marketplace.RequestsPerSecond)
	v.SetDefault("marketplace.burst", d.Marketplace.Burst)
	v.SetDefault("marketplace.max_retries", d.Marketplace.MaxRetries)

	v.SetDefault("session.project_cache_size", d.Session.ProjectCacheSize)
	v.SetDefault("session.notice_buffer", d.Session.NoticeBuffer)
	v.SetDefault("session.request_timeout", d.Session.RequestTimeout)

	v.SetDefault("sandbox.addr", d.Sandbox.Addr)
	v.SetDefault("sandbox.db_path", d.Sandbox.DBPath)
	v.SetDefault("sandbox.seed_file", d.Sandbox.SeedFile)
	v.SetDefault("sandbox.user_id", d.Sandbox.UserID)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

func loadConfig() (types.Config, error) {
	var c types.Config
	if err := viper.Unmarshal(&c); err != nil {
		return types.Config{}, fmt.Errorf("decoding config: %w", err)
	}
	return c, nil
}

func configureLogger(l *logrus.Logger, c types.LogConfig) error {
	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	l.SetLevel(level)
	l.SetOutput(os.Stderr)
	if c.Format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	}
	return nil
}

func main() {
	// A missing .env is the common case.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
