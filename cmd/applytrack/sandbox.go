// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/applytrack/internal/metrics"
	"github.com/pdiddy/applytrack/internal/sandbox"
)

var sandboxCmd = &cobra.Command{
	Use:   "sandbox",
	Short: "Run a local marketplace backed by SQLite",
	Long: `Sandbox serves the marketplace endpoints applytrack consumes from a local
SQLite database, optionally seeded from a YAML file. Point
marketplace.base_url at it to exercise the engine without a real server.
Prometheus metrics are served on /metrics.

Owners can move an application through its lifecycle with
PUT /api/projects/{id}/applicants/{userID}/status.`,
	RunE: runSandbox,
}

func runSandbox(cmd *cobra.Command, args []string) error {
	sc := cfg.Sandbox
	if err := sc.Validate(); err != nil {
		return err
	}

	store, err := sandbox.NewStore(sc.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	if sc.SeedFile != "" {
		projects, apps, err := store.LoadSeed(cmd.Context(), sc.SeedFile)
		if err != nil {
			return err
		}
		log.WithField("projects", projects).WithField("applications", apps).Info("seed loaded")
	}

	srv := sandbox.NewServer(store, sc.UserID, log, metrics.New())
	fmt.Fprintf(cmd.ErrOrStderr(), "Sandbox listening on http://%s (user %d)\n", sc.Addr, sc.UserID)
	if err := srv.ListenAndServe(cmd.Context(), sc.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func init() {
	flags := sandboxCmd.Flags()
	flags.String("addr", "", "listen address")
	flags.String("db", "", "SQLite database path")
	flags.String("seed", "", "YAML seed file of projects and applications")
	flags.Int64("user", 0, "default user id")

	for key, flag := range map[string]string{
		"sandbox.addr":      "addr",
		"sandbox.db_path":   "db",
		"sandbox.seed_file": "seed",
		"sandbox.user_id":   "user",
	} {
		_ = viper.BindPFlag(key, flags.Lookup(flag))
	}
	rootCmd.AddCommand(sandboxCmd)
}
