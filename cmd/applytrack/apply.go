// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/applytrack/internal/session"
	"github.com/pdiddy/applytrack/pkg/types"
)

var applyCmd = &cobra.Command{
	Use:   "apply <project-id>",
	Short: "Apply to a project",
	Long: `Apply submits an application to a project. If the project already has an
application in any source, nothing is sent.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		notes, _ := cmd.Flags().GetString("notes")
		return runMutation(cmd, args[0], func(e *session.Engine, id types.ProjectID) {
			e.ApplyWithNotes(id, notes)
		})
	},
}

var withdrawCmd = &cobra.Command{
	Use:   "withdraw <project-id>",
	Short: "Withdraw an application",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMutation(cmd, args[0], (*session.Engine).Withdraw)
	},
}

// runMutation applies mutate, waits for the remote call and the refresh it
// triggers, and reports the resulting status.
func runMutation(cmd *cobra.Command, arg string, mutate func(*session.Engine, types.ProjectID)) error {
	ids, err := parseProjectIDs([]string{arg})
	if err != nil {
		return err
	}
	id := ids[0]

	engine, err := openEngine(cmd.Context(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer engine.Close()

	mutate(engine, id)
	engine.Wait()
	if err := drainNotices(engine); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if cs, ok := engine.Status(id); ok {
		fmt.Fprintf(out, "project %s: %s (%s)\n", id, cs.Status.Label(), cs.Source)
	} else {
		fmt.Fprintf(out, "project %s: not applied\n", id)
	}
	fmt.Fprintf(out, "%d applications\n", engine.AppliedCount())
	return nil
}

func init() {
	applyCmd.Flags().String("notes", "", "cover note sent with the application")
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(withdrawCmd)
}
