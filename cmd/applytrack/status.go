// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/applytrack/pkg/types"
)

var statusCmd = &cobra.Command{
	Use:   "status [project-id...]",
	Short: "Show the canonical application status per project",
	Long: `Status synchronizes with the marketplace and prints the resolved status
of each project. Without arguments every applied project is listed; with
project ids, each is reported as its status or "not applied".`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	ids, err := parseProjectIDs(args)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	engine, err := openEngine(cmd.Context(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer engine.Close()

	var statuses []types.CanonicalStatus
	if len(ids) == 0 {
		statuses = engine.Canonical()
	} else {
		for _, id := range ids {
			cs, ok := engine.Status(id)
			if !ok {
				cs = types.CanonicalStatus{ProjectID: id}
			}
			statuses = append(statuses, cs)
		}
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(statuses)
	}
	printStatuses(out, statuses, engine.AppliedCount())
	return nil
}

func printStatuses(w io.Writer, statuses []types.CanonicalStatus, count int) {
	if len(statuses) == 0 {
		fmt.Fprintln(w, "No applications.")
		return
	}
	fmt.Fprintf(w, "%-10s  %-14s  %-18s  %s\n", "Project", "Status", "Source", "Applied")
	fmt.Fprintln(w, strings.Repeat("-", 64))
	for _, cs := range statuses {
		status, source := cs.Status.Label(), string(cs.Source)
		if cs.Status == "" {
			status, source = "not applied", "-"
		}
		fmt.Fprintf(w, "%-10s  %-14s  %-18s  %s\n", cs.ProjectID, status, source, formatTime(cs.AppliedAt))
	}
	fmt.Fprintf(w, "\n%d applications\n", count)
}

func init() {
	statusCmd.Flags().Bool("json", false, "output as JSON")
	rootCmd.AddCommand(statusCmd)
}
