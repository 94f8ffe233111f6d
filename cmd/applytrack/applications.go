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

var applicationsCmd = &cobra.Command{
	Use:   "applications",
	Short: "List applications with project details",
	Long: `Applications shows the applications view: one row per applied project,
joined with its project summary. Projects that are not cached are fetched
individually; rows whose project cannot be loaded are marked failed.`,
	RunE: runApplications,
}

func runApplications(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	engine, err := openEngine(cmd.Context(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer engine.Close()

	rows := settledRows(engine)
	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}
	printRows(out, rows)
	return nil
}

func printRows(w io.Writer, rows []types.Row) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No applications.")
		return
	}
	fmt.Fprintf(w, "%-10s  %-14s  %-40s  %-20s  %s\n", "Project", "Status", "Title", "Owner", "Applied")
	fmt.Fprintln(w, strings.Repeat("-", 108))
	for _, r := range rows {
		title, owner := "", ""
		switch {
		case r.Project != nil:
			title, owner = r.Project.Title, r.Project.OwnerName
		case r.State == types.RowFailed:
			title = "(unavailable: " + r.Error + ")"
		default:
			title = "(loading)"
		}
		fmt.Fprintf(w, "%-10s  %-14s  %-40s  %-20s  %s\n",
			r.ProjectID, r.StatusLabel, truncate(title, 40), truncate(owner, 20), formatTime(r.AppliedAt))
	}
	fmt.Fprintf(w, "\n%d applications\n", len(rows))
}

func init() {
	applicationsCmd.Flags().Bool("json", false, "output rows as JSON")
	rootCmd.AddCommand(applicationsCmd)
}
