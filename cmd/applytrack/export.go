// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/applytrack/internal/snapshot"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export resolved application state to YAML or JSON",
	Long: `Export synchronizes with the marketplace, loads project details for every
application, and writes a snapshot with per-source freshness. Without
--output the snapshot goes to stdout.`,
	RunE: runExport,
}

func runExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	output, _ := cmd.Flags().GetString("output")

	engine, err := openEngine(cmd.Context(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer engine.Close()

	rows := settledRows(engine)
	doc := snapshot.Build(engine.Snapshot(), rows, time.Now())

	if output == "" {
		return snapshot.Write(cmd.OutOrStdout(), doc, format)
	}
	if err := snapshot.WriteFile(output, doc, format); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d applications to %s\n", len(doc.Applications), output)
	return nil
}

func init() {
	exportCmd.Flags().String("format", "", "export format: yaml or json (default from --output extension, else yaml)")
	exportCmd.Flags().StringP("output", "o", "", "write to this file instead of stdout")
	rootCmd.AddCommand(exportCmd)
}
