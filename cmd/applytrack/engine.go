// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/pdiddy/applytrack/internal/identity"
	"github.com/pdiddy/applytrack/internal/marketplace"
	"github.com/pdiddy/applytrack/internal/session"
	"github.com/pdiddy/applytrack/pkg/types"
)

// openEngine connects to the configured marketplace and performs an initial
// blocking sync. A partial sync is reported as a warning on w; the engine is
// still usable with whatever sources answered.
func openEngine(ctx context.Context, w io.Writer) (*session.Engine, error) {
	client, err := marketplace.New(cfg.Marketplace, log)
	if err != nil {
		return nil, err
	}
	engine, err := session.New(ctx, client, session.Options{Config: cfg.Session, Log: log})
	if err != nil {
		return nil, err
	}
	if err := engine.Sync(ctx); err != nil {
		fmt.Fprintf(w, "warning: sync incomplete: %v\n", err)
	}
	return engine, nil
}

// settledRows builds the applications view, waits for the project backfills
// it starts, and builds it again.
func settledRows(engine *session.Engine) []types.Row {
	engine.ApplicationRows()
	engine.Wait()
	return engine.ApplicationRows()
}

// drainNotices returns the first mutation failure reported so far.
func drainNotices(engine *session.Engine) error {
	select {
	case n, ok := <-engine.Notices():
		if ok {
			return fmt.Errorf("%s", n)
		}
	default:
	}
	return nil
}

// parseProjectIDs rejects any argument that is not a project id and drops
// repeats.
func parseProjectIDs(args []string) ([]types.ProjectID, error) {
	values := make([]any, 0, len(args))
	for _, a := range args {
		if _, ok := identity.Normalize(a); !ok {
			return nil, fmt.Errorf("invalid project id %q", a)
		}
		values = append(values, a)
	}
	return identity.Collect(values...), nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

// truncate shortens s to n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
