// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package session

import (
	"context"

	"github.com/pdiddy/applytrack/internal/view"
	"github.com/pdiddy/applytrack/pkg/types"
)

// RememberProjects seeds the project cache with summaries the caller already
// holds, such as a feed page, so those rows need no backfill.
func (e *Engine) RememberProjects(summaries ...types.ProjectSummary) {
	e.cache.Put(summaries...)
	e.notify()
}

// ApplicationRows builds the applications view from the current canonical
// map. Rows whose project is not cached come back in the loading state and a
// single background fetch is started for each; observers are notified as
// each fetch settles so the caller can rebuild.
func (e *Engine) ApplicationRows() []types.Row {
	e.mu.Lock()
	m := e.canonical
	e.mu.Unlock()

	e.cache.Reserve(m.Len())
	rows, missing := view.BuildRows(m, e.cache)
	for _, id := range missing {
		if e.cache.Claim(id) {
			e.backfill(id)
		}
	}
	return rows
}

func (e *Engine) backfill(id types.ProjectID) {
	e.goAsync(func(ctx context.Context) {
		_, err := e.cache.Fetch(ctx, id, e.market.FetchProjectDetail)
		e.metrics.ObserveBackfill(err)
		if err != nil {
			e.log.WithField("project_id", id).WithError(err).Warn("project backfill failed")
		}
		e.notify()
	})
}
