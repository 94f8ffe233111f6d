// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package view builds the rows of the "Applications" view from the
// canonical status map and whatever project summaries are already cached.
package view

import (
	"sort"

	"github.com/pdiddy/applytrack/internal/projectcache"
	"github.com/pdiddy/applytrack/internal/resolve"
	"github.com/pdiddy/applytrack/pkg/types"
)

// ProjectLookup is satisfied by *projectcache.Cache.
type ProjectLookup interface {
	Lookup(id types.ProjectID) projectcache.Entry
}

// BuildRows joins every canonical status with its project summary. Projects
// the lookup does not know yet produce a placeholder row and are returned in
// missing, in canonical order, so the caller can fetch exactly those ids.
//
// Rows with an applied-at time come first, newest first; the rest keep
// canonical order. The sort is stable, so rebuilding from unchanged inputs
// never reorders rows.
func BuildRows(m *resolve.Map, lookup ProjectLookup) (rows []types.Row, missing []types.ProjectID) {
	rows = make([]types.Row, 0, m.Len())
	m.Each(func(cs types.CanonicalStatus) bool {
		row := types.Row{
			ProjectID:   cs.ProjectID,
			Status:      cs.Status,
			StatusLabel: cs.Status.Label(),
			AppliedAt:   cs.AppliedAt,
			Source:      cs.Source,
			State:       types.RowLoading,
		}
		if lookup != nil {
			e := lookup.Lookup(cs.ProjectID)
			row.Project = e.Summary
			row.State = e.State
			row.Error = e.Err
			if e.NeedsFetch {
				missing = append(missing, cs.ProjectID)
			}
		} else {
			missing = append(missing, cs.ProjectID)
		}
		rows = append(rows, row)
		return true
	})

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].AppliedAt, rows[j].AppliedAt
		switch {
		case a != nil && b != nil:
			return a.After(*b)
		case a != nil:
			return true
		default:
			return false
		}
	})
	return rows, missing
}
