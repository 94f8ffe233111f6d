// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package resolve merges the three application sources into one canonical
// status per project.
//
// Precedence is fixed: an applications-list record always wins, an
// ids-index entry wins over an optimistic entry, and an optimistic entry is
// used only while neither server source knows the project. Resolve is a
// pure function and is cheap enough to rerun after every change to any
// input.
package resolve

import (
	"github.com/pdiddy/applytrack/pkg/types"
)

// Map is the resolved, insertion-ordered canonical status map. The zero
// value and a nil *Map are both empty.
type Map struct {
	index   map[types.ProjectID]int
	entries []types.CanonicalStatus
}

func newMap(capacity int) *Map {
	return &Map{
		index:   make(map[types.ProjectID]int, capacity),
		entries: make([]types.CanonicalStatus, 0, capacity),
	}
}

// Get returns the canonical status for id.
func (m *Map) Get(id types.ProjectID) (types.CanonicalStatus, bool) {
	if m == nil {
		return types.CanonicalStatus{}, false
	}
	i, ok := m.index[id]
	if !ok {
		return types.CanonicalStatus{}, false
	}
	return m.entries[i], true
}

// Has reports whether id has a canonical status.
func (m *Map) Has(id types.ProjectID) bool {
	if m == nil {
		return false
	}
	_, ok := m.index[id]
	return ok
}

// Len returns the number of resolved projects.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// Entries returns a copy of all statuses in iteration order.
func (m *Map) Entries() []types.CanonicalStatus {
	if m == nil {
		return nil
	}
	out := make([]types.CanonicalStatus, len(m.entries))
	copy(out, m.entries)
	return out
}

// Each calls fn for every entry in iteration order until fn returns false.
func (m *Map) Each(fn func(types.CanonicalStatus) bool) {
	if m == nil {
		return
	}
	for _, e := range m.entries {
		if !fn(e) {
			return
		}
	}
}

// put inserts or replaces in place, keeping the first-insertion position.
func (m *Map) put(cs types.CanonicalStatus) {
	if i, ok := m.index[cs.ProjectID]; ok {
		m.entries[i] = cs
		return
	}
	m.index[cs.ProjectID] = len(m.entries)
	m.entries = append(m.entries, cs)
}

// Resolve merges the sources in precedence order. Entries whose id is not a
// valid ProjectID are skipped; the inputs are never modified.
func Resolve(apps []types.ApplicationRecord, ids []types.IDStatusEntry, overlay []types.OptimisticEntry) *Map {
	m := newMap(len(apps) + len(ids) + len(overlay))

	for _, rec := range apps {
		if !rec.ProjectID.Valid() {
			continue
		}
		m.put(types.CanonicalStatus{
			ProjectID: rec.ProjectID,
			Status:    rec.Status,
			AppliedAt: rec.AppliedAt,
			Source:    types.SourceApplicationsList,
		})
	}
	fromList := len(m.entries)
	authoritative := func(id types.ProjectID) bool {
		i, ok := m.index[id]
		return ok && i < fromList
	}

	for _, e := range ids {
		if !e.ProjectID.Valid() || authoritative(e.ProjectID) {
			continue
		}
		m.put(types.CanonicalStatus{
			ProjectID: e.ProjectID,
			Status:    e.Status,
			Source:    types.SourceIDsIndex,
		})
	}
	fromServer := len(m.entries)

	for _, e := range overlay {
		if !e.ProjectID.Valid() {
			continue
		}
		if i, ok := m.index[e.ProjectID]; ok && i < fromServer {
			continue
		}
		m.put(types.CanonicalStatus{
			ProjectID: e.ProjectID,
			Status:    e.Status,
			Source:    types.SourceOptimistic,
		})
	}

	return m
}

// AppliedIDs returns the set of projects with a canonical status. It is
// safe to call before any source has loaded.
func AppliedIDs(m *Map) map[types.ProjectID]struct{} {
	set := make(map[types.ProjectID]struct{}, m.Len())
	m.Each(func(cs types.CanonicalStatus) bool {
		set[cs.ProjectID] = struct{}{}
		return true
	})
	return set
}

// Counts tallies resolved projects per status.
func Counts(m *Map) map[types.Status]int {
	counts := make(map[types.Status]int)
	m.Each(func(cs types.CanonicalStatus) bool {
		counts[cs.Status]++
		return true
	})
	return counts
}
