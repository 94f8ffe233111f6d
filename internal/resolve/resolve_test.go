// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/applytrack/pkg/types"
)

func ts(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func TestResolveEmpty(t *testing.T) {
	m := Resolve(nil, nil, nil)
	require.NotNil(t, m)
	assert.Equal(t, 0, m.Len())
	assert.Empty(t, AppliedIDs(m))

	var nilMap *Map
	assert.Equal(t, 0, nilMap.Len())
	assert.False(t, nilMap.Has(1))
	assert.Empty(t, AppliedIDs(nilMap))
	assert.Nil(t, nilMap.Entries())
}

func TestResolvePrecedence(t *testing.T) {
	tests := []struct {
		name       string
		apps       []types.ApplicationRecord
		ids        []types.IDStatusEntry
		overlay    []types.OptimisticEntry
		wantStatus types.Status
		wantSource types.Source
	}{
		{
			name:       "list beats index",
			apps:       []types.ApplicationRecord{{ProjectID: 1, Status: types.StatusShortlisted}},
			ids:        []types.IDStatusEntry{{ProjectID: 1, Status: types.StatusApplied}},
			wantStatus: types.StatusShortlisted,
			wantSource: types.SourceApplicationsList,
		},
		{
			name:       "list beats overlay",
			apps:       []types.ApplicationRecord{{ProjectID: 1, Status: types.StatusRejected}},
			overlay:    []types.OptimisticEntry{{ProjectID: 1, Status: types.StatusApplied}},
			wantStatus: types.StatusRejected,
			wantSource: types.SourceApplicationsList,
		},
		{
			name:       "index beats overlay",
			ids:        []types.IDStatusEntry{{ProjectID: 1, Status: types.StatusInterviewing}},
			overlay:    []types.OptimisticEntry{{ProjectID: 1, Status: types.StatusApplied}},
			wantStatus: types.StatusInterviewing,
			wantSource: types.SourceIDsIndex,
		},
		{
			name:       "overlay is the fallback",
			overlay:    []types.OptimisticEntry{{ProjectID: 1, Status: types.StatusApplied}},
			wantStatus: types.StatusApplied,
			wantSource: types.SourceOptimistic,
		},
		{
			name:       "all three present",
			apps:       []types.ApplicationRecord{{ProjectID: 1, Status: types.StatusAccepted}},
			ids:        []types.IDStatusEntry{{ProjectID: 1, Status: types.StatusShortlisted}},
			overlay:    []types.OptimisticEntry{{ProjectID: 1, Status: types.StatusApplied}},
			wantStatus: types.StatusAccepted,
			wantSource: types.SourceApplicationsList,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Resolve(tt.apps, tt.ids, tt.overlay)
			require.Equal(t, 1, m.Len())
			cs, ok := m.Get(1)
			require.True(t, ok)
			assert.Equal(t, tt.wantStatus, cs.Status)
			assert.Equal(t, tt.wantSource, cs.Source)
		})
	}
}

func TestResolveArrivalOrderIrrelevant(t *testing.T) {
	apps := []types.ApplicationRecord{{ProjectID: 5, Status: types.StatusShortlisted}}
	ids := []types.IDStatusEntry{{ProjectID: 5, Status: types.StatusApplied}, {ProjectID: 9, Status: types.StatusApplied}}

	// The list may arrive before or after the index; only the latest value
	// of each matters.
	before := Resolve(nil, ids, nil)
	after := Resolve(apps, ids, nil)

	cs, _ := before.Get(5)
	assert.Equal(t, types.StatusApplied, cs.Status)

	cs, _ = after.Get(5)
	assert.Equal(t, types.StatusShortlisted, cs.Status)
	cs, _ = after.Get(9)
	assert.Equal(t, types.StatusApplied, cs.Status)
	assert.Equal(t, types.SourceIDsIndex, cs.Source)
}

func TestResolveCarriesAppliedAt(t *testing.T) {
	applied := ts("2026-03-01T10:00:00Z")
	m := Resolve(
		[]types.ApplicationRecord{{ProjectID: 2, Status: types.StatusApplied, AppliedAt: applied}},
		[]types.IDStatusEntry{{ProjectID: 3, Status: types.StatusApplied}},
		nil,
	)
	cs, _ := m.Get(2)
	require.NotNil(t, cs.AppliedAt)
	assert.True(t, cs.AppliedAt.Equal(*applied))

	cs, _ = m.Get(3)
	assert.Nil(t, cs.AppliedAt)
}

func TestResolveDuplicatesLastWriteWins(t *testing.T) {
	m := Resolve(
		[]types.ApplicationRecord{
			{ProjectID: 1, Status: types.StatusApplied},
			{ProjectID: 2, Status: types.StatusApplied},
			{ProjectID: 1, Status: types.StatusShortlisted},
		},
		[]types.IDStatusEntry{
			{ProjectID: 3, Status: types.StatusApplied},
			{ProjectID: 3, Status: types.StatusInterviewing},
		},
		[]types.OptimisticEntry{
			{ProjectID: 4, Status: types.StatusApplied},
			{ProjectID: 4, Status: types.StatusApplied},
		},
	)

	require.Equal(t, 4, m.Len())
	cs, _ := m.Get(1)
	assert.Equal(t, types.StatusShortlisted, cs.Status)
	cs, _ = m.Get(3)
	assert.Equal(t, types.StatusInterviewing, cs.Status)

	var order []types.ProjectID
	for _, e := range m.Entries() {
		order = append(order, e.ProjectID)
	}
	assert.Equal(t, []types.ProjectID{1, 2, 3, 4}, order)
}

func TestResolveSkipsInvalidIDs(t *testing.T) {
	m := Resolve(
		[]types.ApplicationRecord{{ProjectID: 0, Status: types.StatusApplied}},
		[]types.IDStatusEntry{{ProjectID: -1, Status: types.StatusApplied}},
		[]types.OptimisticEntry{{ProjectID: 0, Status: types.StatusApplied}},
	)
	assert.Equal(t, 0, m.Len())
	assert.False(t, m.Has(0))
}

func TestResolveDoesNotMutateInputs(t *testing.T) {
	ids := []types.IDStatusEntry{{ProjectID: 1, Status: types.StatusApplied}}
	overlay := []types.OptimisticEntry{{ProjectID: 1, Status: types.StatusApplied}}
	Resolve(nil, ids, overlay)
	assert.Equal(t, []types.IDStatusEntry{{ProjectID: 1, Status: types.StatusApplied}}, ids)
	assert.Equal(t, []types.OptimisticEntry{{ProjectID: 1, Status: types.StatusApplied}}, overlay)
}

func TestScenarioListAndIndex(t *testing.T) {
	m := Resolve(
		[]types.ApplicationRecord{{ProjectID: 5, Status: types.StatusShortlisted}},
		[]types.IDStatusEntry{{ProjectID: 5, Status: types.StatusApplied}, {ProjectID: 9, Status: types.StatusApplied}},
		nil,
	)

	cs, ok := m.Get(5)
	require.True(t, ok)
	assert.Equal(t, types.StatusShortlisted, cs.Status)
	cs, ok = m.Get(9)
	require.True(t, ok)
	assert.Equal(t, types.StatusApplied, cs.Status)

	applied := AppliedIDs(m)
	assert.Contains(t, applied, types.ProjectID(5))
	assert.Contains(t, applied, types.ProjectID(9))
	assert.Len(t, applied, 2)
}

func TestEachStops(t *testing.T) {
	m := Resolve(nil, []types.IDStatusEntry{{ProjectID: 1}, {ProjectID: 2}, {ProjectID: 3}}, nil)
	seen := 0
	m.Each(func(types.CanonicalStatus) bool {
		seen++
		return seen < 2
	})
	assert.Equal(t, 2, seen)
}

func TestCounts(t *testing.T) {
	m := Resolve(
		[]types.ApplicationRecord{{ProjectID: 1, Status: types.StatusShortlisted}},
		[]types.IDStatusEntry{{ProjectID: 2, Status: types.StatusApplied}},
		[]types.OptimisticEntry{{ProjectID: 3, Status: types.StatusApplied}},
	)
	assert.Equal(t, map[types.Status]int{
		types.StatusShortlisted: 1,
		types.StatusApplied:     2,
	}, Counts(m))
}
