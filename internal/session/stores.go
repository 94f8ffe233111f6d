// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package session

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/applytrack/pkg/types"
)

// Store names used in logs, metrics, and snapshots.
const (
	storeApplications = string(types.SourceApplicationsList)
	storeIDsIndex     = string(types.SourceIDsIndex)
	storeCount        = "applications-count"
)

// sourceStore holds the latest successful fetch of one server source.
// Values are replaced wholesale, never merged across fetches.
type sourceStore[T any] struct {
	value     T
	loaded    bool
	updatedAt time.Time
	lastErr   error

	// issued is the sequence of the most recently started fetch; applied is
	// the sequence of the response currently held.
	issued  uint64
	applied uint64

	// withdrawn maps a locally withdrawn project to the last sequence issued
	// before the withdraw. Responses started at or before it omit the project.
	withdrawn map[types.ProjectID]uint64
}

func (s *sourceStore[T]) begin() uint64 {
	s.issued++
	return s.issued
}

// accept stores v if it is not older than what the store already holds.
// without strips a withdrawn project from a response that predates the
// withdraw; it is nil for stores that carry no per-project data.
func (s *sourceStore[T]) accept(seq uint64, v T, now time.Time, without func(T, types.ProjectID) T) bool {
	if seq < s.applied {
		return false
	}
	for id, mark := range s.withdrawn {
		if seq > mark {
			delete(s.withdrawn, id)
			continue
		}
		if without != nil {
			v = without(v, id)
		}
	}
	s.applied = seq
	s.value = v
	s.loaded = true
	s.updatedAt = now
	s.lastErr = nil
	return true
}

// forget records that id was withdrawn locally so responses from fetches
// already in flight cannot bring it back.
func (s *sourceStore[T]) forget(id types.ProjectID) {
	if s.issued <= s.applied {
		return
	}
	if s.withdrawn == nil {
		s.withdrawn = make(map[types.ProjectID]uint64)
	}
	s.withdrawn[id] = s.issued
}

// SourceState describes one store for snapshots and diagnostics.
type SourceState struct {
	Name      string     `json:"name" yaml:"name"`
	Loaded    bool       `json:"loaded" yaml:"loaded"`
	UpdatedAt *time.Time `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
	LastError string     `json:"last_error,omitempty" yaml:"last_error,omitempty"`
}

func (s *sourceStore[T]) state(name string) SourceState {
	st := SourceState{Name: name, Loaded: s.loaded}
	if s.loaded {
		t := s.updatedAt
		st.UpdatedAt = &t
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

// fetchJob binds one store to the call that fills it.
type fetchJob[T any] struct {
	name  string
	store *sourceStore[T]
	fetch func(context.Context) (T, error)

	// without removes one project from a fetched value.
	without func(T, types.ProjectID) T

	// onAccept runs under the engine lock after a response is stored.
	onAccept func(T)
}

// start claims a sequence number for the job.
func start[T any](e *Engine, job fetchJob[T]) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return job.store.begin()
}

// run performs the fetch and hands the result to finish.
func run[T any](ctx context.Context, e *Engine, job fetchJob[T], seq uint64) error {
	v, err := job.fetch(ctx)
	return finish(e, job, seq, v, err)
}

// finish applies one fetch result. A failed fetch keeps the previous value
// and the resolver carries on with whatever the other stores hold.
func finish[T any](e *Engine, job fetchJob[T], seq uint64, v T, err error) error {
	e.metrics.ObserveFetch(job.name, err)
	log := e.log.WithFields(logrus.Fields{"source": job.name, "seq": seq})

	e.mu.Lock()
	if err != nil {
		job.store.lastErr = err
		e.mu.Unlock()
		log.WithError(err).Warn("fetch failed, keeping previous value")
		return err
	}
	if !job.store.accept(seq, v, e.now(), job.without) {
		e.mu.Unlock()
		e.metrics.ObserveStale(job.name)
		log.Debug("discarding stale response")
		return nil
	}
	if job.onAccept != nil {
		job.onAccept(v)
	}
	e.recomputeLocked()
	e.mu.Unlock()

	log.Debug("source refreshed")
	e.notify()
	return nil
}

// refreshAsync starts job in the background.
func refreshAsync[T any](e *Engine, job fetchJob[T]) {
	seq := start(e, job)
	e.goAsync(func(ctx context.Context) {
		_ = run(ctx, e, job, seq)
	})
}

func (e *Engine) applicationsJob() fetchJob[[]types.ApplicationRecord] {
	return fetchJob[[]types.ApplicationRecord]{
		name:    storeApplications,
		store:   &e.apps,
		fetch:   e.market.FetchMyApplications,
		without: removeRecords,
		onAccept: func([]types.ApplicationRecord) {
			// Fresh records may point at projects whose detail fetch failed
			// before; give them another chance on the next rebuild.
			e.cache.ResetFailed()
		},
	}
}

func (e *Engine) idsJob() fetchJob[types.AppliedIDs] {
	return fetchJob[types.AppliedIDs]{
		name:  storeIDsIndex,
		store: &e.ids,
		fetch: e.market.FetchAppliedIDsWithStatus,
		without: func(v types.AppliedIDs, id types.ProjectID) types.AppliedIDs {
			v.Entries = removeEntries(v.Entries, id)
			return v
		},
		onAccept: func(v types.AppliedIDs) {
			if v.UserID != "" {
				e.userID = v.UserID
			}
		},
	}
}

func (e *Engine) countJob() fetchJob[int] {
	return fetchJob[int]{
		name:  storeCount,
		store: &e.count,
		fetch: e.market.FetchMyApplicationsCount,
	}
}

// RefreshApplications refetches the full applications list in the
// background. Call it whenever the applications view is activated.
func (e *Engine) RefreshApplications() { refreshAsync(e, e.applicationsJob()) }

// RefreshAppliedIDs refetches the applied-ids index in the background. Call
// it on mount and whenever the user re-enters a tab that shows apply state.
func (e *Engine) RefreshAppliedIDs() { refreshAsync(e, e.idsJob()) }

// RefreshCount refetches the aggregate applications count in the background.
func (e *Engine) RefreshCount() { refreshAsync(e, e.countJob()) }

// Refresh refetches every server-backed store. The fetches are independent
// and may complete in any order.
func (e *Engine) Refresh() {
	e.RefreshApplications()
	e.RefreshAppliedIDs()
	e.RefreshCount()
}

// Start performs the on-mount refresh of the applied-ids index and count.
func (e *Engine) Start() {
	e.RefreshAppliedIDs()
	e.RefreshCount()
}

// Sync refreshes every server-backed store and blocks until all three
// fetches finish. Each result is applied as soon as it arrives; a failure
// in one does not cancel the others. The first error is returned.
func (e *Engine) Sync(ctx context.Context) error {
	apps, ids, count := e.applicationsJob(), e.idsJob(), e.countJob()
	appsSeq, idsSeq, countSeq := start(e, apps), start(e, ids), start(e, count)

	var g errgroup.Group
	g.Go(func() error { return run(ctx, e, apps, appsSeq) })
	g.Go(func() error { return run(ctx, e, ids, idsSeq) })
	g.Go(func() error { return run(ctx, e, count, countSeq) })
	return g.Wait()
}
