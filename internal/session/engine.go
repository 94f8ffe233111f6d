// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package session owns the engine state for one developer session: the
// three server-backed stores, the optimistic overlay, the resolved
// canonical status map, and the project cache used by the applications
// view. Remote calls run in background goroutines; every result is folded
// back under a single lock and observers are notified afterwards.
package session

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pdiddy/applytrack/internal/metrics"
	"github.com/pdiddy/applytrack/internal/projectcache"
	"github.com/pdiddy/applytrack/internal/resolve"
	"github.com/pdiddy/applytrack/pkg/types"
)

const (
	defaultNoticeBuffer   = 16
	defaultRequestTimeout = 15 * time.Second
)

// Marketplace is the remote API the engine reconciles against.
type Marketplace interface {
	FetchAppliedIDsWithStatus(ctx context.Context) (types.AppliedIDs, error)
	FetchMyApplications(ctx context.Context) ([]types.ApplicationRecord, error)
	FetchMyApplicationsCount(ctx context.Context) (int, error)
	FetchProjectDetail(ctx context.Context, id types.ProjectID) (types.ProjectSummary, error)
	SubmitApplication(ctx context.Context, id types.ProjectID, notes string) error
	WithdrawApplication(ctx context.Context, id types.ProjectID) error
}

// Options configures an Engine. Zero values fall back to defaults.
type Options struct {
	Config  types.SessionConfig
	Log     logrus.FieldLogger
	Metrics *metrics.Metrics
	Cache   *projectcache.Cache

	// Now overrides the clock used for store timestamps.
	Now func() time.Time
}

// Engine is safe for concurrent use.
type Engine struct {
	market  Marketplace
	cache   *projectcache.Cache
	log     logrus.FieldLogger
	metrics *metrics.Metrics
	timeout time.Duration
	now     func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	closed    bool
	apps      sourceStore[[]types.ApplicationRecord]
	ids       sourceStore[types.AppliedIDs]
	count     sourceStore[int]
	overlay   []types.OptimisticEntry
	canonical *resolve.Map
	userID    string
	observers map[int]func()
	nextObs   int
	notices   chan Notice
}

// New creates an engine bound to market. Background calls are cancelled when
// ctx is done or Close is called.
func New(ctx context.Context, market Marketplace, opts Options) (*Engine, error) {
	if market == nil {
		return nil, fmt.Errorf("session: marketplace is required")
	}
	log := opts.Log
	if log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		log = discard
	}
	cache := opts.Cache
	if cache == nil {
		var err error
		if cache, err = projectcache.New(opts.Config.ProjectCacheSize); err != nil {
			return nil, err
		}
	}
	buffer := opts.Config.NoticeBuffer
	if buffer <= 0 {
		buffer = defaultNoticeBuffer
	}
	timeout := opts.Config.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	e := &Engine{
		market:    market,
		cache:     cache,
		log:       log.WithField("component", "session"),
		metrics:   opts.Metrics,
		timeout:   timeout,
		now:       now,
		canonical: resolve.Resolve(nil, nil, nil),
		observers: make(map[int]func()),
		notices:   make(chan Notice, buffer),
	}
	e.ctx, e.cancel = context.WithCancel(ctx)
	return e, nil
}

// goAsync runs fn in a tracked goroutine with a per-call timeout. It is a
// no-op once the engine is closed.
func (e *Engine) goAsync(fn func(ctx context.Context)) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.wg.Add(1)
	e.mu.Unlock()

	go func() {
		defer e.wg.Done()
		ctx, cancel := context.WithTimeout(e.ctx, e.timeout)
		defer cancel()
		fn(ctx)
	}()
}

// recomputeLocked drops overlay entries that a server source now reports and
// rebuilds the canonical map. Callers hold e.mu.
func (e *Engine) recomputeLocked() {
	if len(e.overlay) > 0 {
		reported := make(map[types.ProjectID]struct{}, len(e.apps.value)+len(e.ids.value.Entries))
		for _, r := range e.apps.value {
			reported[r.ProjectID] = struct{}{}
		}
		for _, en := range e.ids.value.Entries {
			reported[en.ProjectID] = struct{}{}
		}
		kept := e.overlay[:0:0]
		for _, o := range e.overlay {
			if _, ok := reported[o.ProjectID]; !ok {
				kept = append(kept, o)
			}
		}
		e.overlay = kept
	}

	e.canonical = resolve.Resolve(e.apps.value, e.ids.value.Entries, e.overlay)

	if e.metrics != nil {
		bySource := make(map[string]int)
		e.canonical.Each(func(cs types.CanonicalStatus) bool {
			bySource[string(cs.Source)]++
			return true
		})
		e.metrics.SetCanonical(bySource)
	}
}

// Subscribe registers fn to run after every change to the canonical map or
// project cache. fn runs on whichever goroutine made the change and must not
// block. The returned func unregisters it.
func (e *Engine) Subscribe(fn func()) (unsubscribe func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextObs
	e.nextObs++
	e.observers[id] = fn
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.observers, id)
	}
}

func (e *Engine) notify() {
	e.mu.Lock()
	fns := make([]func(), 0, len(e.observers))
	for _, fn := range e.observers {
		fns = append(fns, fn)
	}
	e.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Status returns the canonical status for id.
func (e *Engine) Status(id types.ProjectID) (types.CanonicalStatus, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.canonical.Get(id)
}

// IsApplied reports whether id is in the applied set.
func (e *Engine) IsApplied(id types.ProjectID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.canonical.Has(id)
}

// AppliedIDs returns the applied set in canonical order.
func (e *Engine) AppliedIDs() []types.ProjectID {
	e.mu.Lock()
	m := e.canonical
	e.mu.Unlock()

	ids := make([]types.ProjectID, 0, m.Len())
	m.Each(func(cs types.CanonicalStatus) bool {
		ids = append(ids, cs.ProjectID)
		return true
	})
	return ids
}

// Canonical returns a copy of every resolved status in canonical order.
func (e *Engine) Canonical() []types.CanonicalStatus {
	e.mu.Lock()
	m := e.canonical
	e.mu.Unlock()
	return m.Entries()
}

// AppliedCount returns the aggregate counter. Until the count endpoint has
// answered it falls back to the size of the applied set.
func (e *Engine) AppliedCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.count.loaded {
		return e.count.value
	}
	return e.canonical.Len()
}

// UserID returns the user id reported by the applied-ids index, if any.
func (e *Engine) UserID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.userID
}

// Snapshot is a point-in-time copy of the engine state.
type Snapshot struct {
	UserID       string
	AppliedCount int
	Statuses     []types.CanonicalStatus
	ByStatus     map[types.Status]int
	Sources      []SourceState
	Pending      int
}

// Snapshot captures the current state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	count := e.canonical.Len()
	if e.count.loaded {
		count = e.count.value
	}
	return Snapshot{
		UserID:       e.userID,
		AppliedCount: count,
		Statuses:     e.canonical.Entries(),
		ByStatus:     resolve.Counts(e.canonical),
		Sources: []SourceState{
			e.apps.state(storeApplications),
			e.ids.state(storeIDsIndex),
			e.count.state(storeCount),
		},
		Pending: len(e.overlay),
	}
}

// Wait blocks until every background call started so far has finished,
// including the refreshes those calls trigger.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Close cancels outstanding calls, waits for them, and closes the notice
// channel. Later calls to refresh or mutate do nothing remote.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()

	e.cancel()
	e.wg.Wait()
	close(e.notices)
}
