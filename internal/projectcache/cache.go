// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package projectcache keeps a bounded, best-effort lookup of project
// summaries and tracks targeted backfill fetches for projects that are
// referenced by an application but were never loaded by the UI.
package projectcache

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/pdiddy/applytrack/pkg/types"
)

const defaultSize = 512

// FetchFunc loads a single project summary.
type FetchFunc func(ctx context.Context, id types.ProjectID) (types.ProjectSummary, error)

// Entry is the cache's view of one project.
type Entry struct {
	Summary *types.ProjectSummary
	State   types.RowState
	Err     string

	// NeedsFetch is true when nothing is cached, in flight, or failed.
	NeedsFetch bool
}

// Cache is safe for concurrent use.
type Cache struct {
	summaries *lru.Cache[types.ProjectID, types.ProjectSummary]
	group     singleflight.Group

	mu      sync.Mutex
	size    int
	pending map[types.ProjectID]struct{}
	failed  map[types.ProjectID]string
}

// New creates a cache holding at most size summaries; size <= 0 uses the default.
func New(size int) (*Cache, error) {
	if size <= 0 {
		size = defaultSize
	}
	summaries, err := lru.New[types.ProjectID, types.ProjectSummary](size)
	if err != nil {
		return nil, fmt.Errorf("creating project cache: %w", err)
	}
	return &Cache{
		summaries: summaries,
		size:      size,
		pending:   make(map[types.ProjectID]struct{}),
		failed:    make(map[types.ProjectID]string),
	}, nil
}

// Put stores summaries that the UI already holds, for example from a feed
// page. Summaries with an invalid id are ignored.
func (c *Cache) Put(summaries ...types.ProjectSummary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range summaries {
		if !s.ID.Valid() {
			continue
		}
		c.summaries.Add(s.ID, s)
		delete(c.failed, s.ID)
	}
}

// Reserve grows the cache to hold at least n summaries. The cache never
// shrinks, so every project in a view of n rows stays resident and a rebuild
// does not refetch what an earlier rebuild evicted.
func (c *Cache) Reserve(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n <= c.size {
		return
	}
	c.summaries.Resize(n)
	c.size = n
}

// Get returns the cached summary for id.
func (c *Cache) Get(id types.ProjectID) (types.ProjectSummary, bool) {
	return c.summaries.Get(id)
}

// Lookup reports what the applications view should show for id.
func (c *Cache) Lookup(id types.ProjectID) Entry {
	if s, ok := c.summaries.Get(id); ok {
		return Entry{Summary: &s, State: types.RowReady}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if msg, ok := c.failed[id]; ok {
		return Entry{State: types.RowFailed, Err: msg}
	}
	_, inFlight := c.pending[id]
	return Entry{State: types.RowLoading, NeedsFetch: !inFlight}
}

// Claim marks id as in flight. It returns false when a fetch is already
// pending, has failed, or the summary is cached, so that each missing id is
// fetched once.
func (c *Cache) Claim(id types.ProjectID) bool {
	if !id.Valid() || c.summaries.Contains(id) {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.pending[id]; ok {
		return false
	}
	if _, ok := c.failed[id]; ok {
		return false
	}
	c.pending[id] = struct{}{}
	return true
}

// Fetch loads id through fetch, sharing a single call between concurrent
// callers. The result is cached on success and recorded as failed otherwise.
func (c *Cache) Fetch(ctx context.Context, id types.ProjectID, fetch FetchFunc) (types.ProjectSummary, error) {
	v, err, _ := c.group.Do(id.String(), func() (any, error) {
		return fetch(ctx, id)
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, id)
	if err != nil {
		c.failed[id] = err.Error()
		return types.ProjectSummary{}, err
	}
	summary := v.(types.ProjectSummary)
	if !summary.ID.Valid() {
		summary.ID = id
	}
	c.summaries.Add(id, summary)
	delete(c.failed, id)
	return summary, nil
}

// ResetFailed forgets failed backfills so the next rebuild retries them.
// It returns the number of ids cleared.
func (c *Cache) ResetFailed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.failed)
	c.failed = make(map[types.ProjectID]string)
	return n
}

// Len returns the number of cached summaries.
func (c *Cache) Len() int {
	return c.summaries.Len()
}
