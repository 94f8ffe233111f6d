// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/pdiddy/applytrack/internal/marketplace"
	"github.com/pdiddy/applytrack/internal/metrics"
	"github.com/pdiddy/applytrack/internal/session"
	"github.com/pdiddy/applytrack/pkg/types"
)

const testUser = 1

const seedYAML = `
projects:
  - id: 5
    title: Payments dashboard
    budget: "4500"
    owner: Acme
  - id: 9
    title: Search UI
    owner: Globex
  - id: 12
    title: Data pipeline
applications:
  - project_id: 5
    user_id: 1
    status: shortlisted
    notes: Go + Postgres
  - project_id: 9
    user_id: 1
  - project_id: 12
    user_id: 2
`

func testStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "db", "sandbox.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	seed := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(seed, []byte(seedYAML), 0o644))
	projects, apps, err := store.LoadSeed(context.Background(), seed)
	require.NoError(t, err)
	require.Equal(t, 3, projects)
	require.Equal(t, 3, apps)
	return store
}

func testServer(t *testing.T) (*httptest.Server, *Store) {
	t.Helper()
	store := testStore(t)
	ts := httptest.NewServer(NewServer(store, testUser, nil, metrics.New()))
	t.Cleanup(ts.Close)
	return ts, store
}

func do(t *testing.T, method, url, body string, header ...string) (int, gjson.Result) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, gjson.ParseBytes(data)
}

func TestStoreApplyWithdraw(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	app, err := store.Apply(ctx, testUser, 12, "hello")
	require.NoError(t, err)
	assert.Len(t, app.ID, 36)
	assert.Equal(t, types.StatusApplied, app.Status)

	_, err = store.Apply(ctx, testUser, 12, "")
	assert.True(t, errors.Is(err, ErrConflict))

	_, err = store.Apply(ctx, testUser, 404, "")
	assert.True(t, errors.Is(err, ErrNotFound))

	n, err := store.Count(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.NoError(t, store.Withdraw(ctx, testUser, 12))
	assert.True(t, errors.Is(store.Withdraw(ctx, testUser, 12), ErrNotFound))
}

func TestStoreSeededStatus(t *testing.T) {
	store := testStore(t)
	apps, err := store.Applications(context.Background(), testUser)
	require.NoError(t, err)
	require.Len(t, apps, 2)

	byProject := map[types.ProjectID]Application{}
	for _, a := range apps {
		byProject[a.ProjectID] = a
	}
	assert.Equal(t, types.StatusShortlisted, byProject[5].Status)
	assert.Equal(t, "Go + Postgres", byProject[5].Notes)
	assert.Equal(t, types.StatusApplied, byProject[9].Status)
}

func TestSeedRejectsUnknownStatus(t *testing.T) {
	store := testStore(t)
	_, _, err := store.ApplySeed(context.Background(), Seed{
		Applications: []SeedApplication{{ProjectID: 12, UserID: 1, Status: "paused"}},
	})
	assert.Error(t, err)
}

func TestInMemoryStore(t *testing.T) {
	store, err := NewStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.UpsertProject(ctx, types.ProjectSummary{ID: 1, Title: "One"}))
	p, err := store.Project(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "open", p.Status)
	assert.Error(t, store.UpsertProject(ctx, types.ProjectSummary{ID: 0}))
}

func TestEndpoints(t *testing.T) {
	ts, _ := testServer(t)

	code, doc := do(t, http.MethodGet, ts.URL+"/api/applications/applied-ids", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(testUser), doc.Get("userId").Int())
	assert.Len(t, doc.Get("projectIds").Array(), 2)

	code, doc = do(t, http.MethodGet, ts.URL+"/api/applications/mine", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Len(t, doc.Get("applications").Array(), 2)

	code, doc = do(t, http.MethodGet, ts.URL+"/api/applications/mine/count", "", HeaderUserID, "2")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(1), doc.Get("count").Int())

	code, doc = do(t, http.MethodGet, ts.URL+"/api/projects/5", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Payments dashboard", doc.Get("project.title").String())
	assert.Equal(t, "Acme", doc.Get("project.ownerName").String())

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"apply", http.MethodPost, "/api/projects/12/apply", `{"notes":"hi"}`, http.StatusCreated},
		{"apply again conflicts", http.MethodPost, "/api/projects/12/apply", "", http.StatusConflict},
		{"apply unknown project", http.MethodPost, "/api/projects/77/apply", "", http.StatusNotFound},
		{"apply bad id", http.MethodPost, "/api/projects/abc/apply", "", http.StatusBadRequest},
		{"apply bad body", http.MethodPost, "/api/projects/5/apply", `{`, http.StatusBadRequest},
		{"withdraw", http.MethodDelete, "/api/projects/12/apply", "", http.StatusNoContent},
		{"withdraw again", http.MethodDelete, "/api/projects/12/apply", "", http.StatusNotFound},
		{"owner moves status", http.MethodPut, "/api/projects/9/applicants/1/status", `{"status":"Interview"}`, http.StatusOK},
		{"owner unknown status", http.MethodPut, "/api/projects/9/applicants/1/status", `{"status":"paused"}`, http.StatusBadRequest},
		{"owner missing application", http.MethodPut, "/api/projects/12/applicants/1/status", `{"status":"rejected"}`, http.StatusNotFound},
		{"missing project", http.MethodGet, "/api/projects/404", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := do(t, tt.method, ts.URL+tt.path, tt.body)
			assert.Equal(t, tt.want, code)
		})
	}

	code, _ = do(t, http.MethodGet, ts.URL+"/api/applications/mine", "", HeaderUserID, "nope")
	assert.Equal(t, http.StatusBadRequest, code)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), `route="/api/projects/{id}/apply"`)
}

// TestEngineAgainstSandbox drives the engine through the real HTTP client.
func TestEngineAgainstSandbox(t *testing.T) {
	ts, store := testServer(t)
	ctx := context.Background()

	client, err := marketplace.New(types.MarketplaceConfig{BaseURL: ts.URL, MaxRetries: 1}, nil)
	require.NoError(t, err)
	engine, err := session.New(ctx, client, session.Options{})
	require.NoError(t, err)
	defer engine.Close()

	require.NoError(t, engine.Sync(ctx))
	assert.ElementsMatch(t, []types.ProjectID{5, 9}, engine.AppliedIDs())
	assert.Equal(t, 2, engine.AppliedCount())
	cs, ok := engine.Status(5)
	require.True(t, ok)
	assert.Equal(t, types.StatusShortlisted, cs.Status)
	assert.Equal(t, types.SourceApplicationsList, cs.Source)

	engine.Apply(12)
	assert.True(t, engine.IsApplied(12))
	engine.Wait()
	cs, _ = engine.Status(12)
	assert.Equal(t, types.SourceApplicationsList, cs.Source)
	assert.Equal(t, 3, engine.AppliedCount())

	// An owner decision shows up on the next refresh.
	require.NoError(t, store.SetStatus(ctx, testUser, 9, types.StatusInterviewing))
	require.NoError(t, engine.Sync(ctx))
	cs, _ = engine.Status(9)
	assert.Equal(t, types.StatusInterviewing, cs.Status)

	engine.Withdraw(5)
	assert.False(t, engine.IsApplied(5))
	engine.Wait()
	assert.False(t, engine.IsApplied(5))
	assert.Equal(t, 2, engine.AppliedCount())

	engine.ApplicationRows()
	engine.Wait()
	rows := engine.ApplicationRows()
	require.Len(t, rows, 2)
	for _, r := range rows {
		assert.Equal(t, types.RowReady, r.State, fmt.Sprintf("project %d", r.ProjectID))
		require.NotNil(t, r.Project)
	}

	select {
	case n := <-engine.Notices():
		t.Fatalf("unexpected notice: %v", n)
	case <-time.After(10 * time.Millisecond):
	}
}
