// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/pdiddy/applytrack/internal/metrics"
	"github.com/pdiddy/applytrack/pkg/types"
)

// HeaderUserID selects the acting user; without it requests act as the
// server's default user.
const HeaderUserID = "X-User-ID"

// Server serves the marketplace endpoints from a Store.
type Server struct {
	store   *Store
	userID  int64
	log     logrus.FieldLogger
	metrics *metrics.Metrics
	router  chi.Router
}

// NewServer builds the router. log and m may be nil.
func NewServer(store *Store, defaultUser int64, log logrus.FieldLogger, m *metrics.Metrics) *Server {
	if log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		log = discard
	}
	s := &Server{
		store:   store,
		userID:  defaultUser,
		log:     log.WithField("component", "sandbox"),
		metrics: m,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Route("/api", func(r chi.Router) {
		r.Get("/applications/applied-ids", s.handleAppliedIDs)
		r.Get("/applications/mine", s.handleMyApplications)
		r.Get("/applications/mine/count", s.handleCount)
		r.Get("/projects/{id}", s.handleProject)
		r.Post("/projects/{id}/apply", s.handleApply)
		r.Delete("/projects/{id}/apply", s.handleWithdraw)
		r.Put("/projects/{id}/applicants/{userID}/status", s.handleSetStatus)
	})
	if m != nil {
		r.Handle("/metrics", m.Handler())
	}
	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		s.metrics.ObserveHTTP(route, ww.Status())
		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"route":    route,
			"status":   ww.Status(),
			"duration": time.Since(start).String(),
		}).Debug("request")
	})
}

type appliedIDsResponse struct {
	UserID     int64           `json:"userId"`
	ProjectIDs []appliedIDItem `json:"projectIds"`
}

type appliedIDItem struct {
	ProjectID int64  `json:"projectId"`
	Status    string `json:"status"`
}

type applicationJSON struct {
	ID        string `json:"id"`
	ProjectID int64  `json:"projectId"`
	Status    string `json:"status"`
	Notes     string `json:"notes,omitempty"`
	AppliedAt string `json:"appliedAt"`
	UpdatedAt string `json:"updatedAt"`
}

type projectJSON struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Status    string `json:"status"`
	Budget    string `json:"budget,omitempty"`
	OwnerName string `json:"ownerName,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

func toApplicationJSON(a Application) applicationJSON {
	return applicationJSON{
		ID:        a.ID,
		ProjectID: int64(a.ProjectID),
		Status:    string(a.Status),
		Notes:     a.Notes,
		AppliedAt: a.AppliedAt.Format(time.RFC3339Nano),
		UpdatedAt: a.UpdatedAt.Format(time.RFC3339Nano),
	}
}

func (s *Server) handleAppliedIDs(w http.ResponseWriter, r *http.Request) {
	user, ok := s.user(w, r)
	if !ok {
		return
	}
	apps, err := s.store.Applications(r.Context(), user)
	if err != nil {
		s.internalError(w, err)
		return
	}
	resp := appliedIDsResponse{UserID: user, ProjectIDs: make([]appliedIDItem, 0, len(apps))}
	for _, a := range apps {
		resp.ProjectIDs = append(resp.ProjectIDs, appliedIDItem{ProjectID: int64(a.ProjectID), Status: string(a.Status)})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMyApplications(w http.ResponseWriter, r *http.Request) {
	user, ok := s.user(w, r)
	if !ok {
		return
	}
	apps, err := s.store.Applications(r.Context(), user)
	if err != nil {
		s.internalError(w, err)
		return
	}
	out := make([]applicationJSON, 0, len(apps))
	for _, a := range apps {
		out = append(out, toApplicationJSON(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{"applications": out})
}

func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {
	user, ok := s.user(w, r)
	if !ok {
		return
	}
	n, err := s.store.Count(r.Context(), user)
	if err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

func (s *Server) handleProject(w http.ResponseWriter, r *http.Request) {
	id, ok := projectParam(w, r)
	if !ok {
		return
	}
	p, err := s.store.Project(r.Context(), id)
	if err != nil {
		s.storeError(w, err)
		return
	}
	out := projectJSON{
		ID:        int64(p.ID),
		Title:     p.Title,
		Status:    p.Status,
		Budget:    p.Budget,
		OwnerName: p.OwnerName,
	}
	if p.UpdatedAt != nil {
		out.UpdatedAt = p.UpdatedAt.Format(time.RFC3339Nano)
	}
	writeJSON(w, http.StatusOK, map[string]any{"project": out})
}

func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	user, ok := s.user(w, r)
	if !ok {
		return
	}
	id, ok := projectParam(w, r)
	if !ok {
		return
	}
	var body struct {
		Notes string `json:"notes"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}
	app, err := s.store.Apply(r.Context(), user, id, body.Notes)
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.log.WithFields(logrus.Fields{"user_id": user, "project_id": id}).Info("application created")
	writeJSON(w, http.StatusCreated, map[string]any{"application": toApplicationJSON(app)})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	user, ok := s.user(w, r)
	if !ok {
		return
	}
	id, ok := projectParam(w, r)
	if !ok {
		return
	}
	if err := s.store.Withdraw(r.Context(), user, id); err != nil {
		s.storeError(w, err)
		return
	}
	s.log.WithFields(logrus.Fields{"user_id": user, "project_id": id}).Info("application withdrawn")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := projectParam(w, r)
	if !ok {
		return
	}
	user, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || user <= 0 {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	status, ok := types.ParseStatus(body.Status)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown status "+strconv.Quote(body.Status))
		return
	}
	if err := s.store.SetStatus(r.Context(), user, id, status); err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(status)})
}

func (s *Server) user(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.Header.Get(HeaderUserID)
	if raw == "" {
		return s.userID, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid "+HeaderUserID+" header")
		return 0, false
	}
	return id, true
}

func projectParam(w http.ResponseWriter, r *http.Request) (types.ProjectID, bool) {
	n, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	id := types.ProjectID(n)
	if err != nil || !id.Valid() {
		writeError(w, http.StatusBadRequest, "invalid project id")
		return 0, false
	}
	return id, true
}

func (s *Server) storeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.internalError(w, err)
	}
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.log.WithError(err).Error("request failed")
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
