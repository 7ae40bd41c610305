// Package api serves the game over HTTP. GET endpoints are public
// reads; player POST endpoints are rate limited; admin POST endpoints
// require a bearer token.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/vkotenev/statecraft/internal/game"
	"github.com/vkotenev/statecraft/internal/notify"
	"github.com/vkotenev/statecraft/internal/store"
)

// Resolver runs player actions. Implemented by the game pipeline.
type Resolver interface {
	Resolve(ctx context.Context, playerID, action string) (game.Report, error)
	Found(ctx context.Context, playerID, name, ruler string) (store.Country, error)
}

// WorldReader is the read-only store surface the API serves.
type WorldReader interface {
	GetCountry(id string) (store.Country, error)
	ListCountries() ([]store.Country, error)
	Stats(countryID string) (map[string]int, error)
	AspectTexts(countryID string) (map[string]string, error)
	Projects(countryID string) ([]store.Project, error)
	RecentEvents(countryID string, limit int) ([]store.Event, error)
}

// JobRunner triggers a scheduled job by name. Implemented by the
// scheduler runner.
type JobRunner interface {
	ForceRun(ctx context.Context, name string) error
}

// YearSource reports the current game year.
type YearSource interface {
	CurrentYear() int
}

// Server serves the game state over HTTP.
type Server struct {
	Resolver Resolver
	Store    WorldReader
	Clock    YearSource
	Jobs     JobRunner
	Inbox    *notify.MemorySink
	Port     int
	AdminKey string // Bearer token for admin endpoints. Empty = disabled.

	// ResetClock rewinds the game calendar. Wired from main; nil
	// disables the endpoint.
	ResetClock func() error
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	// Actions burn model calls; founding doubly so.
	actionLimiter := NewRateLimiter(60, time.Hour)
	foundLimiter := NewRateLimiter(5, time.Hour)

	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/countries", s.handleCountries)
	mux.HandleFunc("/api/v1/country/", s.handleCountryDetail)
	mux.HandleFunc("/api/v1/inbox/", s.handleInbox)

	mux.HandleFunc("/api/v1/found", RateLimitMiddleware(foundLimiter, s.handleFound))
	mux.HandleFunc("/api/v1/action", RateLimitMiddleware(actionLimiter, s.handleAction))

	mux.HandleFunc("/api/v1/run-job", s.adminOnly(s.handleRunJob))
	mux.HandleFunc("/api/v1/reset-clock", s.adminOnly(s.handleResetClock))

	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		handler := corsMiddleware(mux)
		if err := http.ListenAndServe(addr, handler); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// corsMiddleware adds CORS headers for allowed frontend origins. Set
// CORS_ORIGINS to a comma-separated list; localhost dev servers are
// always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	countries, err := s.Store.ListCountries()
	if err != nil {
		http.Error(w, "store unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{
		"year":      s.Clock.CurrentYear(),
		"countries": len(countries),
	})
}

func (s *Server) handleCountries(w http.ResponseWriter, r *http.Request) {
	countries, err := s.Store.ListCountries()
	if err != nil {
		http.Error(w, "store unavailable", http.StatusInternalServerError)
		return
	}
	type entry struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Ruler string `json:"ruler"`
	}
	out := make([]entry, 0, len(countries))
	for _, c := range countries {
		out = append(out, entry{ID: c.ID, Name: c.Name, Ruler: c.Ruler})
	}
	writeJSON(w, map[string]any{"countries": out})
}

// handleCountryDetail serves GET /api/v1/country/:id.
func (s *Server) handleCountryDetail(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/country/")
	if id == "" || strings.Contains(id, "/") {
		http.Error(w, "country id required", http.StatusBadRequest)
		return
	}
	c, err := s.Store.GetCountry(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "country not found", http.StatusNotFound)
			return
		}
		http.Error(w, "store unavailable", http.StatusInternalServerError)
		return
	}

	stats, err := s.Store.Stats(id)
	if err != nil {
		http.Error(w, "store unavailable", http.StatusInternalServerError)
		return
	}
	texts, err := s.Store.AspectTexts(id)
	if err != nil {
		http.Error(w, "store unavailable", http.StatusInternalServerError)
		return
	}
	projectList, err := s.Store.Projects(id)
	if err != nil {
		http.Error(w, "store unavailable", http.StatusInternalServerError)
		return
	}
	recent, err := s.Store.RecentEvents(id, 10)
	if err != nil {
		http.Error(w, "store unavailable", http.StatusInternalServerError)
		return
	}

	type projectEntry struct {
		Name      string `json:"name"`
		Category  string `json:"category"`
		Progress  int    `json:"progress"`
		Remaining int    `json:"remaining_years"`
		Completed bool   `json:"completed"`
	}
	projectsOut := make([]projectEntry, 0, len(projectList))
	for _, p := range projectList {
		projectsOut = append(projectsOut, projectEntry{
			Name:      p.Name,
			Category:  p.Category,
			Progress:  p.Progress,
			Remaining: p.RemainingYears,
			Completed: p.Completed,
		})
	}

	type eventEntry struct {
		Title    string `json:"title"`
		Severity string `json:"severity"`
		Year     int    `json:"year"`
		Global   bool   `json:"global,omitempty"`
	}
	eventsOut := make([]eventEntry, 0, len(recent))
	for _, e := range recent {
		eventsOut = append(eventsOut, eventEntry{
			Title: e.Title, Severity: e.Severity, Year: e.Year, Global: e.IsGlobal,
		})
	}

	writeJSON(w, map[string]any{
		"id":          c.ID,
		"name":        c.Name,
		"ruler":       c.Ruler,
		"description": c.Description,
		"problems":    c.ProblemList(),
		"stats":       stats,
		"state":       texts,
		"projects":    projectsOut,
		"events":      eventsOut,
	})
}

// handleInbox drains GET /api/v1/inbox/:id — the player's pending
// reports and event notices.
func (s *Server) handleInbox(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/inbox/")
	if id == "" || strings.Contains(id, "/") {
		http.Error(w, "player id required", http.StatusBadRequest)
		return
	}
	messages := s.Inbox.Drain(id)
	if messages == nil {
		messages = []string{}
	}
	writeJSON(w, map[string]any{"messages": messages})
}

func (s *Server) handleFound(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		PlayerID string `json:"player_id"`
		Name     string `json:"name"`
		Ruler    string `json:"ruler"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.PlayerID == "" || req.Name == "" || req.Ruler == "" {
		http.Error(w, "player_id, name and ruler required", http.StatusBadRequest)
		return
	}

	c, err := s.Resolver.Found(r.Context(), req.PlayerID, req.Name, req.Ruler)
	if err != nil {
		slog.Error("founding failed", "player", req.PlayerID, "error", err)
		http.Error(w, "founding failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{
		"id":          c.ID,
		"name":        c.Name,
		"ruler":       c.Ruler,
		"description": c.Description,
	})
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		PlayerID string `json:"player_id"`
		Action   string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.PlayerID == "" || strings.TrimSpace(req.Action) == "" {
		http.Error(w, "player_id and action required", http.StatusBadRequest)
		return
	}

	report, err := s.Resolver.Resolve(r.Context(), req.PlayerID, req.Action)
	status := http.StatusOK
	switch {
	case err == nil:
	case errors.Is(err, game.ErrActionInFlight):
		status = http.StatusConflict
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, "no country for player", http.StatusNotFound)
		return
	default:
		// The report still carries well-formed fallback prose.
		slog.Warn("action resolution degraded", "player", req.PlayerID, "error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(map[string]any{
		"execution":        report.Execution,
		"result":           report.Result,
		"consequences":     report.Consequences,
		"changes":          report.Changes,
		"projects_started": report.ProjectsStarted,
	})
}

func (s *Server) handleRunJob(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		http.Error(w, "job name required", http.StatusBadRequest)
		return
	}
	if err := s.Jobs.ForceRun(r.Context(), req.Name); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, map[string]any{"ran": req.Name})
}

func (s *Server) handleResetClock(w http.ResponseWriter, r *http.Request) {
	if s.ResetClock == nil {
		http.Error(w, "clock reset disabled", http.StatusForbidden)
		return
	}
	if err := s.ResetClock(); err != nil {
		slog.Error("clock reset failed", "error", err)
		http.Error(w, "clock reset failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"year": s.Clock.CurrentYear()})
}

// checkBearerToken reports whether the request carries the admin token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require POST with the admin bearer token.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		if s.AdminKey == "" {
			http.Error(w, "admin endpoints disabled (no STATECRAFT_ADMIN_KEY set)", http.StatusForbidden)
			return
		}
		if !s.checkBearerToken(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
