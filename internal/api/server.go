// Package api provides the HTTP API for observing a running city model.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (admin control plane).
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"

	"github.com/talgya/solarsim/internal/agents"
	"github.com/talgya/solarsim/internal/engine"
	"github.com/talgya/solarsim/internal/metrics"
	"github.com/talgya/solarsim/internal/persistence"
)

const (
	maxStreamConns = 8
	streamBuffer   = 64
	writeWait      = 5 * time.Second
	pingInterval   = 15 * time.Second
)

// Server serves model state over HTTP.
type Server struct {
	Eng      *engine.Engine
	DB       *persistence.DB // Optional; enables POST /snapshot
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.

	// AllowedOrigins are the CORS origins besides the local dev servers.
	AllowedOrigins []string

	// RateLimit is requests per minute per IP on public endpoints. 0 = 120.
	RateLimit int

	streamConns atomic.Int32
	upgrader    websocket.Upgrader
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	limit := s.RateLimit
	if limit <= 0 {
		limit = 120
	}
	limiter := NewRateLimiter(limit, time.Minute)

	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 16 * 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	origins := append([]string{
		"http://localhost:5173",
		"http://localhost:4173",
		"http://localhost:3000",
	}, s.AllowedOrigins...)

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         300,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(limiter.Middleware)
			r.Get("/status", s.handleStatus)
			r.Get("/summary", s.handleSummary)
			r.Get("/series", s.handleSeries)
			r.Get("/grid", s.handleGrid)
			r.Get("/households/{id}", s.handleHousehold)
		})

		r.Get("/stream", s.handleStream)

		r.Group(func(r chi.Router) {
			r.Use(s.adminOnly)
			r.Post("/speed", s.handleSpeed)
			r.Post("/snapshot", s.handleSnapshot)
		})
	})
	return r
}

// Serve listens on Port until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", srv.Addr, "admin_auth", s.AdminKey != "")

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly requires the admin bearer token.
func (s *Server) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.AdminKey == "" {
			http.Error(w, "admin endpoints disabled (no SOLARSIM_ADMIN_KEY set)", http.StatusForbidden)
			return
		}
		if !s.checkBearerToken(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var status map[string]any
	s.Eng.View(func(m *engine.CityModel) {
		p := m.Params()
		latest := m.Latest()
		status = map[string]any{
			"name":            "solarsim",
			"step":            m.Timestep(),
			"max_steps":       p.MaxSteps,
			"running":         m.Running(),
			"seed":            m.Seed(),
			"width":           p.Width,
			"height":          p.Height,
			"households":      m.Summary().Total(),
			"mode":            p.Mode.String(),
			"subsidy":         p.Subsidy,
			"subsidy_granted": m.SubsidyGranted(),
			"adopters":        latest.Total,
			"adoption_rate":   latest.AdoptionRate,
		}
	})
	status["speed"] = s.Eng.Speed()
	writeJSON(w, status)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	var resp map[string]any
	s.Eng.View(func(m *engine.CityModel) {
		resp = map[string]any{
			"summary":    m.Summary(),
			"generation": m.Generation(),
			"classes":    classRates(m.Households()),
		}
	})
	writeJSON(w, resp)
}

func classRates(hs []*agents.Household) map[string]float64 {
	rates := metrics.ClassAdoption(hs)
	out := make(map[string]float64, len(rates))
	for i, rate := range rates {
		out[agents.Incomes[i].String()] = rate
	}
	return out
}

// handleSeries returns the time series, optionally only steps >= from.
func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	from := 0
	if v := r.URL.Query().Get("from"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "from must be a non-negative integer", http.StatusBadRequest)
			return
		}
		from = n
	}

	var series []engine.Record
	s.Eng.View(func(m *engine.CityModel) {
		series = m.Series()
	})
	if from > len(series) {
		from = len(series)
	}
	writeJSON(w, map[string]any{
		"columns": engine.Columns(),
		"records": series[from:],
	})
}

// handleGrid returns per-cell adopter counts, indexed [x][y].
func (s *Server) handleGrid(w http.ResponseWriter, r *http.Request) {
	var resp map[string]any
	s.Eng.View(func(m *engine.CityModel) {
		p := m.Params()
		resp = map[string]any{
			"step":     m.Timestep(),
			"width":    p.Width,
			"height":   p.Height,
			"adopters": m.AdoptionMatrix(),
		}
	})
	writeJSON(w, resp)
}

type householdView struct {
	*agents.Household
	Dwelling   string `json:"dwelling"`
	X          int    `json:"x"`
	Y          int    `json:"y"`
	Subsidized bool   `json:"subsidized"`
	Adopted    bool   `json:"adopted"`
}

func (s *Server) handleHousehold(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid household id", http.StatusBadRequest)
		return
	}

	var view *householdView
	s.Eng.View(func(m *engine.CityModel) {
		h, ok := m.Household(agents.HouseholdID(id))
		if !ok {
			return
		}
		pos, _ := h.Position()
		view = &householdView{
			Household:  h,
			Dwelling:   h.Type.String(),
			X:          pos.X,
			Y:          pos.Y,
			Subsidized: h.Subsidized(),
			Adopted:    h.Adopted(),
		}
		// Marshal while still holding the read lock.
		writeJSON(w, view)
	})
	if view == nil {
		http.Error(w, "household not found", http.StatusNotFound)
	}
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Speed float64 `json:"speed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Speed < 0 || req.Speed > 1000 {
		http.Error(w, "speed must be 0-1000", http.StatusBadRequest)
		return
	}
	s.Eng.SetSpeed(req.Speed)
	writeJSON(w, map[string]float64{"speed": s.Eng.Speed()})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}

	var (
		id   string
		step int
		err  error
	)
	s.Eng.View(func(m *engine.CityModel) {
		step = m.Timestep()
		id, err = s.DB.SaveModel(m, "snapshot")
	})
	if err != nil {
		slog.Error("snapshot save failed", "error", err)
		http.Error(w, "snapshot failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{
		"id":      id,
		"step":    step,
		"message": "snapshot saved",
	})
}

// handleStream upgrades to a websocket and pushes every new record as JSON,
// starting with the latest one.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.streamConns.Add(1) > maxStreamConns {
		s.streamConns.Add(-1)
		http.Error(w, "too many stream connections", http.StatusServiceUnavailable)
		return
	}
	defer s.streamConns.Add(-1)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	records, unsubscribe := s.Eng.Subscribe(streamBuffer)
	defer unsubscribe()

	var latest engine.Record
	s.Eng.View(func(m *engine.CityModel) { latest = m.Latest() })
	if err := writeRecord(conn, latest); err != nil {
		return
	}

	// Reader: detects client close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	slog.Info("stream client connected", "remote", r.RemoteAddr)
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case rec, ok := <-records:
			if !ok {
				return
			}
			if err := writeRecord(conn, rec); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-closed:
			slog.Info("stream client disconnected", "remote", r.RemoteAddr)
			return
		case <-r.Context().Done():
			return
		}
	}
}

func writeRecord(conn *websocket.Conn, rec engine.Record) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(rec)
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
