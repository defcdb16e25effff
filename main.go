package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/lmittmann/tint"

	"probebandit/bandit"
	"probebandit/config"
	"probebandit/models"
	"probebandit/runner"
	"probebandit/scheduler"
	"probebandit/store"
	"probebandit/templates"
)

// Server encapsulates the bandit HTTP surface.
type Server struct {
	store  *store.Store
	router *mux.Router
	logger *slog.Logger
	runner scheduler.ArmRunner
}

// NewServer creates a server over an open database handle.
func NewServer(db *sql.DB, logger *slog.Logger) *Server {
	s := &Server{
		store:  store.New(db),
		router: mux.NewRouter(),
		logger: logger,
		runner: runner.New(logger),
	}
	s.routes()
	return s
}

// routes sets up the HTTP routing.
func (s *Server) routes() {
	s.router.HandleFunc("/arms", s.handleCreateArm).Methods("POST")
	s.router.HandleFunc("/arms/{name}/reset", s.handleResetArm).Methods("POST")
	s.router.HandleFunc("/arms/{name}/result", s.handleRecordResult).Methods("POST")
	s.router.HandleFunc("/run", s.handleRun).Methods("POST")
	s.router.HandleFunc("/rank", s.handleRank).Methods("GET")
	s.router.HandleFunc("/reset", s.handleResetAll).Methods("POST")
	s.router.HandleFunc("/summary", s.handleSummary).Methods("GET")
	s.router.HandleFunc("/lint", s.handleLint).Methods("POST")

	// Dashboard
	s.router.HandleFunc("/", s.handleDashboard).Methods("GET")
}

type createArmRequest struct {
	Name    string  `json:"name"`
	Command string  `json:"command"`
	Weight  float64 `json:"weight"`
	Limit   *int    `json:"limit"`
}

// handleCreateArm creates a new arm with default counters.
func (s *Server) handleCreateArm(w http.ResponseWriter, r *http.Request) {
	var req createArmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Name == "" || req.Command == "" {
		http.Error(w, "name and command are required", http.StatusBadRequest)
		return
	}
	if req.Weight < 0 {
		http.Error(w, "weight must be positive", http.StatusBadRequest)
		return
	}
	if req.Limit != nil && *req.Limit < 0 {
		http.Error(w, "limit must be non-negative", http.StatusBadRequest)
		return
	}

	arm := models.NewArm(req.Name, req.Command)
	if req.Weight > 0 {
		arm.Weight = req.Weight
	}
	arm.Limit = req.Limit

	created, err := s.store.CreateArm(r.Context(), arm)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.logger.Info("arm created", "arm", created.Name, "weight", created.Weight)
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(created)
}

type runRequest struct {
	Steps       int    `json:"steps"`
	Concurrency int    `json:"concurrency"`
	Seed        *int64 `json:"seed"`
}

type runResponse struct {
	Report  *scheduler.Report `json:"report"`
	Summary bandit.Summary    `json:"summary"`
}

// handleRun executes the scheduling loop over the stored arm set and
// persists the resulting counters.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	arms, err := s.store.ListArms(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if len(arms) == 0 {
		http.Error(w, "no arms configured", http.StatusConflict)
		return
	}

	cfg := scheduler.Config{
		Concurrency: req.Concurrency,
		MaxRounds:   req.Steps,
	}
	if req.Seed != nil {
		cfg.Rand = rand.New(rand.NewSource(*req.Seed))
	}

	sched, err := scheduler.New(arms, s.runner, cfg, s.logger)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	report, err := sched.Run(r.Context())
	if err != nil {
		s.logger.Warn("run cancelled", "error", err)
	}

	final := sched.Arms()
	if err := s.store.SaveRun(context.Background(), final); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.logger.Info("run finished",
		"dispatched", report.Dispatched,
		"interesting", report.Interesting,
		"exhausted", report.Exhausted,
	)
	json.NewEncoder(w).Encode(runResponse{
		Report:  report,
		Summary: bandit.Summarize(final),
	})
}

// handleRank returns the arm set ordered from most to least promising.
func (s *Server) handleRank(w http.ResponseWriter, r *http.Request) {
	arms, err := s.store.ListArms(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(bandit.Rank(arms))
}

// handleSummary returns the aggregate report over all arms.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	arms, err := s.store.ListArms(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(bandit.Summarize(arms))
}

type resetRequest struct {
	Command string `json:"command"`
}

// handleResetArm zeroes one arm's counters and reactivates it,
// optionally replacing its command.
func (s *Server) handleResetArm(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	var req resetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.store.ResetArm(r.Context(), name, req.Command); err != nil {
		if errors.Is(err, store.ErrArmNotFound) {
			http.Error(w, "arm not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.logger.Info("arm reset", "arm", name)
	w.WriteHeader(http.StatusNoContent)
}

// handleResetAll resets every arm in the set.
func (s *Server) handleResetAll(w http.ResponseWriter, r *http.Request) {
	if err := s.store.ResetAll(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.logger.Info("all arms reset")
	w.WriteHeader(http.StatusNoContent)
}

// handleRecordResult applies an externally observed outcome to an arm.
func (s *Server) handleRecordResult(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	var result struct {
		Interesting bool `json:"interesting"`
	}
	if err := json.NewDecoder(r.Body).Decode(&result); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	successes, failures, err := s.store.RecordOutcome(r.Context(), name, result.Interesting)
	if err != nil {
		if errors.Is(err, store.ErrArmNotFound) {
			http.Error(w, "arm not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(map[string]any{
		"successes": successes,
		"failures":  failures,
	})
}

// handleLint validates a yaml arm-set configuration and returns the
// findings without touching stored state.
func (s *Server) handleLint(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	cfg, err := config.Parse(data)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	findings, err := config.Validate(cfg)
	json.NewEncoder(w).Encode(map[string]any{
		"valid":    err == nil,
		"findings": findings,
	})
}

// handleDashboard renders the main dashboard.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	arms, err := s.store.ListArms(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html")
	if err := templates.Dashboard(bandit.Summarize(arms)).Render(r.Context(), w); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// seedFromConfig creates any arms from the yaml file that are not in
// the store yet. Existing arms keep their accumulated counters.
func (s *Server) seedFromConfig(ctx context.Context, path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	findings, err := config.Validate(cfg)
	for _, f := range findings {
		if f.Level == config.LevelError {
			s.logger.Error("config finding", "arm", f.Arm, "message", f.Message)
		} else {
			s.logger.Warn("config finding", "arm", f.Arm, "message", f.Message)
		}
	}
	if err != nil {
		return err
	}

	for _, arm := range cfg.ToArms() {
		_, getErr := s.store.GetArm(ctx, arm.Name)
		if getErr == nil {
			continue
		}
		if !errors.Is(getErr, store.ErrArmNotFound) {
			return getErr
		}
		if _, err := s.store.CreateArm(ctx, arm); err != nil {
			return err
		}
		s.logger.Info("arm seeded", "arm", arm.Name)
	}
	return nil
}

func main() {
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slog.LevelInfo,
		TimeFormat: time.Kitchen,
	}))
	slog.SetDefault(logger)

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		dsn = "host=localhost user=postgres password=postgres dbname=postgres sslmode=disable"
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		logger.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	server := NewServer(db, logger)

	ctx := context.Background()
	if err := server.store.EnsureSchema(ctx); err != nil {
		logger.Error("ensure schema", "error", err)
		os.Exit(1)
	}

	if path := os.Getenv("BANDIT_CONFIG"); path != "" {
		if err := server.seedFromConfig(ctx, path); err != nil {
			logger.Error("seed config", "error", err, "path", path)
			os.Exit(1)
		}
	}

	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	logger.Info("server starting", "addr", addr)
	if err := http.ListenAndServe(addr, server.router); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
