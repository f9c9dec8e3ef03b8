package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/glimps-re/defhost/pkg/cleanup"
	"github.com/glimps-re/defhost/pkg/datamodel"
	"github.com/glimps-re/defhost/pkg/defender"
	"github.com/glimps-re/defhost/pkg/journal"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

var LogLevel = &slog.LevelVar{}

var logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
	Level: LogLevel,
}))

// Defender is the Defender surface served over HTTP.
type Defender interface {
	Status(ctx context.Context) (status datamodel.DefenderStatus, err error)
	UpdateDefinitions(ctx context.Context) (result datamodel.OperationResult, err error)
	RefreshDetection(ctx context.Context) (result datamodel.OperationResult, err error)
	IsScanRunning(ctx context.Context) (running bool, err error)

	QuickScan(ctx context.Context) (result datamodel.ScanResult, err error)
	FullScan(ctx context.Context) (result datamodel.ScanResult, err error)
	CustomScan(ctx context.Context, path string) (result datamodel.ScanResult, err error)
	CancelScan(ctx context.Context) (result datamodel.OperationResult, err error)
	History(ctx context.Context) (history []datamodel.ScanHistoryItem, err error)
	LastScanSummary(ctx context.Context, scanType string) (summary datamodel.ScanSummary, err error)

	Threats(ctx context.Context) (summary datamodel.ThreatSummary, err error)
	QuarantineThreat(ctx context.Context, threatID uint64) (datamodel.OperationResult, error)
	RemoveThreat(ctx context.Context, threatID uint64) (datamodel.OperationResult, error)
	AllowThreat(ctx context.Context, threatID uint64, path string) (datamodel.OperationResult, error)
	RestoreThreat(ctx context.Context, threatID uint64) (datamodel.OperationResult, error)
	Inspect(ctx context.Context, threatID uint64) (result datamodel.InspectResult, err error)
	CleanQuarantine(ctx context.Context) (datamodel.OperationResult, error)
	RemoveAllThreats(ctx context.Context) (datamodel.OperationResult, error)
	CleanThreatHistory(ctx context.Context) (datamodel.OperationResult, error)

	Exclusions(ctx context.Context) (paths []string, err error)
	AddExclusion(ctx context.Context, path string) (datamodel.OperationResult, error)
	RemoveExclusion(ctx context.Context, path string) (datamodel.OperationResult, error)
}

type Cleaner interface {
	Categories() (categories []datamodel.CleanupCategory)
	Analyze(ctx context.Context) (analysis datamodel.CleanupAnalysis, err error)
	Clean(ctx context.Context, ids []string) (result datamodel.CleanupResult, err error)
	CleanTempFiles(ctx context.Context) (result datamodel.CleanResult, err error)
}

type Journal interface {
	Get(ctx context.Context, id string) (entry *journal.Entry, err error)
	List(ctx context.Context, limit int) (entries []journal.Entry, err error)
}

var (
	_ Defender = &defender.Defender{}
	_ Cleaner  = &cleanup.Cleaner{}
	_ Journal  = &journal.Journal{}
)

const DefaultJournalLimit = 100

// Config for New. Journal is optional, /api/journal then serves an empty list
// and /api/journal/{id} answers not found.
// AllowedOrigins defaults to the local UI origins.
type Config struct {
	Defender       Defender
	Cleaner        Cleaner
	Journal        Journal
	AllowedOrigins []string
}

var DefaultAllowedOrigins = []string{"http://localhost:*", "http://127.0.0.1:*", "tauri://localhost"}

type Server struct {
	defender Defender
	cleaner  Cleaner
	journal  Journal
	router   chi.Router
}

func New(config Config) *Server {
	if len(config.AllowedOrigins) == 0 {
		config.AllowedOrigins = DefaultAllowedOrigins
	}
	s := &Server{
		defender: config.Defender,
		cleaner:  config.Cleaner,
		journal:  config.Journal,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: config.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.wrap(s.handleStatus))
		r.Post("/definitions/update", s.wrap(s.handleUpdateDefinitions))
		r.Post("/detection/refresh", s.wrap(s.handleRefreshDetection))

		r.Route("/scan", func(r chi.Router) {
			r.Get("/running", s.wrap(s.handleScanRunning))
			r.Post("/quick", s.wrap(s.handleQuickScan))
			r.Post("/full", s.wrap(s.handleFullScan))
			r.Post("/custom", s.wrap(s.handleCustomScan))
			r.Post("/cancel", s.wrap(s.handleCancelScan))
			r.Get("/history", s.wrap(s.handleScanHistory))
			r.Get("/summary/{type}", s.wrap(s.handleScanSummary))
		})

		r.Route("/threats", func(r chi.Router) {
			r.Get("/", s.wrap(s.handleThreats))
			r.Post("/remove-all", s.wrap(s.handleRemoveAllThreats))
			r.Post("/history/clean", s.wrap(s.handleCleanThreatHistory))
			r.Post("/{id}/quarantine", s.wrap(s.handleQuarantineThreat))
			r.Post("/{id}/remove", s.wrap(s.handleRemoveThreat))
			r.Post("/{id}/allow", s.wrap(s.handleAllowThreat))
			r.Post("/{id}/restore", s.wrap(s.handleRestoreThreat))
			r.Get("/{id}/inspect", s.wrap(s.handleInspectThreat))
		})
		r.Post("/quarantine/clean", s.wrap(s.handleCleanQuarantine))

		r.Get("/exclusions", s.wrap(s.handleExclusions))
		r.Post("/exclusions", s.wrap(s.handleAddExclusion))
		r.Delete("/exclusions", s.wrap(s.handleRemoveExclusion))

		r.Get("/cleanup/categories", s.wrap(s.handleCleanupCategories))
		r.Get("/cleanup/analysis", s.wrap(s.handleCleanupAnalysis))
		r.Post("/cleanup", s.wrap(s.handleCleanup))
		r.Post("/cleanup/temp", s.wrap(s.handleCleanTempFiles))

		r.Get("/journal", s.wrap(s.handleJournal))
		r.Get("/journal/{id}", s.wrap(s.handleJournalEntry))
	})

	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves the API on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) (err error) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}
	errs := make(chan error, 1)
	go func() {
		logger.Info("server listening", slog.String("address", addr))
		errs <- srv.ListenAndServe()
	}()
	select {
	case err = <-errs:
		return
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err = srv.Shutdown(shutdownCtx); err != nil {
		err = fmt.Errorf("could not shutdown server: %w", err)
		return
	}
	if err = <-errs; errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	return
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logger.Debug("request served",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("elapsed", time.Since(start)),
		)
	})
}

// badRequest marks an error caused by the request itself.
type badRequest struct {
	err error
}

func (e badRequest) Error() string {
	return e.err.Error()
}

func (e badRequest) Unwrap() error {
	return e.err
}

type errorResponse struct {
	Error string `json:"error"`
}

func statusCode(err error) int {
	var badReq badRequest
	switch {
	case errors.As(err, &badReq),
		errors.Is(err, defender.ErrEmptyPath),
		errors.Is(err, defender.ErrInvalidScanType),
		errors.Is(err, defender.ErrUnknownPath),
		errors.Is(err, cleanup.ErrUnknownCategory):
		return http.StatusBadRequest
	case errors.Is(err, defender.ErrThreatNotFound),
		errors.Is(err, journal.ErrEntryNotFound):
		return http.StatusNotFound
	case errors.Is(err, defender.ErrScanInProgress):
		return http.StatusConflict
	case errors.Is(err, defender.ErrInspectDisabled):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

type handlerFunc func(w http.ResponseWriter, r *http.Request) error

func (s *Server) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			code := statusCode(err)
			if code == http.StatusInternalServerError {
				logger.Error("request failed", slog.String("path", r.URL.Path), slog.String("error", err.Error()))
			}
			writeJSON(w, code, errorResponse{Error: err.Error()})
		}
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("could not write response", slog.String("error", err.Error()))
	}
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return badRequest{fmt.Errorf("invalid request body: %w", err)}
	}
	return nil
}

func threatID(r *http.Request) (id uint64, err error) {
	raw := chi.URLParam(r, "id")
	id, err = strconv.ParseUint(raw, 10, 64)
	if err != nil {
		err = badRequest{fmt.Errorf("invalid threat id %q", raw)}
	}
	return
}

// ok writes the result of an operation with status 200.
func ok[T any](w http.ResponseWriter, result T, err error) error {
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, result)
	return nil
}
