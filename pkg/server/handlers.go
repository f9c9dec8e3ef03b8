package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/glimps-re/defhost/pkg/journal"
	"github.com/go-chi/chi/v5"
)

type pathRequest struct {
	Path string `json:"path"`
}

type allowRequest struct {
	FilePath string `json:"file_path"`
}

type cleanupRequest struct {
	Categories []string `json:"categories"`
}

type runningResponse struct {
	Running bool `json:"running"`
}

// GET /api/status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) error {
	status, err := s.defender.Status(r.Context())
	return ok(w, status, err)
}

// POST /api/definitions/update
func (s *Server) handleUpdateDefinitions(w http.ResponseWriter, r *http.Request) error {
	result, err := s.defender.UpdateDefinitions(r.Context())
	return ok(w, result, err)
}

// POST /api/detection/refresh
func (s *Server) handleRefreshDetection(w http.ResponseWriter, r *http.Request) error {
	result, err := s.defender.RefreshDetection(r.Context())
	return ok(w, result, err)
}

// GET /api/scan/running
func (s *Server) handleScanRunning(w http.ResponseWriter, r *http.Request) error {
	running, err := s.defender.IsScanRunning(r.Context())
	return ok(w, runningResponse{Running: running}, err)
}

// POST /api/scan/quick
func (s *Server) handleQuickScan(w http.ResponseWriter, r *http.Request) error {
	result, err := s.defender.QuickScan(r.Context())
	return ok(w, result, err)
}

// POST /api/scan/full
func (s *Server) handleFullScan(w http.ResponseWriter, r *http.Request) error {
	result, err := s.defender.FullScan(r.Context())
	return ok(w, result, err)
}

// POST /api/scan/custom
// Body: {"path": "C:\\Users\\me\\Downloads"}
func (s *Server) handleCustomScan(w http.ResponseWriter, r *http.Request) error {
	var body pathRequest
	if err := decodeBody(r, &body); err != nil {
		return err
	}
	result, err := s.defender.CustomScan(r.Context(), body.Path)
	return ok(w, result, err)
}

// POST /api/scan/cancel
func (s *Server) handleCancelScan(w http.ResponseWriter, r *http.Request) error {
	result, err := s.defender.CancelScan(r.Context())
	return ok(w, result, err)
}

// GET /api/scan/history
func (s *Server) handleScanHistory(w http.ResponseWriter, r *http.Request) error {
	history, err := s.defender.History(r.Context())
	return ok(w, history, err)
}

// GET /api/scan/summary/{type}
func (s *Server) handleScanSummary(w http.ResponseWriter, r *http.Request) error {
	summary, err := s.defender.LastScanSummary(r.Context(), chi.URLParam(r, "type"))
	return ok(w, summary, err)
}

// GET /api/threats
func (s *Server) handleThreats(w http.ResponseWriter, r *http.Request) error {
	summary, err := s.defender.Threats(r.Context())
	return ok(w, summary, err)
}

// POST /api/threats/{id}/quarantine
func (s *Server) handleQuarantineThreat(w http.ResponseWriter, r *http.Request) error {
	id, err := threatID(r)
	if err != nil {
		return err
	}
	result, err := s.defender.QuarantineThreat(r.Context(), id)
	return ok(w, result, err)
}

// POST /api/threats/{id}/remove
func (s *Server) handleRemoveThreat(w http.ResponseWriter, r *http.Request) error {
	id, err := threatID(r)
	if err != nil {
		return err
	}
	result, err := s.defender.RemoveThreat(r.Context(), id)
	return ok(w, result, err)
}

// POST /api/threats/{id}/allow
// Body (optional): {"file_path": "C:\\tools\\nc.exe"}
func (s *Server) handleAllowThreat(w http.ResponseWriter, r *http.Request) error {
	id, err := threatID(r)
	if err != nil {
		return err
	}
	var body allowRequest
	if r.ContentLength != 0 {
		if err = decodeBody(r, &body); err != nil {
			return err
		}
	}
	result, err := s.defender.AllowThreat(r.Context(), id, body.FilePath)
	return ok(w, result, err)
}

// POST /api/threats/{id}/restore
func (s *Server) handleRestoreThreat(w http.ResponseWriter, r *http.Request) error {
	id, err := threatID(r)
	if err != nil {
		return err
	}
	result, err := s.defender.RestoreThreat(r.Context(), id)
	return ok(w, result, err)
}

// GET /api/threats/{id}/inspect
func (s *Server) handleInspectThreat(w http.ResponseWriter, r *http.Request) error {
	id, err := threatID(r)
	if err != nil {
		return err
	}
	result, err := s.defender.Inspect(r.Context(), id)
	return ok(w, result, err)
}

// POST /api/quarantine/clean
func (s *Server) handleCleanQuarantine(w http.ResponseWriter, r *http.Request) error {
	result, err := s.defender.CleanQuarantine(r.Context())
	return ok(w, result, err)
}

// POST /api/threats/remove-all
func (s *Server) handleRemoveAllThreats(w http.ResponseWriter, r *http.Request) error {
	result, err := s.defender.RemoveAllThreats(r.Context())
	return ok(w, result, err)
}

// POST /api/threats/history/clean
func (s *Server) handleCleanThreatHistory(w http.ResponseWriter, r *http.Request) error {
	result, err := s.defender.CleanThreatHistory(r.Context())
	return ok(w, result, err)
}

// GET /api/exclusions
func (s *Server) handleExclusions(w http.ResponseWriter, r *http.Request) error {
	paths, err := s.defender.Exclusions(r.Context())
	return ok(w, paths, err)
}

// POST /api/exclusions
func (s *Server) handleAddExclusion(w http.ResponseWriter, r *http.Request) error {
	var body pathRequest
	if err := decodeBody(r, &body); err != nil {
		return err
	}
	result, err := s.defender.AddExclusion(r.Context(), body.Path)
	return ok(w, result, err)
}

// DELETE /api/exclusions
func (s *Server) handleRemoveExclusion(w http.ResponseWriter, r *http.Request) error {
	var body pathRequest
	if err := decodeBody(r, &body); err != nil {
		return err
	}
	result, err := s.defender.RemoveExclusion(r.Context(), body.Path)
	return ok(w, result, err)
}

// GET /api/cleanup/categories
func (s *Server) handleCleanupCategories(w http.ResponseWriter, r *http.Request) error {
	return ok(w, s.cleaner.Categories(), nil)
}

// GET /api/cleanup/analysis
func (s *Server) handleCleanupAnalysis(w http.ResponseWriter, r *http.Request) error {
	analysis, err := s.cleaner.Analyze(r.Context())
	return ok(w, analysis, err)
}

// POST /api/cleanup
// Body: {"categories": ["user_temp", "crash_dumps"]}, no category means the
// default selection.
func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) error {
	var body cleanupRequest
	if err := decodeBody(r, &body); err != nil {
		return err
	}
	result, err := s.cleaner.Clean(r.Context(), body.Categories)
	return ok(w, result, err)
}

// POST /api/cleanup/temp
func (s *Server) handleCleanTempFiles(w http.ResponseWriter, r *http.Request) error {
	result, err := s.cleaner.CleanTempFiles(r.Context())
	return ok(w, result, err)
}

// GET /api/journal?limit=
func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) error {
	limit := DefaultJournalLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return badRequest{fmt.Errorf("invalid limit %q", raw)}
		}
		limit = n
	}
	if s.journal == nil {
		return ok(w, []journal.Entry{}, nil)
	}
	entries, err := s.journal.List(r.Context(), limit)
	return ok(w, entries, err)
}

// GET /api/journal/{id}
func (s *Server) handleJournalEntry(w http.ResponseWriter, r *http.Request) error {
	if s.journal == nil {
		return journal.ErrEntryNotFound
	}
	entry, err := s.journal.Get(r.Context(), chi.URLParam(r, "id"))
	return ok(w, entry, err)
}
