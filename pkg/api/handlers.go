package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ethpandaops/benchtrack/pkg/history"
	"github.com/ethpandaops/benchtrack/pkg/index"
)

const (
	defaultAlertLimit = 50
	maxAlertLimit     = 1000
)

// errorResponse is a standard error payload.
type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON encodes v as JSON and writes it to w.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encoding response", http.StatusInternalServerError)
	}
}

// writeStoreError maps history errors onto HTTP statuses.
func writeStoreError(w http.ResponseWriter, err error) {
	var unknown *history.UnknownSuiteError
	if errors.As(err, &unknown) {
		writeJSON(w, http.StatusNotFound, errorResponse{err.Error()})

		return
	}

	writeJSON(w, http.StatusInternalServerError, errorResponse{err.Error()})
}

// handleHealth returns server health status.
func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleData returns the whole document, as JSON or as the JS assignment
// used by static dashboards.
func (s *server) handleData(w http.ResponseWriter, r *http.Request) {
	format, err := history.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{err.Error()})

		return
	}

	body, err := history.Marshal(s.current().Data(), history.EncodeOptions{Format: format})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{"encoding document"})

		return
	}

	contentType := "application/json"
	if format == history.FormatJS {
		contentType = "application/javascript"
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

type suiteResponse struct {
	Name     string `json:"name"`
	Entries  int    `json:"entries"`
	LastDate int64  `json:"last_date"`
}

// handleSuites lists the suites of the document.
func (s *server) handleSuites(w http.ResponseWriter, _ *http.Request) {
	store := s.current()
	names := store.Suites()
	out := make([]suiteResponse, 0, len(names))

	for _, name := range names {
		entries, err := store.Entries(name)
		if err != nil {
			writeStoreError(w, err)

			return
		}

		resp := suiteResponse{Name: name, Entries: len(entries)}
		if len(entries) > 0 {
			resp.LastDate = entries[len(entries)-1].Date
		}

		out = append(out, resp)
	}

	writeJSON(w, http.StatusOK, out)
}

// handleBenches lists the benchmark names recorded in a suite.
func (s *server) handleBenches(w http.ResponseWriter, r *http.Request) {
	names, err := s.current().BenchNames(chi.URLParam(r, "suite"))
	if err != nil {
		writeStoreError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, names)
}

// handleSeries returns the samples of one benchmark, oldest first.
func (s *server) handleSeries(w http.ResponseWriter, r *http.Request) {
	bench := r.URL.Query().Get("bench")
	if bench == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{"bench query parameter is required"})

		return
	}

	seq, err := s.current().Series(chi.URLParam(r, "suite"), bench)
	if err != nil {
		writeStoreError(w, err)

		return
	}

	points := make([]history.Point, 0, 64)
	for p := range seq {
		points = append(points, p)
	}

	writeJSON(w, http.StatusOK, points)
}

type alertResponse struct {
	Bench          string  `json:"bench"`
	CommitID       string  `json:"commit_id"`
	PreviousCommit string  `json:"previous_commit,omitempty"`
	Kind           string  `json:"kind"`
	Ratio          float64 `json:"ratio"`
	Baseline       float64 `json:"baseline"`
	Current        float64 `json:"current"`
	Unit           string  `json:"unit"`
	Date           int64   `json:"date"`
}

// handleAlerts returns the newest alerts recorded for a suite.
func (s *server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	suite := chi.URLParam(r, "suite")

	if _, err := s.current().Entries(suite); err != nil {
		writeStoreError(w, err)

		return
	}

	limit := defaultAlertLimit

	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{"limit must be a positive integer"})

			return
		}

		limit = min(n, maxAlertLimit)
	}

	records, err := s.indexStore.ListAlerts(r.Context(), suite, limit)
	if err != nil {
		s.log.WithError(err).Warn("Failed to list alerts")
		writeJSON(w, http.StatusInternalServerError, errorResponse{"listing alerts"})

		return
	}

	writeJSON(w, http.StatusOK, toAlertResponses(records))
}

func toAlertResponses(records []index.AlertRecord) []alertResponse {
	out := make([]alertResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, alertResponse{
			Bench:          rec.Bench,
			CommitID:       rec.CommitID,
			PreviousCommit: rec.PreviousCommit,
			Kind:           rec.Kind,
			Ratio:          rec.Ratio,
			Baseline:       rec.Baseline,
			Current:        rec.Current,
			Unit:           rec.Unit,
			Date:           rec.Date,
		})
	}

	return out
}
