package http

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"talky/internal/analytics"
	"talky/internal/cache"
	"talky/internal/documents"
	applog "talky/internal/log"
)

type reportResponse struct {
	UserID      string    `json:"userId"`
	GeneratedAt time.Time `json:"generatedAt"`
	analytics.Report
}

type summaryResponse struct {
	analytics.Summary
	Diagnostics analytics.Diagnostics `json:"diagnostics"`
}

type listResponse[T any] struct {
	Items []T `json:"items"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			applog.FromContext(r.Context()).Warn("Readiness check failed", applog.FieldError, err)
			writeError(w, r, http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

// snapshot resolves the path user and returns their cached snapshot. It
// writes the error response itself and returns false on failure.
func (s *Server) snapshot(w http.ResponseWriter, r *http.Request) (*cache.Snapshot, bool) {
	user, err := userID(r)
	if err != nil {
		fail(w, r, err)
		return nil, false
	}
	snap, err := s.snapshots.Get(r.Context(), user)
	if err != nil {
		fail(w, r, fmt.Errorf("load records for %s: %w", user, err))
		return nil, false
	}
	if d := snap.Report.Diagnostics; d.Skipped() {
		fields := applog.NewFields().
			WithUser(user).
			WithDiagnostics(len(snap.Records), d.MalformedAmounts, d.UnparseableDates)
		applog.FromContext(r.Context()).Debug("Report degraded records", fields.ToSlice()...)
	}
	return snap, true
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, r, http.StatusOK, reportResponse{
		UserID:      r.PathValue("userID"),
		GeneratedAt: snap.LoadedAt,
		Report:      snap.Report,
	})
}

func (s *Server) handleMonthly(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, r, http.StatusOK, listResponse[analytics.MonthlyTotal]{Items: snap.Report.Monthly})
}

func (s *Server) handleTotals(w http.ResponseWriter, r *http.Request) {
	by := r.URL.Query().Get("by")
	if by == "" {
		by = string(analytics.KeyCategory)
	}
	field, err := analytics.ParseKeyField(by)
	if err != nil {
		fail(w, r, err)
		return
	}
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	var totals []analytics.GroupTotal
	switch field {
	case analytics.KeyCategory:
		totals = snap.Report.ByCategory
	case analytics.KeySubcategory:
		totals = snap.Report.BySubcategory
	case analytics.KeyProvider:
		totals = snap.Report.ByProvider
	}
	writeJSON(w, r, http.StatusOK, listResponse[analytics.GroupTotal]{Items: totals})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, r, http.StatusOK, summaryResponse{
		Summary:     snap.Report.Summary,
		Diagnostics: snap.Report.Diagnostics,
	})
}

func (s *Server) handleExpenses(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, r, http.StatusOK, s.engine.Ledger(snap.Records, f))
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	if s.registry == nil {
		writeError(w, r, http.StatusServiceUnavailable, "document registry is not configured")
		return
	}
	user, err := userID(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	docs, err := s.registry.ListDocuments(r.Context(), user)
	if err != nil {
		fail(w, r, fmt.Errorf("list documents: %w", err))
		return
	}
	if docs == nil {
		docs = []documents.Document{}
	}
	writeJSON(w, r, http.StatusOK, listResponse[documents.Document]{Items: docs})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.uploader == nil {
		writeError(w, r, http.StatusServiceUnavailable, "document uploads are not configured")
		return
	}
	user, err := userID(r)
	if err != nil {
		fail(w, r, err)
		return
	}

	limit := s.maxUploadBytes * maxUploadFiles
	if r.ContentLength > limit {
		fail(w, r, fmt.Errorf("%w: request body exceeds %d bytes", documents.ErrTooLarge, limit))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if errorStatus(err) != http.StatusRequestEntityTooLarge {
			err = fmt.Errorf("%w: %v", errBadRequest, err)
		}
		fail(w, r, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) > maxUploadFiles {
		fail(w, r, fmt.Errorf("%w: at most %d files per upload", errBadRequest, maxUploadFiles))
		return
	}
	files := make([]documents.File, 0, len(headers))
	for _, fh := range headers {
		files = append(files, documents.File{
			Name: fh.Filename,
			Size: fh.Size,
			Open: func() (io.ReadCloser, error) { return fh.Open() },
		})
	}

	docs, err := s.uploader.Upload(r.Context(), user, files)
	if err != nil {
		fail(w, r, err)
		return
	}
	applog.FromContext(r.Context()).Info("Documents uploaded",
		applog.FieldUserID, user,
		applog.FieldOperation, applog.OpUpload,
		"count", len(docs))
	writeJSON(w, r, http.StatusCreated, listResponse[documents.Document]{Items: docs})
}
