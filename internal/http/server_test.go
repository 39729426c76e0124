package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"talky/internal/analytics"
	"talky/internal/cache"
	"talky/internal/core"
	"talky/internal/documents"
	applog "talky/internal/log"
	"talky/internal/middleware/ratelimit"
	"talky/internal/records/memory"
)

var pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\n%%EOF\n")

type memoryWriter struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memoryWriter) WriteObject(_ context.Context, key, _ string, _ map[string]string, r io.Reader) (int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return int64(len(data)), nil
}

type memoryRegistry struct {
	mu   sync.Mutex
	docs []documents.Document
}

func (m *memoryRegistry) RegisterDocument(_ context.Context, doc documents.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs = append(m.docs, doc)
	return nil
}

func (m *memoryRegistry) ListDocuments(_ context.Context, userID string) ([]documents.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []documents.Document
	for _, d := range m.docs {
		if d.UserID == userID {
			out = append(out, d)
		}
	}
	return out, nil
}

type testEnv struct {
	server   *Server
	store    *memory.Store
	writer   *memoryWriter
	registry *memoryRegistry
	loads    int
}

func newTestEnv(t *testing.T, withUploads bool) *testEnv {
	t.Helper()
	env := &testEnv{
		store:    memory.New(),
		writer:   &memoryWriter{objects: map[string][]byte{}},
		registry: &memoryRegistry{},
	}
	seed := []core.ExpenseRecord{
		{IssueDate: "2024-01-15", AmountTotal: core.MustAmount("10.00"), Category: "Food", Subcategory: "Produce", Provider: "A", ItemName: "Tomatoes"},
		{IssueDate: "2024-01-20", AmountTotal: core.MustAmount("5.50"), Category: "Food", Subcategory: "Dairy", Provider: "B", ItemName: "Milk"},
		{IssueDate: "2024-02-01", AmountTotal: core.MustAmount("20.00"), Category: "Services", Subcategory: "Cleaning", Provider: "A", ItemName: "Deep clean"},
	}
	require.NoError(t, env.store.SaveRecords(context.Background(), "u1", seed))

	engine := analytics.New(analytics.WithLocation(time.UTC))
	snapshots := cache.NewSnapshotCache(16, time.Minute, engine, func(ctx context.Context, userID string) ([]core.ExpenseRecord, error) {
		env.loads++
		return env.store.ListRecords(ctx, userID)
	})

	deps := Deps{
		Engine:    engine,
		Snapshots: snapshots,
		Documents: env.registry,
		Logger:    applog.New(applog.Config{Output: io.Discard}),
	}
	if withUploads {
		deps.Uploader = documents.NewUploader(env.writer,
			documents.WithRegistry(env.registry),
			documents.WithMaxBytes(1<<10))
	}
	s, err := NewServer(":0", deps, Options{
		CORSAllowedOrigins: []string{"http://localhost:3000"},
		MaxUploadBytes:     1 << 10,
		UploadRateLimit:    ratelimit.Config{Requests: 3, Window: time.Minute},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	env.server = s
	return env
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.server.Handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) get(path string) *httptest.ResponseRecorder {
	return e.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func multipartBody(t *testing.T, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, data := range files {
		part, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.get("/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	assert.Equal(t, http.StatusOK, env.get("/readyz").Code)

	env.server.ready = func(context.Context) error { return errors.New("db down") }
	assert.Equal(t, http.StatusServiceUnavailable, env.get("/readyz").Code)
}

func TestReport(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.get("/api/users/u1/report")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

	got := decode[reportResponse](t, rec)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, []analytics.MonthlyTotal{{MonthKey: "2024-01", Total: 15.5}, {MonthKey: "2024-02", Total: 20}}, got.Monthly)
	assert.Equal(t, analytics.Summary{GrandTotal: 35.5, Count: 3, Average: 11.83, DistinctProviders: 2}, got.Summary)
	require.Len(t, got.ByCategory, 2)
	assert.Equal(t, analytics.GroupTotal{Name: "Food", Value: 15.5, Percentage: 43.66}, got.ByCategory[0])

	// Second request is served from the snapshot cache.
	env.get("/api/users/u1/summary")
	assert.Equal(t, 1, env.loads)
}

func TestReportForUnknownUserIsEmpty(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.get("/api/users/nobody/summary")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[summaryResponse](t, rec)
	assert.Equal(t, analytics.Summary{}, got.Summary)
	assert.Equal(t, analytics.Diagnostics{}, got.Diagnostics)
}

func TestTotals(t *testing.T) {
	env := newTestEnv(t, false)

	tests := []struct {
		query     string
		wantCode  int
		wantFirst analytics.GroupTotal
	}{
		{"", http.StatusOK, analytics.GroupTotal{Name: "Food", Value: 15.5, Percentage: 43.66}},
		{"?by=provider", http.StatusOK, analytics.GroupTotal{Name: "A", Value: 30, Percentage: 84.51}},
		{"?by=subcategory", http.StatusOK, analytics.GroupTotal{Name: "Produce", Value: 10, Percentage: 28.17}},
		{"?by=colour", http.StatusBadRequest, analytics.GroupTotal{}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := env.get("/api/users/u1/totals" + tt.query)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantCode != http.StatusOK {
				assert.Contains(t, decode[errorResponse](t, rec).Error, "unknown grouping field")
				return
			}
			got := decode[listResponse[analytics.GroupTotal]](t, rec)
			require.NotEmpty(t, got.Items)
			assert.Equal(t, tt.wantFirst, got.Items[0])
		})
	}
}

func TestMonthly(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.get("/api/users/u1/monthly")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[listResponse[analytics.MonthlyTotal]](t, rec)
	assert.Len(t, got.Items, 2)
}

func TestExpenses(t *testing.T) {
	env := newTestEnv(t, false)

	tests := []struct {
		name      string
		query     string
		wantCode  int
		wantCount int
		wantTotal float64
	}{
		{"all", "", http.StatusOK, 3, 35.5},
		{"category", "?category=Food", http.StatusOK, 2, 15.5},
		{"all sentinel", "?category=all&provider=all", http.StatusOK, 3, 35.5},
		{"month", "?month=2024-02", http.StatusOK, 1, 20},
		{"search is case-insensitive", "?search=MILK", http.StatusOK, 1, 5.5},
		{"exact keys", "?category=food", http.StatusOK, 0, 0},
		{"bad month", "?month=2024-13", http.StatusBadRequest, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.get("/api/users/u1/expenses" + tt.query)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantCode != http.StatusOK {
				return
			}
			got := decode[analytics.Ledger](t, rec)
			assert.Equal(t, tt.wantCount, got.Count)
			assert.Equal(t, tt.wantTotal, got.Total)
			assert.Equal(t, []string{"Food", "Services"}, got.Options.Categories)
		})
	}
}

func TestInvalidUserID(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.get("/api/users/bad%20user/report")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadNotConfigured(t *testing.T) {
	env := newTestEnv(t, false)

	body, ct := multipartBody(t, map[string][]byte{"a.pdf": pdfBytes})
	req := httptest.NewRequest(http.MethodPost, "/api/users/u1/documents", body)
	req.Header.Set("Content-Type", ct)
	assert.Equal(t, http.StatusServiceUnavailable, env.do(req).Code)
}

func TestUpload(t *testing.T) {
	env := newTestEnv(t, true)

	body, ct := multipartBody(t, map[string][]byte{"invoice.pdf": pdfBytes})
	req := httptest.NewRequest(http.MethodPost, "/api/users/u1/documents", body)
	req.Header.Set("Content-Type", ct)
	rec := env.do(req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	got := decode[listResponse[documents.Document]](t, rec)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "invoice.pdf", got.Items[0].FileName)
	assert.Equal(t, "application/pdf", got.Items[0].ContentType)
	assert.Contains(t, env.writer.objects, got.Items[0].Key)

	list := env.get("/api/users/u1/documents")
	require.Equal(t, http.StatusOK, list.Code)
	assert.Len(t, decode[listResponse[documents.Document]](t, list).Items, 1)

	empty := env.get("/api/users/u2/documents")
	require.Equal(t, http.StatusOK, empty.Code)
	assert.JSONEq(t, `{"items":[]}`, empty.Body.String())
}

func TestUploadErrors(t *testing.T) {
	tests := []struct {
		name     string
		files    map[string][]byte
		wantCode int
	}{
		{"no files", map[string][]byte{}, http.StatusBadRequest},
		{"unsupported type", map[string][]byte{"notes.txt": []byte("just some text")}, http.StatusUnsupportedMediaType},
		{"file too large", map[string][]byte{"big.pdf": append(append([]byte{}, pdfBytes...), bytes.Repeat([]byte("x"), 2<<10)...)}, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, true)
			body, ct := multipartBody(t, tt.files)
			req := httptest.NewRequest(http.MethodPost, "/api/users/u1/documents", body)
			req.Header.Set("Content-Type", ct)
			rec := env.do(req)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			assert.Empty(t, env.writer.objects)
		})
	}
}

func TestUploadRejectsNonMultipart(t *testing.T) {
	env := newTestEnv(t, true)

	req := httptest.NewRequest(http.MethodPost, "/api/users/u1/documents", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusBadRequest, env.do(req).Code)
}

func TestUploadRateLimited(t *testing.T) {
	env := newTestEnv(t, true)

	codes := make([]int, 0, 4)
	for range 4 {
		body, ct := multipartBody(t, map[string][]byte{"invoice.pdf": pdfBytes})
		req := httptest.NewRequest(http.MethodPost, "/api/users/u1/documents", body)
		req.Header.Set("Content-Type", ct)
		codes = append(codes, env.do(req).Code)
	}
	assert.Equal(t, []int{http.StatusCreated, http.StatusCreated, http.StatusCreated, http.StatusTooManyRequests}, codes)

	// Reads are not rate limited.
	assert.Equal(t, http.StatusOK, env.get("/api/users/u1/report").Code)
}

func TestUploadRateLimitKeysOnForwardedClient(t *testing.T) {
	engine := analytics.New(analytics.WithLocation(time.UTC))
	snapshots := cache.NewSnapshotCache(4, time.Minute, engine, memory.New().ListRecords)
	s, err := NewServer(":0", Deps{
		Engine:    engine,
		Snapshots: snapshots,
		Logger:    applog.New(applog.Config{Output: io.Discard}),
	}, Options{
		// httptest requests come from 192.0.2.1.
		TrustedProxies:  []string{"192.0.2.0/24"},
		UploadRateLimit: ratelimit.Config{Requests: 1, Window: time.Minute},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })

	post := func(forwardedFor string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/users/u1/documents", nil)
		req.Header.Set("X-Forwarded-For", forwardedFor)
		rec := httptest.NewRecorder()
		s.Handler.ServeHTTP(rec, req)
		return rec.Code
	}
	// Uploads are not configured, so requests within the limit get 503.
	assert.Equal(t, http.StatusServiceUnavailable, post("203.0.113.7"))
	assert.Equal(t, http.StatusServiceUnavailable, post("203.0.113.8"))
	assert.Equal(t, http.StatusTooManyRequests, post("203.0.113.7"))
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t, false)

	req := httptest.NewRequest(http.MethodGet, "/api/users/u1/summary", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := env.do(req)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/users/u1/summary", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = env.do(req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestProbeBlocked(t *testing.T) {
	env := newTestEnv(t, false)
	assert.Equal(t, http.StatusNotFound, env.get("/.env").Code)
}

func TestNewServerRequiresEngine(t *testing.T) {
	_, err := NewServer(":0", Deps{}, Options{})
	assert.Error(t, err)
}
