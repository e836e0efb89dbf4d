package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zombar/monitorclient/internal/database"
	"github.com/zombar/monitorclient/internal/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupTestHandler(t *testing.T) (http.Handler, *database.DB) {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())

	return NewHandler(db, prometheus.NewRegistry(), discardLogger()), db
}

func seed(t *testing.T, db *database.DB, ids ...string) {
	t.Helper()
	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range ids {
		require.NoError(t, db.SaveResult(&models.BatchResult{
			ID:          id,
			Kind:        "text",
			Input:       "вход " + id,
			Status:      models.StatusOK,
			Output:      "Резюме: " + id,
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
			CompletedAt: base.Add(time.Duration(i)*time.Minute + time.Second),
		}))
	}
}

func TestHealth(t *testing.T) {
	h, _ := setupTestHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["time"])
}

func TestListResults(t *testing.T) {
	h, db := setupTestHandler(t)
	seed(t, db, "a", "b", "c")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/results?limit=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var list ResultList
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	assert.Equal(t, 3, list.Total)
	assert.Equal(t, 2, list.Limit)
	require.Len(t, list.Results, 2)
	assert.Equal(t, "c", list.Results[0].ID, "newest first")
	assert.Equal(t, "b", list.Results[1].ID)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/results?limit=2&offset=2", nil))
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	require.Len(t, list.Results, 1)
	assert.Equal(t, "a", list.Results[0].ID)
}

func TestListResultsIgnoresBadPaging(t *testing.T) {
	h, db := setupTestHandler(t)
	seed(t, db, "a")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/results?limit=-1&offset=x", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var list ResultList
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	assert.Equal(t, 20, list.Limit)
	assert.Equal(t, 0, list.Offset)
	assert.Len(t, list.Results, 1)
}

func TestListResultsMethodNotAllowed(t *testing.T) {
	h, _ := setupTestHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/results", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestGetResult(t *testing.T) {
	h, db := setupTestHandler(t)
	seed(t, db, "job-1")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/results/job-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var result models.BatchResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	assert.Equal(t, "job-1", result.ID)
	assert.Equal(t, "Резюме: job-1", result.Output)
}

func TestGetResultNotFound(t *testing.T) {
	h, _ := setupTestHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/results/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.NotEmpty(t, body["error"])
}

func TestResultIDRequired(t *testing.T) {
	h, _ := setupTestHandler(t)

	for _, path := range []string{"/api/results/", "/api/results/a/b"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
}

func TestDeleteResult(t *testing.T) {
	h, db := setupTestHandler(t)
	seed(t, db, "job-1")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/results/job-1", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	_, err := db.GetResult("job-1")
	assert.True(t, errors.Is(err, database.ErrNotFound))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/results/job-1", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResultMethodNotAllowed(t *testing.T) {
	h, _ := setupTestHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/results/job-1", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

type failingStore struct{}

func (failingStore) ListResults(int, int) ([]*models.BatchResult, error) {
	return nil, errors.New("disk full")
}
func (failingStore) CountResults() (int, error) { return 0, errors.New("disk full") }
func (failingStore) GetResult(string) (*models.BatchResult, error) { return nil, errors.New("disk full") }
func (failingStore) DeleteResult(string) error { return errors.New("disk full") }

func TestStoreFailure(t *testing.T) {
	h := NewHandler(failingStore{}, prometheus.NewRegistry(), discardLogger())

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/api/results", nil),
		httptest.NewRequest(http.MethodGet, "/api/results/x", nil),
		httptest.NewRequest(http.MethodDelete, "/api/results/x", nil),
	} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusInternalServerError, rec.Code, req.Method+" "+req.URL.Path)
		assert.Contains(t, rec.Body.String(), "disk full")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	promauto.With(reg).NewCounter(prometheus.CounterOpts{
		Name: "monitorclient_test_total",
		Help: "Test counter",
	}).Inc()
	h := NewHandler(failingStore{}, reg, discardLogger())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "monitorclient_test_total 1"))
}

func TestCORSPreflight(t *testing.T) {
	h, _ := setupTestHandler(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/results", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodDelete)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
