package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/restalign/internal/logger"
	"github.com/listenupapp/restalign/internal/pipeline"
	"github.com/listenupapp/restalign/internal/ratelimit"
	"github.com/listenupapp/restalign/internal/report"
	"github.com/listenupapp/restalign/internal/sse"
	"github.com/listenupapp/restalign/internal/store"
	"github.com/listenupapp/restalign/internal/store/sqlite"
)

type testServer struct {
	server *Server
	api    humatest.TestAPI
}

func setupTestServer(t *testing.T, withArchive bool, opts Options) *testServer {
	t.Helper()

	var runs store.RunStore
	if withArchive {
		st, err := sqlite.Open(filepath.Join(t.TempDir(), "runs.db"), nil)
		require.NoError(t, err)
		t.Cleanup(func() { _ = st.Close() })
		runs = st
	}

	log := logger.Discard()
	s := NewServer(pipeline.NewRunner(log), runs, log, opts)

	return &testServer{server: s, api: humatest.Wrap(t, s.API())}
}

// decodeData unwraps a success envelope into out.
func decodeData(t *testing.T, resp *httptest.ResponseRecorder, out any) {
	t.Helper()

	var env struct {
		Version int             `json:"v"`
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &env), resp.Body.String())
	require.True(t, env.Success, resp.Body.String())
	assert.Equal(t, EnvelopeVersion, env.Version)
	require.NoError(t, json.Unmarshal(env.Data, out))
}

// decodeError unwraps an error envelope.
func decodeError(t *testing.T, resp *httptest.ResponseRecorder) APIErrorEnvelope {
	t.Helper()

	var env APIErrorEnvelope
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &env), resp.Body.String())
	assert.False(t, env.Success)
	return env
}

var (
	lumenRequest = SequenceRequest{Label: "Lumen", Unit: "eighth", Intervals: [][]float64{{0, 1}, {2, 6}, {8, 10.5}}}
	nidiRequest  = SequenceRequest{Label: "Nidi", Unit: "eighth", Intervals: [][]float64{{0, 3}, {4, 6.5}}}
)

func TestHealthCheck_Success(t *testing.T) {
	ts := setupTestServer(t, true, Options{})

	resp := ts.api.Get("/health")
	assert.Equal(t, http.StatusOK, resp.Code)

	var health HealthResponse
	decodeData(t, resp, &health)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "healthy", health.Components["archive"].Status)
	assert.NotEmpty(t, health.Components["archive"].Latency)
}

func TestHealthCheck_NoArchiveIsDegraded(t *testing.T) {
	ts := setupTestServer(t, false, Options{})

	resp := ts.api.Get("/health")
	assert.Equal(t, http.StatusOK, resp.Code)

	var health HealthResponse
	decodeData(t, resp, &health)
	assert.Equal(t, "degraded", health.Status)
	assert.Equal(t, "run archive not configured", health.Components["archive"].Message)
}

func TestAnalyze(t *testing.T) {
	ts := setupTestServer(t, false, Options{})

	resp := ts.api.Post("/api/v1/analyze", lumenRequest)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var a report.Analysis
	decodeData(t, resp, &a)
	assert.Equal(t, "Lumen", a.Label)
	assert.Equal(t, 3, a.Rests.Count)
	assert.InDelta(t, 7.5, a.Rests.Total, 1e-9)
	assert.Equal(t, []float64{1, 4, 2.5}, a.Durations)
	assert.True(t, a.SortedAndNonOverlapping)
	require.NotNil(t, a.Rests.Median)
	assert.InDelta(t, 2.5, *a.Rests.Median, 1e-9)
}

func TestAnalyze_Coalesce(t *testing.T) {
	ts := setupTestServer(t, false, Options{})

	resp := ts.api.Post("/api/v1/analyze?coalesce=true", SequenceRequest{
		Label:     "touching",
		Intervals: [][]float64{{0, 1}, {1, 2}, {3, 4}},
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var a report.Analysis
	decodeData(t, resp, &a)
	assert.Equal(t, []float64{2, 1}, a.Durations)
}

func TestAnalyze_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       any
		wantStatus int
		wantCode   string
	}{
		{
			name:       "end before start",
			body:       SequenceRequest{Label: "bad", Intervals: [][]float64{{2, 1}}},
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_SEQUENCE",
		},
		{
			name:       "unknown unit",
			body:       SequenceRequest{Label: "bad", Unit: "bar", Intervals: [][]float64{}},
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION",
		},
		{
			name:       "short pair",
			body:       SequenceRequest{Label: "bad", Intervals: [][]float64{{1}}},
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION",
		},
		{
			name:       "missing label",
			body:       map[string]any{"intervals": [][]float64{}},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "VALIDATION",
		},
	}

	ts := setupTestServer(t, false, Options{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.api.Post("/api/v1/analyze", tt.body)
			assert.Equal(t, tt.wantStatus, resp.Code, resp.Body.String())
			assert.Equal(t, tt.wantCode, decodeError(t, resp).Code)
		})
	}
}

func TestCompare_ArchivesRun(t *testing.T) {
	ts := setupTestServer(t, true, Options{})

	resp := ts.api.Post("/api/v1/compare", CompareRequest{A: lumenRequest, B: nidiRequest})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var doc report.Document
	decodeData(t, resp, &doc)
	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, "api", doc.Source)
	assert.Equal(t, "/api/v1/runs/"+doc.ID, resp.Header().Get("Location"))

	cmp := doc.Comparison
	assert.Equal(t, 3, cmp.CountA)
	assert.Equal(t, 2, cmp.CountB)
	assert.Equal(t, 1, cmp.CountDelta)
	require.NotNil(t, cmp.FirstMismatch)
	assert.Equal(t, 0, cmp.FirstMismatch.Index)
	assert.InDelta(t, -2.0, cmp.FirstMismatch.Delta, 1e-9)

	// Get.
	resp = ts.api.Get("/api/v1/runs/" + doc.ID)
	require.Equal(t, http.StatusOK, resp.Code)
	var got report.Document
	decodeData(t, resp, &got)
	assert.Equal(t, doc.Fingerprint, got.Fingerprint)
	assert.Equal(t, doc.Comparison, got.Comparison)

	// List.
	resp = ts.api.Get("/api/v1/runs?fingerprint=" + doc.Fingerprint)
	require.Equal(t, http.StatusOK, resp.Code)
	var page store.PaginatedResult[store.RunSummary]
	decodeData(t, resp, &page)
	require.Len(t, page.Items, 1)
	assert.Equal(t, doc.ID, page.Items[0].ID)
	assert.Equal(t, 0, page.Items[0].FirstMismatch)

	// Report.
	resp = ts.api.Get("/api/v1/runs/" + doc.ID + "/report?format=markdown")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Header().Get("Content-Type"), "text/markdown")
	assert.Contains(t, resp.Body.String(), "# Rest comparison: Lumen vs Nidi")

	// Delete.
	resp = ts.api.Delete("/api/v1/runs/" + doc.ID)
	assert.Equal(t, http.StatusNoContent, resp.Code)

	resp = ts.api.Get("/api/v1/runs/" + doc.ID)
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "NOT_FOUND", decodeError(t, resp).Code)
}

func TestEvents_RunLifecycle(t *testing.T) {
	events := sse.NewManager(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go events.Start(ctx)
	t.Cleanup(func() {
		_ = events.Shutdown(context.Background())
		cancel()
	})

	ts := setupTestServer(t, true, Options{Events: events})
	client, err := events.Connect("")
	require.NoError(t, err)

	next := func() sse.Event {
		t.Helper()
		select {
		case e := <-client.EventChan:
			return e
		case <-time.After(2 * time.Second):
			t.Fatal("no event received")
			return sse.Event{}
		}
	}

	resp := ts.api.Post("/api/v1/compare", CompareRequest{A: lumenRequest, B: nidiRequest})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var doc report.Document
	decodeData(t, resp, &doc)

	e := next()
	assert.Equal(t, sse.EventRunCompleted, e.Type)
	summary, ok := e.Data.(store.RunSummary)
	require.True(t, ok)
	assert.Equal(t, doc.ID, summary.ID)
	assert.Equal(t, doc.Fingerprint, e.Fingerprint)
	assert.Equal(t, 0, summary.FirstMismatch)

	resp = ts.api.Delete("/api/v1/runs/" + doc.ID)
	require.Equal(t, http.StatusNoContent, resp.Code)

	e = next()
	assert.Equal(t, sse.EventRunDeleted, e.Type)
	assert.Equal(t, sse.RunDeletedEventData{ID: doc.ID}, e.Data)

	resp = ts.api.Get("/health")
	var health HealthResponse
	decodeData(t, resp, &health)
	assert.Equal(t, "1 subscriber", health.Components["events"].Message)
}

func TestCompare_SameInputsShareFingerprint(t *testing.T) {
	ts := setupTestServer(t, true, Options{})

	var first, second report.Document
	decodeData(t, ts.api.Post("/api/v1/compare", CompareRequest{A: lumenRequest, B: nidiRequest}), &first)
	decodeData(t, ts.api.Post("/api/v1/compare", CompareRequest{A: lumenRequest, B: nidiRequest}), &second)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, first.Fingerprint, second.Fingerprint)

	resp := ts.api.Get("/api/v1/runs?limit=1")
	var page store.PaginatedResult[store.RunSummary]
	decodeData(t, resp, &page)
	assert.Len(t, page.Items, 1)
	assert.True(t, page.HasMore)
	assert.Equal(t, 2, page.Total)
}

func TestCompare_UnitMismatch(t *testing.T) {
	ts := setupTestServer(t, false, Options{})
	quarter := SequenceRequest{Label: "Nidi", Unit: "quarter", Intervals: [][]float64{{0, 1.5}}}

	resp := ts.api.Post("/api/v1/compare", CompareRequest{A: lumenRequest, B: quarter})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "UNIT_MISMATCH", decodeError(t, resp).Code)

	resp = ts.api.Post("/api/v1/compare", CompareRequest{A: lumenRequest, B: quarter, ConvertUnits: true})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var doc report.Document
	decodeData(t, resp, &doc)
	assert.True(t, doc.Comparison.Converted)
	assert.Empty(t, resp.Header().Get("Location"))
}

func TestCompare_InvalidOptions(t *testing.T) {
	ts := setupTestServer(t, false, Options{})
	negative := -1.0

	tests := []struct {
		name string
		body CompareRequest
	}{
		{name: "negative epsilon", body: CompareRequest{A: lumenRequest, B: nidiRequest, Epsilon: &negative}},
		{name: "unknown reference", body: CompareRequest{A: lumenRequest, B: nidiRequest, CheckExpected: "other"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.api.Post("/api/v1/compare", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.Code)
			env := decodeError(t, resp)
			assert.Equal(t, "VALIDATION", env.Code)
			assert.NotNil(t, env.Details)
		})
	}
}

func TestRunRoutes_AbsentWithoutArchive(t *testing.T) {
	ts := setupTestServer(t, false, Options{})

	resp := ts.api.Get("/api/v1/runs")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestRateLimit(t *testing.T) {
	limiter := ratelimit.New(0.001, 1)
	t.Cleanup(limiter.Stop)
	ts := setupTestServer(t, false, Options{Limiter: limiter})

	resp := ts.api.Get("/health", "X-Forwarded-For: 203.0.113.7")
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = ts.api.Get("/health", "X-Forwarded-For: 203.0.113.7")
	assert.Equal(t, http.StatusTooManyRequests, resp.Code)
	assert.Equal(t, codeRateLimited, decodeError(t, resp).Code)

	// Other clients have their own bucket.
	resp = ts.api.Get("/health", "X-Forwarded-For: 198.51.100.2")
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		want       string
	}{
		{name: "forwarded chain", headers: map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, want: "203.0.113.7"},
		{name: "real ip", headers: map[string]string{"X-Real-IP": "198.51.100.2"}, want: "198.51.100.2"},
		{name: "remote addr", remoteAddr: "192.0.2.1:5555", want: "192.0.2.1"},
		{name: "ipv6 remote addr", remoteAddr: "[2001:db8::1]:443", want: "2001:db8::1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if tt.remoteAddr != "" {
				r.RemoteAddr = tt.remoteAddr
			}
			assert.Equal(t, tt.want, getClientIP(r))
		})
	}
}
