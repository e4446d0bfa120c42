package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/sqltrace/internal/state"
	"github.com/leapstack-labs/sqltrace/internal/testutil"
	"github.com/leapstack-labs/sqltrace/pkg/sqltrace"
)

func newTestStore(t *testing.T) *state.SQLiteStore {
	t.Helper()
	store, err := state.Open(":memory:", testutil.NewTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	h := New(Config{}).Handler()

	rec := do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAnalyze(t *testing.T) {
	const empty = `{"traceability":[],"statement_summary":[],"lineage":{"nodes":[],"edges":[]}}`

	tests := []struct {
		name     string
		body     string
		wantCode int
		check    func(t *testing.T, body string)
	}{
		{
			name:     "select",
			body:     `{"sql": "SELECT a FROM t1"}`,
			wantCode: http.StatusOK,
			check: func(t *testing.T, body string) {
				var result sqltrace.Result
				require.NoError(t, json.Unmarshal([]byte(body), &result))
				require.Len(t, result.StatementSummary, 1)
				assert.Equal(t, "SELECT", result.StatementSummary[0].Action)
				assert.Equal(t, []string{"T1"}, result.StatementSummary[0].Objects)
			},
		},
		{
			name:     "create view lineage",
			body:     `{"sql": "CREATE VIEW V1 AS SELECT X FROM T"}`,
			wantCode: http.StatusOK,
			check: func(t *testing.T, body string) {
				var result sqltrace.Result
				require.NoError(t, json.Unmarshal([]byte(body), &result))
				assert.Equal(t, []string{"T", "V1"}, result.Lineage.Nodes)
			},
		},
		{
			name:     "missing sql is empty batch",
			body:     `{}`,
			wantCode: http.StatusOK,
			check:    func(t *testing.T, body string) { assert.JSONEq(t, empty, body) },
		},
		{
			name:     "non-string sql is empty batch",
			body:     `{"sql": 42}`,
			wantCode: http.StatusOK,
			check:    func(t *testing.T, body string) { assert.JSONEq(t, empty, body) },
		},
		{
			name:     "malformed json",
			body:     `{"sql": `,
			wantCode: http.StatusBadRequest,
			check: func(t *testing.T, body string) {
				assert.Contains(t, body, "invalid JSON body")
			},
		},
		{
			name:     "not an object",
			body:     `null`,
			wantCode: http.StatusBadRequest,
			check: func(t *testing.T, body string) {
				assert.Contains(t, body, "expected an object")
			},
		},
	}

	h := New(Config{}).Handler()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/analyze", tt.body)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			tt.check(t, rec.Body.String())
		})
	}
}

func TestAnalyze_BodyTooLarge(t *testing.T) {
	h := New(Config{MaxBodyBytes: 16}).Handler()

	rec := do(t, h, http.MethodPost, "/analyze", `{"sql": "SELECT a FROM some_long_table_name"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestAnalyze_MethodNotAllowed(t *testing.T) {
	h := New(Config{}).Handler()

	rec := do(t, h, http.MethodGet, "/analyze", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRunsRoutes_RequireStore(t *testing.T) {
	h := New(Config{}).Handler()

	for _, path := range []string{"/runs", "/runs/abc", "/lineage/T", "/events"} {
		rec := do(t, h, http.MethodGet, path, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestAnalyze_PersistsRuns(t *testing.T) {
	store := newTestStore(t)
	h := New(Config{Store: store, Logger: testutil.NewTestLogger(t)}).Handler()

	rec := do(t, h, http.MethodPost, "/analyze",
		`{"sql": "CREATE TABLE stage AS SELECT * FROM raw; INSERT INTO mart SELECT * FROM stage"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	runID := rec.Header().Get("X-Run-ID")
	require.NotEmpty(t, runID)

	rec = do(t, h, http.MethodGet, "/runs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var runs []state.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, runID, runs[0].ID)
	assert.Equal(t, "http", runs[0].Source)
	assert.Equal(t, 2, runs[0].StatementCount)

	rec = do(t, h, http.MethodGet, "/runs/"+runID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var result sqltrace.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Len(t, result.StatementSummary, 2)

	rec = do(t, h, http.MethodGet, "/runs/does-not-exist", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/runs?limit=x", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLineage(t *testing.T) {
	store := newTestStore(t)
	h := New(Config{Store: store}).Handler()

	rec := do(t, h, http.MethodPost, "/analyze",
		`{"sql": "CREATE TABLE stage AS SELECT * FROM raw; INSERT INTO mart SELECT * FROM stage"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/lineage/STAGE", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"table": "STAGE",
		"upstream": [{"id": "RAW", "depth": 1}],
		"downstream": [{"id": "MART", "depth": 1}]
	}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/lineage/MART?depth=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"table": "MART", "upstream": [{"id": "STAGE", "depth": 1}], "downstream": []}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/lineage/NOPE", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/lineage/RAW?depth=deep", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequestLogging(t *testing.T) {
	logger, logs := testutil.NewCaptureLogger()
	h := New(Config{Logger: logger}).Handler()

	do(t, h, http.MethodGet, "/healthz", "")

	records := logs.Records()
	require.NotEmpty(t, records)
	last := records[len(records)-1]
	assert.Equal(t, "request", last["msg"])
	assert.Equal(t, "/healthz", last["path"])
	assert.EqualValues(t, 200, last["status"])
	assert.NotEmpty(t, last["request_id"])
}

func TestEvents(t *testing.T) {
	store := newTestStore(t)
	s := New(Config{Store: store})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return s.Notifier().Listeners() == 1 },
		time.Second, 10*time.Millisecond)

	post, err := http.Post(ts.URL+"/analyze", "application/json", strings.NewReader(`{"sql": "SELECT 1"}`))
	require.NoError(t, err)
	_ = post.Body.Close()

	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: run\n", line)
}

func TestServeListener_GracefulShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	s := New(Config{Logger: testutil.NewTestLogger(t)})

	done := make(chan error, 1)
	go func() { done <- s.ServeListener(ctx, ln) }()

	url := fmt.Sprintf("http://%s/healthz", ln.Addr().String())
	resp, err := http.Get(url)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestNew_Defaults(t *testing.T) {
	s := New(Config{})
	assert.Equal(t, DefaultAddr, s.addr)
	assert.Equal(t, DefaultReadHeaderTimeout, s.readHeaderTimeout)
	assert.Equal(t, int64(DefaultMaxBodyBytes), s.maxBodyBytes)
	assert.NotNil(t, s.analyzer)
}
