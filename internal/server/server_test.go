package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/failsift/failsift/internal/cluster"
	"github.com/failsift/failsift/internal/domain"
	"github.com/failsift/failsift/internal/features"
	"github.com/failsift/failsift/internal/storage/memory"
)

type fakeRuntime struct {
	lastSource   string
	lastPayloads []map[string]any
	ids          []string
	ingestErr    error

	report domain.DetectionReport
	runErr error

	state string
	last  *domain.DetectionReport
}

func (f *fakeRuntime) Ingest(ctx context.Context, sourceType string, payloads []map[string]any) ([]string, error) {
	f.lastSource = sourceType
	f.lastPayloads = payloads
	if f.ingestErr != nil {
		return nil, f.ingestErr
	}
	if f.ids != nil {
		return f.ids, nil
	}
	ids := make([]string, len(payloads))
	for i := range payloads {
		ids[i] = "id-" + string(rune('a'+i))
	}
	return ids, nil
}

func (f *fakeRuntime) Run(ctx context.Context) (domain.DetectionReport, error) {
	if f.runErr != nil {
		return domain.DetectionReport{}, f.runErr
	}
	return f.report, nil
}

func (f *fakeRuntime) State() string {
	if f.state == "" {
		return "idle"
	}
	return f.state
}

func (f *fakeRuntime) LastRun() (domain.DetectionReport, bool) {
	if f.last == nil {
		return domain.DetectionReport{}, false
	}
	return *f.last, true
}

func newTestServer(rt Runtime, store *memory.Store) *Server {
	return New(Options{
		Runtime:   rt,
		Failures:  store,
		Actions:   store,
		Extractor: features.NewExtractor([]string{"api-gateway", "checkout"}),
		Clusterer: cluster.NewDBSCAN(),
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func doRequest(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response body: %v (body %s)", err, rec.Body.String())
	}
}

func seedAlert(t *testing.T, store *memory.Store, p domain.Pattern, ts time.Time) {
	t.Helper()
	act, err := domain.NewAlertAction("act-"+p.PatternID, p, ts)
	if err != nil {
		t.Fatalf("NewAlertAction() error = %v", err)
	}
	if _, err := store.PutAction(context.Background(), &act); err != nil {
		t.Fatalf("PutAction() error = %v", err)
	}
}

func TestServer_Health(t *testing.T) {
	s := newTestServer(&fakeRuntime{}, memory.New())

	rec := doRequest(t, s, "GET", "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string]string
	decodeBody(t, rec, &body)
	if body["status"] != "ok" {
		t.Errorf("status field = %q, want ok", body["status"])
	}
}

func TestServer_IngestSingle(t *testing.T) {
	rt := &fakeRuntime{}
	s := newTestServer(rt, memory.New())

	payload := map[string]any{
		"service_name":  "api-gateway",
		"test_name":     "test_timeout",
		"error_message": "Error 502: upstream timeout",
	}
	rec := doRequest(t, s, "POST", "/api/v1/failures/github_actions", payload)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202 (body %s)", rec.Code, rec.Body.String())
	}
	if rt.lastSource != "github_actions" {
		t.Errorf("source = %q, want github_actions", rt.lastSource)
	}
	if len(rt.lastPayloads) != 1 {
		t.Fatalf("payloads = %d, want 1", len(rt.lastPayloads))
	}

	var resp ingestResponse
	decodeBody(t, rec, &resp)
	if resp.Ingested != 1 {
		t.Errorf("ingested = %d, want 1", resp.Ingested)
	}
}

func TestServer_IngestBatch(t *testing.T) {
	rt := &fakeRuntime{}
	s := newTestServer(rt, memory.New())

	body := map[string]any{
		"failures": []map[string]any{
			{"service_name": "api-gateway", "error_message": "ConnectionError: refused"},
			{"service_name": "checkout", "error_message": "TimeoutError: deadline"},
		},
	}
	rec := doRequest(t, s, "POST", "/api/v1/failures/generic", body)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	if len(rt.lastPayloads) != 2 {
		t.Errorf("payloads = %d, want 2", len(rt.lastPayloads))
	}

	var resp ingestResponse
	decodeBody(t, rec, &resp)
	if resp.Ingested != 2 {
		t.Errorf("ingested = %d, want 2", resp.Ingested)
	}
	if len(resp.IDs) != 2 {
		t.Errorf("ids = %d, want 2", len(resp.IDs))
	}
}

func TestServer_IngestMalformedJSON(t *testing.T) {
	s := newTestServer(&fakeRuntime{}, memory.New())

	req := httptest.NewRequest("POST", "/api/v1/failures/generic", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestServer_IngestStoreError(t *testing.T) {
	rt := &fakeRuntime{ingestErr: errors.New("disk full")}
	s := newTestServer(rt, memory.New())

	rec := doRequest(t, s, "POST", "/api/v1/failures/generic", map[string]any{"service_name": "x"})
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}

func TestServer_DetectRun(t *testing.T) {
	rt := &fakeRuntime{report: domain.DetectionReport{
		RunID:            "run-1",
		FailuresFetched:  4,
		PatternsDetected: 2,
		Strategy:         domain.StrategyFallback,
	}}
	s := newTestServer(rt, memory.New())

	rec := doRequest(t, s, "POST", "/api/v1/detect/run", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var report domain.DetectionReport
	decodeBody(t, rec, &report)
	if report.RunID != "run-1" {
		t.Errorf("RunID = %q, want run-1", report.RunID)
	}
	if report.PatternsDetected != 2 {
		t.Errorf("PatternsDetected = %d, want 2", report.PatternsDetected)
	}
}

func TestServer_DetectRunFetchFailure(t *testing.T) {
	rt := &fakeRuntime{runErr: domain.ErrTransientFetch("failure store query failed", errors.New("connection reset"))}
	s := newTestServer(rt, memory.New())

	rec := doRequest(t, s, "POST", "/api/v1/detect/run", nil)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}

	var body map[string]string
	decodeBody(t, rec, &body)
	if body["error"] == "" {
		t.Error("expected error message in body")
	}
}

func TestServer_ListPatterns(t *testing.T) {
	store := memory.New()
	s := newTestServer(&fakeRuntime{}, store)

	p := domain.Pattern{
		PatternID:        "pat-abc123",
		AffectedServices: []string{"api-gateway"},
		ErrorTypes:       []string{"Error 502"},
		FailureCount:     3,
		Confidence:       75.0,
	}
	seedAlert(t, store, p, time.Now().Add(-time.Hour))

	// Outside the 7-day default window; must not appear.
	old := domain.Pattern{PatternID: "pat-old", FailureCount: 2, Confidence: 75.0}
	seedAlert(t, store, old, time.Now().Add(-8*24*time.Hour))

	rec := doRequest(t, s, "GET", "/api/v1/patterns", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		Patterns []map[string]any `json:"patterns"`
		Count    int              `json:"count"`
	}
	decodeBody(t, rec, &resp)
	if resp.Count != 1 {
		t.Fatalf("count = %d, want 1", resp.Count)
	}
	if resp.Patterns[0]["pattern_id"] != "pat-abc123" {
		t.Errorf("pattern_id = %v, want pat-abc123", resp.Patterns[0]["pattern_id"])
	}
	if resp.Patterns[0]["detected_at"] == nil {
		t.Error("expected detected_at field")
	}
}

func TestServer_ListPatternsLimit(t *testing.T) {
	store := memory.New()
	s := newTestServer(&fakeRuntime{}, store)

	for i := 0; i < 5; i++ {
		p := domain.Pattern{
			PatternID:    "pat-" + string(rune('a'+i)),
			FailureCount: 2,
			Confidence:   75.0,
		}
		seedAlert(t, store, p, time.Now().Add(-time.Duration(i)*time.Minute))
	}

	rec := doRequest(t, s, "GET", "/api/v1/patterns?limit=2", nil)
	var resp struct {
		Count int `json:"count"`
	}
	decodeBody(t, rec, &resp)
	if resp.Count != 2 {
		t.Errorf("count = %d, want 2", resp.Count)
	}
}

func TestServer_PatternDetail(t *testing.T) {
	store := memory.New()
	s := newTestServer(&fakeRuntime{}, store)

	p := domain.Pattern{
		PatternID:        "pat-xyz",
		AffectedServices: []string{"checkout"},
		FailureCount:     2,
		Confidence:       70.0,
	}
	seedAlert(t, store, p, time.Now())

	rec := doRequest(t, s, "GET", "/api/v1/pattern/pat-xyz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var got map[string]any
	decodeBody(t, rec, &got)
	if got["pattern_id"] != "pat-xyz" {
		t.Errorf("pattern_id = %v, want pat-xyz", got["pattern_id"])
	}
}

func TestServer_PatternDetailNotFound(t *testing.T) {
	s := newTestServer(&fakeRuntime{}, memory.New())

	rec := doRequest(t, s, "GET", "/api/v1/pattern/pat-missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}

	var body map[string]string
	decodeBody(t, rec, &body)
	if body["error"] == "" {
		t.Error("expected JSON error body")
	}
}

func TestServer_ListActionsFilter(t *testing.T) {
	store := memory.New()
	s := newTestServer(&fakeRuntime{}, store)

	seedAlert(t, store, domain.Pattern{PatternID: "pat-1", FailureCount: 2, Confidence: 75.0}, time.Now())

	other := &domain.Action{
		ActionID:   "act-other",
		Timestamp:  time.Now(),
		AgentType:  "remediation",
		ActionType: "retry",
		Status:     "completed",
	}
	if _, err := store.PutAction(context.Background(), other); err != nil {
		t.Fatalf("PutAction() error = %v", err)
	}

	rec := doRequest(t, s, "GET", "/api/v1/actions?agent_type=pattern_detection", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		Actions []domain.Action `json:"actions"`
		Count   int             `json:"count"`
	}
	decodeBody(t, rec, &resp)
	if resp.Count != 1 {
		t.Fatalf("count = %d, want 1", resp.Count)
	}
	if resp.Actions[0].AgentType != domain.AgentTypePatternDetection {
		t.Errorf("AgentType = %q, want pattern_detection", resp.Actions[0].AgentType)
	}
}

func TestServer_Stats(t *testing.T) {
	store := memory.New()
	s := newTestServer(&fakeRuntime{state: "idle"}, store)

	for i := 0; i < 3; i++ {
		rec := &domain.FailureRecord{
			ServiceName:  "api-gateway",
			TestName:     "test_stats",
			ErrorMessage: "ConnectionError: refused",
			Timestamp:    time.Now().Add(-time.Hour),
		}
		if _, err := store.PutFailure(context.Background(), rec); err != nil {
			t.Fatalf("PutFailure() error = %v", err)
		}
	}

	p := domain.Pattern{
		PatternID:        "pat-1",
		AffectedServices: []string{"api-gateway", "checkout"},
		FailureCount:     3,
		Confidence:       80.0,
	}
	seedAlert(t, store, p, time.Now().Add(-30*time.Minute))

	rec := doRequest(t, s, "GET", "/api/v1/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var stats statsResponse
	decodeBody(t, rec, &stats)
	if stats.Failures != 3 {
		t.Errorf("failures = %d, want 3", stats.Failures)
	}
	if stats.Patterns != 1 {
		t.Errorf("patterns = %d, want 1", stats.Patterns)
	}
	if stats.Services != 2 {
		t.Errorf("services = %d, want 2", stats.Services)
	}
	if stats.DetectorState != "idle" {
		t.Errorf("detector_state = %q, want idle", stats.DetectorState)
	}
	if stats.LastDetection == nil {
		t.Error("expected last_detection to be set from the newest alert")
	}
}

func TestServer_Cluster(t *testing.T) {
	s := newTestServer(&fakeRuntime{}, memory.New())

	records := []domain.FailureRecord{
		{FailureID: "f1", ServiceName: "api-gateway", ErrorMessage: "ConnectionError: connection refused to db"},
		{FailureID: "f2", ServiceName: "api-gateway", ErrorMessage: "ConnectionError: connection refused to db"},
		{FailureID: "f3", ServiceName: "api-gateway", ErrorMessage: "AssertionError: expected nine got seven"},
	}
	rec := doRequest(t, s, "POST", "/api/v1/cluster", map[string]any{"failures": records})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}

	var resp struct {
		Clusters []struct {
			Indices []int `json:"indices"`
		} `json:"clusters"`
	}
	decodeBody(t, rec, &resp)
	if len(resp.Clusters) != 1 {
		t.Fatalf("clusters = %d, want 1", len(resp.Clusters))
	}
	if len(resp.Clusters[0].Indices) != 2 || resp.Clusters[0].Indices[0] != 0 || resp.Clusters[0].Indices[1] != 1 {
		t.Errorf("indices = %v, want [0 1]", resp.Clusters[0].Indices)
	}
}

func TestServer_ClusterNoText(t *testing.T) {
	s := newTestServer(&fakeRuntime{}, memory.New())

	records := []domain.FailureRecord{
		{FailureID: "f1", ServiceName: "api-gateway"},
		{FailureID: "f2", ServiceName: "checkout"},
	}
	rec := doRequest(t, s, "POST", "/api/v1/cluster", map[string]any{"failures": records})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
}

func TestServer_ClusterEmptyBatch(t *testing.T) {
	s := newTestServer(&fakeRuntime{}, memory.New())

	rec := doRequest(t, s, "POST", "/api/v1/cluster", map[string]any{"failures": []any{}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		Clusters []any `json:"clusters"`
	}
	decodeBody(t, rec, &resp)
	if len(resp.Clusters) != 0 {
		t.Errorf("clusters = %d, want 0", len(resp.Clusters))
	}
}

func TestServer_ClusterNotConfigured(t *testing.T) {
	s := New(Options{
		Runtime:  &fakeRuntime{},
		Failures: memory.New(),
		Actions:  memory.New(),
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	rec := doRequest(t, s, "POST", "/api/v1/cluster", map[string]any{"failures": []any{}})
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}
