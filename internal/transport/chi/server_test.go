package chi

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/geosuggest/internal/domain"
	"github.com/kailas-cloud/geosuggest/internal/domain/feature"
	"github.com/kailas-cloud/geosuggest/internal/domain/geo"
	"github.com/kailas-cloud/geosuggest/internal/domain/replica"
	"github.com/kailas-cloud/geosuggest/internal/domain/search/mode"
	"github.com/kailas-cloud/geosuggest/internal/domain/search/result"
	healthuc "github.com/kailas-cloud/geosuggest/internal/usecase/health"
	queryuc "github.com/kailas-cloud/geosuggest/internal/usecase/query"
)

// --- Mocks ---

type mockEngine struct {
	mu        sync.Mutex
	suggest   []result.Suggestion
	suggestFn func(m mode.Mode, text string) ([]result.Suggestion, error)
	item      result.Item
	searchErr error
	selection queryuc.Selection
	selectErr error
	selected  []result.Suggestion
	stats     queryuc.Statistics
	snap      replica.Snapshot
	events    []replica.ProgressEvent
	warmed    chan struct{}
}

func (m *mockEngine) Suggest(_ context.Context, md mode.Mode, text string) ([]result.Suggestion, error) {
	if m.suggestFn != nil {
		return m.suggestFn(md, text)
	}
	return m.suggest, nil
}

func (m *mockEngine) Search(_ context.Context, _ string) (result.Item, error) {
	return m.item, m.searchErr
}

func (m *mockEngine) Select(_ context.Context, s result.Suggestion) (queryuc.Selection, error) {
	m.mu.Lock()
	m.selected = append(m.selected, s)
	m.mu.Unlock()
	return m.selection, m.selectErr
}

func (m *mockEngine) Statistics() queryuc.Statistics { return m.stats }

func (m *mockEngine) Warm(_ context.Context) replica.Snapshot {
	if m.warmed != nil {
		close(m.warmed)
	}
	return replica.Snapshot{State: replica.Ready}
}

func (m *mockEngine) Snapshot() replica.Snapshot { return m.snap }

func (m *mockEngine) Subscribe() (<-chan replica.ProgressEvent, func()) {
	ch := make(chan replica.ProgressEvent, len(m.events))
	for _, ev := range m.events {
		ch <- ev
	}
	return ch, func() {}
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(context.Context) healthuc.Report { return m.report }

func newTestServer(e *mockEngine) *Server {
	h := &mockHealth{report: healthuc.Report{Status: healthuc.Healthy, Checks: map[string]healthuc.CheckResult{"replica": healthuc.CheckOK}}}
	return NewServer(context.Background(), e, h, nil)
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, http.NoBody)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return resp
}

func TestSuggest_OK(t *testing.T) {
	var gotMode mode.Mode
	var gotText string
	e := &mockEngine{suggestFn: func(m mode.Mode, text string) ([]result.Suggestion, error) {
		gotMode, gotText = m, text
		return []result.Suggestion{{Mode: mode.Asset, Layer: "Parcels", Field: "APN", DisplayText: "123-45", Formatted: "Parcels • APN • 123-45"}}, nil
	}}
	r := newTestServer(e).Router(nil)

	rr := do(t, r, "GET", "/suggest?q=123&mode=asset", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200: %s", rr.Code, rr.Body.String())
	}
	if gotMode != mode.Asset || gotText != "123" {
		t.Errorf("engine called with (%q, %q)", gotMode, gotText)
	}

	var resp suggestResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Suggestions) != 1 || resp.Suggestions[0].Formatted != "Parcels • APN • 123-45" {
		t.Errorf("suggestions: got %+v", resp.Suggestions)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
}

func TestSuggest_DefaultModeAndEmptyList(t *testing.T) {
	var gotMode mode.Mode
	e := &mockEngine{suggestFn: func(m mode.Mode, _ string) ([]result.Suggestion, error) {
		gotMode = m
		return nil, nil
	}}
	r := newTestServer(e).Router(nil)

	rr := do(t, r, "GET", "/suggest?q=zz", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	if gotMode != mode.Asset {
		t.Errorf("default mode: got %q, want asset", gotMode)
	}
	if !strings.Contains(rr.Body.String(), `"suggestions":[]`) {
		t.Errorf("expected empty array, got %s", rr.Body.String())
	}
}

func TestSuggest_InvalidMode(t *testing.T) {
	r := newTestServer(&mockEngine{}).Router(nil)

	rr := do(t, r, "GET", "/suggest?q=abc&mode=hybrid", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", rr.Code)
	}
	if resp := decodeError(t, rr); resp.Code != codeBadRequest {
		t.Errorf("code: got %s", resp.Code)
	}
}

func TestDomainErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid query", domain.ErrInvalidQuery, http.StatusBadRequest, codeBadRequest},
		{"not found", domain.ErrNotFound, http.StatusNotFound, codeNotFound},
		{"layer not found", domain.NewLayerError("Parcels", "", domain.ErrLayerNotFound), http.StatusNotFound, codeLayerNotFound},
		{"timeout", fmt.Errorf("suggest: %w", domain.ErrQueryTimeout), http.StatusGatewayTimeout, codeTimeout},
		{"deadline classified", context.DeadlineExceeded, http.StatusGatewayTimeout, codeTimeout},
		{"cancelled", context.Canceled, http.StatusRequestTimeout, codeCancelled},
		{"search unavailable", domain.ErrSearchUnavailable, http.StatusServiceUnavailable, codeSearchUnavailable},
		{"source unavailable", domain.ErrDataSourceUnavailable, http.StatusServiceUnavailable, codeSearchUnavailable},
		{"geocoder", domain.ErrGeocodeServiceUnavailable, http.StatusBadGateway, codeGeocoderError},
		{"unknown", fmt.Errorf("pq: connection reset by peer"), http.StatusInternalServerError, codeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &mockEngine{suggestFn: func(mode.Mode, string) ([]result.Suggestion, error) {
				return nil, tt.err
			}}
			r := newTestServer(e).Router(nil)

			rr := do(t, r, "GET", "/suggest?q=abc", "")
			if rr.Code != tt.wantStatus {
				t.Fatalf("status: got %d, want %d", rr.Code, tt.wantStatus)
			}
			resp := decodeError(t, rr)
			if resp.Code != tt.wantCode {
				t.Errorf("code: got %s, want %s", resp.Code, tt.wantCode)
			}
			if strings.Contains(resp.Message, "pq:") || strings.Contains(resp.Message, "Parcels") {
				t.Errorf("message leaks internals: %q", resp.Message)
			}
		})
	}
}

func TestSearch_OK(t *testing.T) {
	f := feature.New("7", map[string]string{"APN": "123-45", "Owner": "Smith"}, &geo.Geometry{Kind: geo.KindPoint, Points: []geo.Point{{Lon: -79.5, Lat: 40.5}}})
	e := &mockEngine{item: result.Item{Layer: "Parcels", Field: "APN", FeatureID: "7", DisplayText: "123-45", Feature: f}}
	r := newTestServer(e).Router(nil)

	rr := do(t, r, "GET", "/search?q=123-45", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d: %s", rr.Code, rr.Body.String())
	}
	var resp searchResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.FeatureID != "7" || resp.Attributes["Owner"] != "Smith" || resp.Geometry == nil {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestSearch_MissingQuery(t *testing.T) {
	r := newTestServer(&mockEngine{}).Router(nil)

	rr := do(t, r, "GET", "/search", "")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", rr.Code)
	}
}

func TestSearch_NotFound(t *testing.T) {
	r := newTestServer(&mockEngine{searchErr: domain.ErrNotFound}).Router(nil)

	rr := do(t, r, "GET", "/search?q=nothing", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", rr.Code)
	}
}

func TestSelect_OK(t *testing.T) {
	e := &mockEngine{selection: queryuc.Selection{Mode: mode.Asset, Layer: "Parcels", FeatureID: "7", DisplayText: "123-45", Source: "targeted"}}
	r := newTestServer(e).Router(nil)

	rr := do(t, r, "POST", "/select", `{"layer":"Parcels","field":"APN","text":"123-45"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d: %s", rr.Code, rr.Body.String())
	}
	if len(e.selected) != 1 || e.selected[0].Mode != mode.Asset || e.selected[0].DisplayText != "123-45" {
		t.Errorf("engine received %+v", e.selected)
	}
	var sel queryuc.Selection
	if err := json.NewDecoder(rr.Body).Decode(&sel); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sel.Source != "targeted" {
		t.Errorf("source: got %q", sel.Source)
	}
}

func TestSelect_BadBody(t *testing.T) {
	r := newTestServer(&mockEngine{}).Router(nil)

	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"layer":`},
		{"bad mode", `{"mode":"hybrid","text":"x"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, r, "POST", "/select", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("status: got %d, want 400", rr.Code)
			}
		})
	}
}

func TestStats(t *testing.T) {
	e := &mockEngine{stats: queryuc.Statistics{TotalEntries: 12, DistinctKeys: 9, ReadyState: replica.Ready}}
	r := newTestServer(e).Router(nil)

	rr := do(t, r, "GET", "/stats", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	var st queryuc.Statistics
	if err := json.NewDecoder(rr.Body).Decode(&st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.TotalEntries != 12 || st.DistinctKeys != 9 || st.ReadyState != replica.Ready {
		t.Errorf("stats: got %+v", st)
	}
}

func TestWarmup_Accepted(t *testing.T) {
	e := &mockEngine{snap: replica.Snapshot{State: replica.Ready}, warmed: make(chan struct{})}
	r := newTestServer(e).Router(nil)

	rr := do(t, r, "POST", "/warmup", "")
	if rr.Code != http.StatusAccepted {
		t.Fatalf("status: got %d, want 202", rr.Code)
	}
	select {
	case <-e.warmed:
	case <-time.After(2 * time.Second):
		t.Fatal("warm-up was not started")
	}
}

func TestWarmup_AlreadyWarming(t *testing.T) {
	e := &mockEngine{snap: replica.Snapshot{State: replica.Warming}}
	r := newTestServer(e).Router(nil)

	rr := do(t, r, "POST", "/warmup", "")
	if rr.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want 409", rr.Code)
	}
	if resp := decodeError(t, rr); resp.Code != codeWarmupInProgress {
		t.Errorf("code: got %s", resp.Code)
	}
}

func TestWarmupProgress_StreamsUntilDone(t *testing.T) {
	e := &mockEngine{events: []replica.ProgressEvent{
		{LayerIndex: 1, LayerCount: 2, Message: "Parcels", Percent: 50},
		{LayerIndex: 2, LayerCount: 2, Message: "Warm-up complete", Percent: 100, Done: true},
		{Message: "after done"},
	}}
	r := newTestServer(e).Router(nil)

	rr := do(t, r, "GET", "/warmup/progress", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type: got %q", ct)
	}

	var names []string
	var last replica.ProgressEvent
	sc := bufio.NewScanner(rr.Body)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			names = append(names, strings.TrimPrefix(line, "event: "))
		case strings.HasPrefix(line, "data: "):
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &last); err != nil {
				t.Fatalf("decode event: %v", err)
			}
		}
	}
	if strings.Join(names, ",") != "progress,done" {
		t.Errorf("events: got %v, want [progress done]", names)
	}
	if !last.Done || last.Percent != 100 {
		t.Errorf("last event: got %+v", last)
	}
}

func TestWarmupProgress_SkipsStaleDoneWhileWarming(t *testing.T) {
	e := &mockEngine{
		snap: replica.Snapshot{State: replica.Warming},
		events: []replica.ProgressEvent{
			{LayerIndex: 2, LayerCount: 2, Message: "previous run", Percent: 100, Done: true},
			{LayerIndex: 0, LayerCount: 2, Message: "Loading Parcels", Percent: 0},
			{LayerIndex: 2, LayerCount: 2, Message: "Warm-up complete", Percent: 100, Done: true},
		},
	}
	r := newTestServer(e).Router(nil)

	rr := do(t, r, "GET", "/warmup/progress", "")

	var names, messages []string
	sc := bufio.NewScanner(rr.Body)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			names = append(names, strings.TrimPrefix(line, "event: "))
		case strings.HasPrefix(line, "data: "):
			var ev replica.ProgressEvent
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
				t.Fatalf("decode event: %v", err)
			}
			messages = append(messages, ev.Message)
		}
	}
	if strings.Join(names, ",") != "progress,done" {
		t.Errorf("events: got %v, want [progress done]", names)
	}
	if len(messages) == 0 || messages[0] != "Loading Parcels" {
		t.Errorf("first message: got %v", messages)
	}
}

func TestWarmupStatus(t *testing.T) {
	e := &mockEngine{snap: replica.Snapshot{State: replica.ReadyWithErrors, Succeeded: 2, Failed: 1}}
	r := newTestServer(e).Router(nil)

	rr := do(t, r, "GET", "/warmup", "")
	var snap replica.Snapshot
	if err := json.NewDecoder(rr.Body).Decode(&snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.State != replica.ReadyWithErrors || snap.Failed != 1 {
		t.Errorf("snapshot: got %+v", snap)
	}
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name       string
		status     healthuc.Status
		wantStatus int
	}{
		{"healthy", healthuc.Healthy, http.StatusOK},
		{"degraded", healthuc.Degraded, http.StatusOK},
		{"unhealthy", healthuc.Unhealthy, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &mockHealth{report: healthuc.Report{Status: tt.status}}
			r := NewServer(context.Background(), &mockEngine{}, h, nil).Router([]string{"secret"})

			rr := do(t, r, "GET", "/health", "")
			if rr.Code != tt.wantStatus {
				t.Errorf("status: got %d, want %d", rr.Code, tt.wantStatus)
			}
		})
	}
}

func TestRouter_AuthRequired(t *testing.T) {
	r := newTestServer(&mockEngine{}).Router([]string{"secret"})

	rr := do(t, r, "GET", "/stats", "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want 401", rr.Code)
	}

	req := httptest.NewRequest("GET", "/stats", http.NoBody)
	req.Header.Set("Authorization", "Bearer secret")
	ok := httptest.NewRecorder()
	r.ServeHTTP(ok, req)
	if ok.Code != http.StatusOK {
		t.Errorf("with token: got %d, want 200", ok.Code)
	}
}

func TestRouter_NotFound(t *testing.T) {
	r := newTestServer(&mockEngine{}).Router(nil)

	rr := do(t, r, "GET", "/collections", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want 404", rr.Code)
	}
	if resp := decodeError(t, rr); resp.Code != codeNotFound {
		t.Errorf("code: got %s", resp.Code)
	}
}

func TestJSONRecoverer(t *testing.T) {
	h := jsonRecoverer(nopLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rr := do(t, h, "GET", "/suggest", "")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d, want 500", rr.Code)
	}
	if resp := decodeError(t, rr); resp.Code != codeInternalError {
		t.Errorf("code: got %s", resp.Code)
	}
}

func nopLogger() *zap.Logger { return zap.NewNop() }
