package sentry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/AvaQuinn/storesight/internal/testutil"
	"github.com/AvaQuinn/storesight/pkg/behavior"
)

// newTestServer mounts the module's routes the way the HTTP server does.
func newTestServer(t *testing.T) (*Module, *httptest.Server) {
	t.Helper()
	m, _ := newTestModule(t)

	mux := http.NewServeMux()
	for _, route := range m.Routes() {
		mux.HandleFunc(fmt.Sprintf("%s /api/v1/sentry%s", route.Method, route.Path), route.Handler)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return m, srv
}

func TestHandleIngestEvent_InvalidJSON(t *testing.T) {
	_, srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/v1/sentry/events", "application/json",
		strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("Content-Type = %q, want application/problem+json", ct)
	}
}

func TestHandleIngestEvent_UnknownEventType(t *testing.T) {
	_, srv := newTestServer(t)

	body := `{"store_id":"store-1","camera_id":"cam-1","area":"entrance","event_type":"teleport","timestamp":"2026-03-10T14:30:00Z"}`
	resp, err := http.Post(srv.URL+"/api/v1/sentry/events", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHandleIngestEvent_CleanEventAccepted(t *testing.T) {
	_, srv := newTestServer(t)

	// No baseline yet: the event is accepted but produces no decision.
	body := `{"store_id":"store-1","camera_id":"cam-1","area":"entrance","event_type":"loitering","duration_secs":45,"confidence":0.9}`
	resp, err := http.Post(srv.URL+"/api/v1/sentry/events", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	// The server assigned an ID to the bare event.
	if id, _ := out["event_id"].(string); id == "" {
		t.Error("response missing generated event_id")
	}
	if anomaly, _ := out["anomaly"].(bool); anomaly {
		t.Error("anomaly = true without a trained baseline")
	}
}

func TestHandleIngestEvent_ReturnsDecision(t *testing.T) {
	m, srv := newTestServer(t)
	trainBaseline(t, m, 30)

	e := testutil.NewEvent(testutil.WithDuration(300))
	payload, _ := json.Marshal(e)
	resp, err := http.Post(srv.URL+"/api/v1/sentry/events", "application/json", strings.NewReader(string(payload)))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var decision behavior.AnomalyEvent
	if err := json.NewDecoder(resp.Body).Decode(&decision); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !decision.IsAnomaly || decision.EventID != e.ID {
		t.Errorf("decision = %+v", decision)
	}
}

func TestHandleListAnomalies(t *testing.T) {
	m, srv := newTestServer(t)

	// Empty table yields an empty array, not null.
	resp, err := http.Get(srv.URL + "/api/v1/sentry/anomalies")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	raw := json.RawMessage{}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	resp.Body.Close()
	if string(raw) == "null" {
		t.Error("empty anomaly list encoded as null, want []")
	}

	a := newTestAnomaly("store-1", time.Now())
	if err := m.store.InsertAnomaly(context.Background(), &a); err != nil {
		t.Fatalf("InsertAnomaly: %v", err)
	}

	resp, err = http.Get(srv.URL + "/api/v1/sentry/anomalies/store-1")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	var anomalies []behavior.AnomalyEvent
	if err := json.NewDecoder(resp.Body).Decode(&anomalies); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(anomalies) != 1 || anomalies[0].ID != a.ID {
		t.Errorf("anomalies = %+v", anomalies)
	}
}

func TestHandleStoreBaselines(t *testing.T) {
	m, srv := newTestServer(t)
	trainBaseline(t, m, 30)

	resp, err := http.Get(srv.URL + "/api/v1/sentry/baselines/store-1")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var profiles []behavior.BaselineProfile
	if err := json.NewDecoder(resp.Body).Decode(&profiles); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(profiles) != 1 || profiles[0].Samples != 20 {
		t.Errorf("profiles = %+v", profiles)
	}
}

func TestHandleGetThresholds(t *testing.T) {
	_, srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/sentry/thresholds")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var view ThresholdView
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.Version != 1 {
		t.Errorf("Version = %d, want 1", view.Version)
	}
	if view.Defaults != DefaultThresholds {
		t.Errorf("Defaults = %+v", view.Defaults)
	}
	if _, ok := view.Areas["restricted"]; !ok {
		t.Error("Areas missing builtin restricted ladder")
	}
}

func TestHandleListAdjustments_RequiresArea(t *testing.T) {
	_, srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/sentry/thresholds/adjustments")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHandleRebuild(t *testing.T) {
	m, srv := newTestServer(t)

	ctx := context.Background()
	base := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	for i := 0; i < 25; i++ {
		e := testutil.NewEvent(
			testutil.WithDuration(30),
			testutil.WithTimestamp(base.Add(time.Duration(i)*time.Second)),
		)
		if err := m.store.InsertEvent(ctx, &e); err != nil {
			t.Fatalf("InsertEvent: %v", err)
		}
	}

	resp, err := http.Post(srv.URL+"/api/v1/sentry/rebuild/store-1", "application/json", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var result BatchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.StoreID != "store-1" || len(result.Built) != 1 {
		t.Errorf("result = %+v", result)
	}
}

func TestHandleRebuild_UnknownEventType(t *testing.T) {
	_, srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/v1/sentry/rebuild/store-1?event_type=teleport", "application/json", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHandleFeedback(t *testing.T) {
	m, srv := newTestServer(t)

	a := newTestAnomaly("store-1", time.Now())
	a.Confidence = 0.9
	if err := m.store.InsertAnomaly(context.Background(), &a); err != nil {
		t.Fatalf("InsertAnomaly: %v", err)
	}

	body := fmt.Sprintf(`{"anomaly_id":%q,"label":"false_positive"}`, a.ID)
	resp, err := http.Post(srv.URL+"/api/v1/sentry/feedback", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var adj ThresholdAdjustment
	if err := json.NewDecoder(resp.Body).Decode(&adj); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if adj.AnomalyID != a.ID || adj.Delta <= 0 {
		t.Errorf("adjustment = %+v", adj)
	}
}

func TestHandleFeedback_BelowLearningConfidence(t *testing.T) {
	m, srv := newTestServer(t)

	a := newTestAnomaly("store-1", time.Now())
	a.Confidence = 0.5
	if err := m.store.InsertAnomaly(context.Background(), &a); err != nil {
		t.Fatalf("InsertAnomaly: %v", err)
	}

	body := fmt.Sprintf(`{"anomaly_id":%q,"label":"false_positive"}`, a.ID)
	resp, err := http.Post(srv.URL+"/api/v1/sentry/feedback", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("status = %d, want 202", resp.StatusCode)
	}
}

func TestHandleFeedback_UnknownAnomaly(t *testing.T) {
	_, srv := newTestServer(t)

	body := `{"anomaly_id":"no-such-id","label":"false_positive"}`
	resp, err := http.Post(srv.URL+"/api/v1/sentry/feedback", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}
