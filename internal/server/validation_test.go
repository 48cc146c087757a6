package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/AvaQuinn/storesight/internal/sentry"
	"github.com/AvaQuinn/storesight/internal/store"
	"github.com/AvaQuinn/storesight/pkg/plugin"
	"go.uber.org/zap"
)

// testSentryEnv builds a server with the real sentry plugin mounted behind
// the full middleware chain, so requests exercise the same path production
// traffic takes.
func testSentryEnv(t *testing.T) http.Handler {
	t.Helper()

	db, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	m := sentry.New()
	if err := m.Init(context.Background(), plugin.Dependencies{
		Logger: zap.NewNop(),
		Store:  db,
	}); err != nil {
		t.Fatalf("init sentry: %v", err)
	}
	t.Cleanup(func() { _ = m.Stop(context.Background()) })

	plugins := &mockPluginSource{
		routes: map[string][]plugin.Route{"sentry": m.Routes()},
	}
	srv := New("127.0.0.1:0", plugins, zap.NewNop(), nil, Options{})
	return srv.httpServer.Handler
}

// =============================================================================
// Malformed JSON Tests
// =============================================================================

func TestMalformedJSON(t *testing.T) {
	handler := testSentryEnv(t)

	tests := []struct {
		name     string
		endpoint string
		body     string
	}{
		{
			name:     "events - truncated JSON",
			endpoint: "/api/v1/sentry/events",
			body:     `{"store_id": "store-1", "area":`,
		},
		{
			name:     "events - invalid JSON syntax",
			endpoint: "/api/v1/sentry/events",
			body:     `{store_id: store-1}`,
		},
		{
			name:     "events - array instead of object",
			endpoint: "/api/v1/sentry/events",
			body:     `["store-1", "entrance"]`,
		},
		{
			name:     "events - string instead of object",
			endpoint: "/api/v1/sentry/events",
			body:     `"just a string"`,
		},
		{
			name:     "events - null body",
			endpoint: "/api/v1/sentry/events",
			body:     `null`,
		},
		{
			name:     "events - empty body",
			endpoint: "/api/v1/sentry/events",
			body:     ``,
		},
		{
			name:     "feedback - truncated JSON",
			endpoint: "/api/v1/sentry/feedback",
			body:     `{"anomaly_id": "a-1"`,
		},
		{
			name:     "feedback - not JSON at all",
			endpoint: "/api/v1/sentry/feedback",
			body:     `not json at all`,
		},
		{
			name:     "feedback - missing quotes",
			endpoint: "/api/v1/sentry/feedback",
			body:     `{anomaly_id: missing_quotes}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", tt.endpoint, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d; body: %s", w.Code, http.StatusBadRequest, w.Body.String())
			}
		})
	}
}

// =============================================================================
// Empty and Missing Field Tests
// =============================================================================

func TestEmptyAndMissingFields(t *testing.T) {
	handler := testSentryEnv(t)

	tests := []struct {
		name     string
		endpoint string
		body     string
	}{
		{
			name:     "events - empty object",
			endpoint: "/api/v1/sentry/events",
			body:     `{}`,
		},
		{
			name:     "events - empty store_id",
			endpoint: "/api/v1/sentry/events",
			body:     `{"store_id": "", "camera_id": "cam-1", "area": "entrance", "event_type": "loitering"}`,
		},
		{
			name:     "events - missing area",
			endpoint: "/api/v1/sentry/events",
			body:     `{"store_id": "store-1", "camera_id": "cam-1", "event_type": "loitering"}`,
		},
		{
			name:     "events - unknown event type",
			endpoint: "/api/v1/sentry/events",
			body:     `{"store_id": "store-1", "camera_id": "cam-1", "area": "entrance", "event_type": "teleport"}`,
		},
		{
			name:     "events - confidence above one",
			endpoint: "/api/v1/sentry/events",
			body:     `{"store_id": "store-1", "camera_id": "cam-1", "area": "entrance", "event_type": "loitering", "confidence": 1.5}`,
		},
		{
			name:     "events - negative confidence",
			endpoint: "/api/v1/sentry/events",
			body:     `{"store_id": "store-1", "camera_id": "cam-1", "area": "entrance", "event_type": "loitering", "confidence": -0.2}`,
		},
		{
			name:     "feedback - empty object",
			endpoint: "/api/v1/sentry/feedback",
			body:     `{}`,
		},
		{
			name:     "feedback - invalid label",
			endpoint: "/api/v1/sentry/feedback",
			body:     `{"anomaly_id": "a-1", "label": "maybe"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", tt.endpoint, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d; body: %s", w.Code, http.StatusBadRequest, w.Body.String())
			}
		})
	}
}

// =============================================================================
// SQL Injection Tests
// =============================================================================

func TestSQLInjectionPatterns(t *testing.T) {
	handler := testSentryEnv(t)

	// SQL injection payloads that should be safely handled.
	sqlPayloads := []string{
		`' OR '1'='1`,
		`'; DROP TABLE sentry_events; --`,
		`" OR "1"="1`,
		`1; DELETE FROM sentry_anomalies`,
		`store-1'--`,
		`' UNION SELECT * FROM sentry_baselines --`,
		`Robert'); DROP TABLE sentry_events;--`,
		`1' AND '1'='1`,
	}

	for _, payload := range sqlPayloads {
		t.Run("store_id_"+payload[:minInt(len(payload), 20)], func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/v1/sentry/anomalies/"+url.PathEscape(payload), http.NoBody)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			// Parameterized queries: hostile IDs match nothing, never error.
			if w.Code == http.StatusInternalServerError {
				t.Errorf("SQL injection payload caused server error; body: %s", w.Body.String())
			}
		})

		t.Run("event_area_"+payload[:minInt(len(payload), 20)], func(t *testing.T) {
			body := map[string]any{
				"store_id":      "store-1",
				"camera_id":     "cam-1",
				"area":          payload,
				"event_type":    "loitering",
				"duration_secs": 30,
				"confidence":    0.9,
			}
			jsonBody, _ := json.Marshal(body)

			req := httptest.NewRequest("POST", "/api/v1/sentry/events", strings.NewReader(string(jsonBody)))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code == http.StatusInternalServerError {
				t.Errorf("SQL injection payload caused server error; body: %s", w.Body.String())
			}
		})
	}
}

// =============================================================================
// Path Traversal Tests
// =============================================================================

func TestPathTraversalPatterns(t *testing.T) {
	handler := testSentryEnv(t)

	traversalPayloads := []string{
		`../../../etc/passwd`,
		`..\..\..\..\windows\system32\config\sam`,
		`....//....//....//etc/passwd`,
		`%2e%2e%2f%2e%2e%2f%2e%2e%2fetc/passwd`,
		`/etc/passwd`,
		`file:///etc/passwd`,
	}

	for _, payload := range traversalPayloads {
		t.Run("baselines_"+payload[:minInt(len(payload), 15)], func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/v1/sentry/baselines/"+url.PathEscape(payload), http.NoBody)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			// Store IDs are opaque strings; traversal payloads match nothing.
			if w.Code == http.StatusInternalServerError {
				t.Errorf("path traversal payload caused server error; body: %s", w.Body.String())
			}
		})
	}
}

// =============================================================================
// Numeric Boundary and Type Coercion Tests
// =============================================================================

func TestNumericBoundaries(t *testing.T) {
	handler := testSentryEnv(t)

	tests := []struct {
		name string
		body string
	}{
		{
			name: "extremely large duration",
			body: `{"store_id": "store-1", "camera_id": "cam-1", "area": "entrance", "event_type": "loitering", "duration_secs": 1e308, "confidence": 0.9}`,
		},
		{
			name: "negative duration",
			body: `{"store_id": "store-1", "camera_id": "cam-1", "area": "entrance", "event_type": "loitering", "duration_secs": -45, "confidence": 0.9}`,
		},
		{
			name: "string where number expected",
			body: `{"store_id": "store-1", "camera_id": "cam-1", "area": "entrance", "event_type": "loitering", "duration_secs": "forty-five", "confidence": 0.9}`,
		},
		{
			name: "number where string expected",
			body: `{"store_id": 12345, "camera_id": "cam-1", "area": "entrance", "event_type": "loitering"}`,
		},
		{
			name: "object where string expected",
			body: `{"store_id": {"id": "store-1"}, "camera_id": "cam-1", "area": "entrance", "event_type": "loitering"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/v1/sentry/events", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			// Type mismatches fail decoding or validation; never 500.
			if w.Code == http.StatusInternalServerError {
				t.Errorf("numeric boundary test caused server error; body: %s", w.Body.String())
			}
		})
	}
}

// =============================================================================
// Oversized Payload Tests
// =============================================================================

func TestOversizedPayloads(t *testing.T) {
	handler := testSentryEnv(t)

	// 1MB of area name inside a valid JSON envelope.
	largeValue := strings.Repeat("a", 1*1024*1024)
	body := `{"store_id": "store-1", "camera_id": "cam-1", "area": "` + largeValue + `", "event_type": "loitering", "duration_secs": 30, "confidence": 0.9}`

	req := httptest.NewRequest("POST", "/api/v1/sentry/events", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code == http.StatusInternalServerError {
		t.Errorf("oversized payload caused server error; status = %d", w.Code)
	}
}

// TestDeeplyNestedJSON tests handling of deeply nested JSON structures.
func TestDeeplyNestedJSON(t *testing.T) {
	handler := testSentryEnv(t)

	var nested strings.Builder
	depth := 1000
	for i := 0; i < depth; i++ {
		nested.WriteString(`{"nested":`)
	}
	nested.WriteString(`"value"`)
	for i := 0; i < depth; i++ {
		nested.WriteString(`}`)
	}

	req := httptest.NewRequest("POST", "/api/v1/sentry/events", strings.NewReader(nested.String()))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code == http.StatusInternalServerError {
		t.Errorf("deeply nested JSON caused server error; status = %d", w.Code)
	}
}

// =============================================================================
// Unicode and Encoding Edge Cases
// =============================================================================

func TestUnicodeAndEncodingEdgeCases(t *testing.T) {
	handler := testSentryEnv(t)

	tests := []struct {
		name string
		area string
	}{
		{name: "unicode escape in area", area: "entrance"},
		{name: "emoji in area", area: "entrance-🛒"},
		{name: "RTL override character", area: "entrance‮"},
		{name: "zero-width characters", area: "e​n​t​rance"},
		{name: "combining characters", area: "éntrance"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := map[string]any{
				"store_id":      "store-1",
				"camera_id":     "cam-1",
				"area":          tt.area,
				"event_type":    "loitering",
				"duration_secs": 30,
				"confidence":    0.9,
			}
			jsonBody, _ := json.Marshal(body)

			req := httptest.NewRequest("POST", "/api/v1/sentry/events", strings.NewReader(string(jsonBody)))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code == http.StatusInternalServerError {
				t.Errorf("unicode edge case caused server error; body: %s", w.Body.String())
			}
		})
	}
}

// =============================================================================
// Error Response Hygiene
// =============================================================================

func TestErrorResponseFormat(t *testing.T) {
	handler := testSentryEnv(t)

	req := httptest.NewRequest("POST", "/api/v1/sentry/events", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}

	body, _ := io.ReadAll(w.Body)
	if !json.Valid(body) {
		t.Errorf("error response is not valid JSON: %s", body)
	}

	ct := w.Header().Get("Content-Type")
	if ct != "application/json" && ct != "application/problem+json" {
		t.Errorf("Content-Type = %q, want application/json or application/problem+json", ct)
	}
}

// TestDatabaseErrorsNotExposed verifies that error responses never echo
// storage internals back to clients.
func TestDatabaseErrorsNotExposed(t *testing.T) {
	handler := testSentryEnv(t)

	// Feedback for an unknown anomaly surfaces a store lookup failure.
	body := `{"anomaly_id": "no-such-id", "label": "false_positive"}`
	req := httptest.NewRequest("POST", "/api/v1/sentry/feedback", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	responseBody := strings.ToLower(w.Body.String())
	for _, keyword := range []string{"sqlite", "sql:", "constraint", "syntax error"} {
		if strings.Contains(responseBody, keyword) {
			t.Errorf("error response contains storage keyword %q: %s", keyword, responseBody)
		}
	}
}

// =============================================================================
// Helpers
// =============================================================================

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
