package sentry

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/AvaQuinn/storesight/pkg/behavior"
	"github.com/AvaQuinn/storesight/pkg/plugin"
	"github.com/google/uuid"
)

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "POST", Path: "/events", Handler: m.handleIngestEvent},
		{Method: "GET", Path: "/anomalies", Handler: m.handleListAnomalies},
		{Method: "GET", Path: "/anomalies/{store_id}", Handler: m.handleStoreAnomalies},
		{Method: "GET", Path: "/baselines/{store_id}", Handler: m.handleStoreBaselines},
		{Method: "GET", Path: "/thresholds", Handler: m.handleGetThresholds},
		{Method: "GET", Path: "/thresholds/adjustments", Handler: m.handleListAdjustments},
		{Method: "POST", Path: "/rebuild/{store_id}", Handler: m.handleRebuild},
		{Method: "POST", Path: "/feedback", Handler: m.handleFeedback},
	}
}

// handleIngestEvent ingests one behavior event and returns the detection
// decision, if any.
//
//	@Summary		Ingest behavior event
//	@Description	Runs one behavior event through baseline update and anomaly detection.
//	@Tags			sentry
//	@Accept			json
//	@Produce		json
//	@Param			event body behavior.Event true "Behavior event"
//	@Success		200 {object} behavior.AnomalyEvent
//	@Success		202 {object} map[string]any "Accepted, no anomaly"
//	@Failure		400 {object} map[string]any
//	@Failure		500 {object} map[string]any
//	@Router			/sentry/events [post]
func (m *Module) handleIngestEvent(w http.ResponseWriter, r *http.Request) {
	var e behavior.Event
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	if err := e.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	decision, err := m.Process(r.Context(), &e)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to process event")
		return
	}
	if decision == nil {
		writeJSON(w, http.StatusAccepted, map[string]any{"event_id": e.ID, "anomaly": false})
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

// handleListAnomalies returns recent anomalies across all stores.
//
//	@Summary		List anomalies
//	@Description	Returns recent anomalies across all stores, newest first.
//	@Tags			sentry
//	@Produce		json
//	@Param			limit query int false "Maximum results" default(50)
//	@Success		200 {array} behavior.AnomalyEvent
//	@Failure		500 {object} map[string]any
//	@Router			/sentry/anomalies [get]
func (m *Module) handleListAnomalies(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 50)
	anomalies, err := m.store.ListAnomalies(r.Context(), "", limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list anomalies")
		return
	}
	if anomalies == nil {
		anomalies = []behavior.AnomalyEvent{}
	}
	writeJSON(w, http.StatusOK, anomalies)
}

// handleStoreAnomalies returns recent anomalies for one store.
//
//	@Summary		Store anomalies
//	@Description	Returns recent anomalies for a specific store, newest first.
//	@Tags			sentry
//	@Produce		json
//	@Param			store_id path string true "Store ID"
//	@Param			limit query int false "Maximum results" default(50)
//	@Success		200 {array} behavior.AnomalyEvent
//	@Failure		500 {object} map[string]any
//	@Router			/sentry/anomalies/{store_id} [get]
func (m *Module) handleStoreAnomalies(w http.ResponseWriter, r *http.Request) {
	storeID := r.PathValue("store_id")
	if storeID == "" {
		writeError(w, http.StatusBadRequest, "store_id is required")
		return
	}
	limit := parseLimit(r, 50)
	anomalies, err := m.store.ListAnomalies(r.Context(), storeID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list anomalies")
		return
	}
	if anomalies == nil {
		anomalies = []behavior.AnomalyEvent{}
	}
	writeJSON(w, http.StatusOK, anomalies)
}

// handleStoreBaselines returns learned baseline profiles for one store.
//
//	@Summary		Store baselines
//	@Description	Returns learned baseline profiles for a specific store.
//	@Tags			sentry
//	@Produce		json
//	@Param			store_id path string true "Store ID"
//	@Success		200 {array} behavior.BaselineProfile
//	@Failure		500 {object} map[string]any
//	@Router			/sentry/baselines/{store_id} [get]
func (m *Module) handleStoreBaselines(w http.ResponseWriter, r *http.Request) {
	storeID := r.PathValue("store_id")
	if storeID == "" {
		writeError(w, http.StatusBadRequest, "store_id is required")
		return
	}
	profiles, err := m.store.ListByStore(r.Context(), storeID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list baselines")
		return
	}
	if profiles == nil {
		profiles = []behavior.BaselineProfile{}
	}
	writeJSON(w, http.StatusOK, profiles)
}

// handleGetThresholds returns the active severity thresholds per area.
//
//	@Summary		Active thresholds
//	@Description	Returns the current severity threshold ladder per area, including learned adjustments.
//	@Tags			sentry
//	@Produce		json
//	@Success		200 {object} map[string]any
//	@Router			/sentry/thresholds [get]
func (m *Module) handleGetThresholds(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, m.thresholds.Snapshot())
}

// handleListAdjustments returns recent threshold adjustments for an area.
//
//	@Summary		Threshold adjustments
//	@Description	Returns the audit trail of learned threshold adjustments for an area.
//	@Tags			sentry
//	@Produce		json
//	@Param			area query string true "Area name"
//	@Param			limit query int false "Maximum results" default(50)
//	@Success		200 {array} ThresholdAdjustment
//	@Failure		400 {object} map[string]any
//	@Failure		500 {object} map[string]any
//	@Router			/sentry/thresholds/adjustments [get]
func (m *Module) handleListAdjustments(w http.ResponseWriter, r *http.Request) {
	area := r.URL.Query().Get("area")
	if area == "" {
		writeError(w, http.StatusBadRequest, "area is required")
		return
	}
	limit := parseLimit(r, 50)
	adjustments, err := m.store.ListAdjustments(r.Context(), area, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list adjustments")
		return
	}
	if adjustments == nil {
		adjustments = []ThresholdAdjustment{}
	}
	writeJSON(w, http.StatusOK, adjustments)
}

// handleRebuild triggers a batch baseline rebuild for one store.
//
//	@Summary		Rebuild baselines
//	@Description	Recomputes baseline profiles for a store from historical events.
//	@Tags			sentry
//	@Produce		json
//	@Param			store_id path string true "Store ID"
//	@Param			area query string false "Restrict to one area"
//	@Param			event_type query string false "Restrict to one event type"
//	@Success		200 {object} BatchResult
//	@Failure		400 {object} map[string]any
//	@Failure		500 {object} map[string]any
//	@Router			/sentry/rebuild/{store_id} [post]
func (m *Module) handleRebuild(w http.ResponseWriter, r *http.Request) {
	storeID := r.PathValue("store_id")
	if storeID == "" {
		writeError(w, http.StatusBadRequest, "store_id is required")
		return
	}

	opts := BatchOptions{Area: r.URL.Query().Get("area")}
	if et := r.URL.Query().Get("event_type"); et != "" {
		opts.EventType = behavior.EventType(et)
		if !opts.EventType.Valid() {
			writeError(w, http.StatusBadRequest, "unknown event_type")
			return
		}
	}

	result, err := m.RebuildBaselines(r.Context(), storeID, opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "batch rebuild failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleFeedback accepts a reviewer label for a past anomaly.
//
//	@Summary		Submit anomaly feedback
//	@Description	Applies a true/false positive label to the adaptive threshold learner.
//	@Tags			sentry
//	@Accept			json
//	@Produce		json
//	@Param			feedback body behavior.Feedback true "Feedback"
//	@Success		200 {object} ThresholdAdjustment
//	@Success		202 {object} map[string]any "Accepted, below learning confidence"
//	@Failure		400 {object} map[string]any
//	@Failure		404 {object} map[string]any
//	@Router			/sentry/feedback [post]
func (m *Module) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var fb behavior.Feedback
	if err := json.NewDecoder(r.Body).Decode(&fb); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := fb.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	adj, err := m.SubmitFeedback(r.Context(), fb)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if adj == nil {
		writeJSON(w, http.StatusAccepted, map[string]any{
			"anomaly_id": fb.AnomalyID,
			"applied":    false,
		})
		return
	}
	writeJSON(w, http.StatusOK, adj)
}

// -- helpers --

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"type":   "https://storesight.dev/problems/" + http.StatusText(status),
		"title":  http.StatusText(status),
		"status": status,
		"detail": detail,
	})
}

func parseLimit(r *http.Request, defaultLimit int) int {
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 1000 {
			return n
		}
	}
	return defaultLimit
}
