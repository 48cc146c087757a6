package ws

import (
	"context"
	"net/http"

	"github.com/AvaQuinn/storesight/internal/sentry"
	"github.com/AvaQuinn/storesight/pkg/behavior"
	"github.com/AvaQuinn/storesight/pkg/plugin"
	"github.com/coder/websocket"
	"go.uber.org/zap"
)

// Handler provides WebSocket endpoints for real-time anomaly updates.
type Handler struct {
	hub    *Hub
	bus    plugin.EventBus
	logger *zap.Logger
}

// Compile-time check that Handler implements the server interface.
var _ interface {
	RegisterRoutes(mux *http.ServeMux)
} = (*Handler)(nil)

// NewHandler creates a WebSocket handler and subscribes to sentry events.
func NewHandler(bus plugin.EventBus, logger *zap.Logger) *Handler {
	h := &Handler{
		hub:    NewHub(logger),
		bus:    bus,
		logger: logger,
	}
	h.subscribeToEvents()
	return h
}

// RegisterRoutes registers WebSocket routes on the server mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/ws/anomalies", h.handleAnomalyStream)
}

// handleAnomalyStream upgrades the connection to WebSocket and streams
// detection events. An optional store_id query parameter restricts the
// stream to one store.
func (h *Handler) handleAnomalyStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Error("websocket accept failed", zap.Error(err))
		return
	}

	client := &Client{
		conn:    conn,
		remote:  r.RemoteAddr,
		storeID: r.URL.Query().Get("store_id"),
		send:    make(chan Message, 256),
		logger:  h.logger,
	}

	h.hub.Register(client)

	// Run read and write pumps. When either exits, clean up.
	ctx := r.Context()
	done := make(chan struct{})
	go func() {
		client.writePump(ctx)
		close(done)
	}()

	// readPump blocks until client disconnects.
	client.readPump(ctx)

	// Client disconnected -- stop write pump and unregister.
	h.hub.Unregister(client)
	conn.Close(websocket.StatusNormalClosure, "")
	<-done
}

// subscribeToEvents subscribes to sentry events and forwards them to all
// connected WebSocket clients.
func (h *Handler) subscribeToEvents() {
	if h.bus == nil {
		return
	}

	h.bus.Subscribe(sentry.TopicAnomalyDetected, func(_ context.Context, event plugin.Event) {
		anomaly, ok := event.Payload.(*behavior.AnomalyEvent)
		if !ok {
			return
		}
		msgType := MessageAnomalyDetected
		if anomaly.Suppressed {
			msgType = MessageAnomalySuppress
		}
		h.hub.Broadcast(Message{
			Type:      msgType,
			StoreID:   anomaly.StoreID,
			Timestamp: event.Timestamp,
			Data:      AnomalyData{Anomaly: anomaly},
		})
	})

	h.bus.Subscribe(sentry.TopicBaselineRebuilt, func(_ context.Context, event plugin.Event) {
		result, ok := event.Payload.(*sentry.BatchResult)
		if !ok {
			return
		}
		h.hub.Broadcast(Message{
			Type:      MessageBaselineRebuilt,
			StoreID:   result.StoreID,
			Timestamp: event.Timestamp,
			Data: BaselineRebuiltData{
				StoreID: result.StoreID,
				Built:   len(result.Built),
				Skipped: len(result.Skipped),
				Failed:  len(result.Failed),
			},
		})
	})

	h.bus.Subscribe(sentry.TopicThresholdUpdated, func(_ context.Context, event plugin.Event) {
		adj, ok := event.Payload.(*sentry.ThresholdAdjustment)
		if !ok {
			return
		}
		h.hub.Broadcast(Message{
			Type:      MessageThresholdUpdated,
			Timestamp: event.Timestamp,
			Data: ThresholdUpdatedData{
				Area:         adj.Area,
				Delta:        adj.Delta,
				TableVersion: adj.TableVersion,
			},
		})
	})

	h.logger.Info("subscribed to sentry events for WebSocket broadcasting")
}
