package websocket

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/aescanero/netprov/pkg/domain"
	"github.com/aescanero/netprov/pkg/ports"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler handles WebSocket connections
type Handler struct {
	events ports.EventBus
	logger *zap.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(events ports.EventBus, logger *zap.Logger) *Handler {
	return &Handler{
		events: events,
		logger: logger,
	}
}

// HandleRequestStream streams lifecycle events for one provisioning request
func (h *Handler) HandleRequestStream(c *gin.Context) {
	requestID := c.Param("id")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("failed to upgrade connection", zap.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	h.logger.Info("WebSocket connection established",
		zap.String("request_id", requestID),
		zap.String("client", c.ClientIP()))

	eventChan := make(chan domain.Event, 16)
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	go h.tailEvents(ctx, eventChan)

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-eventChan:
			// Only events for this request reach the client.
			if event.RequestID != requestID {
				continue
			}

			data, err := json.Marshal(event)
			if err != nil {
				h.logger.Error("failed to marshal event", zap.Error(err))
				continue
			}

			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Error("failed to write message", zap.Error(err))
				return
			}
		}
	}
}

// tailEvents tails the lifecycle event bus into ch until ctx is done.
func (h *Handler) tailEvents(ctx context.Context, ch chan<- domain.Event) {
	err := h.events.Tail(ctx, func(ctx context.Context, event domain.Event) error {
		select {
		case ch <- event:
		case <-ctx.Done():
			return ctx.Err()
		default:
			// Channel full; events are observational and droppable.
			h.logger.Warn("event channel full, dropping event",
				zap.String("event_id", event.ID),
				zap.String("event_type", string(event.Type)))
		}
		return nil
	})

	if err != nil && ctx.Err() == nil {
		h.logger.Error("event tail stopped", zap.Error(err))
	}
}
