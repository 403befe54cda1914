package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/listing-dashboard/internal/model"
)

// WebSocket configuration constants.
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 8
)

// feedClient is one connected dashboard page.
type feedClient struct {
	send   chan model.ChangeMessage
	cancel context.CancelFunc
}

// WebSocketHandler pushes listing change notifications to connected
// dashboards. It implements store.Listener.
type WebSocketHandler struct {
	upgrader websocket.Upgrader
	logger   *zap.Logger
	mu       sync.RWMutex
	clients  map[*websocket.Conn]*feedClient
}

// NewWebSocketHandler creates a new WebSocketHandler instance.
func NewWebSocketHandler(logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger:  logger,
		clients: make(map[*websocket.Conn]*feedClient),
	}
}

// RegisterRoutes registers the WebSocket routes with the router.
func (h *WebSocketHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/ws", h.HandleWebSocket).Methods(http.MethodGet)
}

// HandleWebSocket handles WebSocket connection requests.
//
//nolint:contextcheck // intentional: WebSocket connections outlive the HTTP request context
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("failed to upgrade connection", zap.Error(err))
		return
	}

	// The request context ends when this handler returns.
	ctx, cancel := context.WithCancel(context.Background())
	c := &feedClient{
		send:   make(chan model.ChangeMessage, sendBuffer),
		cancel: cancel,
	}

	h.mu.Lock()
	h.clients[conn] = c
	h.mu.Unlock()

	h.logger.Info("websocket client connected", zap.String("remote_addr", conn.RemoteAddr().String()))

	go h.writePump(ctx, conn, c)
	go h.readPump(ctx, conn, cancel)
}

// ListingsReplaced broadcasts a change notification to every client. A
// client whose buffer is full already has a reload pending and is skipped.
func (h *WebSocketHandler) ListingsReplaced(count int) {
	msg := model.NewListingsChangedMessage(count)

	h.mu.RLock()
	defer h.mu.RUnlock()

	for conn, c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.logger.Debug("dropping change notification for slow client",
				zap.String("remote_addr", conn.RemoteAddr().String()),
			)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *WebSocketHandler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// readPump drains the connection so pongs and close frames are processed.
func (h *WebSocketHandler) readPump(ctx context.Context, conn *websocket.Conn, cancel context.CancelFunc) {
	defer func() {
		cancel()
		h.removeClient(conn)
		if err := conn.Close(); err != nil {
			h.logger.Debug("error closing connection", zap.Error(err))
		}
	}()

	conn.SetReadLimit(maxMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		h.logger.Error("failed to set read deadline", zap.Error(err))
		return
	}

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					h.logger.Warn("websocket read error", zap.Error(err))
				}
				return
			}
		}
	}
}

// writePump delivers change notifications and keeps the connection alive.
func (h *WebSocketHandler) writePump(ctx context.Context, conn *websocket.Conn, c *feedClient) {
	pingTicker := time.NewTicker(pingPeriod)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.sendCloseMessage(conn)
			return
		case msg := <-c.send:
			if err := h.sendChange(conn, msg); err != nil {
				h.logger.Debug("failed to send change notification", zap.Error(err))
				return
			}
		case <-pingTicker.C:
			if err := h.sendPing(conn); err != nil {
				h.logger.Debug("failed to send ping", zap.Error(err))
				return
			}
		}
	}
}

func (h *WebSocketHandler) sendChange(conn *websocket.Conn, msg model.ChangeMessage) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(msg)
}

func (h *WebSocketHandler) sendPing(conn *websocket.Conn) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.PingMessage, nil)
}

func (h *WebSocketHandler) sendCloseMessage(conn *websocket.Conn) {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		h.logger.Debug("failed to set write deadline for close", zap.Error(err))
		return
	}

	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "server shutting down")
	if err := conn.WriteMessage(websocket.CloseMessage, closeMsg); err != nil {
		h.logger.Debug("failed to send close message", zap.Error(err))
	}
}

// removeClient removes a client from the clients map.
func (h *WebSocketHandler) removeClient(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c, exists := h.clients[conn]; exists {
		c.cancel()
		delete(h.clients, conn)
		h.logger.Info("websocket client disconnected", zap.String("remote_addr", conn.RemoteAddr().String()))
	}
}

// CloseAllConnections closes all active WebSocket connections.
func (h *WebSocketHandler) CloseAllConnections() {
	h.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(h.clients))
	for _, c := range h.clients {
		cancels = append(cancels, c.cancel)
	}
	h.mu.Unlock()

	// writePump sends the close frame once its context is done.
	for _, cancel := range cancels {
		cancel()
	}

	time.Sleep(100 * time.Millisecond)

	h.mu.Lock()
	for conn := range h.clients {
		if err := conn.Close(); err != nil {
			h.logger.Debug("error closing connection", zap.Error(err))
		}
		delete(h.clients, conn)
	}
	h.mu.Unlock()

	h.logger.Info("all websocket connections closed")
}
