package ws

import (
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"example.com/shareactivities/internal/chat"
	"example.com/shareactivities/internal/logging"
)

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the handler logger.
func WithLogger(logger *log.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithSendBuffer sets the per-connection outbound queue length.
func WithSendBuffer(n int) Option {
	return func(h *Handler) {
		if n > 0 {
			h.sendBuffer = n
		}
	}
}

// Handler upgrades requests to websockets and joins them to the room named by roomId.
type Handler struct {
	service    *chat.Service
	upgrader   websocket.Upgrader
	sendBuffer int
	logger     *log.Logger
}

// NewHandler constructs a Handler.
func NewHandler(service *chat.Service, opts ...Option) *Handler {
	h := &Handler{
		service: service,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		sendBuffer: 32,
		logger:     logging.Discard(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("roomId")
	if roomID == "" {
		http.Error(w, "roomId is required", http.StatusBadRequest)
		return
	}

	socket, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("problem initiating websocket", "err", err)
		return
	}

	client := newClient(uuid.NewString(), socket, h.sendBuffer, h.logger)
	registry := h.service.Registry()
	if err := registry.Join(client, roomID); err != nil {
		client.Close()
		return
	}
	h.logger.Info("chat connection opened", "conn", client.ID(), "room", roomID)

	defer func() {
		registry.Leave(client)
		client.Close()
		h.logger.Info("chat connection closed", "conn", client.ID(), "room", roomID)
	}()

	go client.writePump()

	socket.SetReadLimit(maxFrameSize)
	_ = socket.SetReadDeadline(time.Now().Add(pongDelay))
	socket.SetPongHandler(func(string) error {
		return socket.SetReadDeadline(time.Now().Add(pongDelay))
	})

	// Messages from one connection are handled in arrival order.
	ctx := r.Context()
	for {
		kind, payload, err := socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket receive error", "conn", client.ID(), "err", err)
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		_ = h.service.HandleMessage(ctx, client, payload)
	}
}
