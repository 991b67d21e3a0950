package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"noteenvelope-sync/internal/websocket"
	"noteenvelope-sync/pkg/jwt"
	"noteenvelope-sync/pkg/response"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
)

type RelayHandler struct {
	manager   *websocket.Manager
	jwtSecret string
	upgrader  ws.Upgrader
	logger    *slog.Logger
}

func NewRelayHandler(manager *websocket.Manager, jwtSecret string, logger *slog.Logger) *RelayHandler {
	return &RelayHandler{
		manager:   manager,
		jwtSecret: jwtSecret,
		upgrader: ws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger.With("component", "relay_handler"),
	}
}

// HandleConnection joins the caller to the topic named in the query. The
// token's topic claim must match it.
func (h *RelayHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	if token == "" {
		response.Unauthorized(w, "missing authorization token")
		return
	}

	claims, err := jwt.ValidateToken(token, h.jwtSecret)
	if err != nil {
		h.logger.Warn("token validation failed", "error", err)
		response.Unauthorized(w, "invalid token")
		return
	}

	topic := r.URL.Query().Get("topic")
	if topic == "" || topic != claims.Topic {
		response.Forbidden(w, "token not valid for topic")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("failed to upgrade connection", "error", err)
		return
	}

	client := websocket.NewClient(uuid.New().String(), topic, claims.DeviceID, conn, h.manager)
	if !h.manager.Join(client) {
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}
