package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/edupulse/edupulse-analytics/internal/realtime"
	"github.com/edupulse/edupulse-analytics/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// WEBSOCKET HANDLER
// ══════════════════════════════════════════════════════════════════════════════

const (
	// maxMessageSize bounds inbound client frames.
	maxMessageSize = 64 * 1024

	// readDeadline is refreshed on every inbound frame and pong.
	readDeadline = 90 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Origin enforcement happens in the CORS middleware; browsers that
	// reach this point are already filtered.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// clientMessage is one inbound frame from a websocket client.
type clientMessage struct {
	Type     string         `json:"type"`
	Channels []string       `json:"channels,omitempty"`
	Event    realtime.Event `json:"data,omitempty"`
}

// handleWebsocket handles GET /ws: it upgrades the connection, registers
// it with the push registry, and serves the client command loop until
// the peer goes away.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	userID := getQueryParam(r, "user_id", "")
	if userID == "" {
		writeJSONError(w, http.StatusBadRequest, "validation_error", "user_id query parameter is required")
		return
	}

	role := getQueryParam(r, "role", realtime.RoleStudent)
	switch role {
	case realtime.RoleAdmin, realtime.RoleTeacher, realtime.RoleStudent:
	default:
		role = realtime.RoleStudent
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote an HTTP error to the client.
		s.logger.Warn("websocket upgrade failed",
			logger.UserID(userID),
			logger.Err(err),
		)
		return
	}

	transport := realtime.NewWSConnection(conn)
	// Connect sends the connection_established acknowledgement itself.
	s.deps.Registry.Connect(userID, role, transport)

	s.logger.Info("websocket connected",
		logger.UserID(userID),
		logger.Role(role),
		logger.String("ip", getClientIP(r)),
	)

	s.readLoop(r, conn, userID)

	s.deps.Registry.Disconnect(userID)
	s.logger.Info("websocket disconnected", logger.UserID(userID))
}

// readLoop consumes inbound frames until the connection errors out.
func (s *Server) readLoop(r *http.Request, conn *websocket.Conn, userID string) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(readDeadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readDeadline))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("websocket read error",
					logger.UserID(userID),
					logger.Err(err),
				)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readDeadline))

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.deps.Registry.SendToUser(userID, map[string]any{
				"type":  "error",
				"error": "invalid message format",
			})
			continue
		}

		s.dispatchClientMessage(r, userID, msg)
	}
}

// dispatchClientMessage routes one client command.
func (s *Server) dispatchClientMessage(r *http.Request, userID string, msg clientMessage) {
	now := time.Now().UTC()

	switch msg.Type {
	// Subscribe and Unsubscribe confirm over the push channel themselves.
	case "subscribe":
		s.deps.Registry.Subscribe(userID, msg.Channels)

	case "unsubscribe":
		s.deps.Registry.Unsubscribe(userID, msg.Channels)

	case "track_event":
		if msg.Event == nil {
			s.deps.Registry.SendToUser(userID, map[string]any{
				"type":  "error",
				"error": "data is required",
			})
			return
		}

		s.deps.Service.TrackLiveEvent(r.Context(), userID, msg.Event)
		if err := s.deps.Service.ProcessEvent(r.Context(), userID, msg.Event); err != nil {
			s.logger.Error("websocket event processing failed",
				logger.UserID(userID),
				logger.EventAction(msg.Event.Action()),
				logger.Err(err),
			)
		}

	case "ping":
		s.deps.Registry.SendToUser(userID, map[string]any{
			"type":      realtime.MsgPong,
			"timestamp": now,
		})

	default:
		s.deps.Registry.SendToUser(userID, map[string]any{
			"type":  "error",
			"error": "unknown message type: " + msg.Type,
		})
	}
}
