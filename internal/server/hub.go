package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"interview-proctor/internal/logger"
	"interview-proctor/internal/protocol"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Hub раздает события сессии подключенным websocket клиентам. Реализует events.Publisher.
type Hub struct {
	mu       sync.Mutex
	sessions map[string]map[*websocket.Conn]bool
	log      *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		sessions: make(map[string]map[*websocket.Conn]bool),
		log:      logger.OrNop(log),
	}
}

func (h *Hub) AddConnection(sessionID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.sessions[sessionID] == nil {
		h.sessions[sessionID] = make(map[*websocket.Conn]bool)
	}
	h.sessions[sessionID][conn] = true
	h.log.Debug("ws client connected", zap.String("session_id", sessionID), zap.Int("total", len(h.sessions[sessionID])))
}

func (h *Hub) RemoveConnection(sessionID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conns, ok := h.sessions[sessionID]; ok {
		delete(conns, conn)
		conn.Close()
		if len(conns) == 0 {
			delete(h.sessions, sessionID)
		}
		h.log.Debug("ws client disconnected", zap.String("session_id", sessionID))
	}
}

// Connections возвращает число подписчиков сессии
func (h *Hub) Connections(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions[sessionID])
}

// Publish пишет событие всем подписчикам сессии, сломанные соединения закрываются
func (h *Hub) Publish(ctx context.Context, ev protocol.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("ошибка сериализации события: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.sessions[ev.SessionID] {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.log.Warn("ws write failed", zap.String("session_id", ev.SessionID), zap.Error(err))
			conn.Close()
			delete(h.sessions[ev.SessionID], conn)
		}
	}
	if len(h.sessions[ev.SessionID]) == 0 {
		delete(h.sessions, ev.SessionID)
	}
	return nil
}

// ServeSession подключает клиента к ленте событий /ws/session/:id
func (h *Hub) ServeSession(c *gin.Context) {
	sessionID := c.Param("id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, protocol.ErrorResponse{Error: "invalid session id"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	h.AddConnection(sessionID, conn)
	defer h.RemoveConnection(sessionID, conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
