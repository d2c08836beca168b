package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"navybattle/internal/logger"
)

// EventSnapshot is the only event type sent over WebSocket.
const EventSnapshot = "snapshot"

const (
	writeWait   = 10 * time.Second
	pongWait    = 60 * time.Second
	pingPeriod  = 54 * time.Second // Must be less than pongWait
	maxMsgSize  = 4096
	sendBufSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // same policy as WithCORS
	},
}

// WSEvent is the envelope for all WebSocket messages.
type WSEvent struct {
	Type    string `json:"type"`
	MatchID string `json:"match_id"`
	Data    any    `json:"data"`
}

// WSConn is one browser watching one match.
type WSConn struct {
	conn    *websocket.Conn
	matchID string
	send    chan []byte
}

// Hub fans match updates out to the connections watching them.
type Hub struct {
	mu      sync.RWMutex
	matches map[string]map[*WSConn]bool
}

func NewHub() *Hub {
	return &Hub{matches: make(map[string]map[*WSConn]bool)}
}

// Register subscribes c to its match.
func (h *Hub) Register(c *WSConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.matches[c.matchID] == nil {
		h.matches[c.matchID] = make(map[*WSConn]bool)
	}
	h.matches[c.matchID][c] = true
}

// Unregister removes c and closes its send channel.
func (h *Hub) Unregister(c *WSConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.matches[c.matchID]
	if !ok || !conns[c] {
		return
	}
	delete(conns, c)
	if len(conns) == 0 {
		delete(h.matches, c.matchID)
	}
	close(c.send)
}

// Broadcast sends an event to every connection watching matchID.
func (h *Hub) Broadcast(matchID string, event WSEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		logger.ForMatch(matchID).Error().Err(err).Msg("Failed to marshal WebSocket event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.matches[matchID] {
		select {
		case c.send <- data:
		default:
			logger.ForMatch(matchID).Warn().Msg("Dropping WebSocket message, buffer full")
		}
	}
}

// Subscribers returns the number of connections watching matchID.
func (h *Hub) Subscribers(matchID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.matches[matchID])
}

// handleWS handles GET /v1/matches/{id}/ws. The first message is the
// current snapshot; every later mutation of the match pushes another.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := &WSConn{
		conn:    conn,
		matchID: sess.id,
		send:    make(chan []byte, sendBufSize),
	}
	// queue the snapshot under the session lock so no broadcast can
	// overtake it
	sess.mu.Lock()
	first, _ := json.Marshal(WSEvent{Type: EventSnapshot, MatchID: sess.id, Data: sess.snapshot(nil)})
	client.send <- first
	s.hub.Register(client)
	sess.mu.Unlock()

	go s.writePump(client)
	go s.readPump(client)

	logger.ForMatch(sess.id).Info().Int("watchers", s.hub.Subscribers(sess.id)).Msg("WebSocket client connected")
}

// readPump only drains control frames; clients do not send commands here.
func (s *Server) readPump(c *WSConn) {
	defer func() {
		s.hub.Unregister(c)
		c.conn.Close()
		logger.ForMatch(c.matchID).Info().Msg("WebSocket client disconnected")
	}()

	c.conn.SetReadLimit(maxMsgSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.ForMatch(c.matchID).Warn().Err(err).Msg("WebSocket unexpected close")
			}
			return
		}
	}
}

func (s *Server) writePump(c *WSConn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
