package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Handler receives inbound traffic from the hub: decoded frames and
// disconnect notifications. The Session implements it.
type Handler interface {
	HandleEvent(connID string, raw []byte)
	HandleDisconnect(connID string)
}

// ConnConfig holds per-connection websocket tuning.
type ConnConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnConfig returns the default websocket configuration.
func DefaultConnConfig() ConnConfig {
	return ConnConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development - restrict in production
			return true
		},
	}
}

// delivery is one queued outbound emission. Exactly one of connID/roomID is
// set. closing marks a room-teardown broadcast: after delivery the room's
// pool is dropped, so the event is guaranteed to be the pool's last.
type delivery struct {
	connID  string
	roomID  string
	ev      Event
	closing bool
}

// Hub owns every live websocket connection and the per-room delivery pools.
// All outbound traffic funnels through a single buffered channel drained by
// one goroutine, which preserves the order emissions were enqueued in.
type Hub struct {
	config   ConnConfig
	upgrader websocket.Upgrader
	handler  Handler

	mu    sync.RWMutex
	conns map[string]*Conn
	rooms map[string]map[*Conn]bool

	deliveryCh chan delivery
}

// Conn represents one websocket connection to a participant.
type Conn struct {
	ID   string
	hub  *Hub
	ws   *websocket.Conn
	send chan []byte

	// room is the delivery pool this connection belongs to, guarded by
	// hub.mu. Empty while not joined to any room.
	room   string
	closed bool

	connectedAt time.Time
}

// NewHub creates a hub with no handler bound yet.
func NewHub(config ConnConfig) *Hub {
	return &Hub{
		config: config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		conns:      make(map[string]*Conn),
		rooms:      make(map[string]map[*Conn]bool),
		deliveryCh: make(chan delivery, 1000),
	}
}

// SetHandler binds the inbound event handler. Must be called before the
// first connection is accepted.
func (h *Hub) SetHandler(handler Handler) {
	h.handler = handler
}

// Run drains the delivery queue until the context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	log.Info().Msg("hub started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("hub shutting down")
			return
		case d := <-h.deliveryCh:
			h.handleDelivery(d)
		}
	}
}

// HandleWS upgrades an HTTP request to a websocket connection and assigns
// it a fresh connection id.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade websocket connection")
		return
	}

	conn := &Conn{
		ID:          uuid.New().String(),
		hub:         h,
		ws:          ws,
		send:        make(chan []byte, 256),
		connectedAt: time.Now(),
	}

	h.mu.Lock()
	h.conns[conn.ID] = conn
	h.mu.Unlock()

	go conn.writePump()
	go conn.readPump()

	log.Info().Str("conn_id", conn.ID).Msg("websocket connection established")
}

// RegisterRoutes registers the websocket routes on an HTTP mux.
func (h *Hub) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", h.HandleWS)
	mux.HandleFunc("/ws/stats", h.HandleStats)
}

// HandleStats reports connection and room pool counts.
func (h *Hub) HandleStats(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	stats := map[string]int{
		"total_connections": len(h.conns),
		"active_rooms":      len(h.rooms),
	}
	h.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		log.Error().Err(err).Msg("failed to write stats response")
	}
}

// ToConn queues an event for a single connection.
func (h *Hub) ToConn(connID string, ev Event) {
	h.enqueue(delivery{connID: connID, ev: ev})
}

// ToRoom queues an event for every connection in a room's pool.
func (h *Hub) ToRoom(roomID string, ev Event) {
	h.enqueue(delivery{roomID: roomID, ev: ev})
}

// CloseRoom queues a final broadcast for a room; the pool is dropped after
// the event is delivered. The connections themselves stay open and may
// create or join another room.
func (h *Hub) CloseRoom(roomID string, ev Event) {
	h.enqueue(delivery{roomID: roomID, ev: ev, closing: true})
}

// JoinRoom attaches a connection to a room's delivery pool.
func (h *Hub) JoinRoom(connID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn, ok := h.conns[connID]
	if !ok {
		return
	}
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*Conn]bool)
	}
	h.rooms[roomID][conn] = true
	conn.room = roomID

	log.Debug().
		Str("conn_id", connID).
		Str("room_id", roomID).
		Int("pool_size", len(h.rooms[roomID])).
		Msg("connection joined room pool")
}

// enqueue queues a delivery for the drain goroutine. A full queue blocks the
// producer rather than dropping: a dropped room-wide event would silently
// desync every healthy member, while the slow-consumer guard in trySend
// already keeps a single dead client from wedging the drain.
func (h *Hub) enqueue(d delivery) {
	select {
	case h.deliveryCh <- d:
	default:
		log.Warn().Str("event", d.ev.Event).Msg("delivery queue full, waiting for drain")
		h.deliveryCh <- d
	}
}

func (h *Hub) handleDelivery(d delivery) {
	data, err := json.Marshal(d.ev)
	if err != nil {
		log.Error().Err(err).Str("event", d.ev.Event).Msg("failed to marshal event")
		return
	}

	if d.connID != "" {
		h.mu.RLock()
		conn, ok := h.conns[d.connID]
		h.mu.RUnlock()
		if ok {
			h.trySend(conn, data)
		}
		return
	}

	h.mu.RLock()
	var targets []*Conn
	for conn := range h.rooms[d.roomID] {
		targets = append(targets, conn)
	}
	h.mu.RUnlock()

	for _, conn := range targets {
		h.trySend(conn, data)
	}

	if d.closing {
		h.mu.Lock()
		for conn := range h.rooms[d.roomID] {
			conn.room = ""
		}
		delete(h.rooms, d.roomID)
		h.mu.Unlock()
	}

	log.Debug().
		Str("event", d.ev.Event).
		Str("room_id", d.roomID).
		Int("connections", len(targets)).
		Msg("event broadcast")
}

// trySend writes without blocking the delivery loop; a connection whose
// send buffer is full is treated as dead and dropped. The closed check
// under the lock keeps the send from racing unregister's channel close.
func (h *Hub) trySend(conn *Conn, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if conn.closed {
		return
	}
	select {
	case conn.send <- data:
	default:
		log.Warn().Str("conn_id", conn.ID).Msg("send buffer full, closing connection")
		conn.ws.Close()
	}
}

// unregister removes a connection from the hub and, exactly once, notifies
// the handler of the disconnect.
func (h *Hub) unregister(conn *Conn) {
	h.mu.Lock()
	if conn.closed {
		h.mu.Unlock()
		return
	}
	conn.closed = true
	delete(h.conns, conn.ID)
	if conn.room != "" {
		if pool, ok := h.rooms[conn.room]; ok {
			delete(pool, conn)
			if len(pool) == 0 {
				delete(h.rooms, conn.room)
			}
		}
		conn.room = ""
	}
	close(conn.send)
	h.mu.Unlock()

	log.Info().
		Str("conn_id", conn.ID).
		Dur("connected_for", time.Since(conn.connectedAt)).
		Msg("connection unregistered")
	if h.handler != nil {
		h.handler.HandleDisconnect(conn.ID)
	}
}

// writePump sends queued messages and keepalive pings to the peer.
func (c *Conn) writePump() {
	ticker := time.NewTicker(c.hub.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.ws.Close()
		c.hub.unregister(c)
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(c.hub.config.WriteTimeout))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Debug().Err(err).Str("conn_id", c.ID).Msg("failed to write to websocket")
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(c.hub.config.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump dispatches inbound frames to the handler until the peer goes
// away.
func (c *Conn) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.ws.Close()
	}()

	c.ws.SetReadLimit(c.hub.config.MaxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(c.hub.config.ReadTimeout))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(c.hub.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug().Err(err).Str("conn_id", c.ID).Msg("unexpected websocket close")
			}
			break
		}
		if c.hub.handler != nil {
			c.hub.handler.HandleEvent(c.ID, message)
		}
		c.ws.SetReadDeadline(time.Now().Add(c.hub.config.ReadTimeout))
	}
}
