package notify

// hub.go: presenter por WebSocket.
//
// Cada evento del Presenter se serializa como {"type": ..., "payload": ...}
// y se reparte a todos los clientes conectados. Un cliente lento pierde
// mensajes en vez de frenar al resto.

import (
	"context"
	"encoding/json"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/alejandrodnm/predictsync/internal/domain"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 256
	broadcastQueue = 256
)

// Tipos de mensaje del envelope.
const (
	MsgSessionStatus = "session_status"
	MsgSnapshot      = "registry_snapshot"
	MsgSettlement    = "settlement"
	MsgField         = "field_update"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Envelope es el mensaje que recibe cada cliente.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type wsClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub implementa ports.Presenter publicando los eventos por WebSocket.
type Hub struct {
	logger     *slog.Logger
	register   chan *wsClient
	unregister chan *wsClient
	broadcast  chan []byte
	done       chan struct{}

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	status  []byte            // último session_status, siempre el primero del replay
	last    map[string][]byte // último mensaje de datos por clave; se vacía al perder la sesión
}

// NewHub crea el hub. Hay que arrancar Run para que reparta mensajes.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger:     logger,
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		broadcast:  make(chan []byte, broadcastQueue),
		done:       make(chan struct{}),
		clients:    make(map[*wsClient]struct{}),
		last:       make(map[string][]byte),
	}
}

// Run procesa altas, bajas y broadcasts hasta que ctx se cancela.
func (h *Hub) Run(ctx context.Context) error {
	h.logger.Info("ws: hub started")
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			h.logger.Info("ws: hub stopped")
			return nil

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			for _, msg := range h.last {
				select {
				case c.send <- msg:
				default:
				}
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("ws: client registered", "clients", n)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("ws: client unregistered", "clients", n)

		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					h.logger.Warn("ws: client send buffer full, dropping message")
				}
			}
			h.mu.RUnlock()
		}
	}
}

// replayLocked envía al cliente nuevo el estado de sesión y después los datos
// en orden estable de clave.
func (h *Hub) replayLocked(c *wsClient) {
	msgs := make([][]byte, 0, len(h.last)+1)
	if h.status != nil {
		msgs = append(msgs, h.status)
	}
	for _, key := range slices.Sorted(maps.Keys(h.last)) {
		msgs = append(msgs, h.last[key])
	}
	for _, msg := range msgs {
		select {
		case c.send <- msg:
		default:
		}
	}
}

// ClientCount devuelve el número de clientes conectados.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWS hace el upgrade de la petición y registra al cliente.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws: upgrade failed", "error", err)
		return
	}
	c := &wsClient{hub: h, conn: conn, send: make(chan []byte, sendBufferSize)}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

// SessionStatus publica el estado de la sesión.
func (h *Hub) SessionStatus(_ context.Context, ev domain.SessionStatusEvent) {
	h.publish(MsgSessionStatus, ev)
}

// RegistrySnapshot publica la vista de predicciones.
func (h *Hub) RegistrySnapshot(_ context.Context, snap domain.RegistrySnapshot) {
	h.publish(MsgSnapshot, snap)
}

// SettlementOutcome publica el resultado de un settle.
func (h *Hub) SettlementOutcome(_ context.Context, ev domain.SettlementEvent) {
	h.publish(MsgSettlement, ev)
}

// FieldUpdate publica un campo de la vista.
func (h *Hub) FieldUpdate(_ context.Context, upd domain.FieldUpdate) {
	h.publish(MsgField, upd)
}

func (h *Hub) publish(kind string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("ws: marshal payload", "type", kind, "error", err)
		return
	}
	msg, err := json.Marshal(Envelope{Type: kind, Payload: raw})
	if err != nil {
		h.logger.Error("ws: marshal envelope", "type", kind, "error", err)
		return
	}

	h.mu.Lock()
	switch p := payload.(type) {
	case domain.SessionStatusEvent:
		h.status = msg
		// sin sesión los datos de la anterior ya no valen para un cliente nuevo
		if p.State != domain.SessionConnected {
			clear(h.last)
		}
	case domain.FieldUpdate:
		// los field updates se guardan por campo para no pisarse entre sí
		h.last[kind+":"+p.Field] = msg
	default:
		h.last[kind] = msg
	}
	h.mu.Unlock()

	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("ws: broadcast queue full, dropping message", "type", kind)
	}
}

// readPump solo consume frames de control; los clientes no envían comandos.
func (c *wsClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("ws: unexpected close error", "error", err)
			}
			return
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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
