package events

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"castmux/internal/core/domain"
	"castmux/pkg/tracing"
	"castmux/pkg/utils"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var ErrTooManyClients = errors.New("too many event stream clients")

type HubConfig struct {
	PingInterval         time.Duration
	ReadTimeout          time.Duration
	WriteTimeout         time.Duration
	SendBuffer           int
	MaxClients           int   // 0 = unlimited
	ConnectionsPerMinute int   // 0 = unlimited
	MaxMessageSizeBytes  int64 // inbound limit; clients only send control frames
	AllowedOrigins       []string
}

func DefaultHubConfig() HubConfig {
	return HubConfig{
		PingInterval:        30 * time.Second,
		ReadTimeout:         60 * time.Second,
		WriteTimeout:        10 * time.Second,
		SendBuffer:          64,
		MaxMessageSizeBytes: 4 * 1024,
	}
}

type hubClient struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	filter map[domain.EventType]bool
}

func (c *hubClient) wants(t domain.EventType) bool {
	return len(c.filter) == 0 || c.filter[t]
}

// Hub streams session events to websocket clients. Each client has a bounded send
// queue; a client that falls behind loses events rather than slowing others.
type Hub struct {
	cfg      HubConfig
	upgrader websocket.Upgrader
	limiter  *rate.Limiter

	clients map[string]*hubClient
	mu      sync.RWMutex

	logger *zap.SugaredLogger
}

func NewHub(cfg HubConfig, logger *zap.SugaredLogger) *Hub {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 64
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	h := &Hub{
		cfg:     cfg,
		clients: make(map[string]*hubClient),
		logger:  logger,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	if cfg.ConnectionsPerMinute > 0 {
		h.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.ConnectionsPerMinute)), cfg.ConnectionsPerMinute)
	}
	return h
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	for _, allowed := range h.cfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// Run broadcasts events until the channel closes or ctx is done.
func (h *Hub) Run(ctx context.Context, events <-chan domain.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			h.Broadcast(event)
		}
	}
}

// Broadcast queues event for every interested client without blocking.
func (h *Hub) Broadcast(event domain.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Warnw("failed to marshal event", "type", event.Type, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.clients {
		if !c.wants(event.Type) {
			continue
		}
		select {
		case c.send <- data:
		default:
			h.logger.Debugw("client send queue full, event dropped",
				"client_id", c.id,
				"type", event.Type,
			)
		}
	}
}

// ServeHTTP upgrades the request and streams events until the client goes away.
// The optional "types" query parameter is a comma separated event type filter.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.limiter != nil && !h.limiter.Allow() {
		http.Error(w, "too many connection attempts", http.StatusTooManyRequests)
		return
	}
	if h.cfg.MaxClients > 0 && h.ClientCount() >= h.cfg.MaxClients {
		http.Error(w, ErrTooManyClients.Error(), http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnw("websocket upgrade failed", "error", err)
		return
	}

	c := &hubClient{
		id:     utils.GenerateClientID(),
		conn:   conn,
		send:   make(chan []byte, h.cfg.SendBuffer),
		filter: parseFilter(r.URL.Query().Get("types")),
	}

	_, span := tracing.TraceWebSocketMessage(r.Context(), "subscribe", c.id)
	span.End()

	h.register(c)
	go h.writePump(c)
	h.readPump(c)
}

func parseFilter(raw string) map[domain.EventType]bool {
	if raw == "" {
		return nil
	}
	filter := make(map[domain.EventType]bool)
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			filter[domain.EventType(t)] = true
		}
	}
	return filter
}

func (h *Hub) register(c *hubClient) {
	h.mu.Lock()
	h.clients[c.id] = c
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Infow("event stream client connected", "client_id", c.id, "clients", count)
}

func (h *Hub) unregister(c *hubClient) {
	h.mu.Lock()
	if _, ok := h.clients[c.id]; ok {
		delete(h.clients, c.id)
		close(c.send)
	}
	h.mu.Unlock()

	h.logger.Infow("event stream client disconnected", "client_id", c.id)
}

// readPump only services control frames; it ends when the client disconnects.
func (h *Hub) readPump(c *hubClient) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()

	if h.cfg.MaxMessageSizeBytes > 0 {
		c.conn.SetReadLimit(h.cfg.MaxMessageSizeBytes)
	}
	c.conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debugw("event stream read error", "client_id", c.id, "error", err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	}
}

func (h *Hub) writePump(c *hubClient) {
	pingTicker := time.NewTicker(h.cfg.PingInterval)
	defer func() {
		pingTicker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Debugw("event stream write failed", "client_id", c.id, "error", err)
				return
			}

		case <-pingTicker.C:
			c.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, c := range h.clients {
		delete(h.clients, id)
		close(c.send)
	}
}
