package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gorilla/websocket"

	"github.com/xtrntr/auctionhouse/internal/auction"
)

const writeWait = 5 * time.Second

// StreamMessage is pushed to websocket subscribers of an auction
type StreamMessage struct {
	Type    string       `json:"type"` // "snapshot" or "closed"
	Address string       `json:"address"`
	Auction *AuctionView `json:"auction,omitempty"`
}

type wsClient struct {
	conn    *websocket.Conn
	mu      sync.Mutex
	auction solana.PublicKey
}

func (c *wsClient) send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub streams auction snapshots to websocket clients subscribed with
// /ws?auction=<address>
type Hub struct {
	program  *auction.Program
	upgrader websocket.Upgrader
	log      *slog.Logger

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
}

// NewHub creates a hub. Origins listed in allowedOrigins may connect; "*"
// allows any origin.
func NewHub(program *auction.Program, allowedOrigins []string, log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	h := &Hub{
		program: program,
		log:     log.With("pkg", "stream"),
		clients: make(map[*wsClient]struct{}),
	}
	h.upgrader = websocket.Upgrader{CheckOrigin: originChecker(allowedOrigins)}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

// ServeWS upgrades the connection and subscribes it to one auction
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	addr, err := solana.PublicKeyFromBase58(r.URL.Query().Get("auction"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid auction address")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("failed to upgrade connection", "err", err)
		return
	}

	client := &wsClient{conn: conn, auction: addr}
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()

	// Send the current state right away
	if data, err := h.message(r.Context(), addr); err == nil {
		if err := client.send(data); err != nil {
			h.drop(client)
			return
		}
	}

	// Keep connection alive and handle disconnection
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.drop(client)
			return
		}
	}
}

func (h *Hub) drop(c *wsClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		c.conn.Close()
	}
}

func (h *Hub) message(ctx context.Context, addr solana.PublicKey) ([]byte, error) {
	msg := StreamMessage{Type: "snapshot", Address: addr.String()}
	snap, err := h.program.Auction(ctx, addr)
	switch {
	case errors.Is(err, auction.ErrAuctionNotFound):
		msg.Type = "closed"
	case err != nil:
		return nil, err
	default:
		view := NewAuctionView(snap)
		msg.Auction = &view
	}
	return json.Marshal(msg)
}

func (h *Hub) subscribers(addr solana.PublicKey) []*wsClient {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []*wsClient
	for c := range h.clients {
		if c.auction.Equals(addr) {
			out = append(out, c)
		}
	}
	return out
}

// Publish pushes the current state of addr to its subscribers
func (h *Hub) Publish(ctx context.Context, addr solana.PublicKey) {
	clients := h.subscribers(addr)
	if len(clients) == 0 {
		return
	}
	data, err := h.message(ctx, addr)
	if err != nil {
		h.log.Error("failed to build snapshot", "auction", addr, "err", err)
		return
	}
	for _, c := range clients {
		if err := c.send(data); err != nil {
			h.log.Debug("failed to send message", "err", err)
			h.drop(c)
		}
	}
}

// Run rebroadcasts every subscribed auction each interval until ctx is done,
// so subscribers see deadlines pass without a mutation
func (h *Hub) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-ticker.C:
			for _, addr := range h.subscribed() {
				h.Publish(ctx, addr)
			}
		}
	}
}

func (h *Hub) subscribed() []solana.PublicKey {
	h.mu.RLock()
	defer h.mu.RUnlock()
	seen := make(map[solana.PublicKey]struct{})
	var out []solana.PublicKey
	for c := range h.clients {
		if _, ok := seen[c.auction]; !ok {
			seen[c.auction] = struct{}{}
			out = append(out, c.auction)
		}
	}
	return out
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.conn.Close()
		delete(h.clients, c)
	}
}

// Subscribers reports how many clients are connected
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
