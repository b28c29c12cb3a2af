// Package progress streams batch progress to browser clients over websockets
// and serves the metrics endpoint while a batch runs.
package progress

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"nhooyr.io/websocket" //nolint:staticcheck // TODO: migrate to github.com/coder/websocket

	"github.com/cosmicdatasets/curator/internal/curation"
)

// Event types sent to clients.
const (
	EventProgress = "progress"
	EventDone     = "done"
)

// Event is one message on the progress stream.
type Event struct {
	Type    string            `json:"type"`
	RunID   string            `json:"run_id"`
	Current int               `json:"current,omitempty"`
	Total   int               `json:"total"`
	AssetID string            `json:"asset_id,omitempty"`
	Error   string            `json:"error,omitempty"`
	Summary *curation.Summary `json:"summary,omitempty"`
}

// client allows for both real connections and test clients.
type client interface {
	sendChannel() chan []byte
	close()
}

type wsClient struct {
	hub  *Hub
	conn *websocket.Conn //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
	send chan []byte
}

func (c *wsClient) sendChannel() chan []byte { return c.send }

func (c *wsClient) close() {
	_ = c.conn.Close(websocket.StatusNormalClosure, "") //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
}

// Hub fans progress events out to every connected client and remembers the
// latest event of the running batch.
type Hub struct {
	clients        map[client]bool
	broadcast      chan Event
	register       chan client
	unregister     chan client
	originPatterns []string
	mu             sync.RWMutex
	last           *Event
	ctx            context.Context
	cancel         context.CancelFunc
}

// NewHub creates a hub. originPatterns are host patterns browsers may connect
// from; requests without an Origin header are always accepted.
func NewHub(originPatterns ...string) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:        make(map[client]bool),
		broadcast:      make(chan Event, 256),
		register:       make(chan client),
		unregister:     make(chan client),
		originPatterns: originPatterns,
		ctx:            ctx,
		cancel:         cancel,
	}
}

// Run processes registrations and broadcasts until Stop is called.
func (h *Hub) Run() {
	logger := log.With().Str("component", "progress").Logger()
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			count := len(h.clients)
			h.mu.Unlock()
			logger.Debug().Int("clients", count).Msg("client connected")

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.sendChannel())
			}
			count := len(h.clients)
			h.mu.Unlock()
			logger.Debug().Int("clients", count).Msg("client disconnected")

		case ev := <-h.broadcast:
			data, err := json.Marshal(ev)
			if err != nil {
				logger.Error().Err(err).Msg("failed to marshal progress event")
				continue
			}

			// full Lock: slow clients are dropped from the map
			h.mu.Lock()
			for c := range h.clients {
				ch := c.sendChannel()
				select {
				case ch <- data:
				default:
					close(ch)
					delete(h.clients, c)
				}
			}
			h.mu.Unlock()

		case <-h.ctx.Done():
			return
		}
	}
}

// Stop disconnects every client and ends Run.
func (h *Hub) Stop() {
	h.cancel()

	h.mu.Lock()
	for c := range h.clients {
		close(c.sendChannel())
		c.close()
	}
	h.clients = make(map[client]bool)
	h.mu.Unlock()
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Current returns the latest event of the running batch, or nil when no
// batch is in flight.
func (h *Hub) Current() *Event {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.last == nil {
		return nil
	}
	ev := *h.last
	return &ev
}

// PublishProgress broadcasts one batch item outcome.
func (h *Hub) PublishProgress(p curation.Progress) {
	ev := Event{Type: EventProgress, RunID: p.RunID, Current: p.Current, Total: p.Total, AssetID: p.AssetID}
	if p.Err != nil {
		ev.Error = p.Err.Error()
	}
	h.mu.Lock()
	h.last = &ev
	h.mu.Unlock()
	h.publish(ev)
}

// PublishDone broadcasts the end of a batch and clears the current progress.
func (h *Hub) PublishDone(s curation.Summary) {
	h.mu.Lock()
	h.last = nil
	h.mu.Unlock()
	h.publish(Event{Type: EventDone, RunID: s.RunID, Total: s.Total, Summary: &s})
}

func (h *Hub) publish(ev Event) {
	select {
	case h.broadcast <- ev:
	default:
		log.Warn().Str("component", "progress").Msg("broadcast channel full, dropping event")
	}
}

// ServeHTTP upgrades the request to a websocket and streams events to it.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{ //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		log.Warn().Str("component", "progress").Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &wsClient{hub: h, conn: conn, send: make(chan []byte, 256)}
	select {
	case h.register <- c:
	case <-h.ctx.Done():
		c.close()
		return
	}

	go c.writePump()
	go c.readPump()
}

func (h *Hub) drop(c client) {
	select {
	case h.unregister <- c:
	case <-h.ctx.Done():
	}
}

func (c *wsClient) writePump() {
	defer func() {
		c.hub.drop(c)
		c.close()
	}()

	for message := range c.send {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := c.conn.Write(ctx, websocket.MessageText, message) //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
		cancel()
		if err != nil {
			log.Debug().Str("component", "progress").Err(err).Msg("websocket write failed")
			return
		}
	}
}

// readPump drains client messages to notice disconnects.
func (c *wsClient) readPump() {
	defer func() {
		c.hub.drop(c)
		c.close()
	}()

	for {
		if _, _, err := c.conn.Read(context.Background()); err != nil { //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
			return
		}
	}
}
