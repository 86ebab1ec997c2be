package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/signn/internal/log"
)

const (
	// OutboxSize bounds console messages waiting for the broadcaster.
	OutboxSize = 64
	// clientBuffer bounds messages waiting for one slow client.
	clientBuffer = 16

	writeTimeout = 5 * time.Second
	pingInterval = 30 * time.Second
	pongTimeout  = 2 * pingInterval
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// ConsoleMessage mirrors one Surface call.
type ConsoleMessage struct {
	Type string `json:"type"`
	Line string `json:"line,omitempty"`
	Text string `json:"text,omitempty"`
}

// Message types.
const (
	MessageAppend = "append"
	MessageClear  = "clear"
	MessageText   = "text"
)

type consoleClient struct {
	conn *websocket.Conn
	send chan []byte
}

// ConsoleHub is a transcript surface that mirrors every call to connected
// WebSocket clients. Its Surface methods never block: when the outbox is
// full the new message is dropped.
type ConsoleHub struct {
	outbox chan ConsoleMessage

	mu      sync.RWMutex
	clients map[*consoleClient]struct{}
	text    string

	dropped   atomic.Uint64
	done      chan struct{}
	closeOnce sync.Once
}

// NewConsoleHub creates a hub and starts its broadcaster.
func NewConsoleHub() *ConsoleHub {
	h := &ConsoleHub{
		outbox:  make(chan ConsoleMessage, OutboxSize),
		clients: make(map[*consoleClient]struct{}),
		done:    make(chan struct{}),
	}
	go h.broadcast()
	return h
}

// Append implements coalescer.Surface.
func (h *ConsoleHub) Append(line string) {
	h.offer(ConsoleMessage{Type: MessageAppend, Line: line})
}

// Clear implements coalescer.Surface.
func (h *ConsoleHub) Clear() {
	h.mu.Lock()
	h.text = ""
	h.mu.Unlock()
	h.offer(ConsoleMessage{Type: MessageClear})
}

// SetText implements coalescer.Surface.
func (h *ConsoleHub) SetText(text string) {
	h.mu.Lock()
	h.text = text
	h.mu.Unlock()
	h.offer(ConsoleMessage{Type: MessageText, Text: text})
}

// Text returns the text last set on the hub.
func (h *ConsoleHub) Text() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.text
}

// Dropped returns how many messages were discarded because the outbox was full.
func (h *ConsoleHub) Dropped() uint64 {
	return h.dropped.Load()
}

// Clients returns the number of connected clients.
func (h *ConsoleHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *ConsoleHub) offer(msg ConsoleMessage) {
	select {
	case <-h.done:
		return
	default:
	}
	select {
	case h.outbox <- msg:
	default:
		h.dropped.Add(1)
	}
}

// ServeHTTP upgrades the request and streams console messages. A new client
// first receives the current text.
func (h *ConsoleHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn(log.Fields{"error": err.Error()}, "websocket upgrade failed")
		return
	}

	c := &consoleClient{conn: conn, send: make(chan []byte, clientBuffer)}

	h.mu.Lock()
	select {
	case <-h.done:
		h.mu.Unlock()
		conn.Close()
		return
	default:
	}
	initial, _ := json.Marshal(ConsoleMessage{Type: MessageText, Text: h.text})
	c.send <- initial
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.writePump(c)
	h.readPump(c)
}

// readPump discards client input and detects disconnects.
func (h *ConsoleHub) readPump(c *consoleClient) {
	defer h.remove(c)

	c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump is the only writer on c.conn.
func (h *ConsoleHub) writePump(c *consoleClient) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}

func (h *ConsoleHub) remove(c *consoleClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// broadcast fans outbox messages out to clients. A client whose buffer is
// full misses the message.
func (h *ConsoleHub) broadcast() {
	for {
		select {
		case <-h.done:
			return
		case msg := <-h.outbox:
			data, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.send <- data:
				default:
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Close stops the broadcaster and disconnects every client.
func (h *ConsoleHub) Close() {
	h.closeOnce.Do(func() {
		h.mu.Lock()
		close(h.done)
		for c := range h.clients {
			delete(h.clients, c)
			close(c.send)
		}
		h.mu.Unlock()
	})
}
