package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/monocle-dev/staffing/internal/events"
	"github.com/monocle-dev/staffing/internal/utils"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 16
)

// client is one websocket connection. Only its write pump touches conn for
// writing; send is closed once by the hub when the client is dropped.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

func newClient(conn *websocket.Conn) *client {
	return &client{conn: conn, send: make(chan []byte, sendBuffer)}
}

// writePump drains the send buffer and keeps the connection alive with pings.
// It closes the connection when the buffer is closed or a write fails.
func (c *client) writePump(projectID uint) {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}

			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("Failed to write to client of project %d: %v", projectID, err)
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}

			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("Ping failed for project %d: %v", projectID, err)
				return
			}
		}
	}
}

// Hub fans assignment changes out to the websocket clients watching a project.
type Hub struct {
	origins  []string
	clients  map[uint]map[*client]bool
	mu       sync.RWMutex
	upgrader websocket.Upgrader
}

func NewHub(origins []string) *Hub {
	h := &Hub{
		origins: origins,
		clients: make(map[uint]map[*client]bool),
	}

	h.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return slices.Contains(h.origins, r.Header.Get("Origin"))
		},
	}

	return h
}

// Clients returns the number of connections watching a project.
func (h *Hub) Clients(projectID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients[projectID])
}

func (h *Hub) register(projectID uint, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[projectID] == nil {
		h.clients[projectID] = make(map[*client]bool)
	}
	h.clients[projectID][c] = true
}

// unregister removes the client and closes its send buffer. Closing happens
// under the write lock and only for registered clients, so Publish never
// sends on a closed channel and repeated calls are harmless.
func (h *Hub) unregister(projectID uint, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, exists := h.clients[projectID]
	if !exists || !clients[c] {
		return
	}

	delete(clients, c)
	close(c.send)

	if len(clients) == 0 {
		delete(h.clients, projectID)
	}
}

// Publish queues the change for every client of its project without waiting
// on any socket. Clients whose buffer is full are dropped.
func (h *Hub) Publish(_ context.Context, change events.Change) {
	message, err := json.Marshal(gin.H{
		"type":       "assignments",
		"project_id": change.ProjectID,
		"change":     change,
	})
	if err != nil {
		log.Printf("Failed to encode change for project %d: %v", change.ProjectID, err)
		return
	}

	var slow []*client

	h.mu.RLock()
	for c := range h.clients[change.ProjectID] {
		select {
		case c.send <- message:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		log.Printf("Dropping slow client of project %d", change.ProjectID)
		h.unregister(change.ProjectID, c)
	}
}

// WebSocket upgrades the request and streams the project's changes until the
// client goes away.
func (h *Hub) WebSocket(ctx *gin.Context) {
	projectID, err := utils.GetProjectID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	conn, err := h.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	conn.SetReadLimit(maxMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.Printf("Failed to set initial read deadline: %v", err)
		conn.Close()
		return
	}
	conn.SetPongHandler(func(string) error {
		if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			log.Printf("Failed to set read deadline in pong handler: %v", err)
		}
		return nil
	})

	welcome, err := json.Marshal(gin.H{
		"type":       "connected",
		"message":    "WebSocket connection established",
		"project_id": projectID,
	})
	if err != nil {
		log.Printf("Failed to encode welcome message: %v", err)
		conn.Close()
		return
	}

	c := newClient(conn)
	c.send <- welcome
	h.register(projectID, c)

	go c.writePump(projectID)

	defer func() {
		h.unregister(projectID, c)
		conn.Close()

		log.Printf("WebSocket connection closed for project %d", projectID)
	}()

	for {
		if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			log.Printf("Failed to set read deadline for project %d: %v", projectID, err)
			break
		}

		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error for project %d: %v", projectID, err)
			}
			break
		}

		if messageType == websocket.TextMessage {
			log.Printf("Received message from client in project %d: %s", projectID, string(message))
		}
	}
}
