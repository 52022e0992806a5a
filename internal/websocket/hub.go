package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/proteindock/api/internal/model"
)

// Client is the one WebSocket subscriber of a project's event stream
type Client struct {
	Project string
	Conn    *websocket.Conn
	Send    chan []byte
}

// Hub routes job events to per-project subscribers. Each project has at most
// one subscriber; a newer connection replaces the older one. Event
// production never waits for a subscriber: with none attached, or a slow
// one, events are dropped.
type Hub struct {
	clients map[string]*Client

	register   chan *Client
	unregister chan *Client
	broadcast  chan *projectMessage

	mu sync.RWMutex
}

type projectMessage struct {
	Project string
	Message []byte
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *projectMessage, 256),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if prev, ok := h.clients[client.Project]; ok {
				close(prev.Send)
			}
			h.clients[client.Project] = client
			h.mu.Unlock()
			log.Printf("Subscriber attached to project %s", client.Project)

		case client := <-h.unregister:
			h.mu.Lock()
			if cur, ok := h.clients[client.Project]; ok && cur == client {
				delete(h.clients, client.Project)
				close(client.Send)
			}
			h.mu.Unlock()
			log.Printf("Subscriber detached from project %s", client.Project)

		case msg := <-h.broadcast:
			h.mu.RLock()
			if client, ok := h.clients[msg.Project]; ok {
				select {
				case client.Send <- msg.Message:
				default:
					// Slow subscriber: drop rather than back-pressure the
					// monitor.
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Publish pushes one event onto a project's stream. Never blocks the caller.
func (h *Hub) Publish(project string, ev model.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("Failed to marshal %s event: %v", ev.Kind(), err)
		return
	}
	select {
	case h.broadcast <- &projectMessage{Project: project, Message: data}:
	default:
		log.Printf("Hub backlog full, dropping %s event for project %s", ev.Kind(), project)
	}
}

// HandleConnection serves one subscriber until the terminal event or
// connection loss. There is no replay: a reconnecting client polls final
// state over HTTP.
func (h *Hub) HandleConnection(c *websocket.Conn, project string) {
	client := &Client{
		Project: project,
		Conn:    c,
		Send:    make(chan []byte, 256),
	}

	h.register <- client
	defer func() { h.unregister <- client }()

	// Writer goroutine with keep-alive pings
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case message, ok := <-client.Send:
				if !ok {
					c.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
					return
				}

			case <-ticker.C:
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	// Reader loop: the stream is one-way, so reads only detect disconnects
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}
	}
}
