package websocket

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"picfeed/models"

	"github.com/gorilla/websocket"
)

const (
	EventConnected     = "connected"
	EventPostCreated   = "post_created"
	EventPostLiked     = "post_liked"
	EventPostCommented = "post_commented"
	EventPong          = "pong"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 256
)

// Event is the envelope of every message pushed to feed clients.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type LikesPayload struct {
	PostID string        `json:"postId"`
	Likes  []models.Like `json:"likes"`
}

type CommentsPayload struct {
	PostID   string           `json:"postId"`
	Comments []models.Comment `json:"comments"`
}

type Manager struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	quit       chan struct{}
	mu         sync.RWMutex
}

type Client struct {
	conn    *websocket.Conn
	userID  string
	send    chan []byte
	manager *Manager
}

func NewManager() *Manager {
	return &Manager{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, sendBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
	}
}

// Start runs the hub loop until Stop is called.
func (m *Manager) Start() {
	for {
		select {
		case client := <-m.register:
			m.mu.Lock()
			m.clients[client] = true
			total := len(m.clients)
			m.mu.Unlock()
			log.Printf("✅ WebSocket client registered. Total clients: %d", total)

		case client := <-m.unregister:
			m.mu.Lock()
			if _, ok := m.clients[client]; ok {
				delete(m.clients, client)
				close(client.send)
			}
			total := len(m.clients)
			m.mu.Unlock()
			log.Printf("❌ WebSocket client unregistered. Total clients: %d", total)

		case message := <-m.broadcast:
			m.mu.Lock()
			for client := range m.clients {
				select {
				case client.send <- message:
				default:
					// slow consumer
					close(client.send)
					delete(m.clients, client)
				}
			}
			m.mu.Unlock()

		case <-m.quit:
			m.mu.Lock()
			for client := range m.clients {
				close(client.send)
				delete(m.clients, client)
			}
			m.mu.Unlock()
			return
		}
	}
}

func (m *Manager) Stop() {
	close(m.quit)
}

func (m *Manager) GetConnectedUsers() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// Broadcast queues an event for every connected client. It never blocks the
// caller: when the queue is full the event is dropped.
func (m *Manager) Broadcast(eventType string, payload interface{}) {
	msg, err := json.Marshal(Event{Type: eventType, Payload: payload})
	if err != nil {
		log.Printf("❌ Error marshaling WebSocket message: %v", err)
		return
	}

	select {
	case m.broadcast <- msg:
	default:
		log.Printf("⚠️ WebSocket broadcast queue full, dropping %s", eventType)
	}
}

func (m *Manager) BroadcastPostCreated(post models.Post) {
	m.Broadcast(EventPostCreated, post)
}

func (m *Manager) BroadcastPostLiked(postID string, likes []models.Like) {
	m.Broadcast(EventPostLiked, LikesPayload{PostID: postID, Likes: likes})
}

func (m *Manager) BroadcastPostCommented(postID string, comments []models.Comment) {
	m.Broadcast(EventPostCommented, CommentsPayload{PostID: postID, Comments: comments})
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// ServeWS upgrades an already authenticated request and attaches the
// connection to the hub.
func ServeWS(manager *Manager, w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("❌ WebSocket upgrade failed: %v", err)
		return
	}

	client := &Client{
		conn:    conn,
		userID:  userID,
		send:    make(chan []byte, sendBuffer),
		manager: manager,
	}

	welcome, _ := json.Marshal(Event{
		Type: EventConnected,
		Payload: map[string]interface{}{
			"userId": userID,
			"time":   time.Now().Unix(),
		},
	})
	client.send <- welcome

	select {
	case manager.register <- client:
	case <-manager.quit:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.manager.unregister <- c:
		case <-c.manager.quit:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("❌ WebSocket read error: %v", err)
			}
			return
		}

		var data struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(message, &data); err != nil {
			continue
		}

		if data.Type == "ping" {
			c.sendPong()
		}
	}
}

func (c *Client) writePump() {
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

func (c *Client) sendPong() {
	msg, err := json.Marshal(Event{
		Type:    EventPong,
		Payload: map[string]interface{}{"time": time.Now().Unix()},
	})
	if err != nil {
		return
	}

	// The hub closes send under the write lock, so holding the read lock
	// while the client is still registered makes the send safe.
	c.manager.mu.RLock()
	defer c.manager.mu.RUnlock()
	if !c.manager.clients[c] {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}
