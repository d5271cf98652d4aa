package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dexC166/dex-real-time-messenger-sub000/pkg/auth"
	"github.com/dexC166/dex-real-time-messenger-sub000/pkg/db"
	"github.com/dexC166/dex-real-time-messenger-sub000/pkg/events"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum frame size allowed from peer; clients only send control
	// frames, never message bodies.
	maxFrameSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now
	},
}

// controlFrame is the only upward frame kind: subscription management.
// Message sending goes through the API routes, not the socket.
type controlFrame struct {
	Action  string `json:"action"`
	Channel string `json:"channel"`
}

// Client is a middleman between one websocket connection and the hub.
type Client struct {
	hub  *Hub
	conn *websocket.Conn

	// Buffered channel of outbound frames.
	send chan []byte

	userID string
	email  string

	// channels and closed are guarded by hub.mu.
	channels map[string]bool
	closed   bool

	conversations *db.ConversationsStore
}

// canSubscribe authorizes one channel for this principal: conversation
// channels require membership, user channels belong to their owner, the
// presence channel is open to any authenticated client.
func (c *Client) canSubscribe(channel string) bool {
	if events.IsPresence(channel) {
		return true
	}
	if email, ok := events.UserEmail(channel); ok {
		return email == c.email
	}
	if convID, ok := events.ConversationID(channel); ok {
		member, err := c.conversations.IsMember(context.Background(), convID, c.userID)
		if err != nil {
			log.Printf("Membership check failed for %s on %s: %v", c.email, channel, err)
			return false
		}
		return member
	}
	return false
}

// sendEvent marshals an envelope and queues it for this client only.
func (c *Client) sendEvent(channel, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Failed to marshal %s payload: %v", event, err)
		return
	}
	raw, err := json.Marshal(events.Envelope{Channel: channel, Event: event, Data: data})
	if err != nil {
		log.Printf("Failed to marshal envelope: %v", err)
		return
	}
	select {
	case c.send <- raw:
	default:
	}
}

// readPump pumps subscription frames from the websocket to the hub.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxFrameSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("error: %v", err)
			}
			break
		}

		var ctrl controlFrame
		if err := json.Unmarshal(frame, &ctrl); err != nil || ctrl.Channel == "" {
			log.Printf("Ignoring malformed frame from %s", c.email)
			continue
		}

		switch ctrl.Action {
		case "subscribe":
			if !c.canSubscribe(ctrl.Channel) {
				log.Printf("Denied subscription of %s to %s", c.email, ctrl.Channel)
				continue
			}
			c.hub.subscribe <- subRequest{client: c, channel: ctrl.Channel}
		case "unsubscribe":
			c.hub.unsubscribe <- subRequest{client: c, channel: ctrl.Channel}
		default:
			log.Printf("Unknown action %q from %s", ctrl.Action, c.email)
		}
	}
}

// writePump pumps frames from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
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

// serveWs authenticates and upgrades a websocket request.
func serveWs(hub *Hub, conversations *db.ConversationsStore, w http.ResponseWriter, r *http.Request) {
	tokenString := r.Header.Get("Authorization")
	if tokenString == "" {
		// Query param fallback for browser websocket clients.
		tokenString = r.URL.Query().Get("token")
	}

	if tokenString == "" {
		log.Println("Unauthorized: No token provided")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if len(tokenString) > 7 && tokenString[:7] == "Bearer " {
		tokenString = tokenString[7:]
	}

	claims, err := auth.ValidateToken(tokenString)
	if err != nil {
		log.Printf("Unauthorized: Invalid token: %v", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}

	client := &Client{
		hub:           hub,
		conn:          conn,
		send:          make(chan []byte, 256),
		userID:        claims.UserID,
		email:         claims.Email,
		channels:      make(map[string]bool),
		conversations: conversations,
	}
	client.hub.register <- client

	go client.writePump()
	go client.readPump()
}
