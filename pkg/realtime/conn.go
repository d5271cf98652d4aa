package realtime

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dexC166/dex-real-time-messenger-sub000/pkg/events"
)

const (
	actionSubscribe   = "subscribe"
	actionUnsubscribe = "unsubscribe"

	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
	pingEvery = (pongWait * 9) / 10
)

// controlFrame is the upward frame a client sends to manage subscriptions.
type controlFrame struct {
	Action  string `json:"action"`
	Channel string `json:"channel"`
}

// Conn is a client connection to the gateway. It owns the read loop, which
// decodes event envelopes and dispatches them to channel bindings one at a
// time.
type Conn struct {
	ws *websocket.Conn

	writeMu sync.Mutex
	mu      sync.Mutex
	chans   map[string]*channel

	done chan struct{}
	once sync.Once
}

// Dial connects to the gateway websocket endpoint, authenticating with the
// bearer token.
func Dial(wsURL, token string) (*Conn, error) {
	header := http.Header{}
	header.Add("Authorization", "Bearer "+token)

	ws, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		return nil, err
	}

	c := &Conn{
		ws:    ws,
		chans: make(map[string]*channel),
		done:  make(chan struct{}),
	}
	go c.readLoop()
	go c.pingLoop()
	return c, nil
}

// Channel returns the handle for a named channel, creating it on first use.
// The handle exists before any subscribe frame is sent, so callers bind
// handlers first and subscribe after.
func (c *Conn) Channel(name string) Channel {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch, ok := c.chans[name]
	if !ok {
		ch = newChannel(name, c)
		c.chans[name] = ch
	}
	return ch
}

// release drops an unsubscribed channel from the map once it holds no
// bindings, so a long session does not accumulate dead channel objects. A
// later Channel call for the same name starts fresh.
func (c *Conn) release(ch *channel) {
	if !ch.empty() {
		return
	}
	c.mu.Lock()
	if c.chans[ch.name] == ch {
		delete(c.chans, ch.name)
	}
	c.mu.Unlock()
}

// Done is closed when the connection terminates.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Close tears the connection down. Safe to call more than once.
func (c *Conn) Close() error {
	var err error
	c.once.Do(func() {
		c.writeMu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
		c.writeMu.Unlock()
		err = c.ws.Close()
	})
	return err
}

func (c *Conn) sendControl(action, channelName string) error {
	frame := controlFrame{Action: action, Channel: channelName}
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *Conn) readLoop() {
	defer close(c.done)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("realtime: read error: %v", err)
			}
			return
		}

		var env events.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Printf("realtime: bad envelope: %v", err)
			continue
		}

		c.mu.Lock()
		ch := c.chans[env.Channel]
		c.mu.Unlock()
		if ch != nil {
			ch.dispatch(env.Event, env.Data)
		}
	}
}

func (c *Conn) pingLoop() {
	ticker := time.NewTicker(pingEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
