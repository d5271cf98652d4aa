package main

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/dexC166/dex-real-time-messenger-sub000/pkg/events"
)

// presenceConnKey counts open presence subscriptions per member email.
// Refcounting keeps a user present while any of their tabs holds a
// subscription, across all gateway nodes.
const presenceConnKey = events.PresenceConnectionsKey

type subRequest struct {
	client  *Client
	channel string
}

// Hub routes event envelopes from the fan-out topic to the local clients
// subscribed to each envelope's channel, and maintains presence membership
// in Redis.
type Hub struct {
	mu            sync.RWMutex
	subscriptions map[string]map[*Client]bool // channel -> clients

	register    chan *Client
	unregister  chan *Client
	subscribe   chan subRequest
	unsubscribe chan subRequest

	publisher *events.Publisher
	redis     *redis.Client
}

func NewHub(kafkaBrokers []string, topic string, redisAddr string) *Hub {
	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	// Every gateway node consumes the whole topic under its own group id so
	// an envelope reaches subscribers on every node.
	consumer := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     kafkaBrokers,
		Topic:       topic,
		GroupID:     "gateway-group-" + time.Now().Format(time.RFC3339Nano),
		StartOffset: kafka.LastOffset,
		MinBytes:    10e3,
		MaxBytes:    10e6,
	})

	h := &Hub{
		subscriptions: make(map[string]map[*Client]bool),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		subscribe:     make(chan subRequest),
		unsubscribe:   make(chan subRequest),
		publisher:     events.NewPublisher(kafkaBrokers, topic),
		redis:         rdb,
	}

	go func() {
		defer consumer.Close()
		for {
			m, err := consumer.ReadMessage(context.Background())
			if err != nil {
				log.Printf("Gateway consumer error: %v", err)
				break
			}

			var env events.Envelope
			if err := json.Unmarshal(m.Value, &env); err != nil {
				log.Printf("Failed to unmarshal envelope from Kafka: %v", err)
				continue
			}

			h.fanout(env.Channel, m.Value)
		}
	}()

	return h
}

func (h *Hub) Run() {
	defer h.publisher.Close()
	defer h.redis.Close()

	for {
		select {
		case client := <-h.register:
			log.Printf("Client connected: %s", client.email)

		case client := <-h.unregister:
			h.mu.Lock()
			channels := make([]string, 0, len(client.channels))
			for channel := range client.channels {
				channels = append(channels, channel)
			}
			for _, channel := range channels {
				if h.dropSubscription(client, channel) {
					go h.presenceLeave(client)
				}
			}
			if !client.closed {
				client.closed = true
				close(client.send)
			}
			h.mu.Unlock()
			log.Printf("Client disconnected: %s", client.email)

		case req := <-h.subscribe:
			h.mu.Lock()
			added := h.addSubscription(req.client, req.channel)
			h.mu.Unlock()
			if !added {
				// Duplicate subscribe on one connection is a no-op; in
				// particular it must not bump the presence refcount again.
				continue
			}

			if events.IsPresence(req.channel) {
				h.presenceJoin(req.client)
			}
			log.Printf("Client %s subscribed to %s", req.client.email, req.channel)

		case req := <-h.unsubscribe:
			h.mu.Lock()
			left := h.dropSubscription(req.client, req.channel)
			h.mu.Unlock()
			if left {
				go h.presenceLeave(req.client)
			}
		}
	}
}

// fanout delivers a raw envelope frame to every local subscriber of the
// channel. A client whose send buffer is full is dropped rather than
// allowed to stall delivery.
func (h *Hub) fanout(channel string, raw []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := h.subscriptions[channel]
	for client := range clients {
		select {
		case client.send <- raw:
		default:
			channels := make([]string, 0, len(client.channels))
			for ch := range client.channels {
				channels = append(channels, ch)
			}
			for _, ch := range channels {
				if h.dropSubscription(client, ch) {
					go h.presenceLeave(client)
				}
			}
			if !client.closed {
				client.closed = true
				close(client.send)
			}
		}
	}
}

// addSubscription must be called with h.mu held. It reports whether the
// subscription is new for this client.
func (h *Hub) addSubscription(client *Client, channel string) bool {
	if client.channels[channel] {
		return false
	}
	if h.subscriptions[channel] == nil {
		h.subscriptions[channel] = make(map[*Client]bool)
	}
	h.subscriptions[channel][client] = true
	client.channels[channel] = true
	return true
}

// dropSubscription must be called with h.mu held. It reports whether the
// client held a presence subscription that now owes a leave; the caller runs
// presenceLeave detached since it talks to Redis and Kafka.
func (h *Hub) dropSubscription(client *Client, channel string) bool {
	if clients, ok := h.subscriptions[channel]; ok {
		if clients[client] {
			delete(clients, client)
			if len(clients) == 0 {
				delete(h.subscriptions, channel)
			}
		}
	}
	if client.channels[channel] {
		delete(client.channels, channel)
		return events.IsPresence(channel)
	}
	return false
}

// presenceJoin refcounts the member's subscription, replies with the full
// member list, and announces the join cluster-wide on the first connection.
func (h *Hub) presenceJoin(client *Client) {
	ctx := context.Background()

	n, err := h.redis.HIncrBy(ctx, presenceConnKey, client.email, 1).Result()
	if err != nil {
		log.Printf("Failed to record presence for %s: %v", client.email, err)
	}

	memberKeys, err := h.redis.HKeys(ctx, presenceConnKey).Result()
	if err != nil {
		log.Printf("Failed to read presence members: %v", err)
	}
	members := make([]events.Member, 0, len(memberKeys))
	for _, k := range memberKeys {
		members = append(members, events.Member{ID: k})
	}

	// subscription_succeeded goes straight to the subscriber, not through
	// the fan-out topic.
	client.sendEvent(events.PresenceChannel, events.SubscriptionSucceeded, events.MemberList{Members: members})

	if n == 1 {
		if err := h.publisher.Trigger(ctx, events.PresenceChannel, events.MemberAdded, events.Member{ID: client.email}); err != nil {
			log.Printf("Failed to announce presence join for %s: %v", client.email, err)
		}
	}
}

// presenceLeave decrements the member's refcount and announces the leave
// once the last subscription is gone.
func (h *Hub) presenceLeave(client *Client) {
	ctx := context.Background()

	n, err := h.redis.HIncrBy(ctx, presenceConnKey, client.email, -1).Result()
	if err != nil {
		log.Printf("Failed to clear presence for %s: %v", client.email, err)
		return
	}
	if n > 0 {
		return
	}

	if err := h.redis.HDel(ctx, presenceConnKey, client.email).Err(); err != nil {
		log.Printf("Failed to delete presence entry for %s: %v", client.email, err)
	}
	if err := h.publisher.Trigger(ctx, events.PresenceChannel, events.MemberRemoved, events.Member{ID: client.email}); err != nil {
		log.Printf("Failed to announce presence leave for %s: %v", client.email, err)
	}
}
