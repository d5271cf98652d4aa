package main

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/dexC166/dex-real-time-messenger-sub000/pkg/db"
	"github.com/dexC166/dex-real-time-messenger-sub000/pkg/events"
	"github.com/dexC166/dex-real-time-messenger-sub000/pkg/model"
)

// Consumer projects messages:new events into the derived read models: the
// conversation's last-activity timestamp (list ordering) and each
// recipient's unread counter. The projector is best-effort; a failed
// projection is logged and the event skipped, never retried into a stall.
type Consumer struct {
	reader        *kafka.Reader
	conversations *db.ConversationsStore
}

func NewConsumer(brokers []string, topic string, groupID string, conversations *db.ConversationsStore) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})

	return &Consumer{reader: r, conversations: conversations}
}

func (c *Consumer) Consume(ctx context.Context) {
	for {
		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			log.Printf("Error reading message: %v. Retrying in 1s...", err)
			time.Sleep(1 * time.Second)
			continue
		}

		var env events.Envelope
		if err := json.Unmarshal(m.Value, &env); err != nil {
			log.Printf("Failed to unmarshal envelope: %v", err)
			continue
		}

		// Only messages:new on conversation channels drives projections;
		// presence and user-channel events are ephemeral.
		if env.Event != events.MessageNew {
			continue
		}
		conversationID, ok := events.ConversationID(env.Channel)
		if !ok {
			continue
		}

		var msg model.Message
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			log.Printf("Failed to unmarshal messages:new payload: %v", err)
			continue
		}

		c.project(ctx, conversationID, &msg)
	}
}

func (c *Consumer) project(ctx context.Context, conversationID string, msg *model.Message) {
	if err := c.conversations.TouchLastMessage(ctx, conversationID, msg.CreatedAt); err != nil {
		log.Printf("Failed to bump last_message_at for %s: %v", conversationID, err)
	}

	conv, err := c.conversations.Get(ctx, conversationID)
	if err != nil {
		log.Printf("Failed to load conversation %s: %v", conversationID, err)
		return
	}

	for i := range conv.Users {
		if conv.Users[i].ID == msg.SenderID {
			continue
		}
		if err := c.conversations.IncrementUnread(ctx, conv.Users[i].ID, conversationID); err != nil {
			log.Printf("Failed to increment unread count for %s: %v", conv.Users[i].ID, err)
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
