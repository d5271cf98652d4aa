package main

import (
	"context"
	"log"
	"os"
	"strings"

	"github.com/dexC166/dex-real-time-messenger-sub000/pkg/db"
)

func main() {
	kafkaBrokersStr := os.Getenv("KAFKA_BROKERS")
	if kafkaBrokersStr == "" {
		kafkaBrokersStr = "localhost:19092"
	}
	brokers := strings.Split(kafkaBrokersStr, ",")

	scyllaHostsStr := os.Getenv("SCYLLA_HOSTS")
	if scyllaHostsStr == "" {
		scyllaHostsStr = "localhost:9042"
	}
	scyllaHosts := strings.Split(scyllaHostsStr, ",")

	topic := os.Getenv("KAFKA_TOPIC")
	if topic == "" {
		topic = "messenger-events"
	}
	groupID := "messaging-service-group"

	// Schema creation belongs to migration tooling in production; for this
	// deployment the projector bootstraps it on startup.
	sysSession, err := db.NewSession(scyllaHosts, "system")
	if err != nil {
		log.Fatalf("Failed to connect to ScyllaDB system keyspace: %v", err)
	}
	if err := db.EnsureKeyspace(sysSession); err != nil {
		log.Fatalf("Failed to create keyspace: %v", err)
	}
	sysSession.Close()

	session, err := db.NewSession(scyllaHosts, db.Keyspace)
	if err != nil {
		log.Fatalf("Failed to connect to ScyllaDB %s keyspace: %v", db.Keyspace, err)
	}
	defer session.Close()

	if err := db.EnsureSchema(session); err != nil {
		log.Fatalf("Failed to create tables: %v", err)
	}

	users := db.NewUsersStore(session)
	conversations := db.NewConversationsStore(session, users)

	consumer := NewConsumer(brokers, topic, groupID, conversations)
	defer consumer.Close()

	log.Println("Starting projection consumer...")
	consumer.Consume(context.Background())
}
