package main

import (
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dexC166/dex-real-time-messenger-sub000/pkg/db"
	"github.com/dexC166/dex-real-time-messenger-sub000/pkg/events"
	"github.com/dexC166/dex-real-time-messenger-sub000/pkg/snowflake"
)

// snowflakeNodeID reads SNOWFLAKE_NODE_ID, defaulting to 1 for single-node
// deployments.
func snowflakeNodeID() int64 {
	v := os.Getenv("SNOWFLAKE_NODE_ID")
	if v == "" {
		return 1
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		log.Fatalf("Invalid SNOWFLAKE_NODE_ID %q: %v", v, err)
	}
	return n
}

func main() {
	scyllaHostsStr := os.Getenv("SCYLLA_HOSTS")
	if scyllaHostsStr == "" {
		scyllaHostsStr = "localhost:9042"
	}
	scyllaHosts := strings.Split(scyllaHostsStr, ",")

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	kafkaBrokersStr := os.Getenv("KAFKA_BROKERS")
	if kafkaBrokersStr == "" {
		kafkaBrokersStr = "localhost:19092"
	}
	kafkaBrokers := strings.Split(kafkaBrokersStr, ",")

	kafkaTopic := os.Getenv("KAFKA_TOPIC")
	if kafkaTopic == "" {
		kafkaTopic = "messenger-events"
	}

	session, err := db.NewSession(scyllaHosts, db.Keyspace)
	if err != nil {
		log.Fatalf("Failed to connect to ScyllaDB: %v", err)
	}
	defer session.Close()

	users := db.NewUsersStore(session)
	conversations := db.NewConversationsStore(session, users)
	messages := db.NewMessagesStore(session, users)

	publisher := events.NewPublisher(kafkaBrokers, kafkaTopic)
	defer publisher.Close()

	// The node id must be unique per API instance or two instances mint
	// colliding message ids.
	node, err := snowflake.NewNode(snowflakeNodeID())
	if err != nil {
		log.Fatalf("Failed to initialize snowflake node: %v", err)
	}

	limiter := NewLimiterStore(10, 5, 5*time.Minute)

	// Public endpoints
	http.Handle("/register", CORSMiddleware(RateLimitMiddleware(limiter, RegisterHandler(users))))
	http.Handle("/login", CORSMiddleware(RateLimitMiddleware(limiter, LoginHandler(users))))

	// Protected endpoints
	http.Handle("/settings", CORSMiddleware(AuthMiddleware(SettingsHandler(users))))
	http.Handle("/users", CORSMiddleware(AuthMiddleware(UsersHandler(users))))

	conversationsHandler := NewConversationsHandler(conversations, messages, publisher)
	http.Handle("/conversations", CORSMiddleware(AuthMiddleware(conversationsHandler)))
	http.Handle("/conversations/", CORSMiddleware(AuthMiddleware(conversationsHandler)))

	messagesHandler := NewMessagesHandler(conversations, messages, publisher, node)
	http.Handle("/messages", CORSMiddleware(AuthMiddleware(messagesHandler)))

	presenceHandler := NewPresenceHandler(redisAddr)
	http.Handle("/presence", CORSMiddleware(AuthMiddleware(presenceHandler)))

	addr := os.Getenv("API_ADDR")
	if addr == "" {
		addr = ":8081"
	}

	log.Printf("API Service Starting on %s...", addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatal(err)
	}
}
