package main

import (
	"log"

	"github.com/dexC166/dex-real-time-messenger-sub000/pkg/db"
)

func main() {
	scyllaHosts := []string{"localhost:9042"}

	sysSession, err := db.NewSession(scyllaHosts, "system")
	if err != nil {
		log.Fatalf("Failed to connect to ScyllaDB: %v", err)
	}
	if err := db.EnsureKeyspace(sysSession); err != nil {
		log.Fatalf("Failed to create keyspace: %v", err)
	}
	sysSession.Close()

	session, err := db.NewSession(scyllaHosts, db.Keyspace)
	if err != nil {
		log.Fatalf("Failed to connect to %s keyspace: %v", db.Keyspace, err)
	}
	defer session.Close()

	if err := db.EnsureSchema(session); err != nil {
		log.Fatalf("Failed to create tables: %v", err)
	}

	log.Println("Schema created successfully")
}
