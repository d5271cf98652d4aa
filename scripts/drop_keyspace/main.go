package main

import (
	"fmt"
	"log"

	"github.com/dexC166/dex-real-time-messenger-sub000/pkg/db"
)

func main() {
	scyllaHosts := []string{"localhost:9042"}

	session, err := db.NewSession(scyllaHosts, "system")
	if err != nil {
		log.Fatalf("Failed to connect to ScyllaDB: %v", err)
	}
	defer session.Close()

	log.Printf("Dropping keyspace %s...", db.Keyspace)
	if err := session.Query(fmt.Sprintf("DROP KEYSPACE IF EXISTS %s", db.Keyspace)).Exec(); err != nil {
		log.Fatalf("Failed to drop keyspace: %v", err)
	}
	log.Println("Keyspace dropped successfully.")
}
