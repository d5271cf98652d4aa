package db

import "fmt"

// schemaStatements creates every table the messenger uses. Messages cluster
// ascending on the snowflake id, so a plain partition read returns stored
// order and the last message is an ORDER BY ... DESC LIMIT 1.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id text PRIMARY KEY,
		email text,
		name text,
		image text,
		hashed_password text,
		created_at timestamp
	)`,
	`CREATE TABLE IF NOT EXISTS users_by_email (
		email text PRIMARY KEY,
		user_id text
	)`,
	`CREATE TABLE IF NOT EXISTS conversations (
		id text PRIMARY KEY,
		name text,
		is_group boolean,
		user_ids set<text>,
		last_message_at timestamp,
		created_at timestamp
	)`,
	`CREATE TABLE IF NOT EXISTS user_conversations (
		user_id text,
		conversation_id text,
		PRIMARY KEY (user_id, conversation_id)
	)`,
	`CREATE TABLE IF NOT EXISTS conversation_counters (
		user_id text,
		conversation_id text,
		unread_count counter,
		PRIMARY KEY (user_id, conversation_id)
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		conversation_id text,
		id bigint,
		sender_id text,
		sender_email text,
		sender_name text,
		body text,
		image text,
		seen_by set<text>,
		created_at timestamp,
		PRIMARY KEY (conversation_id, id)
	) WITH CLUSTERING ORDER BY (id ASC)`,
}

// EnsureKeyspace creates the messenger keyspace. The session must be
// connected to the system keyspace.
func EnsureKeyspace(sys *Session) error {
	q := fmt.Sprintf(`CREATE KEYSPACE IF NOT EXISTS %s WITH REPLICATION = { 'class' : 'SimpleStrategy', 'replication_factor' : 1 }`, Keyspace)
	return sys.Query(q).Exec()
}

// EnsureSchema creates every table if missing.
func EnsureSchema(s *Session) error {
	for _, stmt := range schemaStatements {
		if err := s.Query(stmt).Exec(); err != nil {
			return err
		}
	}
	return nil
}
