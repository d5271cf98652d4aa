package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
)

// Smoke test against a running API: register two accounts, open a
// conversation, send a message, acknowledge the read receipt.

var apiAddr = "http://localhost:8081"

func post(path, token string, body map[string]interface{}) map[string]interface{} {
	data, _ := json.Marshal(body)
	req, _ := http.NewRequest("POST", apiAddr+path, bytes.NewBuffer(data))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Add("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("POST %s failed: %v", path, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		log.Printf("POST %s: %d %s", path, resp.StatusCode, string(raw))
		return nil
	}

	var out map[string]interface{}
	_ = json.Unmarshal(raw, &out)
	return out
}

func main() {
	// Registration may 400 on rerun; login is the real assertion.
	post("/register", "", map[string]interface{}{"email": "alice@test.local", "name": "Alice", "password": "secret1"})
	post("/register", "", map[string]interface{}{"email": "bob@test.local", "name": "Bob", "password": "secret1"})

	alice := post("/login", "", map[string]interface{}{"email": "alice@test.local", "password": "secret1"})
	if alice == nil {
		log.Fatal("alice login failed")
	}
	aliceToken := alice["token"].(string)
	fmt.Printf("Alice token: %s...\n", aliceToken[:10])

	bob := post("/login", "", map[string]interface{}{"email": "bob@test.local", "password": "secret1"})
	if bob == nil {
		log.Fatal("bob login failed")
	}
	bobToken := bob["token"].(string)

	// Find Bob's id through the people picker.
	req, _ := http.NewRequest("GET", apiAddr+"/users", nil)
	req.Header.Add("Authorization", "Bearer "+aliceToken)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal("users request failed:", err)
	}
	defer resp.Body.Close()
	var users []map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&users); err != nil {
		log.Fatal(err)
	}
	var bobID string
	for _, u := range users {
		if u["email"] == "bob@test.local" {
			bobID = u["id"].(string)
		}
	}
	if bobID == "" {
		log.Fatal("bob not found in /users")
	}

	conv := post("/conversations", aliceToken, map[string]interface{}{"userId": bobID})
	if conv == nil {
		log.Fatal("conversation create failed")
	}
	convID := conv["id"].(string)
	log.Printf("Conversation: %s", convID)

	msg := post("/messages", aliceToken, map[string]interface{}{"conversationId": convID, "body": "hello bob"})
	if msg == nil {
		log.Fatal("message create failed")
	}
	log.Printf("Message sent: %v", msg["id"])

	seen := post("/conversations/"+convID+"/seen", bobToken, nil)
	log.Printf("Seen ack: %v", seen)
}
