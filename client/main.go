package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/dexC166/dex-real-time-messenger-sub000/pkg/model"
	"github.com/dexC166/dex-real-time-messenger-sub000/pkg/presence"
	"github.com/dexC166/dex-real-time-messenger-sub000/pkg/realtime"
	msync "github.com/dexC166/dex-real-time-messenger-sub000/pkg/sync"
)

func main() {
	gatewayAddr := flag.String("gateway", "localhost:8080", "gateway service address")
	apiAddr := flag.String("api", "http://localhost:8081", "api service address")
	email := flag.String("email", "", "account email")
	password := flag.String("password", "", "account password")
	name := flag.String("register", "", "register a new account with this display name, then exit")
	flag.Parse()

	if *email == "" || *password == "" {
		log.Fatal("both -email and -password are required")
	}

	ctx := context.Background()
	api := newAPIClient(*apiAddr)

	if *name != "" {
		if err := api.register(ctx, *email, *name, *password); err != nil {
			log.Fatal("Registration failed:", err)
		}
		log.Printf("Registered %s. Run again without -register to chat.", *email)
		return
	}

	log.Printf("Logging in as %s...", *email)
	if err := api.login(ctx, *email, *password); err != nil {
		log.Fatal("Login failed:", err)
	}

	u := url.URL{Scheme: "ws", Host: *gatewayAddr, Path: "/ws"}
	conn, err := realtime.Dial(u.String(), api.token)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer conn.Close()

	// Presence: one store, one sync, alive for the whole session.
	activeUsers := presence.NewStore()
	presenceSync := msync.NewPresenceSync(activeUsers, conn)
	if err := presenceSync.Start(); err != nil {
		log.Printf("Presence unavailable: %v", err)
	}
	defer presenceSync.Close()

	conversations, err := api.conversations(ctx)
	if err != nil {
		log.Fatal("Failed to load conversations:", err)
	}
	printConversations(conversations, *email)

	var current *msync.ConversationSync
	openConversation := func(conv model.Conversation) {
		if current != nil {
			// The old channel must be fully unbound before the next
			// subscribe, or a stale handler could fire for it.
			if err := current.Close(); err != nil {
				log.Printf("Failed to close conversation: %v", err)
			}
		}

		cs := msync.NewConversationSync(conv.ID, conn, api)
		cs.OnScrollToBottom = func() {
			msgs := cs.Messages()
			if len(msgs) > 0 {
				printMessage(&msgs[len(msgs)-1])
			}
		}
		cs.OnScrollTo = func(messageID int64) {
			for _, m := range cs.Messages() {
				if m.ID == messageID {
					fmt.Printf("\r--- match ---\n")
					printMessage(&m)
					fmt.Print("> ")
					return
				}
			}
		}

		loadCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := cs.Initialize(loadCtx); err != nil {
			log.Printf("Failed to open conversation (retry with /open): %v", err)
			return
		}

		current = cs
		fmt.Printf("--- %s ---\n", conversationTitle(&conv, *email))
		for _, m := range cs.Messages() {
			printMessage(&m)
		}
		fmt.Print("> ")
	}

	if len(conversations) > 0 {
		openConversation(conversations[0])
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		fmt.Print("> ")
		for scanner.Scan() {
			text := strings.TrimSpace(scanner.Text())
			switch {
			case text == "":
			case text == "/quit":
				close(interrupt)
				return
			case text == "/who":
				fmt.Printf("online: %s\n", strings.Join(activeUsers.Members(), ", "))
			case text == "/list":
				if conversations, err = api.conversations(ctx); err != nil {
					log.Printf("Failed to load conversations: %v", err)
				} else {
					printConversations(conversations, *email)
				}
			case strings.HasPrefix(text, "/open "):
				n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(text, "/open ")))
				if err != nil || n < 1 || n > len(conversations) {
					fmt.Println("usage: /open <number from /list>")
					break
				}
				openConversation(conversations[n-1])
			case strings.HasPrefix(text, "/search "):
				if current == nil {
					fmt.Println("no open conversation")
					break
				}
				query := strings.TrimPrefix(text, "/search ")
				if _, found := current.Search(query); !found {
					fmt.Println("no match")
				}
			default:
				if current == nil {
					fmt.Println("no open conversation; use /open")
					break
				}
				if _, err := api.sendMessage(ctx, current.ConversationID(), text); err != nil {
					log.Printf("send: %v", err)
				}
			}
			fmt.Print("> ")
		}
	}()

	select {
	case <-conn.Done():
		log.Println("connection closed")
	case <-interrupt:
		log.Println("interrupt")
		if current != nil {
			_ = current.Close()
		}
		presenceSync.Close()
		_ = conn.Close()
		select {
		case <-conn.Done():
		case <-time.After(time.Second):
		}
	}
}

func conversationTitle(conv *model.Conversation, selfEmail string) string {
	if conv.IsGroup {
		return conv.Name
	}
	for i := range conv.Users {
		if conv.Users[i].Email != selfEmail {
			return conv.Users[i].Name
		}
	}
	return "(just you)"
}

func printConversations(conversations []model.Conversation, selfEmail string) {
	if len(conversations) == 0 {
		fmt.Println("No conversations yet.")
		return
	}
	for i := range conversations {
		marker := ""
		if conversations[i].UnreadCount > 0 {
			marker = fmt.Sprintf(" (%d unread)", conversations[i].UnreadCount)
		}
		fmt.Printf("%d. %s%s\n", i+1, conversationTitle(&conversations[i], selfEmail), marker)
	}
}

func printMessage(m *model.Message) {
	body := m.Body
	if body == "" && m.Image != "" {
		body = "[image] " + m.Image
	}
	seen := ""
	if len(m.SeenBy) > 1 {
		seen = fmt.Sprintf("  [seen by %d]", len(m.SeenBy))
	}
	fmt.Printf("\r%s: %s%s\n", m.SenderName, body, seen)
}
