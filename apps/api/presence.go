package main

import (
	"log"
	"net/http"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/dexC166/dex-real-time-messenger-sub000/pkg/events"
)

// PresenceHandler answers GET /presence with the emails currently holding a
// presence subscription on any gateway node.
type PresenceHandler struct {
	redis *redis.Client
}

func NewPresenceHandler(redisAddr string) *PresenceHandler {
	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})
	return &PresenceHandler{redis: rdb}
}

func (h *PresenceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	members, err := h.redis.HKeys(r.Context(), events.PresenceConnectionsKey).Result()
	if err != nil {
		log.Printf("Failed to fetch presence members: %v", err)
		http.Error(w, "Failed to fetch presence", http.StatusInternalServerError)
		return
	}

	sort.Strings(members)
	writeJSON(w, http.StatusOK, members)
}
