package model

import "time"

// User is an account record. Email is the cross-system correlation key:
// presence membership and personal notification channels are keyed by it.
type User struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	Name           string    `json:"name"`
	Image          string    `json:"image,omitempty"`
	HashedPassword string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}
