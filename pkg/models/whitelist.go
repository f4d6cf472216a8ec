package models

import "time"

// WhitelistEntry authorizes one messaging-channel identity. Only active
// entries grant access.
type WhitelistEntry struct {
	ID          string    `json:"id"`
	PhoneNumber string    `json:"phone_number"`
	DisplayName string    `json:"display_name"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}
