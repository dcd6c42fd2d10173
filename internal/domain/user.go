package domain

import "time"

// User is the local replica of a user's public identity, maintained from
// identity events. Only what listings need: the id and a display name.
type User struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	UpdatedAt   time.Time `json:"updated_at"`
}
