package notification

import "time"

type Notification struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	IsRead     bool      `json:"is_read"`
	CreatedAt  time.Time `json:"created_at"` // UTC
}

// QueryFilter selects notifications. Fields are ANDed; zero values are skipped.
type QueryFilter struct {
	ReceiverID string
	IsRead     *bool
}
