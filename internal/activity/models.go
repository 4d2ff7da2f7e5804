// Package activity consumes engagement events and keeps a trending board of
// items ranked by recent likes and comments.
package activity

import (
	"gallery/internal/kafka"
)

// ServiceName is the Consul name of the activity service
const ServiceName = "activity-service"

// weights is how much each engagement event moves an item on the board
var weights = map[string]float64{
	kafka.EventLikeAdded:      1,
	kafka.EventLikeRemoved:    -1,
	kafka.EventCommentCreated: 2,
	kafka.EventCommentDeleted: -2,
}

// Weight reports the board delta for an event type; ok is false for types
// the board ignores.
func Weight(eventType string) (w float64, ok bool) {
	w, ok = weights[eventType]
	return w, ok
}

type Score struct {
	ItemID string  `json:"itemId"`
	Score  float64 `json:"score"`
}

type TrendingResponse struct {
	Success bool    `json:"success"`
	Items   []Score `json:"items"`
}
