package model

import "time"

// Delivery statuses follow the lifecycle of a forwarded payload.
const (
	StatusQueued     = "QUEUED"
	StatusDelivered  = "DELIVERED"
	StatusFailed     = "FAILED"
	StatusDeadLetter = "DEAD_LETTER"
)

// Delivery is one mapped payload on its way to a destination system. The body
// travels base64-encoded inside the queue task so binary-safe XML survives the
// round trip.
type Delivery struct {
	DeliveryID  string            `json:"delivery_id"`
	MappingName string            `json:"mapping_name"`
	Endpoint    string            `json:"endpoint"`
	URL         string            `json:"url"`
	ContentType string            `json:"content_type"`
	Headers     map[string]string `json:"headers,omitempty"`
	Body        []byte            `json:"body"`
	Status      string            `json:"status"`
	Attempts    int               `json:"attempts"`
	LastError   string            `json:"last_error,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}
