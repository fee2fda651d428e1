package model

import "time"

// MessageCapture is a point-in-time record of one mapping run: the inbound
// payload, the mapped output and the outcome. Captures are indexed for search
// and kept out of the hot path by the capture behavior.
type MessageCapture struct {
	CaptureID     string                 `json:"capture_id"`
	MappingName   string                 `json:"mapping_name"`
	Endpoint      string                 `json:"endpoint"`
	SourceType    PayloadType            `json:"source_type"`
	SourcePayload string                 `json:"source_payload"`
	MappedPayload string                 `json:"mapped_payload"`
	IsSuccess     bool                   `json:"is_success"`
	ErrorMessage  string                 `json:"error_message,omitempty"`
	DurationMs    int64                  `json:"duration_ms"`
	CreatedAt     time.Time              `json:"created_at"`
	MetaData      map[string]interface{} `json:"meta_data,omitempty"`
}
