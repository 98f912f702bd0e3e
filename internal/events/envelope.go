package events

import (
	"encoding/json"
	"time"
)

type Envelope struct {
	EventType  string          `json:"event_type"`
	FilmID     string          `json:"film_id"`
	UploadID   string          `json:"upload_id,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// UploadChannel is the pub/sub channel carrying one film's upload events.
func UploadChannel(filmID string) string {
	return "channel:upload:" + filmID
}

// UploadChannelPattern matches every upload channel.
const UploadChannelPattern = "channel:upload:*"
