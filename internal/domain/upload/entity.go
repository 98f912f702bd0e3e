package upload

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle state of an upload session.
type State string

const (
	StateNotCreated  State = "NOT_CREATED"
	StateCreated     State = "CREATED"
	StateUploading   State = "UPLOADING"
	StateUploaded    State = "UPLOADED"
	StateTranscoding State = "TRANSCODING"
	StateReady       State = "READY"
	StateError       State = "ERROR"
)

// UploadSession represents upload_sessions. It is the durable record for one
// film's video upload: identity, size, byte offset and lifecycle state. The
// record is mutated only through the state machine; everything else reads a
// projection of it.
type UploadSession struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	FilmID   string    `gorm:"not null;uniqueIndex"`
	RecordID string    `gorm:"not null"` // backend film-video record id
	UploadID string    `gorm:"not null"` // transport correlation key, upload_<record id>

	MimeType      string `gorm:"not null"`
	TotalBytes    int64  `gorm:"not null"`
	UploadedBytes int64  `gorm:"default:0"`
	Width         int
	Height        int

	State    State  `gorm:"type:varchar(16);default:'NOT_CREATED'"`
	Endpoint string `gorm:"not null"`

	CreatedAt time.Time `gorm:"default:now()"`
	UpdatedAt time.Time `gorm:"default:now()"`
}

func (UploadSession) TableName() string {
	return "upload_sessions"
}

// UploadKey derives the stable transport correlation key for a backend record.
// Keys are never reused across distinct byte content: a reset produces a new
// record id and therefore a new key.
func UploadKey(recordID string) string {
	return fmt.Sprintf("upload_%s", recordID)
}

// Percent reports whole-number upload progress.
func (s UploadSession) Percent() int {
	if s.TotalBytes <= 0 {
		return 0
	}
	return int(s.UploadedBytes * 100 / s.TotalBytes)
}

// ProgressLabel renders the human readable "X of Y uploaded" string.
func (s UploadSession) ProgressLabel() string {
	return fmt.Sprintf("%s of %s uploaded", humanBytes(s.UploadedBytes), humanBytes(s.TotalBytes))
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
