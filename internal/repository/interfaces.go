package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"filmbox/internal/domain/upload"
)

type UploadSessionRepository interface {
	Create(ctx context.Context, s *upload.UploadSession) error
	GetByID(ctx context.Context, id uuid.UUID) (upload.UploadSession, error)
	GetByFilmID(ctx context.Context, filmID string) (upload.UploadSession, error)
	Update(ctx context.Context, s upload.UploadSession) error
	Delete(ctx context.Context, id uuid.UUID) error

	UpdateProgress(ctx context.Context, id uuid.UUID, uploadedBytes int64) error
	SetState(ctx context.Context, id uuid.UUID, state upload.State) error

	// GetActiveSessions returns sessions that may still have a transfer or a
	// transcode pending; loaded at boot for restart recovery.
	GetActiveSessions(ctx context.Context) ([]upload.UploadSession, error)
	GetAwaitingTranscode(ctx context.Context) ([]upload.UploadSession, error)

	GetStaleSessions(ctx context.Context, olderThan time.Duration) ([]upload.UploadSession, error)
	DeleteStaleSessions(ctx context.Context, olderThan time.Duration) (int64, error)
}

type Repositories struct {
	Uploads UploadSessionRepository
}

func New(db *gorm.DB) *Repositories {
	return &Repositories{
		Uploads: NewUploadSessionRepository(db),
	}
}
