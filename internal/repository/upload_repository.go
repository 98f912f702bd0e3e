package repository

import (
	"context"
	"errors"
	"time"

	"filmbox/internal/domain/upload"
	filmbox_errors "filmbox/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresUploadSessionRepository struct {
	db *gorm.DB
}

func NewUploadSessionRepository(db *gorm.DB) UploadSessionRepository {
	return &PostgresUploadSessionRepository{db: db}
}

func (r *PostgresUploadSessionRepository) Create(ctx context.Context, s *upload.UploadSession) error {
	res := r.db.WithContext(ctx).Create(s)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return filmbox_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresUploadSessionRepository) GetByID(ctx context.Context, id uuid.UUID) (upload.UploadSession, error) {
	var s upload.UploadSession
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return upload.UploadSession{}, filmbox_errors.ErrNotFound
		}
		return upload.UploadSession{}, err
	}
	return s, nil
}

func (r *PostgresUploadSessionRepository) GetByFilmID(ctx context.Context, filmID string) (upload.UploadSession, error) {
	var s upload.UploadSession
	err := r.db.WithContext(ctx).Where("film_id = ?", filmID).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return upload.UploadSession{}, filmbox_errors.ErrNotFound
		}
		return upload.UploadSession{}, err
	}
	return s, nil
}

func (r *PostgresUploadSessionRepository) Update(ctx context.Context, s upload.UploadSession) error {
	s.UpdatedAt = time.Now()
	res := r.db.WithContext(ctx).Save(&s)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return filmbox_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresUploadSessionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&upload.UploadSession{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return filmbox_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresUploadSessionRepository) UpdateProgress(ctx context.Context, id uuid.UUID, uploadedBytes int64) error {
	res := r.db.WithContext(ctx).
		Model(&upload.UploadSession{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"uploaded_bytes": uploadedBytes,
			"updated_at":     time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return filmbox_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresUploadSessionRepository) SetState(ctx context.Context, id uuid.UUID, state upload.State) error {
	res := r.db.WithContext(ctx).
		Model(&upload.UploadSession{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"state":      state,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return filmbox_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresUploadSessionRepository) GetActiveSessions(ctx context.Context) ([]upload.UploadSession, error) {
	var sessions []upload.UploadSession
	err := r.db.WithContext(ctx).
		Where("state IN ?", []upload.State{
			upload.StateCreated,
			upload.StateUploading,
			upload.StateUploaded,
			upload.StateTranscoding,
			upload.StateError,
		}).
		Order("created_at ASC").
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *PostgresUploadSessionRepository) GetAwaitingTranscode(ctx context.Context) ([]upload.UploadSession, error) {
	var sessions []upload.UploadSession
	err := r.db.WithContext(ctx).
		Where("state IN ?", []upload.State{upload.StateUploaded, upload.StateTranscoding}).
		Order("updated_at ASC").
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *PostgresUploadSessionRepository) GetStaleSessions(ctx context.Context, olderThan time.Duration) ([]upload.UploadSession, error) {
	var sessions []upload.UploadSession
	cutoff := time.Now().Add(-olderThan)
	err := r.db.WithContext(ctx).
		Where("state = ? AND updated_at < ?", upload.StateUploading, cutoff).
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *PostgresUploadSessionRepository) DeleteStaleSessions(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	res := r.db.WithContext(ctx).
		Delete(&upload.UploadSession{}, "state = ? AND updated_at < ?", upload.StateUploading, cutoff)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
