package services

import (
	"context"
	"fmt"
	"strings"

	"filmbox/internal/domain/video"
	"filmbox/internal/resolver"
	filmbox_errors "filmbox/pkg/errors"
)

// VideoGateway is the backend slice needed for playback concerns.
type VideoGateway interface {
	GetUploadRecord(ctx context.Context, filmID string) (UploadRecordView, error)
	GetTranscodeStatus(ctx context.Context, fileID string) (bool, error)
	SetManualVideoLink(ctx context.Context, filmID, videoURL, password string) error
}

// UploadRecordView mirrors gateway.UploadRecord without importing it, so the
// service stays mockable from a plain struct.
type UploadRecordView struct {
	ID           string
	FileID       string
	Status       string
	StreamURL    string
	ThumbnailURL string
	Playable     bool
}

// VideoService answers "what do I play for this film/url" questions.
type VideoService struct {
	gateway VideoGateway
}

func NewVideoService(gw VideoGateway) *VideoService {
	return &VideoService{gateway: gw}
}

// Resolve classifies an arbitrary URL. Pure; no backend involved.
func (s *VideoService) Resolve(rawURL string) (video.Source, error) {
	if strings.TrimSpace(rawURL) == "" {
		return video.Source{}, fmt.Errorf("%w: url is required", filmbox_errors.ErrInvalidInput)
	}
	return resolver.Resolve(rawURL), nil
}

// ResolveFilm returns the internal source for a film whose upload has a
// provider-assigned file identifier. This path never touches the URL parser.
func (s *VideoService) ResolveFilm(ctx context.Context, filmID string) (video.Source, error) {
	rec, err := s.gateway.GetUploadRecord(ctx, filmID)
	if err != nil {
		return video.Source{}, err
	}
	if rec.FileID == "" {
		return video.Source{}, fmt.Errorf("%w: film has no uploaded video", filmbox_errors.ErrNotFound)
	}
	return resolver.ResolveInternal(resolver.InternalRecord{
		FileID:       rec.FileID,
		StreamURL:    rec.StreamURL,
		ThumbnailURL: rec.ThumbnailURL,
		Playable:     rec.Playable,
	}), nil
}

// EnsurePlayable checks transcoding readiness of an internal file before
// playback. Not-ready is a "try again later" condition, never a state change.
func (s *VideoService) EnsurePlayable(ctx context.Context, fileID string) error {
	if fileID == "" {
		return filmbox_errors.ErrInvalidInput
	}
	playable, err := s.gateway.GetTranscodeStatus(ctx, fileID)
	if err != nil {
		return err
	}
	if !playable {
		return filmbox_errors.ErrTranscodeNotReady
	}
	return nil
}

// SetManualLink stores an externally hosted link for the film and returns the
// source it resolves to.
func (s *VideoService) SetManualLink(ctx context.Context, filmID, rawURL, password string) (video.Source, error) {
	src, err := s.Resolve(rawURL)
	if err != nil {
		return video.Source{}, err
	}
	if err := s.gateway.SetManualVideoLink(ctx, filmID, rawURL, password); err != nil {
		return video.Source{}, err
	}
	return src, nil
}
