package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"filmbox/internal/domain/upload"
	"filmbox/internal/events"
	"filmbox/internal/gateway"
	"filmbox/internal/repository"
	"filmbox/internal/uploader"
	filmbox_errors "filmbox/pkg/errors"
	"filmbox/pkg/logger"

	"github.com/google/uuid"
)

// Gateway is the slice of the backend the upload service needs.
type Gateway interface {
	uploader.RecordGateway
	GetUploadRecord(ctx context.Context, filmID string) (gateway.UploadRecord, error)
}

// UploadService owns the state machines, one per film, and wires them to
// persistence and the event stream. All mutations of a session flow through
// its machine; handlers only ever see snapshots.
type UploadService struct {
	repo      repository.UploadSessionRepository
	gateway   Gateway
	registry  *uploader.Registry
	factory   uploader.TransportFactory
	publisher events.Publisher
	endpoint  string
	log       *logger.Logger

	mu       sync.Mutex
	machines map[string]*uploader.Machine
}

func NewUploadService(
	repo repository.UploadSessionRepository,
	gw Gateway,
	registry *uploader.Registry,
	factory uploader.TransportFactory,
	publisher events.Publisher,
	endpoint string,
	log *logger.Logger,
) *UploadService {
	return &UploadService{
		repo:      repo,
		gateway:   gw,
		registry:  registry,
		factory:   factory,
		publisher: publisher,
		endpoint:  endpoint,
		log:       log,
		machines:  make(map[string]*uploader.Machine),
	}
}

// Start begins (or continues) the upload of file for a film.
func (s *UploadService) Start(ctx context.Context, filmID string, file uploader.LocalFile) error {
	m, err := s.machine(ctx, filmID)
	if err != nil {
		return err
	}
	return m.Start(ctx, file)
}

// Pause suspends the in-flight transfer. No-op unless uploading.
func (s *UploadService) Pause(ctx context.Context, filmID string) error {
	m, err := s.machine(ctx, filmID)
	if err != nil {
		return err
	}
	m.Pause()
	return nil
}

// Resume continues a previously created upload, revalidating the supplied
// file when the in-memory transport is gone.
func (s *UploadService) Resume(ctx context.Context, filmID string, file *uploader.LocalFile) error {
	m, err := s.machine(ctx, filmID)
	if err != nil {
		return err
	}
	return m.Resume(ctx, file)
}

// Cancel discards the upload and resets the backend record.
func (s *UploadService) Cancel(ctx context.Context, filmID string) error {
	m, err := s.machine(ctx, filmID)
	if err != nil {
		return err
	}
	return m.Cancel(ctx)
}

// Retry re-drives an errored upload.
func (s *UploadService) Retry(ctx context.Context, filmID string) error {
	m, err := s.machine(ctx, filmID)
	if err != nil {
		return err
	}
	return m.Retry(ctx)
}

// Status returns the read-only progress projection for a film's upload.
func (s *UploadService) Status(ctx context.Context, filmID string) (uploader.Snapshot, error) {
	m, err := s.machine(ctx, filmID)
	if err != nil {
		return uploader.Snapshot{}, err
	}
	return m.Snapshot(), nil
}

// IsLive reports whether the film's upload is transferring un-paused right
// now. The caller uses it to intercept navigation away from the upload
// screen.
func (s *UploadService) IsLive(ctx context.Context, filmID string) (bool, error) {
	m, err := s.machine(ctx, filmID)
	if err != nil {
		return false, err
	}
	return m.IsLive(), nil
}

// Machine exposes the film's machine to cooperating services (the transcode
// poller advances Uploaded sessions through it).
func (s *UploadService) Machine(ctx context.Context, filmID string) (*uploader.Machine, error) {
	return s.machine(ctx, filmID)
}

// RecoverActive reloads persisted unfinished sessions at boot. Machines come
// back paused; the owning user decides whether to resume.
func (s *UploadService) RecoverActive(ctx context.Context) error {
	sessions, err := s.repo.GetActiveSessions(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, session := range sessions {
		if _, ok := s.machines[session.FilmID]; ok {
			continue
		}
		s.machines[session.FilmID] = uploader.NewMachine(session, s.registry, s.factory, s.gateway, s.sink)
		if s.log != nil {
			s.log.Infof("recovered upload session for film %s in state %s (%d/%d bytes)",
				session.FilmID, session.State, session.UploadedBytes, session.TotalBytes)
		}
	}
	return nil
}

func (s *UploadService) machine(ctx context.Context, filmID string) (*uploader.Machine, error) {
	if filmID == "" {
		return nil, filmbox_errors.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if m, ok := s.machines[filmID]; ok {
		return m, nil
	}

	session, err := s.repo.GetByFilmID(ctx, filmID)
	if err != nil {
		if !errors.Is(err, filmbox_errors.ErrNotFound) {
			return nil, err
		}
		session = upload.UploadSession{
			ID:       uuid.New(),
			FilmID:   filmID,
			State:    upload.StateNotCreated,
			Endpoint: s.endpoint,
		}
		if err := s.repo.Create(ctx, &session); err != nil {
			return nil, err
		}
	}

	m := uploader.NewMachine(session, s.registry, s.factory, s.gateway, s.sink)
	s.machines[filmID] = m
	return m, nil
}

// sink persists every machine event and fans it out on the film's channel.
// It runs on the transfer goroutine, so failures are logged, never returned.
func (s *UploadService) sink(session upload.UploadSession, ev uploader.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	switch ev.(type) {
	case uploader.ProgressEvent:
		if err := s.repo.UpdateProgress(ctx, session.ID, session.UploadedBytes); err != nil && s.log != nil {
			s.log.Errorf("persist progress for film %s: %s", session.FilmID, err)
		}
	default:
		if err := s.repo.Update(ctx, session); err != nil && s.log != nil {
			s.log.Errorf("persist session for film %s: %s", session.FilmID, err)
		}
	}

	if s.publisher == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	env := events.Envelope{
		EventType:  ev.EventType(),
		FilmID:     session.FilmID,
		UploadID:   session.UploadID,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return
	}
	if err := s.publisher.Publish(ctx, events.UploadChannel(session.FilmID), raw); err != nil && s.log != nil {
		s.log.Errorf("publish %s for film %s: %s", ev.EventType(), session.FilmID, err)
	}
}
