package services

import (
	"context"
	"strings"
	"time"

	"filmbox/internal/repository"
	"filmbox/pkg/logger"
)

// TranscodePoller watches sessions whose bytes are fully uploaded and asks
// the backend whether transcoding finished, advancing the machine to
// Transcoding and finally Ready. The backend performs the transcoding; this
// loop only observes it.
type TranscodePoller struct {
	repo     repository.UploadSessionRepository
	gateway  Gateway
	uploads  *UploadService
	interval time.Duration
	log      *logger.Logger
}

func NewTranscodePoller(repo repository.UploadSessionRepository, gw Gateway, uploads *UploadService, interval time.Duration, log *logger.Logger) *TranscodePoller {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &TranscodePoller{
		repo:     repo,
		gateway:  gw,
		uploads:  uploads,
		interval: interval,
		log:      log,
	}
}

func (p *TranscodePoller) Start(ctx context.Context) {
	go p.Run(ctx)
}

func (p *TranscodePoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *TranscodePoller) poll(ctx context.Context) {
	sessions, err := p.repo.GetAwaitingTranscode(ctx)
	if err != nil {
		if p.log != nil {
			p.log.Errorf("transcode poll: list sessions: %s", err)
		}
		return
	}

	for _, session := range sessions {
		rec, err := p.gateway.GetUploadRecord(ctx, session.FilmID)
		if err != nil {
			if p.log != nil {
				p.log.Warnf("transcode poll: film %s: %s", session.FilmID, err)
			}
			continue
		}

		m, err := p.uploads.Machine(ctx, session.FilmID)
		if err != nil {
			continue
		}

		switch {
		case rec.Playable:
			if err := m.MarkReady(); err != nil && p.log != nil {
				p.log.Warnf("transcode poll: film %s: %s", session.FilmID, err)
			}
		case isTranscoding(rec.Status):
			if err := m.MarkTranscoding(); err != nil && p.log != nil {
				p.log.Warnf("transcode poll: film %s: %s", session.FilmID, err)
			}
		}
	}
}

func isTranscoding(status string) bool {
	switch strings.ToUpper(status) {
	case "TRANSCODING", "PROCESSING":
		return true
	default:
		return false
	}
}
