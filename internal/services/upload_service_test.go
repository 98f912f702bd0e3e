package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"filmbox/internal/domain/upload"
	"filmbox/internal/gateway"
	"filmbox/internal/uploader"
	filmbox_errors "filmbox/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]upload.UploadSession
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{sessions: make(map[uuid.UUID]upload.UploadSession)}
}

func (r *memoryRepo) Create(ctx context.Context, s *upload.UploadSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	r.sessions[s.ID] = *s
	return nil
}

func (r *memoryRepo) GetByID(ctx context.Context, id uuid.UUID) (upload.UploadSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return upload.UploadSession{}, filmbox_errors.ErrNotFound
	}
	return s, nil
}

func (r *memoryRepo) GetByFilmID(ctx context.Context, filmID string) (upload.UploadSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.FilmID == filmID {
			return s, nil
		}
	}
	return upload.UploadSession{}, filmbox_errors.ErrNotFound
}

func (r *memoryRepo) Update(ctx context.Context, s upload.UploadSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.ID]; !ok {
		return filmbox_errors.ErrNotFound
	}
	r.sessions[s.ID] = s
	return nil
}

func (r *memoryRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

func (r *memoryRepo) UpdateProgress(ctx context.Context, id uuid.UUID, uploadedBytes int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return filmbox_errors.ErrNotFound
	}
	s.UploadedBytes = uploadedBytes
	r.sessions[id] = s
	return nil
}

func (r *memoryRepo) SetState(ctx context.Context, id uuid.UUID, state upload.State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return filmbox_errors.ErrNotFound
	}
	s.State = state
	r.sessions[id] = s
	return nil
}

func (r *memoryRepo) GetActiveSessions(ctx context.Context) ([]upload.UploadSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []upload.UploadSession
	for _, s := range r.sessions {
		switch s.State {
		case upload.StateCreated, upload.StateUploading, upload.StateUploaded,
			upload.StateTranscoding, upload.StateError:
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *memoryRepo) GetAwaitingTranscode(ctx context.Context) ([]upload.UploadSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []upload.UploadSession
	for _, s := range r.sessions {
		if s.State == upload.StateUploaded || s.State == upload.StateTranscoding {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *memoryRepo) GetStaleSessions(ctx context.Context, olderThan time.Duration) ([]upload.UploadSession, error) {
	return nil, nil
}

func (r *memoryRepo) DeleteStaleSessions(ctx context.Context, olderThan time.Duration) (int64, error) {
	return 0, nil
}

func (r *memoryRepo) byFilm(filmID string) (upload.UploadSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.FilmID == filmID {
			return s, true
		}
	}
	return upload.UploadSession{}, false
}

type serviceGateway struct {
	mu      sync.Mutex
	creates int
	resets  int
	record  gateway.UploadRecord
}

func (g *serviceGateway) CreateUploadRecord(ctx context.Context, filmID string, meta uploader.FileMeta) (uploader.RecordRef, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.creates++
	return uploader.RecordRef{ID: fmt.Sprintf("rec-%d", g.creates)}, nil
}

func (g *serviceGateway) ResetUploadRecord(ctx context.Context, filmID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resets++
	return nil
}

func (g *serviceGateway) GetUploadRecord(ctx context.Context, filmID string) (gateway.UploadRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.record, nil
}

type recordedTransport struct {
	mu     sync.Mutex
	cb     uploader.Callbacks
	starts int
}

func (t *recordedTransport) Start(ctx context.Context) {
	t.mu.Lock()
	t.starts++
	t.mu.Unlock()
}
func (t *recordedTransport) Pause()     {}
func (t *recordedTransport) Done() bool { return false }

type recordedFactory struct {
	mu         sync.Mutex
	transports []*recordedTransport
}

func (f *recordedFactory) factory() uploader.TransportFactory {
	return func(uploadID string, src io.ReaderAt, size int64, cb uploader.Callbacks) uploader.ChunkTransport {
		f.mu.Lock()
		defer f.mu.Unlock()
		t := &recordedTransport{cb: cb}
		f.transports = append(f.transports, t)
		return t
	}
}

func (f *recordedFactory) last() *recordedTransport {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.transports) == 0 {
		return nil
	}
	return f.transports[len(f.transports)-1]
}

func serviceFixture(t *testing.T) (*UploadService, *memoryRepo, *serviceGateway, *recordedFactory) {
	t.Helper()
	repo := newMemoryRepo()
	gw := &serviceGateway{}
	factory := &recordedFactory{}
	svc := NewUploadService(repo, gw, uploader.NewRegistry(), factory.factory(), nil, "http://upload.local/files", nil)
	return svc, repo, gw, factory
}

func serviceTestFile(t *testing.T, size int) uploader.LocalFile {
	t.Helper()
	path := filepath.Join(t.TempDir(), "video.mp4")
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o600))
	return uploader.LocalFile{Path: path, Size: int64(size), MimeType: "video/mp4"}
}

func TestServiceStartPersistsSession(t *testing.T) {
	svc, repo, gw, _ := serviceFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.Start(ctx, "film-1", serviceTestFile(t, 1000)))

	stored, ok := repo.byFilm("film-1")
	require.True(t, ok)
	assert.Equal(t, "rec-1", stored.RecordID)
	assert.Equal(t, upload.StateUploading, stored.State)
	assert.Equal(t, 1, gw.creates)

	snap, err := svc.Status(ctx, "film-1")
	require.NoError(t, err)
	assert.Equal(t, upload.StateUploading, snap.State)
	assert.Equal(t, int64(1000), snap.TotalBytes)

	live, err := svc.IsLive(ctx, "film-1")
	require.NoError(t, err)
	assert.True(t, live)
}

func TestServiceRejectsEmptyFilmID(t *testing.T) {
	svc, _, _, _ := serviceFixture(t)
	err := svc.Start(context.Background(), "", serviceTestFile(t, 10))
	require.Error(t, err)
}

func TestServicePersistsProgressEvents(t *testing.T) {
	svc, repo, _, factory := serviceFixture(t)
	ctx := context.Background()
	require.NoError(t, svc.Start(ctx, "film-1", serviceTestFile(t, 1000)))

	factory.last().cb.OnProgress(250, 1000)

	stored, _ := repo.byFilm("film-1")
	assert.Equal(t, int64(250), stored.UploadedBytes)

	factory.last().cb.OnSuccess()
	stored, _ = repo.byFilm("film-1")
	assert.Equal(t, upload.StateUploaded, stored.State)
	assert.Equal(t, int64(1000), stored.UploadedBytes)
}

func TestServiceReusesMachinePerFilm(t *testing.T) {
	svc, _, _, _ := serviceFixture(t)
	ctx := context.Background()

	m1, err := svc.Machine(ctx, "film-1")
	require.NoError(t, err)
	m2, err := svc.Machine(ctx, "film-1")
	require.NoError(t, err)
	assert.Same(t, m1, m2)

	other, err := svc.Machine(ctx, "film-2")
	require.NoError(t, err)
	assert.NotSame(t, m1, other)
}

func TestServiceCancelResetsBackend(t *testing.T) {
	svc, repo, gw, _ := serviceFixture(t)
	ctx := context.Background()
	require.NoError(t, svc.Start(ctx, "film-1", serviceTestFile(t, 1000)))

	require.NoError(t, svc.Cancel(ctx, "film-1"))
	assert.Equal(t, 1, gw.resets)

	stored, _ := repo.byFilm("film-1")
	assert.Equal(t, upload.StateNotCreated, stored.State)
	assert.Empty(t, stored.RecordID)
}

func TestServiceRecoverActive(t *testing.T) {
	repo := newMemoryRepo()
	session := upload.UploadSession{
		ID:            uuid.New(),
		FilmID:        "film-7",
		RecordID:      "rec-7",
		UploadID:      "upload_rec-7",
		TotalBytes:    5000,
		UploadedBytes: 1200,
		State:         upload.StateUploading,
	}
	require.NoError(t, repo.Create(context.Background(), &session))

	gw := &serviceGateway{}
	factory := &recordedFactory{}
	svc := NewUploadService(repo, gw, uploader.NewRegistry(), factory.factory(), nil, "http://upload.local/files", nil)

	require.NoError(t, svc.RecoverActive(context.Background()))

	snap, err := svc.Status(context.Background(), "film-7")
	require.NoError(t, err)
	assert.Equal(t, upload.StateUploading, snap.State)
	assert.Equal(t, int64(1200), snap.UploadedBytes)

	// the transport did not survive the restart, so the upload is not live
	live, err := svc.IsLive(context.Background(), "film-7")
	require.NoError(t, err)
	assert.False(t, live)

	// and resuming needs the file back
	err = svc.Resume(context.Background(), "film-7", nil)
	require.Error(t, err)

	file := serviceTestFile(t, 5000)
	require.NoError(t, svc.Resume(context.Background(), "film-7", &file))
	live, _ = svc.IsLive(context.Background(), "film-7")
	assert.True(t, live)
}
