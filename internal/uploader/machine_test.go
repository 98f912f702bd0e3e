package uploader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"filmbox/internal/domain/upload"
	filmbox_errors "filmbox/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	mu      sync.Mutex
	cb      Callbacks
	starts  int
	pauses  int
	done    bool
}

func (t *fakeTransport) Start(ctx context.Context) {
	t.mu.Lock()
	t.starts++
	t.mu.Unlock()
}

func (t *fakeTransport) Pause() {
	t.mu.Lock()
	t.pauses++
	t.mu.Unlock()
}

func (t *fakeTransport) Done() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

func (t *fakeTransport) startCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.starts
}

type fakeFactory struct {
	mu         sync.Mutex
	transports []*fakeTransport
}

func (f *fakeFactory) make(uploadID string, src io.ReaderAt, size int64, cb Callbacks) ChunkTransport {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTransport{cb: cb}
	f.transports = append(f.transports, t)
	return t
}

func (f *fakeFactory) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.transports)
}

func (f *fakeFactory) last() *fakeTransport {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.transports) == 0 {
		return nil
	}
	return f.transports[len(f.transports)-1]
}

type fakeRecordGateway struct {
	mu      sync.Mutex
	creates int
	resets  int
	fail    bool
}

func (g *fakeRecordGateway) CreateUploadRecord(ctx context.Context, filmID string, meta FileMeta) (RecordRef, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail {
		return RecordRef{}, errors.New("backend down")
	}
	g.creates++
	return RecordRef{ID: fmt.Sprintf("rec-%d", g.creates)}, nil
}

func (g *fakeRecordGateway) ResetUploadRecord(ctx context.Context, filmID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail {
		return errors.New("backend down")
	}
	g.resets++
	return nil
}

type eventCollector struct {
	mu     sync.Mutex
	events []Event
	states []upload.State
}

func (c *eventCollector) sink(session upload.UploadSession, ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	if s, ok := ev.(StateEvent); ok {
		c.states = append(c.states, s.State)
	}
}

func (c *eventCollector) stateSequence() []upload.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]upload.State(nil), c.states...)
}

func testFile(t *testing.T, size int) LocalFile {
	t.Helper()
	path := filepath.Join(t.TempDir(), "video.mp4")
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o600))
	return LocalFile{Path: path, Size: int64(size), MimeType: "video/mp4"}
}

func newTestMachine(filmID string) (*Machine, *fakeFactory, *fakeRecordGateway, *eventCollector) {
	factory := &fakeFactory{}
	gw := &fakeRecordGateway{}
	collector := &eventCollector{}
	session := upload.UploadSession{ID: uuid.New(), FilmID: filmID, State: upload.StateNotCreated}
	m := NewMachine(session, NewRegistry(), factory.make, gw, collector.sink)
	return m, factory, gw, collector
}

func TestStartCreatesRecordAndUploads(t *testing.T) {
	m, factory, gw, collector := newTestMachine("film-1")

	require.NoError(t, m.Start(context.Background(), testFile(t, 1000)))

	session := m.Session()
	assert.Equal(t, "rec-1", session.RecordID)
	assert.Equal(t, "upload_rec-1", session.UploadID)
	assert.Equal(t, int64(1000), session.TotalBytes)
	assert.Equal(t, upload.StateUploading, session.State)
	assert.Equal(t, 1, gw.creates)
	assert.Equal(t, 1, factory.calls())
	assert.Equal(t, 1, factory.last().startCount())
	assert.True(t, m.IsLive())
	assert.Equal(t, []upload.State{upload.StateCreated, upload.StateUploading}, collector.stateSequence())
}

func TestStartRejectsEmptyFile(t *testing.T) {
	m, factory, _, _ := newTestMachine("film-1")
	err := m.Start(context.Background(), LocalFile{Size: 0})
	require.Error(t, err)
	assert.True(t, errors.Is(err, filmbox_errors.ErrInvalidInput))
	assert.Equal(t, 0, factory.calls())
}

func TestStartSurfacesRecordCreationFailure(t *testing.T) {
	m, factory, gw, _ := newTestMachine("film-1")
	gw.fail = true

	err := m.Start(context.Background(), testFile(t, 100))
	require.Error(t, err)
	assert.True(t, errors.Is(err, filmbox_errors.ErrRecordCreation))
	assert.Equal(t, upload.StateNotCreated, m.Session().State)
	assert.Equal(t, 0, factory.calls())
}

func TestProgressIsMonotonic(t *testing.T) {
	m, factory, _, _ := newTestMachine("film-1")
	require.NoError(t, m.Start(context.Background(), testFile(t, 1000)))

	cb := factory.last().cb
	cb.OnProgress(400, 1000)
	assert.Equal(t, int64(400), m.Snapshot().UploadedBytes)

	// a stale report must never move the counter backwards
	cb.OnProgress(100, 1000)
	assert.Equal(t, int64(400), m.Snapshot().UploadedBytes)

	cb.OnProgress(900, 1000)
	snap := m.Snapshot()
	assert.Equal(t, int64(900), snap.UploadedBytes)
	assert.Equal(t, 90, snap.Percent)
	assert.Contains(t, snap.Label, "uploaded")
}

func TestSuccessCompletesSession(t *testing.T) {
	m, factory, _, collector := newTestMachine("film-1")
	require.NoError(t, m.Start(context.Background(), testFile(t, 1000)))

	cb := factory.last().cb
	cb.OnProgress(1000, 1000)
	cb.OnSuccess()

	snap := m.Snapshot()
	assert.Equal(t, upload.StateUploaded, snap.State)
	assert.Equal(t, int64(1000), snap.UploadedBytes)
	assert.False(t, m.IsLive())
	assert.Contains(t, collector.stateSequence(), upload.StateUploaded)
}

func TestPauseAndResumeInMemory(t *testing.T) {
	m, factory, _, _ := newTestMachine("film-1")
	require.NoError(t, m.Start(context.Background(), testFile(t, 1000)))

	m.Pause()
	assert.False(t, m.IsLive())
	assert.Equal(t, 1, factory.last().pauses)
	assert.Equal(t, upload.StateUploading, m.Snapshot().State)
	assert.True(t, m.Snapshot().Paused)

	// transport still registered, so no file is needed
	require.NoError(t, m.Resume(context.Background(), nil))
	assert.True(t, m.IsLive())
	assert.Equal(t, 2, factory.last().startCount())
	assert.Equal(t, 1, factory.calls(), "no second transport is constructed")
}

func TestPauseIsNoopWhenNotUploading(t *testing.T) {
	m, factory, _, _ := newTestMachine("film-1")
	m.Pause()
	assert.Equal(t, upload.StateNotCreated, m.Snapshot().State)
	assert.Equal(t, 0, factory.calls())
}

func TestResumeWithoutSessionFails(t *testing.T) {
	m, _, _, _ := newTestMachine("film-1")
	err := m.Resume(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, filmbox_errors.ErrInvalidInput))
}

func TestResumeAfterRestartRequiresMatchingFile(t *testing.T) {
	factory := &fakeFactory{}
	gw := &fakeRecordGateway{}
	// reloaded from storage: record exists, transport does not
	session := upload.UploadSession{
		ID:            uuid.New(),
		FilmID:        "film-1",
		RecordID:      "rec-9",
		UploadID:      "upload_rec-9",
		TotalBytes:    1000,
		UploadedBytes: 600,
		State:         upload.StateUploading,
	}
	m := NewMachine(session, NewRegistry(), factory.make, gw, nil)

	err := m.Resume(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, filmbox_errors.ErrInvalidInput))

	wrong := testFile(t, 500)
	err = m.Resume(context.Background(), &wrong)
	require.Error(t, err)
	assert.True(t, errors.Is(err, filmbox_errors.ErrSizeMismatch))
	assert.Equal(t, 0, factory.calls(), "no transport before validation passes")

	right := testFile(t, 1000)
	require.NoError(t, m.Resume(context.Background(), &right))
	assert.Equal(t, 1, factory.calls())
	assert.True(t, m.IsLive())
}

func TestStartDeliversEventsWhenAttachFails(t *testing.T) {
	m, factory, gw, collector := newTestMachine("film-1")

	// record creation succeeds but the file cannot be opened
	err := m.Start(context.Background(), LocalFile{Path: "", Size: 100})
	require.Error(t, err)
	assert.True(t, errors.Is(err, filmbox_errors.ErrInvalidInput))
	assert.Equal(t, 1, gw.creates)
	assert.Equal(t, 0, factory.calls())

	// the transition that did happen is delivered now, not on the next flush
	assert.Equal(t, []upload.State{upload.StateCreated}, collector.stateSequence())
}

func TestStartValidatesFileAgainstRecoveredSession(t *testing.T) {
	factory := &fakeFactory{}
	gw := &fakeRecordGateway{}
	session := upload.UploadSession{
		ID:            uuid.New(),
		FilmID:        "film-1",
		RecordID:      "rec-5",
		UploadID:      "upload_rec-5",
		TotalBytes:    1000,
		UploadedBytes: 600,
		State:         upload.StateUploading,
	}
	m := NewMachine(session, NewRegistry(), factory.make, gw, nil)

	// Starting over an unfinished record is a resumption; a different-sized
	// file must be rejected before any transport exists, or the server-side
	// offset would index into the wrong file's bytes.
	wrong := testFile(t, 500)
	err := m.Start(context.Background(), wrong)
	require.Error(t, err)
	assert.True(t, errors.Is(err, filmbox_errors.ErrSizeMismatch))
	assert.Equal(t, 0, factory.calls())
	assert.Equal(t, 0, gw.creates, "the existing record is kept")

	right := testFile(t, 1000)
	require.NoError(t, m.Start(context.Background(), right))
	assert.Equal(t, 1, factory.calls())
	assert.Equal(t, "rec-5", m.Session().RecordID)
	assert.True(t, m.IsLive())
}

func TestRecoveredUploadingSessionIsNotLive(t *testing.T) {
	factory := &fakeFactory{}
	session := upload.UploadSession{
		ID:            uuid.New(),
		FilmID:        "film-1",
		RecordID:      "rec-6",
		UploadID:      "upload_rec-6",
		TotalBytes:    1000,
		UploadedBytes: 300,
		State:         upload.StateUploading,
	}
	m := NewMachine(session, NewRegistry(), factory.make, &fakeRecordGateway{}, nil)

	// the transport died with the old process; nothing is transferring
	assert.False(t, m.IsLive())
	assert.True(t, m.Snapshot().Paused)
	assert.Equal(t, upload.StateUploading, m.Snapshot().State)

	file := testFile(t, 1000)
	require.NoError(t, m.Resume(context.Background(), &file))
	assert.True(t, m.IsLive())
}

func TestCancelResetsEverything(t *testing.T) {
	m, factory, gw, _ := newTestMachine("film-1")
	require.NoError(t, m.Start(context.Background(), testFile(t, 1000)))
	factory.last().cb.OnProgress(500, 1000)

	require.NoError(t, m.Cancel(context.Background()))

	session := m.Session()
	assert.Equal(t, upload.StateNotCreated, session.State)
	assert.Empty(t, session.RecordID)
	assert.Empty(t, session.UploadID)
	assert.Zero(t, session.TotalBytes)
	assert.Zero(t, session.UploadedBytes)
	assert.Equal(t, 1, gw.resets)
	assert.False(t, m.IsLive())

	// a fresh start gets a fresh record and key
	require.NoError(t, m.Start(context.Background(), testFile(t, 2000)))
	assert.Equal(t, "rec-2", m.Session().RecordID)
	assert.Equal(t, "upload_rec-2", m.Session().UploadID)
	assert.Zero(t, m.Snapshot().UploadedBytes)
}

func TestCancelFailsWhenResetFails(t *testing.T) {
	m, factory, gw, _ := newTestMachine("film-1")
	require.NoError(t, m.Start(context.Background(), testFile(t, 1000)))
	gw.fail = true

	err := m.Cancel(context.Background())
	require.Error(t, err)
	_ = factory
}

func TestTransportErrorIsRecoverable(t *testing.T) {
	m, factory, _, collector := newTestMachine("film-1")
	require.NoError(t, m.Start(context.Background(), testFile(t, 1000)))

	cb := factory.last().cb
	cb.OnProgress(300, 1000)
	cb.OnError(errors.New("connection reset"))

	assert.Equal(t, upload.StateError, m.Snapshot().State)
	assert.False(t, m.IsLive())
	assert.Equal(t, int64(300), m.Snapshot().UploadedBytes, "progress survives the failure")

	var sawError bool
	for _, ev := range collector.events {
		if _, ok := ev.(ErrorEvent); ok {
			sawError = true
		}
	}
	assert.True(t, sawError)

	// resume drives the same transport again
	require.NoError(t, m.Resume(context.Background(), nil))
	assert.Equal(t, upload.StateUploading, m.Snapshot().State)

	cb.OnProgress(1000, 1000)
	cb.OnSuccess()
	assert.Equal(t, upload.StateUploaded, m.Snapshot().State)
}

func TestRetryOnlyFromErrorState(t *testing.T) {
	m, factory, _, _ := newTestMachine("film-1")
	require.NoError(t, m.Start(context.Background(), testFile(t, 1000)))

	err := m.Retry(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, filmbox_errors.ErrInvalidTransition))

	factory.last().cb.OnError(errors.New("boom"))
	require.NoError(t, m.Retry(context.Background()))
	assert.Equal(t, upload.StateUploading, m.Snapshot().State)
	assert.Equal(t, 2, factory.last().startCount())
}

func TestRetryReopensLastFileWhenTransportGone(t *testing.T) {
	m, factory, _, _ := newTestMachine("film-1")
	require.NoError(t, m.Start(context.Background(), testFile(t, 1000)))

	cb := factory.last().cb
	cb.OnError(errors.New("boom"))

	// simulate the transport being torn down
	m.registry.Remove(m.Session().UploadID)

	require.NoError(t, m.Retry(context.Background()))
	assert.Equal(t, 2, factory.calls(), "a replacement transport is built from the retained file")
	assert.Equal(t, upload.StateUploading, m.Snapshot().State)
}

func TestMarkTranscodingAndReady(t *testing.T) {
	m, factory, _, _ := newTestMachine("film-1")
	require.NoError(t, m.Start(context.Background(), testFile(t, 100)))
	factory.last().cb.OnSuccess()

	require.NoError(t, m.MarkTranscoding())
	assert.Equal(t, upload.StateTranscoding, m.Snapshot().State)
	require.NoError(t, m.MarkTranscoding(), "idempotent")

	require.NoError(t, m.MarkReady())
	assert.Equal(t, upload.StateReady, m.Snapshot().State)
	require.NoError(t, m.MarkReady(), "idempotent")

	err := m.MarkTranscoding()
	require.Error(t, err)
	assert.True(t, errors.Is(err, filmbox_errors.ErrInvalidTransition))
}

func TestMarkReadySkipsTranscodingState(t *testing.T) {
	m, factory, _, _ := newTestMachine("film-1")
	require.NoError(t, m.Start(context.Background(), testFile(t, 100)))
	factory.last().cb.OnSuccess()

	// a fast backend may report ready before transcoding was ever observed
	require.NoError(t, m.MarkReady())
	assert.Equal(t, upload.StateReady, m.Snapshot().State)
}

func TestMarkReadyInvalidFromUploading(t *testing.T) {
	m, _, _, _ := newTestMachine("film-1")
	require.NoError(t, m.Start(context.Background(), testFile(t, 100)))
	err := m.MarkReady()
	require.Error(t, err)
	assert.True(t, errors.Is(err, filmbox_errors.ErrInvalidTransition))
}

func TestStaleStateSnapsBackToUploading(t *testing.T) {
	m, factory, _, _ := newTestMachine("film-1")
	require.NoError(t, m.Start(context.Background(), testFile(t, 1000)))
	factory.last().cb.OnError(errors.New("blip"))
	assert.Equal(t, upload.StateError, m.Snapshot().State)

	// the transfer loop kept going and reports again
	factory.last().cb.OnProgress(700, 1000)
	assert.Equal(t, upload.StateUploading, m.Snapshot().State)
}
