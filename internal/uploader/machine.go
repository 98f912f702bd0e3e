package uploader

import (
	"context"
	"fmt"
	"io"
	"sync"

	"filmbox/internal/domain/upload"
	filmbox_errors "filmbox/pkg/errors"
)

// RecordRef identifies a backend film-video record and its transport key.
type RecordRef struct {
	ID       string
	UploadID string
}

// FileMeta is the descriptive metadata sent once at record creation.
type FileMeta struct {
	MimeType   string
	TotalBytes int64
	SizeMB     float64
	Width      int
	Height     int
}

// RecordGateway is the slice of the backend the machine needs: creating a
// fresh film-video record and discarding one.
type RecordGateway interface {
	CreateUploadRecord(ctx context.Context, filmID string, meta FileMeta) (RecordRef, error)
	ResetUploadRecord(ctx context.Context, filmID string) error
}

// Snapshot is the read-only projection handed to callers. The UI renders this
// and never touches the session itself.
type Snapshot struct {
	State         upload.State `json:"state"`
	UploadedBytes int64        `json:"uploaded_bytes"`
	TotalBytes    int64        `json:"total_bytes"`
	Percent       int          `json:"percent"`
	Label         string       `json:"label"`
	Paused        bool         `json:"paused"`
}

// Machine drives one film's upload session through its lifecycle:
//
//	NotCreated -> Created -> Uploading -> Uploaded -> Transcoding -> Ready
//	                          |     ^
//	                          v     |
//	                         Error -+  (resume)
//
// All operations are serialized by an internal mutex; transport callbacks
// re-enter through the same lock. Cancel is the only destructive operation.
type Machine struct {
	mu       sync.Mutex
	session  upload.UploadSession
	registry *Registry
	factory  TransportFactory
	gateway  RecordGateway
	sink     EventSink

	paused   bool
	lastFile *LocalFile
	closer   io.Closer
	pending  []pendingEvent
}

// NewMachine wraps a session record, freshly created or reloaded from storage
// after a restart.
func NewMachine(session upload.UploadSession, registry *Registry, factory TransportFactory, gateway RecordGateway, sink EventSink) *Machine {
	if session.State == "" {
		session.State = upload.StateNotCreated
	}
	if sink == nil {
		sink = NopSink
	}
	m := &Machine{
		session:  session,
		registry: registry,
		factory:  factory,
		gateway:  gateway,
		sink:     sink,
	}
	// A record in Uploading with no live transport is a transfer that did not
	// survive a restart. It comes back paused; the owner decides whether to
	// resume, and IsLive must not report a dead transfer.
	if session.State == upload.StateUploading {
		if _, ok := registry.Get(session.UploadID); !ok {
			m.paused = true
		}
	}
	return m
}

// Start registers a backend upload record (or reuses the existing unfinished
// one) and begins streaming. It returns once the transfer goroutine is
// launched; progress arrives through the sink.
func (m *Machine) Start(ctx context.Context, file LocalFile) error {
	if file.Size <= 0 {
		return fmt.Errorf("%w: file size must be positive", filmbox_errors.ErrInvalidInput)
	}

	m.mu.Lock()

	// A live transport for this key means a transfer is already running;
	// reuse it rather than racing a second one.
	if t, ok := m.registry.Get(m.session.UploadID); ok && m.session.UploadID != "" {
		m.paused = false
		m.setStateLocked(upload.StateUploading)
		m.flushAndUnlock()
		t.Start(ctx)
		return nil
	}

	// An existing unfinished record makes this a resumption: the offset on the
	// server indexes into one specific file's bytes, so the supplied file must
	// pass the same gate Resume enforces before any transport is built.
	if m.session.RecordID != "" && m.session.TotalBytes > 0 {
		if err := ValidateResume(m.session, file); err != nil {
			m.mu.Unlock()
			return err
		}
	}

	if m.session.RecordID == "" {
		ref, err := m.gateway.CreateUploadRecord(ctx, m.session.FilmID, FileMeta{
			MimeType:   file.MimeType,
			TotalBytes: file.Size,
			SizeMB:     float64(file.Size) / (1024 * 1024),
			Width:      file.Width,
			Height:     file.Height,
		})
		if err != nil {
			m.mu.Unlock()
			return fmt.Errorf("%w: %v", filmbox_errors.ErrRecordCreation, err)
		}
		m.session.RecordID = ref.ID
		m.session.UploadID = ref.UploadID
		if m.session.UploadID == "" {
			m.session.UploadID = upload.UploadKey(ref.ID)
		}
		m.session.MimeType = file.MimeType
		m.session.TotalBytes = file.Size
		m.session.UploadedBytes = 0
		m.session.Width = file.Width
		m.session.Height = file.Height
		m.setStateLocked(upload.StateCreated)
	}

	if err := m.attachTransportLocked(file); err != nil {
		m.flushAndUnlock()
		return err
	}

	m.paused = false
	m.setStateLocked(upload.StateUploading)
	t, _ := m.registry.Get(m.session.UploadID)
	m.flushAndUnlock()
	t.Start(ctx)
	return nil
}

// Pause cooperatively suspends the in-flight transfer without discarding the
// buffered offset. No-op unless uploading.
func (m *Machine) Pause() {
	m.mu.Lock()
	if m.session.State != upload.StateUploading || m.paused {
		m.mu.Unlock()
		return
	}
	if t, ok := m.registry.Get(m.session.UploadID); ok {
		t.Pause()
	}
	m.paused = true
	m.mu.Unlock()
}

// Resume continues a previously created upload. When the transport client is
// still in memory it simply continues; otherwise the caller must supply a
// file, which is validated against the recorded byte size before any
// transport is constructed.
func (m *Machine) Resume(ctx context.Context, file *LocalFile) error {
	m.mu.Lock()

	if m.session.UploadID == "" {
		m.mu.Unlock()
		return fmt.Errorf("%w: no upload session to resume", filmbox_errors.ErrInvalidInput)
	}

	if t, ok := m.registry.Get(m.session.UploadID); ok {
		m.paused = false
		m.setStateLocked(upload.StateUploading)
		m.flushAndUnlock()
		t.Start(ctx)
		return nil
	}

	if file == nil {
		m.mu.Unlock()
		return fmt.Errorf("%w: a file is required to resume", filmbox_errors.ErrInvalidInput)
	}
	if err := ValidateResume(m.session, *file); err != nil {
		m.mu.Unlock()
		return err
	}

	if err := m.attachTransportLocked(*file); err != nil {
		m.mu.Unlock()
		return err
	}
	m.paused = false
	m.setStateLocked(upload.StateUploading)
	t, _ := m.registry.Get(m.session.UploadID)
	m.flushAndUnlock()
	t.Start(ctx)
	return nil
}

// Cancel pauses any transfer and resets the backend record to a fresh, empty
// session. All progress is discarded; this is the only safe way to switch
// video files mid-session.
func (m *Machine) Cancel(ctx context.Context) error {
	m.mu.Lock()

	if t, ok := m.registry.Get(m.session.UploadID); ok {
		t.Pause()
		m.registry.Remove(m.session.UploadID)
	}
	m.closeFileLocked()

	if err := m.gateway.ResetUploadRecord(ctx, m.session.FilmID); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("%w: %v", filmbox_errors.ErrRecordCreation, err)
	}

	m.session.RecordID = ""
	m.session.UploadID = ""
	m.session.MimeType = ""
	m.session.TotalBytes = 0
	m.session.UploadedBytes = 0
	m.session.Width = 0
	m.session.Height = 0
	m.lastFile = nil
	m.paused = false
	m.setStateLocked(upload.StateNotCreated)
	m.flushAndUnlock()
	return nil
}

// Retry re-invokes Resume from the Error state, reusing the last known file
// handle when the transport is gone. Without either, the user must re-pick a
// file.
func (m *Machine) Retry(ctx context.Context) error {
	m.mu.Lock()
	if m.session.State != upload.StateError {
		m.mu.Unlock()
		return fmt.Errorf("%w: retry is only valid from the error state", filmbox_errors.ErrInvalidTransition)
	}
	if _, ok := m.registry.Get(m.session.UploadID); ok {
		m.mu.Unlock()
		return m.Resume(ctx, nil)
	}
	file := m.lastFile
	m.mu.Unlock()
	if file == nil {
		return fmt.Errorf("%w: no file handle retained, select the file again", filmbox_errors.ErrInvalidInput)
	}
	return m.Resume(ctx, file)
}

// IsLive reports whether the upload is currently transferring and not paused.
// Callers use this to intercept navigation away from the upload screen.
func (m *Machine) IsLive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.State == upload.StateUploading && !m.paused
}

// Snapshot returns the read-only progress projection.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		State:         m.session.State,
		UploadedBytes: m.session.UploadedBytes,
		TotalBytes:    m.session.TotalBytes,
		Percent:       m.session.Percent(),
		Label:         m.session.ProgressLabel(),
		Paused:        m.paused,
	}
}

// Session returns a copy of the underlying record.
func (m *Machine) Session() upload.UploadSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// MarkTranscoding records that the server reported the uploaded file entered
// transcoding.
func (m *Machine) MarkTranscoding() error {
	m.mu.Lock()
	switch m.session.State {
	case upload.StateTranscoding:
		m.mu.Unlock()
		return nil
	case upload.StateUploaded:
		m.setStateLocked(upload.StateTranscoding)
		m.flushAndUnlock()
		return nil
	default:
		state := m.session.State
		m.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", filmbox_errors.ErrInvalidTransition, state, upload.StateTranscoding)
	}
}

// MarkReady records server-confirmed transcoding completion.
func (m *Machine) MarkReady() error {
	m.mu.Lock()
	switch m.session.State {
	case upload.StateReady:
		m.mu.Unlock()
		return nil
	case upload.StateUploaded, upload.StateTranscoding:
		m.setStateLocked(upload.StateReady)
		m.flushAndUnlock()
		return nil
	default:
		state := m.session.State
		m.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", filmbox_errors.ErrInvalidTransition, state, upload.StateReady)
	}
}

// attachTransportLocked opens the file and registers a transport for the
// session's upload key. If a transport raced in for the same key, the
// existing one wins and the new handle is released.
func (m *Machine) attachTransportLocked(file LocalFile) error {
	src, closer, err := file.Open()
	if err != nil {
		return err
	}

	t := m.factory(m.session.UploadID, src, file.Size, Callbacks{
		OnProgress: m.onProgress,
		OnSuccess:  m.onSuccess,
		OnError:    m.onError,
	})
	if _, added := m.registry.Add(m.session.UploadID, t); !added {
		_ = closer.Close()
		return nil
	}

	m.closeFileLocked()
	m.closer = closer
	f := file
	m.lastFile = &f
	return nil
}

func (m *Machine) onProgress(uploaded, total int64) {
	m.mu.Lock()
	if uploaded < m.session.UploadedBytes {
		// progress is non-decreasing per session
		m.mu.Unlock()
		return
	}
	m.session.UploadedBytes = uploaded
	if total > 0 {
		m.session.TotalBytes = total
	}
	// A transfer surviving a restart keeps reporting; recompute the state so
	// a stale record snaps back to Uploading.
	if m.session.State != upload.StateUploading {
		m.session.State = upload.StateUploading
		m.emitLocked(StateEvent{State: upload.StateUploading})
	}
	m.emitLocked(ProgressEvent{
		Uploaded: uploaded,
		Total:    m.session.TotalBytes,
		Percent:  m.session.Percent(),
		Label:    m.session.ProgressLabel(),
	})
	m.flushAndUnlock()
}

func (m *Machine) onSuccess() {
	m.mu.Lock()
	m.session.UploadedBytes = m.session.TotalBytes
	m.registry.Remove(m.session.UploadID)
	m.closeFileLocked()
	m.setStateLocked(upload.StateUploaded)
	m.flushAndUnlock()
}

func (m *Machine) onError(err error) {
	m.mu.Lock()
	m.paused = true
	m.session.State = upload.StateError
	m.emitLocked(StateEvent{State: upload.StateError})
	m.emitLocked(ErrorEvent{Kind: "transport", Message: err.Error()})
	m.flushAndUnlock()
}

func (m *Machine) setStateLocked(s upload.State) {
	if m.session.State == s {
		return
	}
	m.session.State = s
	m.emitLocked(StateEvent{State: s})
}

func (m *Machine) closeFileLocked() {
	if m.closer != nil {
		_ = m.closer.Close()
		m.closer = nil
	}
}

// Pending events are flushed after the lock is released so sinks may call
// back into the machine.
type pendingEvent struct {
	session upload.UploadSession
	ev      Event
}

func (m *Machine) emitLocked(ev Event) {
	m.pending = append(m.pending, pendingEvent{session: m.session, ev: ev})
}

func (m *Machine) flushAndUnlock() {
	pending := m.pending
	m.pending = nil
	sink := m.sink
	m.mu.Unlock()
	for _, p := range pending {
		sink(p.session, p.ev)
	}
}
