package uploader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	filmbox_errors "filmbox/pkg/errors"
)

// Correlation header sent on every request so the server can tie chunks to
// the right session even after a client process restart.
const UploadIDHeader = "x-upload-id"

const offsetHeader = "Upload-Offset"

// HTTPConfig configures the offset-based resumable HTTP transport.
type HTTPConfig struct {
	Endpoint  string
	Headers   map[string]string
	ChunkSize int64
	Client    *http.Client
}

// NewHTTPFactory returns a factory producing offset-protocol transports. The
// wire exchange is HEAD to learn the remote offset, then sequential PATCH
// requests of at most ChunkSize bytes until the offset reaches the file size.
func NewHTTPFactory(cfg HTTPConfig) TransportFactory {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 5 * 1024 * 1024
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 2 * time.Minute}
	}
	return func(uploadID string, src io.ReaderAt, size int64, cb Callbacks) ChunkTransport {
		return &httpTransport{
			cfg:      cfg,
			uploadID: uploadID,
			src:      src,
			size:     size,
			cb:       cb,
		}
	}
}

type httpTransport struct {
	cfg      HTTPConfig
	uploadID string
	src      io.ReaderAt
	size     int64
	cb       Callbacks

	mu      sync.Mutex
	offset  int64
	paused  bool
	running bool
	done    bool
}

func (t *httpTransport) Start(ctx context.Context) {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		if t.cb.OnError != nil {
			t.cb.OnError(filmbox_errors.ErrTransportDone)
		}
		return
	}
	if t.running {
		// one transfer loop per upload key
		t.mu.Unlock()
		return
	}
	t.paused = false
	t.running = true
	t.mu.Unlock()

	go t.run(ctx)
}

func (t *httpTransport) Pause() {
	t.mu.Lock()
	t.paused = true
	t.mu.Unlock()
}

func (t *httpTransport) Done() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

func (t *httpTransport) run(ctx context.Context) {
	offset, err := t.probeOffset(ctx)
	if err != nil {
		t.fail(err)
		return
	}
	t.setOffset(offset)

	for {
		t.mu.Lock()
		if t.paused {
			t.running = false
			t.mu.Unlock()
			return
		}
		offset = t.offset
		t.mu.Unlock()

		if ctx.Err() != nil {
			t.fail(ctx.Err())
			return
		}
		if offset >= t.size {
			break
		}

		n := t.cfg.ChunkSize
		if remaining := t.size - offset; remaining < n {
			n = remaining
		}
		newOffset, err := t.sendChunk(ctx, offset, n)
		if err != nil {
			t.fail(err)
			return
		}
		t.setOffset(newOffset)
		if t.cb.OnProgress != nil {
			t.cb.OnProgress(newOffset, t.size)
		}
	}

	t.mu.Lock()
	t.done = true
	t.running = false
	t.mu.Unlock()
	if t.cb.OnSuccess != nil {
		t.cb.OnSuccess()
	}
}

// probeOffset asks the server how many bytes it already holds. A missing
// resource means nothing was received yet.
func (t *httpTransport) probeOffset(ctx context.Context) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, t.resourceURL(), nil)
	if err != nil {
		return 0, err
	}
	t.applyHeaders(req)

	resp, err := t.cfg.Client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return 0, nil
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return 0, fmt.Errorf("offset probe: unexpected status %d", resp.StatusCode)
	}
	offset, err := strconv.ParseInt(resp.Header.Get(offsetHeader), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("offset probe: bad %s header: %w", offsetHeader, err)
	}
	return offset, nil
}

func (t *httpTransport) sendChunk(ctx context.Context, offset, n int64) (int64, error) {
	body := io.NewSectionReader(t.src, offset, n)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, t.resourceURL(), body)
	if err != nil {
		return 0, err
	}
	t.applyHeaders(req)
	req.Header.Set("Content-Type", "application/offset+octet-stream")
	req.Header.Set(offsetHeader, strconv.FormatInt(offset, 10))
	req.Header.Set("Upload-Length", strconv.FormatInt(t.size, 10))
	req.ContentLength = n

	resp, err := t.cfg.Client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("chunk at offset %d: unexpected status %d", offset, resp.StatusCode)
	}
	if v := resp.Header.Get(offsetHeader); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			return parsed, nil
		}
	}
	return offset + n, nil
}

func (t *httpTransport) resourceURL() string {
	return t.cfg.Endpoint + "/" + t.uploadID
}

func (t *httpTransport) applyHeaders(req *http.Request) {
	for k, v := range t.cfg.Headers {
		req.Header.Set(k, v)
	}
	req.Header.Set(UploadIDHeader, t.uploadID)
}

func (t *httpTransport) setOffset(offset int64) {
	t.mu.Lock()
	t.offset = offset
	t.mu.Unlock()
}

func (t *httpTransport) fail(err error) {
	t.mu.Lock()
	t.running = false
	t.paused = true
	t.mu.Unlock()
	if t.cb.OnError != nil {
		t.cb.OnError(fmt.Errorf("%w: %v", filmbox_errors.ErrTransport, err))
	}
}
