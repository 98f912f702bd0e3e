package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"filmbox/internal/uploader"
	filmbox_errors "filmbox/pkg/errors"
)

// Client talks to the backend gateway: film-video record management and
// transcoding status. Every response uses the app-wide success envelope.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Code    string          `json:"code,omitempty"`
}

// UploadRecord is the backend's view of a film's video upload.
type UploadRecord struct {
	ID            string `json:"id"`
	FileID        string `json:"file_id,omitempty"`
	Status        string `json:"status"`
	UploadedBytes int64  `json:"uploaded_bytes"`
	TotalBytes    int64  `json:"total_bytes"`
	StreamURL     string `json:"stream_url,omitempty"`
	ThumbnailURL  string `json:"thumbnail_url,omitempty"`
	Playable      bool   `json:"playable"`
}

type createRecordRequest struct {
	MimeType   string  `json:"mime_type"`
	TotalBytes int64   `json:"total_bytes"`
	SizeMB     float64 `json:"size_mb"`
	Width      int     `json:"width,omitempty"`
	Height     int     `json:"height,omitempty"`
}

type createRecordResponse struct {
	ID       string `json:"id"`
	UploadID string `json:"upload_id"`
}

// CreateUploadRecord registers a new film-video record and returns its id and
// transport key.
func (c *Client) CreateUploadRecord(ctx context.Context, filmID string, meta uploader.FileMeta) (uploader.RecordRef, error) {
	body := createRecordRequest{
		MimeType:   meta.MimeType,
		TotalBytes: meta.TotalBytes,
		SizeMB:     meta.SizeMB,
		Width:      meta.Width,
		Height:     meta.Height,
	}
	var out createRecordResponse
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/films/%s/upload", filmID), body, &out); err != nil {
		return uploader.RecordRef{}, fmt.Errorf("%w: %v", filmbox_errors.ErrRecordCreation, err)
	}
	return uploader.RecordRef{ID: out.ID, UploadID: out.UploadID}, nil
}

type resetRecordRequest struct {
	MimeType   string  `json:"mime_type,omitempty"`
	TotalBytes int64   `json:"total_bytes,omitempty"`
	SizeMB     float64 `json:"size_mb,omitempty"`
}

type resetRecordResponse struct {
	ID *string `json:"id"`
}

// Reset discards the current record server-side. Supplying meta asks the
// backend to open a replacement record in the same call; a nil id in the
// response means "cleared, no new upload requested".
func (c *Client) Reset(ctx context.Context, filmID string, meta *uploader.FileMeta) (*uploader.RecordRef, error) {
	var body resetRecordRequest
	if meta != nil {
		body = resetRecordRequest{MimeType: meta.MimeType, TotalBytes: meta.TotalBytes, SizeMB: meta.SizeMB}
	}
	var out resetRecordResponse
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/films/%s/upload/reset", filmID), body, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", filmbox_errors.ErrRecordCreation, err)
	}
	if out.ID == nil {
		return nil, nil
	}
	id := *out.ID
	return &uploader.RecordRef{ID: id}, nil
}

// ResetUploadRecord satisfies the machine's gateway contract.
func (c *Client) ResetUploadRecord(ctx context.Context, filmID string) error {
	_, err := c.Reset(ctx, filmID, nil)
	return err
}

// GetUploadRecord fetches the backend record, polled to learn transcoding
// completion.
func (c *Client) GetUploadRecord(ctx context.Context, filmID string) (UploadRecord, error) {
	var out UploadRecord
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/films/%s/upload", filmID), nil, &out); err != nil {
		return UploadRecord{}, err
	}
	return out, nil
}

type transcodeStatusResponse struct {
	Playable bool `json:"playable"`
}

// GetTranscodeStatus checks whether an internal file is streaming-ready.
func (c *Client) GetTranscodeStatus(ctx context.Context, fileID string) (bool, error) {
	var out transcodeStatusResponse
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/files/%s/status", fileID), nil, &out); err != nil {
		return false, err
	}
	return out.Playable, nil
}

type manualLinkRequest struct {
	VideoURL string `json:"video_url"`
	Password string `json:"password,omitempty"`
}

// SetManualVideoLink persists an externally hosted video link for the film,
// bypassing the upload path.
func (c *Client) SetManualVideoLink(ctx context.Context, filmID, videoURL, password string) error {
	body := manualLinkRequest{VideoURL: videoURL, Password: password}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/films/%s/video-link", filmID), body, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if !env.Success {
		if env.Error == "" {
			env.Error = fmt.Sprintf("request failed with status %d", resp.StatusCode)
		}
		return fmt.Errorf("gateway: %s", env.Error)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
	}
	return nil
}
