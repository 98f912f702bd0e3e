package httpdto

import "filmbox/internal/uploader"

type StartUploadRequest struct {
	Path     string `json:"path" binding:"required"`
	Size     int64  `json:"size" binding:"required"`
	MimeType string `json:"mime_type"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

func (r StartUploadRequest) File() uploader.LocalFile {
	return uploader.LocalFile{
		Path:     r.Path,
		Size:     r.Size,
		MimeType: r.MimeType,
		Width:    r.Width,
		Height:   r.Height,
	}
}

// ResumeUploadRequest carries the re-selected file. All fields optional; an
// empty body means "continue with the transport already in memory".
type ResumeUploadRequest struct {
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

func (r ResumeUploadRequest) File() *uploader.LocalFile {
	if r.Path == "" && r.Size == 0 {
		return nil
	}
	return &uploader.LocalFile{
		Path:     r.Path,
		Size:     r.Size,
		MimeType: r.MimeType,
		Width:    r.Width,
		Height:   r.Height,
	}
}

type UploadStatusResponse struct {
	State         string `json:"state"`
	UploadedBytes int64  `json:"uploaded_bytes"`
	TotalBytes    int64  `json:"total_bytes"`
	Percent       int    `json:"percent"`
	Label         string `json:"label"`
	Paused        bool   `json:"paused"`
}

func NewUploadStatusResponse(snap uploader.Snapshot) UploadStatusResponse {
	return UploadStatusResponse{
		State:         string(snap.State),
		UploadedBytes: snap.UploadedBytes,
		TotalBytes:    snap.TotalBytes,
		Percent:       snap.Percent,
		Label:         snap.Label,
		Paused:        snap.Paused,
	}
}

type UploadLiveResponse struct {
	Live bool `json:"live"`
}
