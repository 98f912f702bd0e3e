package filmbox_errors

import (
	"errors"
	"time"
)

// Common errors
var (
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInvalidInput      = errors.New("invalid input")
	ErrAlreadyExists     = errors.New("already exists")
	ErrRateLimited       = errors.New("rate limited")

	// Upload error taxonomy
	ErrTransport         = errors.New("transport failure")
	ErrSizeMismatch      = errors.New("selected file size does not match the upload session")
	ErrTranscodeNotReady = errors.New("transcode not ready")
	ErrRecordCreation    = errors.New("upload record creation failed")
	ErrNotUploading      = errors.New("no upload in progress")
	ErrTransportDone     = errors.New("transport already completed")
)

// NowPtr returns a pointer to current time
func NowPtr() *time.Time {
	now := time.Now()
	return &now
}
