package uploader

import (
	"io"
	"os"

	filmbox_errors "filmbox/pkg/errors"
)

// LocalFile is the read-only handle handed over by the external file picker.
// The caller owns the underlying file; the engine only ever reads it.
type LocalFile struct {
	Path     string
	Size     int64
	MimeType string
	Width    int
	Height   int
}

// Open returns a positioned reader over the file content.
func (f LocalFile) Open() (io.ReaderAt, io.Closer, error) {
	if f.Path == "" {
		return nil, nil, filmbox_errors.ErrInvalidInput
	}
	fh, err := os.Open(f.Path)
	if err != nil {
		return nil, nil, err
	}
	return fh, fh, nil
}
