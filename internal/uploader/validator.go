package uploader

import (
	"fmt"

	"filmbox/internal/domain/upload"
	filmbox_errors "filmbox/pkg/errors"
)

// ValidateResume is the gate in front of every resume that needs a freshly
// selected file. The resumable protocol keys continuation by offset into one
// specific file's content, so a candidate whose byte length differs from the
// session's recorded total is rejected before any transport call. Size
// equality is a necessary, not sufficient, approximation of "same file"; no
// content hash is computed, deliberately matching the recorded session data.
func ValidateResume(session upload.UploadSession, candidate LocalFile) error {
	if candidate.Size != session.TotalBytes {
		return fmt.Errorf("%w: selected %d bytes, session expects %d",
			filmbox_errors.ErrSizeMismatch, candidate.Size, session.TotalBytes)
	}
	return nil
}
