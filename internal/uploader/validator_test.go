package uploader

import (
	"errors"
	"testing"

	"filmbox/internal/domain/upload"
	filmbox_errors "filmbox/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateResumeAcceptsMatchingSize(t *testing.T) {
	session := upload.UploadSession{TotalBytes: 1024}
	err := ValidateResume(session, LocalFile{Size: 1024})
	require.NoError(t, err)
}

func TestValidateResumeRejectsSizeMismatch(t *testing.T) {
	session := upload.UploadSession{TotalBytes: 1024}
	err := ValidateResume(session, LocalFile{Size: 2048})
	require.Error(t, err)
	assert.True(t, errors.Is(err, filmbox_errors.ErrSizeMismatch))
}

func TestValidateResumeIgnoresEverythingButSize(t *testing.T) {
	// Same byte length with a different name and mime type passes; the
	// check is a size-equality approximation, not an identity proof.
	session := upload.UploadSession{TotalBytes: 500, MimeType: "video/mp4"}
	err := ValidateResume(session, LocalFile{Path: "/tmp/other.mov", Size: 500, MimeType: "video/quicktime"})
	require.NoError(t, err)
}
