package services

import (
	"context"
	"errors"
	"testing"

	"filmbox/internal/domain/video"
	filmbox_errors "filmbox/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubVideoGateway struct {
	record    UploadRecordView
	recordErr error
	playable  bool
	linkCalls []string
	linkErr   error
}

func (g *stubVideoGateway) GetUploadRecord(ctx context.Context, filmID string) (UploadRecordView, error) {
	return g.record, g.recordErr
}

func (g *stubVideoGateway) GetTranscodeStatus(ctx context.Context, fileID string) (bool, error) {
	return g.playable, nil
}

func (g *stubVideoGateway) SetManualVideoLink(ctx context.Context, filmID, videoURL, password string) error {
	g.linkCalls = append(g.linkCalls, videoURL)
	return g.linkErr
}

func TestVideoServiceResolve(t *testing.T) {
	svc := NewVideoService(&stubVideoGateway{})

	src, err := svc.Resolve("https://youtu.be/abc123XYZ9_")
	require.NoError(t, err)
	assert.Equal(t, video.ServiceYouTube, src.Service)

	_, err = svc.Resolve("   ")
	require.Error(t, err)
	assert.True(t, errors.Is(err, filmbox_errors.ErrInvalidInput))
}

func TestVideoServiceResolveFilm(t *testing.T) {
	gw := &stubVideoGateway{record: UploadRecordView{
		ID:        "rec-1",
		FileID:    "file-1",
		StreamURL: "https://cdn.example.com/file-1.m3u8",
		Playable:  true,
	}}
	svc := NewVideoService(gw)

	src, err := svc.ResolveFilm(context.Background(), "film-1")
	require.NoError(t, err)
	assert.Equal(t, video.ServiceInternal, src.Service)
	assert.Equal(t, "file-1", src.VideoID)
	assert.True(t, src.Playable)
}

func TestVideoServiceResolveFilmWithoutFile(t *testing.T) {
	svc := NewVideoService(&stubVideoGateway{record: UploadRecordView{ID: "rec-1"}})
	_, err := svc.ResolveFilm(context.Background(), "film-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, filmbox_errors.ErrNotFound))
}

func TestVideoServiceEnsurePlayable(t *testing.T) {
	gw := &stubVideoGateway{playable: false}
	svc := NewVideoService(gw)

	err := svc.EnsurePlayable(context.Background(), "file-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, filmbox_errors.ErrTranscodeNotReady))

	gw.playable = true
	require.NoError(t, svc.EnsurePlayable(context.Background(), "file-1"))

	err = svc.EnsurePlayable(context.Background(), "")
	assert.True(t, errors.Is(err, filmbox_errors.ErrInvalidInput))
}

func TestVideoServiceSetManualLink(t *testing.T) {
	gw := &stubVideoGateway{}
	svc := NewVideoService(gw)

	src, err := svc.SetManualLink(context.Background(), "film-1", "https://vimeo.com/76979871", "pw")
	require.NoError(t, err)
	assert.Equal(t, video.ServiceVimeo, src.Service)
	require.Len(t, gw.linkCalls, 1)

	// an unparseable URL still stores as a generic link
	src, err = svc.SetManualLink(context.Background(), "film-1", "https://example.com/v.mp4", "")
	require.NoError(t, err)
	assert.Equal(t, video.ServiceGenericLink, src.Service)

	// but an empty URL never reaches the backend
	_, err = svc.SetManualLink(context.Background(), "film-1", "", "")
	require.Error(t, err)
	assert.Len(t, gw.linkCalls, 2)
}
