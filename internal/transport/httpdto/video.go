package httpdto

import "filmbox/internal/domain/video"

type ResolveRequest struct {
	URL string `json:"url" binding:"required"`
}

type ManualLinkRequest struct {
	URL      string `json:"url" binding:"required"`
	Password string `json:"password"`
}

type VideoSourceResponse struct {
	Service      string `json:"service"`
	VideoID      string `json:"video_id,omitempty"`
	PlaybackURL  string `json:"playback_url"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	Playable     bool   `json:"playable"`
	Embeddable   bool   `json:"embeddable"`
}

func NewVideoSourceResponse(src video.Source) VideoSourceResponse {
	return VideoSourceResponse{
		Service:      string(src.Service),
		VideoID:      src.VideoID,
		PlaybackURL:  src.PlaybackURL,
		ThumbnailURL: src.ThumbnailURL,
		Playable:     src.Playable,
		Embeddable:   src.Embeddable(),
	}
}
