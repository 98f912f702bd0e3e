package video

// Service identifies a known video hosting provider.
type Service string

const (
	ServiceYouTube     Service = "youtube"
	ServiceVimeo       Service = "vimeo"
	ServiceDailyMotion Service = "dailymotion"
	ServiceGoogleDrive Service = "google_drive"
	ServiceInternal    Service = "internal"
	ServiceGenericLink Service = "generic_link"
)

// Source describes a playable (or externally openable) video.
// Invariant: Service != ServiceGenericLink implies VideoID != "".
type Source struct {
	Service      Service `json:"service"`
	VideoID      string  `json:"video_id,omitempty"`
	PlaybackURL  string  `json:"playback_url"`
	ThumbnailURL string  `json:"thumbnail_url,omitempty"`
	Playable     bool    `json:"playable"`
}

// Embeddable reports whether the playback URL can be rendered inline.
// Generic links must be opened externally instead.
func (s Source) Embeddable() bool {
	return s.Service != ServiceGenericLink
}
