package resolver

import (
	"regexp"
	"strings"

	"filmbox/internal/domain/video"
)

// InternalRecord is a server-confirmed upload: a film-video record whose file
// identifier has been assigned. Resolution of an internal record never
// touches the URL matchers.
type InternalRecord struct {
	FileID       string
	StreamURL    string
	ThumbnailURL string
	Playable     bool
}

// matcher pairs a provider predicate with its id extractor and URL builders.
// The list is evaluated in order because provider URL grammars overlap on
// malformed inputs; first match wins.
type matcher struct {
	service video.Service
	pattern *regexp.Regexp
	build   func(id, raw string) video.Source
}

var matchers = []matcher{
	{
		service: video.ServiceYouTube,
		pattern: regexp.MustCompile(`(?:youtube\.com/(?:watch\?(?:[^#]*&)?v=|embed/|shorts/)|youtu\.be/)([A-Za-z0-9_-]{11})`),
		build: func(id, raw string) video.Source {
			return video.Source{
				Service:      video.ServiceYouTube,
				VideoID:      id,
				PlaybackURL:  "https://www.youtube.com/embed/" + id,
				ThumbnailURL: "https://img.youtube.com/vi/" + id + "/hqdefault.jpg",
				Playable:     true,
			}
		},
	},
	{
		service: video.ServiceVimeo,
		pattern: regexp.MustCompile(`vimeo\.com/(?:video/)?(\d+)`),
		build: func(id, raw string) video.Source {
			return video.Source{
				Service:      video.ServiceVimeo,
				VideoID:      id,
				PlaybackURL:  "https://player.vimeo.com/video/" + id,
				ThumbnailURL: "https://vumbnail.com/" + id + ".jpg",
				Playable:     true,
			}
		},
	},
	{
		service: video.ServiceGoogleDrive,
		pattern: regexp.MustCompile(`drive\.google\.com/file/d/([^/?#]+)`),
		build: func(id, raw string) video.Source {
			// no embeddable transform and no stable thumbnail endpoint
			return video.Source{
				Service:     video.ServiceGoogleDrive,
				VideoID:     id,
				PlaybackURL: raw,
				Playable:    true,
			}
		},
	},
	{
		service: video.ServiceDailyMotion,
		pattern: regexp.MustCompile(`dailymotion\.com/video/([A-Za-z0-9]+)`),
		build: func(id, raw string) video.Source {
			return video.Source{
				Service:      video.ServiceDailyMotion,
				VideoID:      id,
				PlaybackURL:  "https://www.dailymotion.com/services/oembed?url=https%3A%2F%2Fwww.dailymotion.com%2Fvideo%2F" + id,
				ThumbnailURL: "https://www.dailymotion.com/thumbnail/video/" + id,
				Playable:     true,
			}
		},
	},
}

// Resolve classifies a URL into a known hosting service and derives playback
// and thumbnail URLs. It is pure and deterministic: the same input always
// yields the same Source. Unrecognized inputs come back as a generic link
// with the URL unchanged, to be opened externally.
func Resolve(rawURL string) video.Source {
	trimmed := strings.TrimSpace(rawURL)
	for _, m := range matchers {
		if groups := m.pattern.FindStringSubmatch(trimmed); groups != nil {
			return m.build(groups[1], trimmed)
		}
	}
	return video.Source{
		Service:     video.ServiceGenericLink,
		PlaybackURL: trimmed,
		Playable:    false,
	}
}

// ResolveInternal maps a ready upload record to an internal source. Playback
// and thumbnail URLs are server-issued; playability follows the
// server-reported readiness flag.
func ResolveInternal(rec InternalRecord) video.Source {
	return video.Source{
		Service:      video.ServiceInternal,
		VideoID:      rec.FileID,
		PlaybackURL:  rec.StreamURL,
		ThumbnailURL: rec.ThumbnailURL,
		Playable:     rec.Playable,
	}
}
