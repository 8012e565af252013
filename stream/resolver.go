package stream

import (
	"net/url"
	"regexp"
	"strings"
)

type Kind string

const (
	// KindDirect is played as-is by the video element.
	KindDirect Kind = "direct"
	// KindEmbed is shown through an embedded player.
	KindEmbed Kind = "embed"
	// KindConverted is served by the media server after RTSP to HLS conversion.
	KindConverted Kind = "converted"
)

// Stream is a playable media URL and how to present it.
type Stream struct {
	Kind Kind   `json:"kind"`
	URL  string `json:"url"`
}

// Resolver turns a configured stream URL into something the player can use.
type Resolver interface {
	Resolve(raw string) Stream
}

var videoID = regexp.MustCompile(`^[A-Za-z0-9_-]{6,}$`)

// PatternResolver selects a stream kind by matching the URL's scheme and host.
type PatternResolver struct {
	MediaServerURL string
	DefaultURL     string
}

func NewResolver(mediaServerURL, defaultURL string) *PatternResolver {
	return &PatternResolver{
		MediaServerURL: strings.TrimRight(mediaServerURL, "/"),
		DefaultURL:     defaultURL,
	}
}

func (r *PatternResolver) Resolve(raw string) Stream {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Stream{Kind: KindDirect, URL: r.DefaultURL}
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Stream{Kind: KindDirect, URL: raw}
	}

	switch strings.ToLower(u.Scheme) {
	case "rtsp", "rtsps":
		return Stream{Kind: KindConverted, URL: r.converted(u)}
	case "http", "https":
		if id, ok := youTubeID(u); ok {
			return Stream{Kind: KindEmbed, URL: "https://www.youtube.com/embed/" + id}
		}
	}
	return Stream{Kind: KindDirect, URL: raw}
}

// converted maps rtsp://host/live/cam1 to <media server>/live/cam1/index.m3u8.
func (r *PatternResolver) converted(u *url.URL) string {
	path := strings.Trim(u.Path, "/")
	if path == "" {
		path = u.Hostname()
	}
	return r.MediaServerURL + "/" + path + "/index.m3u8"
}

func youTubeID(u *url.URL) (string, bool) {
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")

	var id string
	switch host {
	case "youtu.be":
		id = strings.Trim(u.Path, "/")
	case "youtube.com", "youtube-nocookie.com":
		segments := strings.Split(strings.Trim(u.Path, "/"), "/")
		switch {
		case segments[0] == "watch":
			id = u.Query().Get("v")
		case len(segments) == 2 && (segments[0] == "shorts" || segments[0] == "embed" || segments[0] == "live"):
			id = segments[1]
		}
	default:
		return "", false
	}

	if !videoID.MatchString(id) {
		return "", false
	}
	return id, true
}
