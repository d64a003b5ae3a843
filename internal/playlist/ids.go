package playlist

import (
	"log/slog"
	"net/url"
	"strings"
)

func (r *Resolver) ExtractPlaylistID(rawURL string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err == nil {
		if id := u.Query().Get("list"); id != "" {
			return id, true
		}
	}
	r.log.Error("playlist id extraction error", slog.String("url", rawURL))
	return "", false
}

// ExtractVideoID accepts https://youtu.be/{id} and
// https://www.youtube.com/watch?v={id}.
func (r *Resolver) ExtractVideoID(rawURL string) (string, bool) {
	id := videoID(rawURL)
	if id == "" {
		r.log.Error("invalid video url", slog.String("url", rawURL))
		return "", false
	}
	return id, true
}

func videoID(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	switch {
	case host == "youtu.be" || host == "www.youtu.be":
		seg, _, _ := strings.Cut(strings.Trim(u.Path, "/"), "/")
		return seg
	case IsYouTubeHost(host) && strings.TrimSuffix(u.Path, "/") == "/watch":
		return u.Query().Get("v")
	default:
		return ""
	}
}
