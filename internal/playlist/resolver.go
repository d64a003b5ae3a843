// Package playlist validates YouTube URLs and enumerates playlist members
// through yt-dlp. Every failure is logged and degrades to false or an empty
// result.
package playlist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"strings"

	"yt-transcripts/internal/model"
)

// Extractor is the metadata collaborator. ytdlp.Client implements it.
type Extractor interface {
	FlatPlaylist(ctx context.Context, sourceURL string, probe bool) ([]byte, error)
	Video(ctx context.Context, videoURL string) ([]byte, error)
}

type Resolver struct {
	ext Extractor
	log *slog.Logger
}

func New(ext Extractor, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Resolver{ext: ext, log: log.With(slog.String("component", "playlist"))}
}

type flatPlaylist struct {
	Type       string            `json:"_type"`
	ID         string            `json:"id"`
	Title      string            `json:"title"`
	Channel    string            `json:"channel"`
	ChannelID  string            `json:"channel_id"`
	Uploader   string            `json:"uploader"`
	UploaderID string            `json:"uploader_id"`
	Entries    []json.RawMessage `json:"entries"`
	HasEntries bool              `json:"-"`
}

type flatEntry struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Duration *float64 `json:"duration"`
}

type VideoInfo struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Channel  string `json:"channel"`
	Duration *int   `json:"duration,omitempty"`
}

func IsYouTubeHost(host string) bool {
	h := strings.ToLower(strings.TrimSpace(host))
	return h == "youtube.com" || strings.HasSuffix(h, ".youtube.com")
}

// Validate reports whether rawURL is a reachable YouTube playlist.
func (r *Resolver) Validate(ctx context.Context, rawURL string) bool {
	r.log.Info("validating playlist url", slog.String("url", rawURL))
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || rawURL == "" {
		r.log.Error("invalid url", slog.String("url", rawURL), slog.String("reason", "unparseable"))
		return false
	}
	if !IsYouTubeHost(u.Hostname()) {
		r.log.Error("invalid url", slog.String("url", rawURL), slog.String("reason", "not a youtube url"))
		return false
	}
	playlistID, ok := r.ExtractPlaylistID(rawURL)
	if !ok {
		return false
	}

	raw, err := r.ext.FlatPlaylist(ctx, rawURL, true)
	if err != nil {
		r.log.Error("playlist access error", slog.String("playlist_id", playlistID), slog.String("error", err.Error()))
		return false
	}
	doc, err := decodeFlat(raw)
	if err != nil {
		r.log.Error("playlist access error", slog.String("playlist_id", playlistID), slog.String("error", err.Error()))
		return false
	}
	if doc.Type != "playlist" {
		r.log.Error("invalid content type",
			slog.String("playlist_id", playlistID),
			slog.String("type", doc.Type),
		)
		return false
	}
	r.log.Info("playlist is valid", slog.String("playlist_id", playlistID), slog.String("title", doc.Title))
	return true
}

func (r *Resolver) ResolveInfo(ctx context.Context, rawURL string) (model.PlaylistInfo, bool) {
	doc, err := r.fetch(ctx, rawURL)
	if err != nil {
		r.log.Error("playlist info extraction error",
			slog.String("url", rawURL),
			slog.String("error_type", errorType(err)),
			slog.String("error", err.Error()),
		)
		return model.PlaylistInfo{}, false
	}
	info := model.PlaylistInfo{
		ID:        doc.ID,
		Title:     doc.Title,
		Channel:   firstNonEmpty(doc.Channel, doc.Uploader),
		ChannelID: firstNonEmpty(doc.ChannelID, doc.UploaderID),
	}
	if strings.TrimSpace(info.ID) == "" {
		r.log.Error("playlist info extraction error", slog.String("url", rawURL), slog.String("error", "missing playlist id"))
		return model.PlaylistInfo{}, false
	}
	r.log.Info("resolved playlist", slog.String("playlist_id", info.ID), slog.String("title", info.Title))
	return info, true
}

// EnumerateVideos lists the non-null entries of a playlist. An empty slice
// means nothing usable, whatever the cause.
func (r *Resolver) EnumerateVideos(ctx context.Context, rawURL string) []model.VideoDescriptor {
	doc, err := r.fetch(ctx, rawURL)
	if err != nil {
		r.log.Error("playlist enumeration error",
			slog.String("url", rawURL),
			slog.String("error_type", errorType(err)),
			slog.String("error", err.Error()),
		)
		return []model.VideoDescriptor{}
	}
	if !doc.HasEntries {
		r.log.Error("playlist structure error", slog.String("url", rawURL), slog.String("error", "no entries field"))
		return []model.VideoDescriptor{}
	}
	if len(doc.Entries) == 0 {
		r.log.Error("empty playlist", slog.String("url", rawURL))
		return []model.VideoDescriptor{}
	}

	videos := make([]model.VideoDescriptor, 0, len(doc.Entries))
	seen := make(map[string]struct{}, len(doc.Entries))
	for i, rawEntry := range doc.Entries {
		if isNull(rawEntry) {
			r.log.Warn("skipping empty playlist entry", slog.Int("index", i))
			continue
		}
		var e flatEntry
		if err := json.Unmarshal(rawEntry, &e); err != nil || strings.TrimSpace(e.ID) == "" {
			r.log.Warn("skipping unreadable playlist entry", slog.Int("index", i))
			continue
		}
		id := strings.TrimSpace(e.ID)
		if _, dup := seen[id]; dup {
			r.log.Warn("skipping duplicate playlist entry", slog.Int("index", i), slog.String("video_id", id))
			continue
		}
		seen[id] = struct{}{}
		videos = append(videos, model.VideoDescriptor{
			VideoID:  id,
			Title:    strings.TrimSpace(e.Title),
			URL:      WatchURL(id),
			Duration: seconds(e.Duration),
			Status:   model.StatusPending,
		})
		r.log.Debug("found video", slog.String("video_id", id), slog.String("title", e.Title))
	}
	r.log.Info("enumerated playlist", slog.String("url", rawURL), slog.Int("videos", len(videos)))
	return videos
}

func (r *Resolver) VideoInfo(ctx context.Context, videoURL string) (VideoInfo, bool) {
	raw, err := r.ext.Video(ctx, videoURL)
	if err != nil {
		r.log.Error("video info extraction error", slog.String("url", videoURL), slog.String("error", err.Error()))
		return VideoInfo{}, false
	}
	var doc struct {
		ID       string   `json:"id"`
		Title    string   `json:"title"`
		Channel  string   `json:"channel"`
		Uploader string   `json:"uploader"`
		Duration *float64 `json:"duration"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		r.log.Error("video info extraction error", slog.String("url", videoURL), slog.String("error", err.Error()))
		return VideoInfo{}, false
	}
	return VideoInfo{
		ID:       doc.ID,
		Title:    doc.Title,
		Channel:  firstNonEmpty(doc.Channel, doc.Uploader),
		Duration: seconds(doc.Duration),
	}, true
}

func (r *Resolver) fetch(ctx context.Context, rawURL string) (flatPlaylist, error) {
	raw, err := r.ext.FlatPlaylist(ctx, rawURL, false)
	if err != nil {
		return flatPlaylist{}, err
	}
	return decodeFlat(raw)
}

func decodeFlat(raw []byte) (flatPlaylist, error) {
	var doc flatPlaylist
	if err := json.Unmarshal(raw, &doc); err != nil {
		return flatPlaylist{}, fmt.Errorf("parse yt-dlp playlist JSON: %w", err)
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keys); err == nil {
		_, doc.HasEntries = keys["entries"]
	}
	return doc, nil
}

func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}

func isNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func seconds(v *float64) *int {
	if v == nil || *v < 0 {
		return nil
	}
	n := int(math.Round(*v))
	return &n
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func errorType(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return fmt.Sprintf("%T", err)
		}
		err = next
	}
}
