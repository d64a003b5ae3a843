package captions

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"yt-transcripts/internal/model"
)

const (
	DefaultTimeout           = 15 * time.Second
	DefaultRequestsPerSecond = 2.0

	maxTrackBytes = 8 << 20
)

// VideoExtractor returns the yt-dlp info document of a single video.
type VideoExtractor interface {
	Video(ctx context.Context, videoURL string) ([]byte, error)
}

type SourceOptions struct {
	Extractor         VideoExtractor
	HTTPClient        *http.Client
	Timeout           time.Duration
	RequestsPerSecond float64
	Retry             *RetryConfig
	Logger            *slog.Logger
}

// YTDLPSource lists tracks from yt-dlp metadata and downloads them in the
// json3 timed-text format.
type YTDLPSource struct {
	extractor VideoExtractor
	client    *http.Client
	limiter   *rate.Limiter
	retry     RetryConfig
	log       *slog.Logger
}

func NewYTDLPSource(opts SourceOptions) *YTDLPSource {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = DefaultRequestsPerSecond
	}
	retry := DefaultRetryConfig
	if opts.Retry != nil {
		retry = *opts.Retry
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &YTDLPSource{
		extractor: opts.Extractor,
		client:    client,
		limiter:   rate.NewLimiter(rate.Limit(rps), 1),
		retry:     retry,
		log:       log.With(slog.String("component", "captions")),
	}
}

type subtitleFormat struct {
	Ext  string `json:"ext"`
	URL  string `json:"url"`
	Name string `json:"name"`
}

type videoCaptions struct {
	ID                string                      `json:"id"`
	Subtitles         map[string][]subtitleFormat `json:"subtitles"`
	AutomaticCaptions map[string][]subtitleFormat `json:"automatic_captions"`
}

func (s *YTDLPSource) List(ctx context.Context, videoID string) (TrackList, error) {
	if s.extractor == nil {
		return TrackList{}, fmt.Errorf("caption source has no extractor")
	}
	raw, err := s.extractor.Video(ctx, "https://www.youtube.com/watch?v="+url.QueryEscape(videoID))
	if err != nil {
		return TrackList{}, fmt.Errorf("list tracks for %s: %w", videoID, err)
	}
	return parseTrackList(videoID, raw)
}

func parseTrackList(videoID string, raw []byte) (TrackList, error) {
	var doc videoCaptions
	if err := json.Unmarshal(raw, &doc); err != nil {
		return TrackList{}, fmt.Errorf("parse video info for %s: %w", videoID, err)
	}
	list := TrackList{
		VideoID:   videoID,
		Manual:    collectTracks(doc.Subtitles, false),
		Generated: collectTracks(doc.AutomaticCaptions, true),
	}
	if list.Empty() {
		return TrackList{}, fmt.Errorf("%w: %s", ErrTranscriptsDisabled, videoID)
	}
	return list, nil
}

// collectTracks keeps one json3 track per language. Live chat replays and
// tracks the server already translated are skipped.
func collectTracks(byLang map[string][]subtitleFormat, generated bool) []Track {
	codes := make([]string, 0, len(byLang))
	for code := range byLang {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	seen := map[string]bool{}
	out := make([]Track, 0, len(codes))
	for _, code := range codes {
		if code == "live_chat" {
			continue
		}
		for _, f := range byLang[code] {
			if f.Ext != "json3" || strings.TrimSpace(f.URL) == "" {
				continue
			}
			if generated && hasQueryParam(f.URL, "tlang") {
				continue
			}
			lang := strings.TrimSuffix(code, "-orig")
			if seen[lang] {
				break
			}
			seen[lang] = true
			out = append(out, Track{
				LanguageCode: lang,
				Name:         f.Name,
				Generated:    generated,
				URL:          f.URL,
			})
			break
		}
	}
	return out
}

func hasQueryParam(raw, key string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.Query().Has(key)
}

type json3Doc struct {
	Events []struct {
		TStartMs    int64 `json:"tStartMs"`
		DDurationMs int64 `json:"dDurationMs"`
		Segs        []struct {
			UTF8 string `json:"utf8"`
		} `json:"segs"`
	} `json:"events"`
}

func (s *YTDLPSource) FetchTrack(ctx context.Context, track Track) ([]model.Segment, error) {
	if strings.TrimSpace(track.URL) == "" {
		return nil, fmt.Errorf("track %s has no URL", track.LanguageCode)
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := retryHTTP(ctx, s.retry, s.log, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, track.URL, nil)
		if err != nil {
			return nil, err
		}
		return s.client.Do(req)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s track: %w", track.LanguageCode, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s track: unexpected status %d", track.LanguageCode, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTrackBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s track: %w", track.LanguageCode, err)
	}
	segments, err := parseJSON3(body)
	if err != nil {
		return nil, fmt.Errorf("parse %s track: %w", track.LanguageCode, err)
	}
	s.log.Debug("fetched caption track",
		slog.String("language", track.LanguageCode),
		slog.Bool("generated", track.Generated),
		slog.Int("segments", len(segments)),
	)
	return segments, nil
}

func parseJSON3(body []byte) ([]model.Segment, error) {
	var doc json3Doc
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, err
	}
	out := make([]model.Segment, 0, len(doc.Events))
	for _, ev := range doc.Events {
		var sb strings.Builder
		for _, seg := range ev.Segs {
			sb.WriteString(seg.UTF8)
		}
		text := strings.Join(strings.Fields(sb.String()), " ")
		if text == "" {
			continue
		}
		out = append(out, model.Segment{
			Text:     text,
			Start:    float64(ev.TStartMs) / 1000,
			Duration: float64(ev.DDurationMs) / 1000,
		})
	}
	return out, nil
}
