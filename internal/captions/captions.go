// Package captions lists and fetches YouTube caption tracks.
package captions

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"yt-transcripts/internal/model"
)

var (
	ErrTranscriptsDisabled = errors.New("transcripts are disabled for this video")
	ErrNoTranscriptFound   = errors.New("no transcript found for the requested languages")
)

type Source interface {
	List(ctx context.Context, videoID string) (TrackList, error)
	FetchTrack(ctx context.Context, track Track) ([]model.Segment, error)
}

type Track struct {
	LanguageCode string
	Name         string
	Generated    bool
	URL          string
}

// Translate returns a copy of t that the caption server renders in code.
func (t Track) Translate(code string) (Track, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Track{}, fmt.Errorf("translation language is required")
	}
	u, err := url.Parse(t.URL)
	if err != nil {
		return Track{}, fmt.Errorf("parse track URL: %w", err)
	}
	q := u.Query()
	q.Set("tlang", code)
	u.RawQuery = q.Encode()

	out := t
	out.LanguageCode = code
	out.URL = u.String()
	return out, nil
}

type TrackList struct {
	VideoID   string
	Manual    []Track
	Generated []Track
}

func (l TrackList) Empty() bool {
	return len(l.Manual) == 0 && len(l.Generated) == 0
}

// Find returns the first track matching codes in order, trying manual
// tracks before generated ones.
func (l TrackList) Find(codes ...string) (Track, error) {
	for _, group := range [][]Track{l.Manual, l.Generated} {
		for _, code := range codes {
			for _, t := range group {
				if strings.EqualFold(t.LanguageCode, code) {
					return t, nil
				}
			}
		}
	}
	return Track{}, fmt.Errorf("%w: video %s, languages [%s]", ErrNoTranscriptFound, l.VideoID, strings.Join(codes, ", "))
}
