// Package transcript turns a caption track into a TranscriptRecord, falling
// back to a translated English track when the requested language is missing.
package transcript

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"yt-transcripts/internal/captions"
	"yt-transcripts/internal/model"
)

type Kind int

const (
	Success Kind = iota
	NotFound
	Disabled
	Fault
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case NotFound:
		return "not_found"
	case Disabled:
		return "disabled"
	case Fault:
		return "fault"
	default:
		return "unknown"
	}
}

// Result carries a record only when Kind is Success.
type Result struct {
	Kind   Kind
	Record *model.TranscriptRecord
	Detail string
}

const FallbackLanguage = "en"

var languageNames = map[string]string{
	"en":      "English",
	"vi":      "Vietnamese",
	"ja":      "Japanese",
	"ko":      "Korean",
	"zh-Hans": "Chinese (Simplified)",
	"zh-Hant": "Chinese (Traditional)",
	"fr":      "French",
	"de":      "German",
	"es":      "Spanish",
	"ru":      "Russian",
}

// LanguageName returns the display name of code, or code itself.
func LanguageName(code string) string {
	if name, ok := languageNames[code]; ok {
		return name
	}
	return code
}

type Fetcher struct {
	Source captions.Source
	Logger *slog.Logger
	Now    func() time.Time
}

func New(src captions.Source, log *slog.Logger) *Fetcher {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Fetcher{
		Source: src,
		Logger: log.With(slog.String("component", "transcript")),
		Now:    time.Now,
	}
}

func (f *Fetcher) Fetch(ctx context.Context, videoID, title, languageCode string) Result {
	segments, fallbackErr, err := f.fetchSegments(ctx, videoID, languageCode)
	switch {
	case err == nil:
	case errors.Is(err, captions.ErrNoTranscriptFound):
		attrs := []any{
			slog.String("video_id", videoID),
			slog.String("title", title),
			slog.String("language", languageCode),
		}
		if fallbackErr != nil {
			attrs = append(attrs, slog.String("translation_error", fallbackErr.Error()))
		}
		f.Logger.Warn("no transcript in requested language", attrs...)
		return Result{Kind: NotFound, Detail: err.Error()}
	case errors.Is(err, captions.ErrTranscriptsDisabled):
		f.Logger.Warn("transcripts disabled",
			slog.String("video_id", videoID),
			slog.String("title", title),
		)
		return Result{Kind: Disabled, Detail: err.Error()}
	default:
		f.Logger.Error("transcript download failed",
			slog.String("video_id", videoID),
			slog.String("title", title),
			slog.String("language", languageCode),
			slog.String("error", err.Error()),
		)
		return Result{Kind: Fault, Detail: err.Error()}
	}

	now := time.Now
	if f.Now != nil {
		now = f.Now
	}
	record := &model.TranscriptRecord{
		VideoID:    videoID,
		Title:      title,
		Transcript: segments,
		Metadata: model.TranscriptMetadata{
			Language:     languageCode,
			LanguageName: LanguageName(languageCode),
			DownloadDate: now().Format(time.RFC3339),
		},
	}
	f.Logger.Info("transcript downloaded", slog.String("video_id", videoID), slog.String("title", title))
	return Result{Kind: Success, Record: record}
}

// fetchSegments keeps the original not-found error when the translation
// fallback fails; the fallback's own error is returned separately. The track
// list is fetched once and shared with the fallback.
func (f *Fetcher) fetchSegments(ctx context.Context, videoID, languageCode string) (segments []model.Segment, translationErr, err error) {
	list, err := f.Source.List(ctx, videoID)
	if err != nil {
		return nil, nil, err
	}
	track, err := list.Find(languageCode)
	if err == nil {
		segments, err = f.Source.FetchTrack(ctx, track)
		return segments, nil, err
	}
	if !errors.Is(err, captions.ErrNoTranscriptFound) || languageCode == FallbackLanguage {
		return nil, nil, err
	}

	translated, ferr := f.translate(ctx, list, languageCode)
	if ferr != nil {
		return nil, ferr, err
	}
	f.Logger.Info("translated transcript from English",
		slog.String("video_id", videoID),
		slog.String("language", languageCode),
	)
	return translated, nil, nil
}

func (f *Fetcher) translate(ctx context.Context, list captions.TrackList, languageCode string) ([]model.Segment, error) {
	source, err := list.Find(FallbackLanguage)
	if err != nil {
		return nil, err
	}
	target, err := source.Translate(languageCode)
	if err != nil {
		return nil, err
	}
	return f.Source.FetchTrack(ctx, target)
}
