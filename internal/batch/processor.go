// Package batch drives a processing run: collect the playlist, fetch and
// store each video's transcript in order, and retry the failed subset.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"yt-transcripts/internal/filestore"
	"yt-transcripts/internal/model"
	"yt-transcripts/internal/playlist"
	"yt-transcripts/internal/transcript"
)

var (
	ErrPlaylistUnavailable = errors.New("could not load playlist information")
	ErrNoVideos            = errors.New("playlist has no usable videos")
	ErrInvalidVideoURL     = errors.New("invalid YouTube video URL")
	ErrVideoUnavailable    = errors.New("could not load video information")
	ErrTranscriptFailed    = errors.New("could not download transcript")
)

type Resolver interface {
	ResolveInfo(ctx context.Context, playlistURL string) (model.PlaylistInfo, bool)
	EnumerateVideos(ctx context.Context, playlistURL string) []model.VideoDescriptor
	ExtractVideoID(videoURL string) (string, bool)
	VideoInfo(ctx context.Context, videoURL string) (playlist.VideoInfo, bool)
}

type Fetcher interface {
	Fetch(ctx context.Context, videoID, title, languageCode string) transcript.Result
}

type Store interface {
	Write(playlistID, videoID, title string, record *model.TranscriptRecord) bool
	WriteMetadata(playlistID string, info model.PlaylistInfo) bool
	ReadRecord(playlistID, videoID, title string) (model.TranscriptRecord, error)
	Lock(playlistID string) (filestore.Lock, error)
}

// Update is reported after every processed video.
type Update struct {
	Index   int
	Total   int
	Success int
	Failed  int
	Video   model.VideoDescriptor
	Retry   bool
}

type Options struct {
	Resolver Resolver
	Fetcher  Fetcher
	Store    Store
	Logger   *slog.Logger
	Progress func(Update)
}

type Processor struct {
	resolver Resolver
	fetcher  Fetcher
	store    Store
	log      *slog.Logger
	progress func(Update)
}

func New(opts Options) *Processor {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Processor{
		resolver: opts.Resolver,
		fetcher:  opts.Fetcher,
		store:    opts.Store,
		log:      log.With(slog.String("component", "batch")),
		progress: opts.Progress,
	}
}

// Start runs a playlist from collection to completion. On cancellation the
// partial run is returned together with the context error.
func (p *Processor) Start(ctx context.Context, playlistURL, language string) (*model.RunResult, error) {
	run := &model.RunResult{
		RunID:    uuid.NewString(),
		State:    model.RunCollecting,
		Language: language,
	}
	log := p.log.With(slog.String("run_id", run.RunID))
	log.Info("collecting playlist", slog.String("url", playlistURL))

	info, ok := p.resolver.ResolveInfo(ctx, playlistURL)
	if !ok {
		return nil, ErrPlaylistUnavailable
	}
	run.PlaylistID = info.ID
	run.PlaylistTitle = info.Title
	run.PlaylistUploader = info.Channel

	videos := p.resolver.EnumerateVideos(ctx, playlistURL)
	if len(videos) == 0 {
		return nil, ErrNoVideos
	}
	run.Videos = videos
	run.TotalVideos = len(videos)
	log.Info("found videos", slog.Int("count", len(videos)))

	lock, err := p.store.Lock(info.ID)
	if err != nil {
		return nil, fmt.Errorf("lock playlist %s: %w", info.ID, err)
	}
	defer func() {
		_ = lock.Release()
	}()

	p.store.WriteMetadata(info.ID, info)

	indexes := make([]int, len(videos))
	for i := range indexes {
		indexes[i] = i
	}
	p.ProcessMany(ctx, run, indexes, info.ID, language, false)
	return run, ctx.Err()
}

// Retry reprocesses every video that has not succeeded and recounts the
// run from the resulting statuses.
func (p *Processor) Retry(ctx context.Context, run *model.RunResult) error {
	if run == nil {
		return fmt.Errorf("no run to retry")
	}
	indexes := run.FailedIndexes()
	if len(indexes) == 0 {
		run.Recount()
		return nil
	}

	lock, err := p.store.Lock(run.PlaylistID)
	if err != nil {
		return fmt.Errorf("lock playlist %s: %w", run.PlaylistID, err)
	}
	defer func() {
		_ = lock.Release()
	}()

	p.log.Info("retrying failed videos", slog.String("run_id", run.RunID), slog.Int("count", len(indexes)))
	p.ProcessMany(ctx, run, indexes, run.PlaylistID, run.Language, true)
	return ctx.Err()
}

// ProcessMany visits the videos at indexes sequentially. Cancellation stops
// between videos; the summary is always recomputed.
func (p *Processor) ProcessMany(ctx context.Context, run *model.RunResult, indexes []int, playlistID, language string, isRetry bool) {
	run.State = model.RunProcessing
	total := len(indexes)
	success, failed := 0, 0

	for n, i := range indexes {
		if err := ctx.Err(); err != nil {
			p.log.Warn("run cancelled",
				slog.String("run_id", run.RunID),
				slog.Int("remaining", total-n),
			)
			break
		}
		if i < 0 || i >= len(run.Videos) {
			continue
		}
		video := &run.Videos[i]
		if p.ProcessOne(ctx, run, video, playlistID, language, isRetry) {
			success++
		} else {
			failed++
		}
		if p.progress != nil {
			p.progress(Update{
				Index:   n + 1,
				Total:   total,
				Success: success,
				Failed:  failed,
				Video:   *video,
				Retry:   isRetry,
			})
		}
	}

	run.Recount()
	run.State = model.RunComplete
	p.log.Info("run complete",
		slog.String("run_id", run.RunID),
		slog.Int("success", run.SuccessCount),
		slog.Int("failed", run.FailedCount),
		slog.Bool("retry", isRetry),
	)
}

// ProcessOne fetches and stores one transcript. It never panics; any fault
// is recorded in run.ErrorLogs and the video is marked failed.
func (p *Processor) ProcessOne(ctx context.Context, run *model.RunResult, video *model.VideoDescriptor, playlistID, language string, isRetry bool) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("video processing panic",
				slog.String("video_id", video.VideoID),
				slog.Any("panic", r),
			)
			p.fail(run, video, fmt.Sprintf("unexpected error: %v", r), isRetry)
			ok = false
		}
	}()

	res := p.fetcher.Fetch(ctx, video.VideoID, video.Title, language)
	if res.Kind != transcript.Success || res.Record == nil {
		p.fail(run, video, describe(res), isRetry)
		return false
	}
	if !p.store.Write(playlistID, video.VideoID, video.Title, res.Record) {
		p.fail(run, video, "could not save transcript files", isRetry)
		return false
	}
	p.setStatus(video, model.StatusSuccess)
	return true
}

func (p *Processor) fail(run *model.RunResult, video *model.VideoDescriptor, msg string, isRetry bool) {
	run.ErrorLogs = append(run.ErrorLogs, model.ErrorLogEntry{
		VideoID: video.VideoID,
		Title:   video.Title,
		Error:   msg,
		IsRetry: isRetry,
	})
	p.setStatus(video, model.StatusFailed)
}

func (p *Processor) setStatus(video *model.VideoDescriptor, status string) {
	if video.Status == "" {
		video.Status = model.StatusPending
	}
	if err := model.TransitionVideoStatus(video, status); err != nil {
		p.log.Error("status transition rejected", slog.String("error", err.Error()))
	}
}

func describe(res transcript.Result) string {
	switch res.Kind {
	case transcript.NotFound:
		return "no transcript available in the requested language"
	case transcript.Disabled:
		return "transcripts are disabled for this video"
	case transcript.Success:
		return "empty transcript result"
	default:
		if res.Detail != "" {
			return res.Detail
		}
		return "transcript download failed"
	}
}
