package batch

import (
	"context"
	"fmt"
	"log/slog"

	"yt-transcripts/internal/artifact"
	"yt-transcripts/internal/model"
)

type SingleResult struct {
	Video     model.VideoDescriptor
	Record    model.TranscriptRecord
	Text      string
	FileName  string
	ErrorLogs []model.ErrorLogEntry
}

// ProcessSingle handles one video URL in the single_videos namespace and
// returns its text rendering for download.
func (p *Processor) ProcessSingle(ctx context.Context, videoURL, language string) (SingleResult, error) {
	id, ok := p.resolver.ExtractVideoID(videoURL)
	if !ok {
		return SingleResult{}, ErrInvalidVideoURL
	}
	info, ok := p.resolver.VideoInfo(ctx, videoURL)
	if !ok {
		return SingleResult{}, ErrVideoUnavailable
	}
	title := info.Title
	if title == "" {
		title = id
	}

	run := &model.RunResult{
		Language:   language,
		PlaylistID: artifact.SingleVideosID,
		Videos: []model.VideoDescriptor{{
			VideoID:  id,
			Title:    title,
			URL:      videoURL,
			Duration: info.Duration,
			Status:   model.StatusPending,
		}},
	}
	video := &run.Videos[0]
	p.log.Info("processing single video", slog.String("video_id", id), slog.String("title", title))

	if !p.ProcessOne(ctx, run, video, artifact.SingleVideosID, language, false) {
		out := SingleResult{Video: *video, ErrorLogs: run.ErrorLogs}
		if len(run.ErrorLogs) > 0 {
			return out, fmt.Errorf("%w: %s", ErrTranscriptFailed, run.ErrorLogs[len(run.ErrorLogs)-1].Error)
		}
		return out, ErrTranscriptFailed
	}

	rec, err := p.store.ReadRecord(artifact.SingleVideosID, id, title)
	if err != nil {
		return SingleResult{Video: *video}, fmt.Errorf("read stored transcript: %w", err)
	}
	return SingleResult{
		Video:    *video,
		Record:   rec,
		Text:     artifact.RenderText(rec),
		FileName: artifact.TextFileName(id, title),
	}, nil
}
