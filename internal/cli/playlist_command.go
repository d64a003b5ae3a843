package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/afero"

	"yt-transcripts/internal/artifact"
	"yt-transcripts/internal/batch"
	"yt-transcripts/internal/model"
)

var errInvalidPlaylistURL = errors.New("invalid YouTube playlist URL")

type playlistReport struct {
	RunID         string                  `json:"run_id"`
	PlaylistID    string                  `json:"playlist_id"`
	PlaylistTitle string                  `json:"playlist_title"`
	Channel       string                  `json:"channel"`
	Language      string                  `json:"language"`
	Total         int                     `json:"total_videos"`
	Success       int                     `json:"success_count"`
	Failed        int                     `json:"failed_count"`
	RetryPasses   int                     `json:"retry_passes"`
	OutputDir     string                  `json:"output_dir"`
	Archive       string                  `json:"archive,omitempty"`
	FailedVideos  []model.VideoDescriptor `json:"failed_videos"`
	ErrorLogs     []model.ErrorLogEntry   `json:"error_logs"`
}

func runPlaylist(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("playlist", flag.ContinueOnError)
	playlistURL := fs.String("url", "", "YouTube playlist URL (must carry a list= parameter)")
	lang := fs.String("lang", "", "transcript language code (default from config, en)")
	retries := fs.Int("retry", 0, "retry passes over failed videos after the first pass")
	archiveDir := fs.String("archive", "", "write a zip archive of the playlist into this directory")
	yes := fs.Bool("yes", false, "overwrite an existing archive without asking")
	progress := fs.Bool("progress", true, "show per-video progress on stderr")
	jsonOut := fs.Bool("json", false, "print JSON output")
	common := registerCommonFlags(fs)
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *retries < 0 {
		return errors.New("--retry must be >= 0")
	}

	target, err := requireURL(*playlistURL, "playlist URL")
	if err != nil {
		fs.Usage()
		return err
	}
	cfg, err := common.loadConfig()
	if err != nil {
		return err
	}
	opts := appOptions{}
	if *progress {
		opts.Progress = batch.NewLineProgress(os.Stderr, stderrIsTTY()).Update
	}
	a, err := newApp(cfg, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.resolver.Validate(ctx, target) {
		return errInvalidPlaylistURL
	}

	language := languageOrDefault(*lang, cfg)
	run, runErr := a.processor.Start(ctx, target, language)
	if run == nil {
		return runErr
	}

	passes := 0
	for passes < *retries && run.ShowRetry && runErr == nil {
		passes++
		fmt.Fprintf(os.Stderr, "retry pass %d/%d: %d failed video(s)\n", passes, *retries, run.FailedCount)
		runErr = a.processor.Retry(ctx, run)
	}

	report := playlistReport{
		RunID:         run.RunID,
		PlaylistID:    run.PlaylistID,
		PlaylistTitle: run.PlaylistTitle,
		Channel:       run.PlaylistUploader,
		Language:      run.Language,
		Total:         run.TotalVideos,
		Success:       run.SuccessCount,
		Failed:        run.FailedCount,
		RetryPasses:   passes,
		OutputDir:     a.store.PlaylistDir(run.PlaylistID),
		FailedVideos:  run.FailedVideos,
		ErrorLogs:     run.ErrorLogs,
	}

	if runErr == nil && strings.TrimSpace(*archiveDir) != "" && run.SuccessCount > 0 {
		path, err := writeArchive(a.store, model.PlaylistInfo{
			ID:      run.PlaylistID,
			Title:   run.PlaylistTitle,
			Channel: run.PlaylistUploader,
		}, *archiveDir, *yes)
		if err != nil {
			return err
		}
		report.Archive = path
	}

	if *jsonOut {
		if err := printJSON(report); err != nil {
			return err
		}
		return runErr
	}
	printPlaylistReport(report)
	return runErr
}

func printPlaylistReport(r playlistReport) {
	fmt.Printf("run_id: %s\n", r.RunID)
	fmt.Printf("playlist: %s (%s)\n", r.PlaylistTitle, r.PlaylistID)
	fmt.Printf("channel: %s\n", r.Channel)
	fmt.Printf("language: %s\n", r.Language)
	fmt.Printf("total_videos: %d\n", r.Total)
	fmt.Printf("success: %d\n", r.Success)
	fmt.Printf("failed: %d\n", r.Failed)
	if r.RetryPasses > 0 {
		fmt.Printf("retry_passes: %d\n", r.RetryPasses)
	}
	fmt.Printf("output_dir: %s\n", r.OutputDir)
	if r.Archive != "" {
		fmt.Printf("archive: %s\n", r.Archive)
	}
	for _, e := range r.ErrorLogs {
		mark := ""
		if e.IsRetry {
			mark = " (retry)"
		}
		fmt.Printf("error%s: %s %s: %s\n", mark, e.VideoID, e.Title, e.Error)
	}
}

func writeArchive(store *artifact.Store, info model.PlaylistInfo, dir string, overwrite bool) (string, error) {
	data, err := store.Bundle(info.ID)
	if err != nil {
		return "", err
	}
	return saveOutput(afero.NewOsFs(), dir, artifact.ArchiveName(info.Channel, info.Title, info.ID), data, overwrite)
}
