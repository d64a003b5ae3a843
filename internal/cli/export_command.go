package cli

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/afero"

	"yt-transcripts/internal/artifact"
	"yt-transcripts/internal/eventlog"
)

type exportReport struct {
	PlaylistID string `json:"playlist_id"`
	Title      string `json:"title"`
	Channel    string `json:"channel"`
	Archive    string `json:"archive"`
	SizeBytes  int64  `json:"size_bytes"`
}

func runExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	playlistID := fs.String("playlist", "", "playlist id under <data_dir>/playlists")
	out := fs.String("out", ".", "directory to write the zip archive into")
	yes := fs.Bool("yes", false, "overwrite an existing archive without asking")
	jsonOut := fs.Bool("json", false, "print JSON output")
	cf := registerConfigFlags(fs)
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	id := strings.TrimSpace(*playlistID)
	if id == "" {
		fs.Usage()
		return errors.New("--playlist is required")
	}

	cfg, err := cf.load()
	if err != nil {
		return err
	}
	log, closer, err := eventlog.New(eventlog.Options{Dir: cfg.LogDir, Level: cfg.LogLevel})
	if err != nil {
		return err
	}
	defer closer.Close()

	store := artifact.New(afero.NewOsFs(), cfg.DataDir, log)
	info, err := store.ReadMetadata(id)
	if err != nil {
		return fmt.Errorf("playlist %s has no stored metadata: %w", id, err)
	}
	if info.ID == "" {
		info.ID = id
	}
	path, err := writeArchive(store, info, *out, *yes)
	if err != nil {
		return err
	}
	log.Info("archive exported", slog.String("playlist_id", id), slog.String("path", path))

	report := exportReport{
		PlaylistID: info.ID,
		Title:      info.Title,
		Channel:    info.Channel,
		Archive:    path,
	}
	if st, err := store.Fs().Stat(path); err == nil {
		report.SizeBytes = st.Size()
	}
	if *jsonOut {
		return printJSON(report)
	}
	fmt.Printf("playlist: %s (%s)\n", report.Title, report.PlaylistID)
	fmt.Printf("archive: %s\n", report.Archive)
	fmt.Printf("size: %s\n", formatBytesIEC(report.SizeBytes))
	return nil
}
