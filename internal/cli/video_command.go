package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"yt-transcripts/internal/artifact"
)

type videoReport struct {
	VideoID  string `json:"video_id"`
	Title    string `json:"title"`
	Language string `json:"language"`
	Segments int    `json:"segments"`
	Output   string `json:"output"`
}

func runVideo(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("video", flag.ContinueOnError)
	videoURL := fs.String("url", "", "YouTube video URL (watch or youtu.be link)")
	lang := fs.String("lang", "", "transcript language code (default from config, en)")
	out := fs.String("out", "", "output text file (default <title>_<video_id>.txt in the current directory)")
	yes := fs.Bool("yes", false, "overwrite an existing output file without asking")
	jsonOut := fs.Bool("json", false, "print JSON output")
	common := registerCommonFlags(fs)
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	target, err := requireURL(*videoURL, "video URL")
	if err != nil {
		fs.Usage()
		return err
	}
	cfg, err := common.loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	language := languageOrDefault(*lang, cfg)
	res, err := a.processor.ProcessSingle(ctx, target, language)
	if err != nil {
		return err
	}

	dir, name := ".", res.FileName
	if p := strings.TrimSpace(*out); p != "" {
		dir, name = filepath.Dir(p), filepath.Base(p)
	}
	path, err := saveOutput(afero.NewOsFs(), dir, name, []byte(res.Text), *yes)
	if err != nil {
		return err
	}

	report := videoReport{
		VideoID:  res.Video.VideoID,
		Title:    res.Video.Title,
		Language: res.Record.Metadata.Language,
		Segments: len(res.Record.Transcript),
		Output:   path,
	}
	if *jsonOut {
		return printJSON(report)
	}
	fmt.Printf("video_id: %s\n", report.VideoID)
	fmt.Printf("title: %s\n", report.Title)
	fmt.Printf("language: %s\n", report.Language)
	fmt.Printf("segments: %d\n", report.Segments)
	fmt.Printf("output: %s\n", report.Output)
	fmt.Fprintf(os.Stderr, "transcript also stored under %s\n", a.store.PlaylistDir(artifact.SingleVideosID))
	return nil
}
