package batch

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"yt-transcripts/internal/artifact"
	"yt-transcripts/internal/eventlog"
	"yt-transcripts/internal/model"
	"yt-transcripts/internal/playlist"
	"yt-transcripts/internal/transcript"
)

type fakeResolver struct {
	info   model.PlaylistInfo
	videos []model.VideoDescriptor
	single playlist.VideoInfo
}

func (f *fakeResolver) ResolveInfo(context.Context, string) (model.PlaylistInfo, bool) {
	return f.info, f.info.ID != ""
}

func (f *fakeResolver) EnumerateVideos(context.Context, string) []model.VideoDescriptor {
	out := make([]model.VideoDescriptor, len(f.videos))
	copy(out, f.videos)
	return out
}

func (f *fakeResolver) ExtractVideoID(u string) (string, bool) {
	return playlist.New(nil, nil).ExtractVideoID(u)
}

func (f *fakeResolver) VideoInfo(context.Context, string) (playlist.VideoInfo, bool) {
	return f.single, f.single.ID != ""
}

// fakeFetcher returns Success unless the video id has an override.
type fakeFetcher struct {
	outcomes map[string]transcript.Kind
	panics   map[string]bool
	calls    []string
}

func (f *fakeFetcher) Fetch(_ context.Context, videoID, title, lang string) transcript.Result {
	f.calls = append(f.calls, videoID)
	if f.panics[videoID] {
		panic("boom")
	}
	if k, ok := f.outcomes[videoID]; ok && k != transcript.Success {
		return transcript.Result{Kind: k, Detail: "upstream says no"}
	}
	return transcript.Result{Kind: transcript.Success, Record: &model.TranscriptRecord{
		VideoID:    videoID,
		Title:      title,
		Transcript: []model.Segment{{Text: "line for " + videoID, Start: 1, Duration: 2}},
		Metadata: model.TranscriptMetadata{
			Language:     lang,
			LanguageName: transcript.LanguageName(lang),
			DownloadDate: "2026-01-01T00:00:00Z",
		},
	}}
}

func pending(ids ...string) []model.VideoDescriptor {
	out := make([]model.VideoDescriptor, 0, len(ids))
	for _, id := range ids {
		out = append(out, model.VideoDescriptor{
			VideoID: id,
			Title:   "Video " + id,
			URL:     playlist.WatchURL(id),
			Status:  model.StatusPending,
		})
	}
	return out
}

type harness struct {
	fs       afero.Fs
	store    *artifact.Store
	resolver *fakeResolver
	fetcher  *fakeFetcher
	updates  []Update
	proc     *Processor
}

func newHarness(t *testing.T, videos []model.VideoDescriptor) *harness {
	t.Helper()
	h := &harness{
		fs: afero.NewMemMapFs(),
		resolver: &fakeResolver{
			info:   model.PlaylistInfo{ID: "PL1", Title: "Course", Channel: "Chan", ChannelID: "UC1"},
			videos: videos,
		},
		fetcher: &fakeFetcher{outcomes: map[string]transcript.Kind{}, panics: map[string]bool{}},
	}
	h.store = artifact.New(h.fs, "/data", nil)
	h.proc = New(Options{
		Resolver: h.resolver,
		Fetcher:  h.fetcher,
		Store:    h.store,
		Progress: func(u Update) { h.updates = append(h.updates, u) },
	})
	return h
}

func countFiles(t *testing.T, fs afero.Fs, dir string) int {
	t.Helper()
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		t.Fatalf("read %s: %v", dir, err)
	}
	return len(entries)
}

func TestStart_AllVideosSucceed(t *testing.T) {
	h := newHarness(t, pending("a", "b", "c"))

	run, err := h.proc.Start(context.Background(), "https://www.youtube.com/playlist?list=PL1", "en")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := uuid.Parse(run.RunID); err != nil {
		t.Fatalf("run id is not a uuid: %q", run.RunID)
	}
	if run.SuccessCount != 3 || run.FailedCount != 0 || run.TotalVideos != 3 || run.ShowRetry {
		t.Fatalf("unexpected summary: %+v", run)
	}
	if run.State != model.RunComplete || run.PlaylistUploader != "Chan" {
		t.Fatalf("unexpected run state: %+v", run)
	}
	if got := countFiles(t, h.fs, "/data/playlists/PL1/json"); got != 3 {
		t.Fatalf("expected 3 json files, got %d", got)
	}
	if got := countFiles(t, h.fs, "/data/playlists/PL1/txt"); got != 3 {
		t.Fatalf("expected 3 txt files, got %d", got)
	}

	data, err := h.store.Bundle("PL1")
	if err != nil {
		t.Fatalf("bundle: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatal(err)
	}
	captions, meta := 0, 0
	for _, f := range zr.File {
		switch {
		case f.Name == "metadata.json":
			meta++
		case strings.HasPrefix(f.Name, "json/"), strings.HasPrefix(f.Name, "txt/"):
			captions++
		}
	}
	if captions != 6 || meta != 1 || len(zr.File) != 7 {
		t.Fatalf("unexpected archive contents: captions=%d meta=%d total=%d", captions, meta, len(zr.File))
	}

	if len(h.updates) != 3 || h.updates[2].Index != 3 || h.updates[2].Success != 3 {
		t.Fatalf("unexpected progress updates: %+v", h.updates)
	}
	if ok, _ := afero.DirExists(h.fs, "/data/playlists/PL1/.lock"); ok {
		t.Fatalf("playlist lock was not released")
	}
}

func TestStart_DisabledCaptionsCountAsFailure(t *testing.T) {
	h := newHarness(t, pending("ok1", "off"))
	h.fetcher.outcomes["off"] = transcript.Disabled

	run, err := h.proc.Start(context.Background(), "https://www.youtube.com/playlist?list=PL1", "en")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if run.SuccessCount != 1 || run.FailedCount != 1 || !run.ShowRetry {
		t.Fatalf("unexpected summary: %+v", run)
	}
	if len(run.FailedVideos) != 1 || run.FailedVideos[0].VideoID != "off" {
		t.Fatalf("unexpected failed videos: %+v", run.FailedVideos)
	}
	found := false
	for _, e := range run.ErrorLogs {
		if e.VideoID == "off" && !e.IsRetry {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an error log entry for the failed video: %+v", run.ErrorLogs)
	}
}

func TestRetry_RecoveredVideoClearsFailures(t *testing.T) {
	h := newHarness(t, pending("ok1", "off"))
	h.fetcher.outcomes["off"] = transcript.Disabled

	run, err := h.proc.Start(context.Background(), "https://www.youtube.com/playlist?list=PL1", "en")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	delete(h.fetcher.outcomes, "off")
	h.fetcher.calls = nil
	if err := h.proc.Retry(context.Background(), run); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if run.SuccessCount != 2 || run.FailedCount != 0 || run.ShowRetry || len(run.FailedVideos) != 0 {
		t.Fatalf("unexpected summary after retry: %+v", run)
	}
	if len(h.fetcher.calls) != 1 || h.fetcher.calls[0] != "off" {
		t.Fatalf("retry must only revisit failed videos, visited %v", h.fetcher.calls)
	}
}

func TestRetry_StillFailingKeepsFailedCount(t *testing.T) {
	h := newHarness(t, pending("a", "b", "c"))
	h.fetcher.outcomes["b"] = transcript.NotFound
	h.fetcher.outcomes["c"] = transcript.Fault

	run, err := h.proc.Start(context.Background(), "https://www.youtube.com/playlist?list=PL1", "vi")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	delete(h.fetcher.outcomes, "c")

	if err := h.proc.Retry(context.Background(), run); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if run.SuccessCount != 2 || run.FailedCount != 1 || !run.ShowRetry {
		t.Fatalf("expected 2 ok / 1 failed after retry, got %+v", run)
	}
	if len(run.FailedVideos) != 1 || run.FailedVideos[0].VideoID != "b" {
		t.Fatalf("unexpected failed videos: %+v", run.FailedVideos)
	}
	retried := 0
	for _, e := range run.ErrorLogs {
		if e.IsRetry {
			retried++
			if e.VideoID != "b" {
				t.Fatalf("unexpected retry log: %+v", e)
			}
		}
	}
	if retried != 1 {
		t.Fatalf("expected one retry error log, got %d", retried)
	}
	if run.Language != "vi" {
		t.Fatalf("retry lost the run language")
	}
}

func TestProcessOne_RecoversPanics(t *testing.T) {
	h := newHarness(t, pending("a", "bad", "c"))
	h.fetcher.panics["bad"] = true
	rec := eventlog.NewRecorder(20)
	h.proc.log = slog.New(rec.Handler())

	run, err := h.proc.Start(context.Background(), "https://www.youtube.com/playlist?list=PL1", "en")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if run.SuccessCount != 2 || run.FailedCount != 1 {
		t.Fatalf("a panic must not stop the batch: %+v", run)
	}
	if run.Videos[1].Status != model.StatusFailed {
		t.Fatalf("expected panicking video to be failed, got %s", run.Videos[1].Status)
	}
	if rec.Count(slog.LevelError) != 1 {
		t.Fatalf("expected the panic to be logged once")
	}
}

func TestStart_CancelledRunCountsRemainingAsFailed(t *testing.T) {
	h := newHarness(t, pending("a", "b", "c"))
	ctx, cancel := context.WithCancel(context.Background())
	h.proc.progress = func(u Update) {
		if u.Index == 1 {
			cancel()
		}
	}

	run, err := h.proc.Start(ctx, "https://www.youtube.com/playlist?list=PL1", "en")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation error, got %v", err)
	}
	if run == nil || run.SuccessCount != 1 || run.FailedCount != 2 {
		t.Fatalf("unexpected partial summary: %+v", run)
	}
	if run.Videos[2].Status != model.StatusPending {
		t.Fatalf("unvisited videos must stay pending")
	}
}

func TestStart_CollectionFailures(t *testing.T) {
	h := newHarness(t, nil)
	if _, err := h.proc.Start(context.Background(), "u", "en"); !errors.Is(err, ErrNoVideos) {
		t.Fatalf("expected ErrNoVideos, got %v", err)
	}
	h.resolver.info = model.PlaylistInfo{}
	if _, err := h.proc.Start(context.Background(), "u", "en"); !errors.Is(err, ErrPlaylistUnavailable) {
		t.Fatalf("expected ErrPlaylistUnavailable, got %v", err)
	}
}

func TestStart_LockedPlaylist(t *testing.T) {
	h := newHarness(t, pending("a"))
	lock, err := h.store.Lock("PL1")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = lock.Release() }()

	if _, err := h.proc.Start(context.Background(), "u", "en"); err == nil {
		t.Fatalf("expected a concurrent run on the same playlist to be rejected")
	}
}

func TestProcessSingle_ShortLink(t *testing.T) {
	h := newHarness(t, nil)
	h.resolver.single = playlist.VideoInfo{ID: "abc123", Title: "Solo talk"}

	res, err := h.proc.ProcessSingle(context.Background(), "https://youtu.be/abc123?si=xyz", "en")
	if err != nil {
		t.Fatalf("process single: %v", err)
	}
	if res.Video.VideoID != "abc123" {
		t.Fatalf("unexpected video id %q", res.Video.VideoID)
	}
	if res.FileName != "Solo talk_abc123.txt" {
		t.Fatalf("unexpected file name %q", res.FileName)
	}
	if !strings.Contains(res.Text, "Video ID: abc123") || !strings.Contains(res.Text, "[00:01] line for abc123") {
		t.Fatalf("unexpected text: %s", res.Text)
	}
	if got := countFiles(t, h.fs, "/data/playlists/single_videos/json"); got != 1 {
		t.Fatalf("expected one stored record, got %d", got)
	}

	if _, err := h.proc.ProcessSingle(context.Background(), "https://vimeo.com/1", "en"); !errors.Is(err, ErrInvalidVideoURL) {
		t.Fatalf("expected invalid url, got %v", err)
	}
	h.fetcher.outcomes["abc123"] = transcript.NotFound
	if _, err := h.proc.ProcessSingle(context.Background(), "https://youtu.be/abc123", "ja"); !errors.Is(err, ErrTranscriptFailed) {
		t.Fatalf("expected transcript failure, got %v", err)
	}
}

func TestLineProgress(t *testing.T) {
	var buf bytes.Buffer
	lp := NewLineProgress(&buf, false)
	lp.Update(Update{Index: 1, Total: 2, Success: 1, Video: model.VideoDescriptor{VideoID: "a", Title: "Alpha", Status: model.StatusSuccess}})
	lp.Update(Update{Index: 2, Total: 2, Success: 1, Failed: 1, Retry: true, Video: model.VideoDescriptor{VideoID: "b", Title: strings.Repeat("t", 60), Status: model.StatusFailed}})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", buf.String())
	}
	if lines[0] != "[1/2] a  ok:1 fail:0  success  | Alpha" {
		t.Fatalf("unexpected line: %q", lines[0])
	}
	if !strings.Contains(lines[1], "retry") || !strings.HasSuffix(lines[1], strings.Repeat("t", 52)+"...") {
		t.Fatalf("unexpected retry line: %q", lines[1])
	}
}
