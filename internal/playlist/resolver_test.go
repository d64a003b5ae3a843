package playlist

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"yt-transcripts/internal/eventlog"
	"yt-transcripts/internal/model"
	"yt-transcripts/internal/ytdlp"
)

const playlistFixture = `{
  "_type": "playlist",
  "id": "PL123",
  "title": "Go Course",
  "uploader": "Gopher",
  "uploader_id": "@gopher",
  "entries": [
    {"id": "a1", "title": "One", "duration": 61.4},
    null,
    {"id": "b2", "title": "Two"},
    {"id": "c3", "title": "Three", "duration": 12}
  ]
}`

// fakeYTDLP puts a yt-dlp stand-in on PATH that prints fixture for every
// invocation.
func fakeYTDLP(t *testing.T, fixture string) ytdlp.Client {
	t.Helper()
	dir := t.TempDir()
	fixturePath := filepath.Join(dir, "fixture.json")
	if err := os.WriteFile(fixturePath, []byte(fixture), 0o644); err != nil {
		t.Fatal(err)
	}
	script := "#!/usr/bin/env bash\nset -euo pipefail\ncat \"" + fixturePath + "\"\n"
	if err := os.WriteFile(filepath.Join(dir, "yt-dlp"), []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
	return ytdlp.Client{}
}

type stubExtractor struct {
	flat []byte
	err  error
}

func (s stubExtractor) FlatPlaylist(context.Context, string, bool) ([]byte, error) {
	return s.flat, s.err
}

func (s stubExtractor) Video(context.Context, string) ([]byte, error) {
	return s.flat, s.err
}

func TestEnumerateVideos_SkipsNullEntries(t *testing.T) {
	rec := eventlog.NewRecorder(50)
	r := New(fakeYTDLP(t, playlistFixture), slog.New(rec.Handler()))

	videos := r.EnumerateVideos(context.Background(), "https://www.youtube.com/playlist?list=PL123")
	if len(videos) != 3 {
		t.Fatalf("expected 3 videos, got %d", len(videos))
	}
	if videos[0].URL != "https://www.youtube.com/watch?v=a1" || videos[0].Status != model.StatusPending {
		t.Fatalf("unexpected first video: %+v", videos[0])
	}
	if videos[0].Duration == nil || *videos[0].Duration != 61 {
		t.Fatalf("expected duration 61, got %v", videos[0].Duration)
	}
	if videos[1].Duration != nil {
		t.Fatalf("expected missing duration to stay nil")
	}
	if rec.Count(slog.LevelWarn) != 1 {
		t.Fatalf("expected one warning for the null entry, got %d", rec.Count(slog.LevelWarn))
	}
}

func TestEnumerateVideos_SkipsDuplicateIDs(t *testing.T) {
	rec := eventlog.NewRecorder(10)
	flat := `{"_type":"playlist","id":"PL1","entries":[{"id":"a1","title":"One"},{"id":"b2"},{"id":"a1","title":"Again"}]}`
	r := New(stubExtractor{flat: []byte(flat)}, slog.New(rec.Handler()))

	videos := r.EnumerateVideos(context.Background(), "https://www.youtube.com/playlist?list=PL1")
	if len(videos) != 2 || videos[0].VideoID != "a1" || videos[0].Title != "One" || videos[1].VideoID != "b2" {
		t.Fatalf("expected first occurrence of each id in order, got %+v", videos)
	}
	if rec.Count(slog.LevelWarn) != 1 {
		t.Fatalf("expected one warning for the repeated entry, got %d", rec.Count(slog.LevelWarn))
	}
}

func TestEnumerateVideos_EmptyOnFailure(t *testing.T) {
	cases := map[string]stubExtractor{
		"fetch error":     {err: errors.New("HTTP Error 404")},
		"no entries":      {flat: []byte(`{"_type":"playlist","id":"PL1"}`)},
		"empty entries":   {flat: []byte(`{"_type":"playlist","id":"PL1","entries":[]}`)},
		"malformed JSON":  {flat: []byte(`{`)},
		"all null values": {flat: []byte(`{"_type":"playlist","id":"PL1","entries":[null,null]}`)},
	}
	for name, ext := range cases {
		t.Run(name, func(t *testing.T) {
			got := New(ext, nil).EnumerateVideos(context.Background(), "https://www.youtube.com/playlist?list=PL1")
			if got == nil || len(got) != 0 {
				t.Fatalf("expected empty non-nil slice, got %#v", got)
			}
		})
	}
}

func TestResolveInfo_FallsBackToUploader(t *testing.T) {
	r := New(fakeYTDLP(t, playlistFixture), nil)
	info, ok := r.ResolveInfo(context.Background(), "https://www.youtube.com/playlist?list=PL123")
	if !ok {
		t.Fatalf("expected playlist info")
	}
	want := model.PlaylistInfo{ID: "PL123", Title: "Go Course", Channel: "Gopher", ChannelID: "@gopher"}
	if info != want {
		t.Fatalf("unexpected info: %+v", info)
	}
}

func TestResolveInfo_LogsFailureContext(t *testing.T) {
	rec := eventlog.NewRecorder(10)
	r := New(stubExtractor{err: errors.New("private playlist")}, slog.New(rec.Handler()))
	if _, ok := r.ResolveInfo(context.Background(), "https://www.youtube.com/playlist?list=PLx"); ok {
		t.Fatalf("expected failure")
	}
	got := rec.Records()
	if len(got) != 1 || got[0].Level != slog.LevelError {
		t.Fatalf("expected one error record, got %+v", got)
	}
	if got[0].Attrs["url"] == "" || got[0].Attrs["error_type"] != "*errors.errorString" {
		t.Fatalf("missing context: %+v", got[0].Attrs)
	}
}

func TestValidate(t *testing.T) {
	valid := stubExtractor{flat: []byte(`{"_type":"playlist","id":"PL1","title":"x"}`)}
	video := stubExtractor{flat: []byte(`{"_type":"video","id":"v"}`)}
	failing := stubExtractor{err: errors.New("boom")}

	cases := []struct {
		name string
		ext  Extractor
		url  string
		want bool
	}{
		{"valid", valid, "https://www.youtube.com/playlist?list=PL1", true},
		{"music host", valid, "https://music.youtube.com/playlist?list=PL1", true},
		{"not youtube", valid, "https://vimeo.com/playlist?list=PL1", false},
		{"lookalike host", valid, "https://notyoutube.com/playlist?list=PL1", false},
		{"missing list", valid, "https://www.youtube.com/watch?v=abc", false},
		{"empty", valid, "", false},
		{"not a playlist", video, "https://www.youtube.com/playlist?list=PL1", false},
		{"probe fails", failing, "https://www.youtube.com/playlist?list=PL1", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := New(tc.ext, nil).Validate(context.Background(), tc.url); got != tc.want {
				t.Fatalf("Validate(%q) = %v, want %v", tc.url, got, tc.want)
			}
		})
	}
}

func TestExtractVideoID(t *testing.T) {
	r := New(stubExtractor{}, nil)
	cases := map[string]string{
		"https://youtu.be/dQw4w9WgXcQ":                        "dQw4w9WgXcQ",
		"https://youtu.be/dQw4w9WgXcQ?si=abc&t=10":            "dQw4w9WgXcQ",
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ&list=PL": "dQw4w9WgXcQ",
		"https://m.youtube.com/watch?v=xyz":                   "xyz",
	}
	for in, want := range cases {
		got, ok := r.ExtractVideoID(in)
		if !ok || got != want {
			t.Fatalf("ExtractVideoID(%q) = %q, %v; want %q", in, got, ok, want)
		}
	}

	rec := eventlog.NewRecorder(10)
	r = New(stubExtractor{}, slog.New(rec.Handler()))
	for _, in := range []string{"https://vimeo.com/123", "https://www.youtube.com/playlist?list=PL1", "https://youtu.be/"} {
		if _, ok := r.ExtractVideoID(in); ok {
			t.Fatalf("expected %q to be rejected", in)
		}
	}
	if rec.Count(slog.LevelError) != 3 {
		t.Fatalf("expected an error per rejected url")
	}
}

func TestValidate_MissingListLogsExtractionError(t *testing.T) {
	rec := eventlog.NewRecorder(10)
	r := New(stubExtractor{err: errors.New("must not be called")}, slog.New(rec.Handler()))
	if r.Validate(context.Background(), "https://www.youtube.com/watch?v=abc") {
		t.Fatalf("expected a url without list to be rejected")
	}
	got := rec.Records()
	if len(got) == 0 || got[len(got)-1].Message != "playlist id extraction error" {
		t.Fatalf("expected extraction error record, got %+v", got)
	}
}

func TestExtractPlaylistID(t *testing.T) {
	r := New(stubExtractor{}, nil)
	if id, ok := r.ExtractPlaylistID("https://www.youtube.com/playlist?list=PL77"); !ok || id != "PL77" {
		t.Fatalf("unexpected id %q ok=%v", id, ok)
	}
	if _, ok := r.ExtractPlaylistID("https://www.youtube.com/watch?v=a"); ok {
		t.Fatalf("expected missing list to fail")
	}
}

func TestVideoInfo(t *testing.T) {
	r := New(fakeYTDLP(t, `{"id":"v1","title":"Solo","uploader":"Up","duration":100.6}`), nil)
	info, ok := r.VideoInfo(context.Background(), "https://youtu.be/v1")
	if !ok || info.Title != "Solo" || info.Channel != "Up" || info.Duration == nil || *info.Duration != 101 {
		t.Fatalf("unexpected info: %+v ok=%v", info, ok)
	}
}
