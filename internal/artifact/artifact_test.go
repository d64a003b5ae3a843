package artifact

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"yt-transcripts/internal/filestore"
	"yt-transcripts/internal/model"
)

func sampleRecord(videoID, title string) *model.TranscriptRecord {
	return &model.TranscriptRecord{
		VideoID: videoID,
		Title:   title,
		Transcript: []model.Segment{
			{Text: "hello", Start: 0, Duration: 1.5},
			{Text: "a <b> & c", Start: 75.9, Duration: 2},
		},
		Metadata: model.TranscriptMetadata{
			Language:     "en",
			LanguageName: "English",
			DownloadDate: "2026-03-04T05:06:07Z",
		},
	}
}

func TestSanitize(t *testing.T) {
	cases := []struct {
		in   string
		max  int
		want string
	}{
		{in: `a/b\c*d?e:f"g<h>i|j`, max: 70, want: "a-b-c-d-e-f-g-h-i-j"},
		{in: "  many   spaces\there ", max: 70, want: "many spaces here"},
		{in: "The quick brown fox jumps over the lazy dog", max: 30, want: "The quick brown fox jumps..."},
		{in: "Supercalifragilisticexpialidocious", max: 10, want: "Superca..."},
		{in: "ngắn", max: 30, want: "ngắn"},
	}
	for _, tc := range cases {
		got := Sanitize(tc.in, tc.max)
		require.Equal(t, tc.want, got, "input %q", tc.in)
		require.LessOrEqual(t, len([]rune(got)), tc.max)
	}
}

func TestSanitize_IdempotentAndClean(t *testing.T) {
	inputs := []string{
		"Lecture 1: Intro to <Go> | Part 2/3?",
		`C:\path\to "file"`,
		"     ",
		"Một hai ba bốn năm sáu bảy tám chín mười mười một mười hai",
		"word " + strings.Repeat("x", 80),
		"trailing space cut here ... and more words after the limit",
	}
	for _, in := range inputs {
		for _, max := range []int{10, ArtifactNameLength, DefaultNameLength} {
			once := Sanitize(in, max)
			require.Equal(t, once, Sanitize(once, max), "not idempotent for %q max=%d", in, max)
			require.False(t, strings.ContainsAny(once, `\/*?:"<>|`), "illegal character left in %q", once)
		}
	}
}

func TestArchiveName(t *testing.T) {
	require.Equal(t, "Go_Channel_Intro-_Part_1_PL123.zip", ArchiveName("Go Channel", "Intro: Part 1!", "PL123"))
	require.Equal(t, "Title_PL9.zip", ArchiveName("  ", "Title", "PL9"))
	require.Equal(t, "Kênh_Bài_học_PLx.zip", ArchiveName("Kênh", "Bài học", "PLx"))
}

func TestRenderText(t *testing.T) {
	got := RenderText(*sampleRecord("vid1", "Intro"))
	want := strings.Join([]string{
		"Video ID: vid1",
		"Title: Intro",
		"Language: en",
		"Language Name: English",
		"Download Date: 2026-03-04T05:06:07Z",
		"",
		"Transcript:",
		"",
		"[00:00] hello",
		"[01:15] a <b> & c",
	}, "\n")
	require.Equal(t, want, got)
}

func TestWrite_RoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := New(fs, "/data", nil)
	rec := sampleRecord("vid1", "")
	title := "A very long video title that will be truncated"

	require.True(t, store.Write("PL1", "vid1", title, rec))
	require.True(t, store.Write("PL1", "vid1", title, rec), "second write must be idempotent")

	base := Sanitize(title, ArtifactNameLength) + "_vid1"
	raw, err := afero.ReadFile(fs, filepath.Join("/data/playlists/PL1/json", base+".json"))
	require.NoError(t, err)
	require.Contains(t, string(raw), "a <b> & c")

	var back model.TranscriptRecord
	require.NoError(t, json.Unmarshal(raw, &back))
	require.Equal(t, title, back.Title)
	require.Equal(t, rec.Transcript, back.Transcript)
	require.Equal(t, rec.Metadata.Language, back.Metadata.Language)
	_, err = time.Parse(time.RFC3339, back.Metadata.DownloadDate)
	require.NoError(t, err)

	read, err := store.ReadRecord("PL1", "vid1", title)
	require.NoError(t, err)
	require.Equal(t, back, read)

	txt, err := afero.ReadFile(fs, filepath.Join("/data/playlists/PL1/txt", base+".txt"))
	require.NoError(t, err)
	require.Equal(t, RenderText(back), string(txt))
}

func TestWrite_FailureReturnsFalse(t *testing.T) {
	store := New(afero.NewReadOnlyFs(afero.NewMemMapFs()), "/data", nil)
	require.False(t, store.Write("PL1", "vid1", "t", sampleRecord("vid1", "t")))
	require.False(t, store.Write("../x", "vid1", "t", sampleRecord("vid1", "t")))
	require.False(t, New(afero.NewMemMapFs(), "/data", nil).Write("PL1", "vid1", "t", nil))
}

func TestBundle_ContainsArtifactsAndMetadata(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := New(fs, "/data", nil)
	for _, id := range []string{"a", "b", "c"} {
		require.True(t, store.Write("PL1", id, "Video "+id, sampleRecord(id, "")))
	}
	info := model.PlaylistInfo{ID: "PL1", Title: "List", Channel: "Chan", ChannelID: "UC1"}
	require.True(t, store.WriteMetadata("PL1", info))

	lock, err := store.Lock("PL1")
	require.NoError(t, err)
	defer func() { _ = lock.Release() }()

	data, err := store.Bundle("PL1")
	require.NoError(t, err)
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
		require.Equal(t, zip.Deflate, f.Method)
	}
	sort.Strings(names)
	require.Equal(t, []string{
		"json/Video a_a.json", "json/Video b_b.json", "json/Video c_c.json",
		"metadata.json",
		"txt/Video a_a.txt", "txt/Video b_b.txt", "txt/Video c_c.txt",
	}, names)

	got, err := store.ReadMetadata("PL1")
	require.NoError(t, err)
	require.Equal(t, info, got)
}

func TestBundle_KeepsDotLeadingTitlesSkipsTempFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := New(fs, "/data", nil)
	require.True(t, store.Write("PL1", "vid1", "...And Justice for All", sampleRecord("vid1", "")))
	require.True(t, store.Write("PL1", "vid2", "Normal", sampleRecord("vid2", "")))
	tmp := filepath.Join(store.PlaylistDir("PL1"), JSONDir, filestore.TempPrefix+"123")
	require.NoError(t, afero.WriteFile(fs, tmp, []byte("{"), 0o644))

	data, err := store.Bundle("PL1")
	require.NoError(t, err)
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	require.Equal(t, []string{
		"json/...And Justice for All_vid1.json", "json/Normal_vid2.json",
		"txt/...And Justice for All_vid1.txt", "txt/Normal_vid2.txt",
	}, names)
}

func TestBundle_MissingPlaylist(t *testing.T) {
	_, err := New(afero.NewMemMapFs(), "/data", nil).Bundle("nope")
	require.Error(t, err)
}

func TestTextFileName(t *testing.T) {
	require.Equal(t, "How to - cook_v1.txt", TextFileName("v1", "How to / cook"))
}
