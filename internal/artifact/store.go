// Package artifact owns the on-disk playlist namespace:
//
//	<root>/playlists/{playlist_id}/metadata.json
//	<root>/playlists/{playlist_id}/json/{name}_{video_id}.json
//	<root>/playlists/{playlist_id}/txt/{name}_{video_id}.txt
package artifact

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"yt-transcripts/internal/filestore"
	"yt-transcripts/internal/model"
)

const (
	PlaylistsDir     = "playlists"
	SingleVideosID   = "single_videos"
	JSONDir          = "json"
	TextDir          = "txt"
	MetadataFileName = "metadata.json"
)

type Store struct {
	fs   afero.Fs
	root string
	log  *slog.Logger
}

func New(fs afero.Fs, root string, log *slog.Logger) *Store {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Store{fs: fs, root: root, log: log.With(slog.String("component", "artifact"))}
}

func (s *Store) Fs() afero.Fs {
	return s.fs
}

func (s *Store) PlaylistDir(playlistID string) string {
	return filepath.Join(s.root, PlaylistsDir, playlistID)
}

func (s *Store) ensureDirs(playlistID string) (string, error) {
	if strings.TrimSpace(playlistID) == "" || strings.ContainsAny(playlistID, `/\`) || playlistID == "." || playlistID == ".." {
		return "", fmt.Errorf("invalid playlist id %q", playlistID)
	}
	dir := s.PlaylistDir(playlistID)
	for _, sub := range []string{JSONDir, TextDir} {
		if err := filestore.Mkdir(s.fs, filepath.Join(dir, sub)); err != nil {
			return "", err
		}
	}
	return dir, nil
}

// Write stores record as JSON and text under the playlist directory. It
// reports false after logging when anything fails.
func (s *Store) Write(playlistID, videoID, title string, record *model.TranscriptRecord) bool {
	if err := s.write(playlistID, videoID, title, record); err != nil {
		s.log.Error("storage error",
			slog.String("playlist_id", playlistID),
			slog.String("video_id", videoID),
			slog.String("video_title", title),
			slog.String("error", err.Error()),
		)
		return false
	}
	s.log.Info("saved transcript",
		slog.String("playlist_id", playlistID),
		slog.String("video_id", videoID),
	)
	return true
}

func (s *Store) write(playlistID, videoID, title string, record *model.TranscriptRecord) error {
	if record == nil {
		return fmt.Errorf("no transcript record for %s", videoID)
	}
	dir, err := s.ensureDirs(playlistID)
	if err != nil {
		return err
	}
	if record.Title == "" {
		record.Title = title
	}

	base := baseName(videoID, title)
	if err := filestore.WriteJSON(s.fs, filepath.Join(dir, JSONDir, base+".json"), record); err != nil {
		return err
	}
	return filestore.WriteBytes(s.fs, filepath.Join(dir, TextDir, base+".txt"), []byte(RenderText(*record)))
}

func (s *Store) WriteMetadata(playlistID string, info model.PlaylistInfo) bool {
	dir, err := s.ensureDirs(playlistID)
	if err == nil {
		err = filestore.WriteJSON(s.fs, filepath.Join(dir, MetadataFileName), info)
	}
	if err != nil {
		s.log.Error("metadata storage error",
			slog.String("playlist_id", playlistID),
			slog.String("error", err.Error()),
		)
		return false
	}
	s.log.Info("saved playlist metadata", slog.String("playlist_id", playlistID))
	return true
}

func (s *Store) ReadMetadata(playlistID string) (model.PlaylistInfo, error) {
	var info model.PlaylistInfo
	if err := filestore.ReadJSON(s.fs, filepath.Join(s.PlaylistDir(playlistID), MetadataFileName), &info); err != nil {
		return model.PlaylistInfo{}, err
	}
	return info, nil
}

func (s *Store) ReadRecord(playlistID, videoID, title string) (model.TranscriptRecord, error) {
	var rec model.TranscriptRecord
	path := filepath.Join(s.PlaylistDir(playlistID), JSONDir, baseName(videoID, title)+".json")
	if err := filestore.ReadJSON(s.fs, path, &rec); err != nil {
		return model.TranscriptRecord{}, err
	}
	return rec, nil
}

// Lock guards one playlist directory against a concurrent run.
func (s *Store) Lock(playlistID string) (filestore.Lock, error) {
	if _, err := s.ensureDirs(playlistID); err != nil {
		return filestore.Lock{}, err
	}
	return filestore.AcquireLock(s.fs, s.PlaylistDir(playlistID))
}
