package artifact

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	iofs "io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"yt-transcripts/internal/filestore"
)

// Bundle zips json/, txt/ and metadata.json of a playlist in memory. Missing
// folders are skipped.
func (s *Store) Bundle(playlistID string) ([]byte, error) {
	dir := s.PlaylistDir(playlistID)
	if ok, err := afero.DirExists(s.fs, dir); err != nil || !ok {
		return nil, fmt.Errorf("playlist %s has no artifacts", playlistID)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, sub := range []string{JSONDir, TextDir} {
		if err := s.addFolder(zw, dir, sub); err != nil {
			_ = zw.Close()
			return nil, err
		}
	}

	metaPath := filepath.Join(dir, MetadataFileName)
	if ok, _ := afero.Exists(s.fs, metaPath); ok {
		if err := s.addFile(zw, metaPath, MetadataFileName); err != nil {
			_ = zw.Close()
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finish archive for %s: %w", playlistID, err)
	}
	return buf.Bytes(), nil
}

func (s *Store) addFolder(zw *zip.Writer, dir, sub string) error {
	entries, err := afero.ReadDir(s.fs, filepath.Join(dir, sub))
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", sub, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), filestore.TempPrefix) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	for _, name := range names {
		if err := s.addFile(zw, filepath.Join(dir, sub, name), path.Join(sub, name)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) addFile(zw *zip.Writer, src, name string) error {
	data, err := afero.ReadFile(s.fs, src)
	if err != nil {
		return fmt.Errorf("read %s: %w", src, err)
	}
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return fmt.Errorf("add %s to archive: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write %s to archive: %w", name, err)
	}
	return nil
}
