package artifact

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	DefaultNameLength  = 70
	ArtifactNameLength = 30
)

var (
	illegalNameChars = regexp.MustCompile(`[\\/*?:"<>|]`)
	whitespaceRun    = regexp.MustCompile(`\s+`)
	nonArchiveChars  = regexp.MustCompile(`[^\p{L}\p{N}_-]`)
)

// Sanitize replaces characters that are illegal in file names, collapses
// whitespace and caps the result at max runes with a trailing "...".
// Sanitize(Sanitize(s, n), n) == Sanitize(s, n).
func Sanitize(name string, max int) string {
	if max <= 3 {
		max = DefaultNameLength
	}
	name = illegalNameChars.ReplaceAllString(name, "-")
	name = strings.Join(strings.Fields(name), " ")
	if utf8.RuneCountInString(name) <= max {
		return name
	}

	part := string([]rune(name)[:max-3])
	if i := strings.LastIndex(part, " "); i > 0 {
		part = part[:i]
	}
	return strings.TrimRight(part, " ") + "..."
}

func archivePart(s string) string {
	s = illegalNameChars.ReplaceAllString(s, "-")
	s = whitespaceRun.ReplaceAllString(strings.TrimSpace(s), "_")
	return nonArchiveChars.ReplaceAllString(s, "")
}

// ArchiveName returns {channel}_{title}_{id}.zip, without the channel part
// when it is empty.
func ArchiveName(channel, title, playlistID string) string {
	parts := make([]string, 0, 3)
	if c := archivePart(channel); c != "" {
		parts = append(parts, c)
	}
	parts = append(parts, archivePart(title), archivePart(playlistID))
	return strings.Join(parts, "_") + ".zip"
}

func baseName(videoID, title string) string {
	return Sanitize(title, ArtifactNameLength) + "_" + videoID
}

// TextFileName is the download name offered for a single video's text
// rendering. It allows a longer title than the stored artifact does.
func TextFileName(videoID, title string) string {
	return Sanitize(title, DefaultNameLength) + "_" + videoID + ".txt"
}
