package artifact

import (
	"fmt"
	"strings"

	"yt-transcripts/internal/model"
)

// RenderText produces the human-readable transcript: five header lines, a
// "Transcript:" marker, then one "[MM:SS] text" line per segment.
func RenderText(rec model.TranscriptRecord) string {
	lines := make([]string, 0, len(rec.Transcript)+6)
	lines = append(lines,
		"Video ID: "+rec.VideoID,
		"Title: "+rec.Title,
		"Language: "+rec.Metadata.Language,
		"Language Name: "+rec.Metadata.LanguageName,
		"Download Date: "+rec.Metadata.DownloadDate,
		"\nTranscript:\n",
	)
	for _, seg := range rec.Transcript {
		lines = append(lines, timestamp(seg.Start)+" "+seg.Text)
	}
	return strings.Join(lines, "\n")
}

func timestamp(start float64) string {
	if start < 0 {
		start = 0
	}
	total := int(start)
	return fmt.Sprintf("[%02d:%02d]", total/60, total%60)
}
