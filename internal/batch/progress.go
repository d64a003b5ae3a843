package batch

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"unicode/utf8"
)

// LineProgress renders updates as a single status line. With Live set the
// line is redrawn in place; otherwise each update gets its own line.
type LineProgress struct {
	w    io.Writer
	live bool
	mu   sync.Mutex
}

func NewLineProgress(w io.Writer, live bool) *LineProgress {
	return &LineProgress{w: w, live: live}
}

func (p *LineProgress) Update(u Update) {
	if p == nil || p.w == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	line := renderUpdate(u)
	if !p.live {
		fmt.Fprintln(p.w, line)
		return
	}
	fmt.Fprintf(p.w, "\r\033[2K%s", line)
	if u.Index >= u.Total {
		fmt.Fprintln(p.w)
	}
}

func renderUpdate(u Update) string {
	title := u.Video.Title
	if utf8.RuneCountInString(title) > 52 {
		title = string([]rune(title)[:52]) + "..."
	}
	parts := []string{fmt.Sprintf("[%d/%d] %s", u.Index, u.Total, u.Video.VideoID)}
	if u.Retry {
		parts = append(parts, "retry")
	}
	parts = append(parts,
		fmt.Sprintf("ok:%d fail:%d", u.Success, u.Failed),
		u.Video.Status,
		"| "+title,
	)
	return strings.Join(parts, "  ")
}
