package cli

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	uiTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	uiMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	uiErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	uiOKStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	uiPanelStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	uiSelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("62")).Bold(true)
	uiTabStyle   = lipgloss.NewStyle().Padding(0, 2)
)

const uiEventRows = 5

func (m uiModel) View() string {
	if m.width <= 0 {
		m.width = 100
	}
	if m.height <= 0 {
		m.height = 30
	}
	if m.screen == uiScreenAuth || !m.authenticated() {
		return m.viewAuth()
	}

	var body string
	switch m.screen {
	case uiScreenRunning:
		body = m.viewRunning()
	case uiScreenResults:
		body = m.viewResults()
	default:
		body = m.viewForm()
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.viewHeader(), body, m.viewEvents(), m.renderStatusLine())
}

func (m uiModel) viewHeader() string {
	user := m.backend.Session().User.Email
	title := uiTitleStyle.Render("yt-transcripts") + "  " + uiMutedStyle.Render("signed in as "+defaultIfEmpty(user, "(unknown)"))
	tabs := make([]string, 0, 2)
	for _, t := range []uiTab{uiTabVideo, uiTabPlaylist} {
		label := uiTabStyle.Render(t.String())
		if t == m.tab {
			label = uiSelStyle.Inherit(uiTabStyle).Render(t.String())
		}
		tabs = append(tabs, label)
	}
	return lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinHorizontal(lipgloss.Top, tabs...))
}

func (m uiModel) viewAuth() string {
	lines := []string{
		uiTitleStyle.Render("Sign in to yt-transcripts"),
		"",
		"Email",
		m.authInputs[0].View(),
		"",
		"Password",
		m.authInputs[1].View(),
		"",
		uiMutedStyle.Render("tab: switch field | enter: sign in | ctrl+n: sign up | esc: quit"),
	}
	if m.busy {
		lines = append(lines, "", m.spinner.View()+" "+m.statusMessage)
	} else if msg := strings.TrimSpace(m.statusMessage); msg != "" {
		lines = append(lines, "", m.statusStyle(msg).Render(msg))
	}
	boxW := clampInt(m.width-8, 40, 80)
	panel := uiPanelStyle.Width(boxW).Render(strings.Join(lines, "\n"))
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, panel)
}

func (m uiModel) viewForm() string {
	label := "Video URL"
	if m.tab == uiTabPlaylist {
		label = "Playlist URL"
	}
	lines := []string{
		label,
		m.formInputs[0].View(),
		"",
		"Language code",
		m.formInputs[1].View(),
		"",
		uiMutedStyle.Render("tab: switch field | enter: start | ctrl+t: switch tab | ctrl+o: sign out | ctrl+c: quit"),
	}
	return uiPanelStyle.Width(maxInt(m.width-2, 40)).Render(strings.Join(lines, "\n"))
}

func (m uiModel) viewRunning() string {
	lines := []string{m.spinner.View() + " processing " + m.tab.String() + "..."}
	if m.last.Total > 0 {
		pct := float64(m.last.Index) / float64(m.last.Total)
		lines = append(lines,
			"",
			m.bar.ViewAs(pct),
			fmt.Sprintf("%d/%d  ok:%d fail:%d", m.last.Index, m.last.Total, m.last.Success, m.last.Failed),
			wrapOrTrim("last: "+m.last.Video.Title, maxInt(m.width-6, 20)),
		)
	}
	lines = append(lines, "", uiMutedStyle.Render("esc: cancel after the current video"))
	return uiPanelStyle.Width(maxInt(m.width-2, 40)).Render(strings.Join(lines, "\n"))
}

func (m uiModel) viewResults() string {
	if m.single != nil {
		return m.viewSingleResult()
	}
	if m.run == nil {
		return uiPanelStyle.Render("no results")
	}
	r := m.run
	lines := []string{
		kv("playlist", r.PlaylistTitle),
		kv("channel", r.PlaylistUploader),
		kv("language", r.Language),
		fmt.Sprintf("total: %d  success: %d  failed: %d", r.TotalVideos, r.SuccessCount, r.FailedCount),
		"",
	}

	maxRows := clampInt(m.height-22, 3, 15)
	start, end := listWindow(len(r.Videos), m.cursor, maxRows)
	if start > 0 {
		lines = append(lines, uiMutedStyle.Render("..."))
	}
	for i := start; i < end; i++ {
		v := r.Videos[i]
		line := truncateRunes(fmt.Sprintf("[%-2s] %s  %s", statusMark(v.Status), v.VideoID, v.Title), maxInt(m.width-8, 10))
		if i == m.cursor {
			line = uiSelStyle.Render(line)
		}
		lines = append(lines, line)
	}
	if end < len(r.Videos) {
		lines = append(lines, uiMutedStyle.Render("..."))
	}

	if len(r.ErrorLogs) > 0 {
		lines = append(lines, "", "Errors")
		logs := r.ErrorLogs
		if len(logs) > uiEventRows {
			logs = logs[len(logs)-uiEventRows:]
		}
		for _, e := range logs {
			prefix := ""
			if e.IsRetry {
				prefix = "[retry] "
			}
			lines = append(lines, uiErrorStyle.Render(wrapOrTrim(prefix+e.VideoID+": "+e.Error, maxInt(m.width-8, 10))))
		}
	}

	hints := []string{"up/down: scroll"}
	if r.ShowRetry {
		hints = append(hints, "r: retry failed")
	}
	if r.SuccessCount > 0 {
		hints = append(hints, "s: save archive")
	}
	hints = append(hints, "n/esc: new request", "ctrl+o: sign out")
	lines = append(lines, "", uiMutedStyle.Render(strings.Join(hints, " | ")))
	return uiPanelStyle.Width(maxInt(m.width-2, 40)).Render(strings.Join(lines, "\n"))
}

func (m uiModel) viewSingleResult() string {
	s := m.single
	lines := []string{
		kv("video", s.Video.Title),
		kv("video_id", s.Video.VideoID),
		kv("language", s.Record.Metadata.LanguageName),
		kv("segments", fmt.Sprintf("%d", len(s.Record.Transcript))),
		kv("file", s.FileName),
		"",
	}
	preview := strings.Split(s.Text, "\n")
	rows := clampInt(m.height-20, 3, 12)
	if len(preview) > rows {
		preview = preview[:rows]
	}
	for _, l := range preview {
		lines = append(lines, uiMutedStyle.Render(wrapOrTrim(l, maxInt(m.width-8, 10))))
	}
	lines = append(lines, "", uiMutedStyle.Render("s: save text file | n/esc: new request | ctrl+o: sign out"))
	return uiPanelStyle.Width(maxInt(m.width-2, 40)).Render(strings.Join(lines, "\n"))
}

func (m uiModel) viewEvents() string {
	if m.recorder == nil {
		return ""
	}
	entries := m.recorder.Records()
	if len(entries) > uiEventRows {
		entries = entries[len(entries)-uiEventRows:]
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		line := wrapOrTrim(e.String(), maxInt(m.width-6, 10))
		if e.Level >= slog.LevelError {
			line = uiErrorStyle.Render(line)
		} else {
			line = uiMutedStyle.Render(line)
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		lines = append(lines, uiMutedStyle.Render("no events yet"))
	}
	return uiPanelStyle.Width(maxInt(m.width-2, 40)).Render(strings.Join(lines, "\n"))
}

func (m uiModel) renderStatusLine() string {
	msg := strings.TrimSpace(m.statusMessage)
	if msg == "" {
		return ""
	}
	return m.statusStyle(msg).Width(m.width).Render(truncateRunes(msg, maxInt(m.width-2, 10)))
}

func (m uiModel) statusStyle(msg string) lipgloss.Style {
	lower := strings.ToLower(msg)
	switch {
	case strings.HasPrefix(lower, "error:"):
		return uiErrorStyle
	case strings.HasPrefix(lower, "saved"), strings.HasPrefix(lower, "finished"), strings.HasPrefix(lower, "signed"):
		return uiOKStyle
	default:
		return uiMutedStyle
	}
}
