package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/afero"

	"yt-transcripts/internal/auth"
	"yt-transcripts/internal/batch"
	"yt-transcripts/internal/eventlog"
	"yt-transcripts/internal/model"
)

type uiScreen int

const (
	uiScreenAuth uiScreen = iota
	uiScreenForm
	uiScreenRunning
	uiScreenResults
)

type uiTab int

const (
	uiTabVideo uiTab = iota
	uiTabPlaylist
)

func (t uiTab) String() string {
	if t == uiTabPlaylist {
		return "playlist"
	}
	return "video"
}

// uiRunner is everything the UI asks of the processing stack.
type uiRunner interface {
	Validate(ctx context.Context, playlistURL string) bool
	Start(ctx context.Context, playlistURL, language string) (*model.RunResult, error)
	Retry(ctx context.Context, run *model.RunResult) error
	ProcessSingle(ctx context.Context, videoURL, language string) (batch.SingleResult, error)
	ExportArchive(info model.PlaylistInfo) (string, error)
	SaveText(name, text string) (string, error)
}

type uiModel struct {
	ctx      context.Context
	backend  auth.Backend
	runner   uiRunner
	recorder *eventlog.Recorder
	log      *slog.Logger
	events   chan tea.Msg
	language string

	width  int
	height int
	screen uiScreen
	tab    uiTab

	authInputs []textinput.Model
	formInputs []textinput.Model
	focus      int

	spinner spinner.Model
	bar     progress.Model
	last    batch.Update
	cancel  context.CancelFunc

	run    *model.RunResult
	single *batch.SingleResult
	cursor int

	busy          bool
	statusMessage string
}

type authDoneMsg struct {
	ok      bool
	message string
	signOut bool
}

type progressMsg batch.Update

type runDoneMsg struct {
	run   *model.RunResult
	err   error
	retry bool
}

type singleDoneMsg struct {
	res batch.SingleResult
}

type savedMsg struct {
	path string
}

type actionErrMsg struct {
	action string
	err    error
}

func runUI(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("ui", flag.ContinueOnError)
	out := fs.String("out", ".", "directory for saved text files and archives")
	common := registerCommonFlags(fs)
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !stdinIsTTY() {
		return errors.New("ui requires an interactive terminal (TTY)")
	}

	cfg, err := common.loadConfig()
	if err != nil {
		return err
	}
	events := make(chan tea.Msg, 64)
	a, err := newApp(cfg, appOptions{
		Progress: func(u batch.Update) {
			select {
			case events <- progressMsg(u):
			default:
			}
		},
	})
	if err != nil {
		return err
	}
	defer a.Close()

	runner := appRunner{app: a, fs: afero.NewOsFs(), outDir: strings.TrimSpace(*out)}
	m := newUIModel(ctx, newAuthBackend(cfg.Auth, a.log), runner, a.recorder, a.log, cfg.Language, events)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "tty") {
			return errors.New("ui requires an interactive terminal (TTY)")
		}
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return err
	}
	return nil
}

func newUIModel(ctx context.Context, backend auth.Backend, runner uiRunner, rec *eventlog.Recorder, log *slog.Logger, language string, events chan tea.Msg) uiModel {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if events == nil {
		events = make(chan tea.Msg, 64)
	}
	m := uiModel{
		ctx:      ctx,
		backend:  backend,
		runner:   runner,
		recorder: rec,
		log:      log.With(slog.String("component", "ui")),
		events:   events,
		language: defaultIfEmpty(language, "en"),
		screen:   uiScreenAuth,
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot)),
		bar:      progress.New(progress.WithDefaultGradient()),
	}

	email := newUIInput("email", 256)
	password := newUIInput("password", 256)
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'
	m.authInputs = []textinput.Model{email, password}

	target := newUIInput("https://www.youtube.com/...", 2048)
	lang := newUIInput("en", 16)
	lang.SetValue(m.language)
	m.formInputs = []textinput.Model{target, lang}

	if backend != nil && backend.Session().Authenticated {
		m.screen = uiScreenForm
	}
	m.focusInput(0)
	return m
}

func newUIInput(placeholder string, limit int) textinput.Model {
	in := textinput.New()
	in.Prompt = "> "
	in.Placeholder = placeholder
	in.CharLimit = limit
	in.Width = 60
	return in
}

func (m uiModel) Init() tea.Cmd {
	return tea.Batch(waitForEvent(m.events), m.spinner.Tick, textinput.Blink)
}

func waitForEvent(ch <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-ch
	}
}

// contained runs fn as a command and turns any panic into an actionErrMsg,
// so a failing action is reported on screen instead of tearing down the
// program.
func (m uiModel) contained(action string, fn func() tea.Msg) tea.Cmd {
	log := m.log
	return func() (msg tea.Msg) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("ui action panic", slog.String("action", action), slog.Any("panic", r))
				msg = actionErrMsg{action: action, err: fmt.Errorf("unexpected error: %v", r)}
			}
		}()
		return fn()
	}
}

func (m uiModel) authenticated() bool {
	return m.backend != nil && m.backend.Session().Authenticated
}

func (m uiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = clampInt(msg.Width-8, 20, 80)
		for i := range m.formInputs {
			m.formInputs[i].Width = clampInt(msg.Width-8, 20, 120)
		}
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case progressMsg:
		m.last = batch.Update(msg)
		return m, waitForEvent(m.events)
	case authDoneMsg:
		m.busy = false
		m.statusMessage = msg.message
		if !msg.ok {
			m.statusMessage = "error: " + msg.message
			return m, nil
		}
		if msg.signOut || !m.authenticated() {
			m.resetSession()
			return m, nil
		}
		m.authInputs[1].SetValue("")
		m.screen = uiScreenForm
		m.focusInput(0)
		return m, nil
	case runDoneMsg:
		return m.finishRun(msg), nil
	case singleDoneMsg:
		m.finishWork()
		res := msg.res
		m.single = &res
		m.run = nil
		m.screen = uiScreenResults
		m.statusMessage = fmt.Sprintf("transcript ready: %d segments", len(res.Record.Transcript))
		return m, nil
	case savedMsg:
		m.busy = false
		m.statusMessage = "saved " + msg.path
		return m, nil
	case actionErrMsg:
		return m.failAction(msg), nil
	}

	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	if keyMsg.String() == "ctrl+c" {
		if m.cancel != nil {
			m.cancel()
		}
		return m, tea.Quit
	}
	if m.screen != uiScreenAuth && !m.authenticated() {
		m.resetSession()
	}

	switch m.screen {
	case uiScreenAuth:
		return m.updateAuth(keyMsg)
	case uiScreenForm:
		return m.updateForm(keyMsg)
	case uiScreenRunning:
		return m.updateRunning(keyMsg)
	case uiScreenResults:
		return m.updateResults(keyMsg)
	default:
		return m, nil
	}
}

func (m uiModel) updateAuth(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	switch msg.String() {
	case "esc":
		return m, tea.Quit
	case "tab", "down", "shift+tab", "up":
		m.focusInput(1 - m.focus)
		return m, nil
	case "enter":
		if m.focus == 0 {
			m.focusInput(1)
			return m, nil
		}
		return m.submitAuth(false)
	case "ctrl+n":
		return m.submitAuth(true)
	}
	var cmd tea.Cmd
	m.authInputs[m.focus], cmd = m.authInputs[m.focus].Update(msg)
	return m, cmd
}

func (m uiModel) submitAuth(signUp bool) (tea.Model, tea.Cmd) {
	email := strings.TrimSpace(m.authInputs[0].Value())
	password := m.authInputs[1].Value()
	if email == "" || password == "" {
		m.statusMessage = "error: enter email and password"
		return m, nil
	}
	backend, ctx := m.backend, m.ctx
	m.busy = true
	action := "sign in"
	if signUp {
		action = "sign up"
	}
	m.statusMessage = action + "..."
	return m, m.contained(action, func() tea.Msg {
		if signUp {
			ok, message := backend.SignUp(ctx, email, password)
			return authDoneMsg{ok: ok, message: message}
		}
		ok, message := backend.SignIn(ctx, email, password)
		return authDoneMsg{ok: ok, message: message}
	})
}

func (m uiModel) signOut() (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	backend, ctx := m.backend, m.ctx
	m.busy = true
	return m, m.contained("sign out", func() tea.Msg {
		ok, message := backend.SignOut(ctx)
		return authDoneMsg{ok: ok, message: message, signOut: true}
	})
}

func (m uiModel) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+o":
		return m.signOut()
	case "ctrl+t":
		if m.tab == uiTabVideo {
			m.tab = uiTabPlaylist
		} else {
			m.tab = uiTabVideo
		}
		m.statusMessage = ""
		return m, nil
	case "esc":
		if m.run != nil || m.single != nil {
			m.screen = uiScreenResults
		}
		return m, nil
	case "tab", "down", "shift+tab", "up":
		m.focusInput(1 - m.focus)
		return m, nil
	case "enter":
		return m.submitForm()
	}
	var cmd tea.Cmd
	m.formInputs[m.focus], cmd = m.formInputs[m.focus].Update(msg)
	return m, cmd
}

func (m uiModel) submitForm() (tea.Model, tea.Cmd) {
	target := strings.TrimSpace(m.formInputs[0].Value())
	if target == "" {
		m.statusMessage = "error: enter a " + m.tab.String() + " URL"
		return m, nil
	}
	lang := strings.ToLower(strings.TrimSpace(m.formInputs[1].Value()))
	if lang == "" {
		lang = m.language
	}

	runCtx, cancel := context.WithCancel(m.ctx)
	runner := m.runner
	m.cancel = cancel
	m.screen = uiScreenRunning
	m.last = batch.Update{}
	m.statusMessage = ""

	if m.tab == uiTabVideo {
		return m, m.contained("video", func() tea.Msg {
			res, err := runner.ProcessSingle(runCtx, target, lang)
			if err != nil {
				return actionErrMsg{action: "video", err: err}
			}
			return singleDoneMsg{res: res}
		})
	}
	return m, m.contained("playlist", func() tea.Msg {
		if !runner.Validate(runCtx, target) {
			return actionErrMsg{action: "playlist", err: errInvalidPlaylistURL}
		}
		run, err := runner.Start(runCtx, target, lang)
		if run == nil {
			if err == nil {
				err = batch.ErrPlaylistUnavailable
			}
			return actionErrMsg{action: "playlist", err: err}
		}
		return runDoneMsg{run: run, err: err}
	})
}

func (m uiModel) updateRunning(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "esc" && m.cancel != nil {
		m.cancel()
		m.statusMessage = "cancelling after the current video..."
	}
	return m, nil
}

func (m uiModel) updateResults(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+o":
		return m.signOut()
	case "esc", "n":
		m.screen = uiScreenForm
		m.focusInput(0)
		return m, nil
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case "down", "j":
		if m.run != nil && m.cursor < len(m.run.Videos)-1 {
			m.cursor++
		}
		return m, nil
	case "r":
		return m.retry()
	case "s":
		return m.save()
	}
	return m, nil
}

func (m uiModel) retry() (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	if m.run == nil || !m.run.ShowRetry {
		m.statusMessage = "nothing to retry"
		return m, nil
	}
	next := cloneRun(m.run)
	runCtx, cancel := context.WithCancel(m.ctx)
	runner := m.runner
	m.cancel = cancel
	m.screen = uiScreenRunning
	m.last = batch.Update{}
	m.statusMessage = ""
	return m, m.contained("retry", func() tea.Msg {
		err := runner.Retry(runCtx, next)
		return runDoneMsg{run: next, err: err, retry: true}
	})
}

func (m uiModel) save() (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	runner := m.runner
	switch {
	case m.single != nil:
		name, text := m.single.FileName, m.single.Text
		m.busy = true
		return m, m.contained("save", func() tea.Msg {
			path, err := runner.SaveText(name, text)
			if err != nil {
				return actionErrMsg{action: "save", err: err}
			}
			return savedMsg{path: path}
		})
	case m.run != nil && m.run.SuccessCount > 0:
		info := model.PlaylistInfo{ID: m.run.PlaylistID, Title: m.run.PlaylistTitle, Channel: m.run.PlaylistUploader}
		m.busy = true
		return m, m.contained("archive", func() tea.Msg {
			path, err := runner.ExportArchive(info)
			if err != nil {
				return actionErrMsg{action: "archive", err: err}
			}
			return savedMsg{path: path}
		})
	default:
		m.statusMessage = "nothing to save"
		return m, nil
	}
}

func (m uiModel) finishRun(msg runDoneMsg) uiModel {
	m.finishWork()
	m.run = msg.run
	m.single = nil
	m.cursor = 0
	m.screen = uiScreenResults
	switch {
	case errors.Is(msg.err, context.Canceled):
		m.statusMessage = "cancelled; unprocessed videos count as failed"
	case msg.err != nil:
		m.statusMessage = "error: " + msg.err.Error()
	case msg.retry:
		m.statusMessage = fmt.Sprintf("retry finished: %d/%d succeeded", msg.run.SuccessCount, msg.run.TotalVideos)
	default:
		m.statusMessage = fmt.Sprintf("finished: %d/%d succeeded", msg.run.SuccessCount, msg.run.TotalVideos)
	}
	return m
}

func (m uiModel) failAction(msg actionErrMsg) uiModel {
	m.finishWork()
	if msg.err != nil {
		m.log.Error("ui action failed", slog.String("action", msg.action), slog.String("error", msg.err.Error()))
		m.statusMessage = "error: " + msg.err.Error()
	}
	if m.screen == uiScreenRunning {
		m.screen = uiScreenForm
		if msg.action == "retry" && m.run != nil {
			m.screen = uiScreenResults
		}
	}
	return m
}

func (m *uiModel) finishWork() {
	m.busy = false
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

func (m *uiModel) resetSession() {
	m.finishWork()
	if m.recorder != nil {
		m.recorder.Reset()
	}
	m.screen = uiScreenAuth
	m.run = nil
	m.single = nil
	m.cursor = 0
	m.authInputs[1].SetValue("")
	m.focusInput(0)
}

func (m *uiModel) focusInput(i int) {
	inputs := m.formInputs
	if m.screen == uiScreenAuth {
		inputs = m.authInputs
	}
	for j := range m.authInputs {
		m.authInputs[j].Blur()
	}
	for j := range m.formInputs {
		m.formInputs[j].Blur()
	}
	m.focus = clampInt(i, 0, len(inputs)-1)
	inputs[m.focus].Focus()
}

// cloneRun copies the parts of a run a retry pass mutates, so the model
// never shares state with a command still in flight.
func cloneRun(run *model.RunResult) *model.RunResult {
	next := *run
	next.Videos = append([]model.VideoDescriptor(nil), run.Videos...)
	next.ErrorLogs = append([]model.ErrorLogEntry(nil), run.ErrorLogs...)
	next.FailedVideos = append([]model.VideoDescriptor(nil), run.FailedVideos...)
	return &next
}

type appRunner struct {
	app    *app
	fs     afero.Fs
	outDir string
}

func (r appRunner) Validate(ctx context.Context, playlistURL string) bool {
	return r.app.resolver.Validate(ctx, playlistURL)
}

func (r appRunner) Start(ctx context.Context, playlistURL, language string) (*model.RunResult, error) {
	return r.app.processor.Start(ctx, playlistURL, language)
}

func (r appRunner) Retry(ctx context.Context, run *model.RunResult) error {
	return r.app.processor.Retry(ctx, run)
}

func (r appRunner) ProcessSingle(ctx context.Context, videoURL, language string) (batch.SingleResult, error) {
	return r.app.processor.ProcessSingle(ctx, videoURL, language)
}

func (r appRunner) ExportArchive(info model.PlaylistInfo) (string, error) {
	return writeArchive(r.app.store, info, r.outDir, true)
}

func (r appRunner) SaveText(name, text string) (string, error) {
	return saveOutput(r.fs, r.outDir, name, []byte(text), true)
}
