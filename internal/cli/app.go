package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/spf13/afero"

	"yt-transcripts/internal/artifact"
	"yt-transcripts/internal/auth"
	"yt-transcripts/internal/batch"
	"yt-transcripts/internal/captions"
	"yt-transcripts/internal/config"
	"yt-transcripts/internal/eventlog"
	"yt-transcripts/internal/playlist"
	"yt-transcripts/internal/transcript"
	"yt-transcripts/internal/ytdlp"
)

const (
	defaultBrowserCookieAgent = "chrome"
	browserCookiesFlagHelp    = "use browser cookies for yt-dlp (chrome)"
	recorderLimit             = 200
)

type configFlags struct {
	config  *string
	envFile *string
}

func registerConfigFlags(fs *flag.FlagSet) configFlags {
	return configFlags{
		config:  fs.String("config", "", "config file path (default config.yml when present)"),
		envFile: fs.String("env-file", config.DefaultEnvFile, "dotenv file path"),
	}
}

func (c configFlags) load() (config.Config, error) {
	return config.Load(config.Options{
		Path:    strings.TrimSpace(*c.config),
		EnvFile: strings.TrimSpace(*c.envFile),
	})
}

// commonFlags are shared by every command that talks to yt-dlp.
type commonFlags struct {
	configFlags
	cookies        *string
	browserCookies *bool
	jsRuntime      *string
}

func registerCommonFlags(fs *flag.FlagSet) commonFlags {
	return commonFlags{
		configFlags:    registerConfigFlags(fs),
		cookies:        fs.String("cookies", "", "path to cookies.txt"),
		browserCookies: fs.Bool("browser-cookies", false, browserCookiesFlagHelp),
		jsRuntime:      fs.String("js-runtime", "", "JavaScript runtime override for yt-dlp extractor scripts: auto|deno|node|quickjs|bun"),
	}
}

// loadConfig layers the command-line overrides on top of the loaded config.
func (c commonFlags) loadConfig() (config.Config, error) {
	cfg, err := c.load()
	if err != nil {
		return config.Config{}, err
	}
	if v := strings.TrimSpace(*c.cookies); v != "" {
		cfg.YTDLP.Cookies = v
	}
	if *c.browserCookies {
		cfg.YTDLP.CookiesFromBrowser = defaultBrowserCookieAgent
	}
	if v := strings.TrimSpace(*c.jsRuntime); v != "" {
		cfg.YTDLP.JSRuntime = strings.ToLower(v)
	}
	return cfg, nil
}

type appOptions struct {
	Console  io.Writer
	Progress func(batch.Update)
}

// app is the fully wired object graph behind every command.
type app struct {
	cfg       config.Config
	log       *slog.Logger
	closer    io.Closer
	recorder  *eventlog.Recorder
	ytdlp     ytdlp.Client
	store     *artifact.Store
	resolver  *playlist.Resolver
	processor *batch.Processor
}

func newApp(cfg config.Config, opts appOptions) (*app, error) {
	client := ytdlp.Client{
		Binary:             cfg.YTDLP.Binary,
		CookiesPath:        cfg.YTDLP.Cookies,
		CookiesFromBrowser: cfg.YTDLP.CookiesFromBrowser,
		JSRuntime:          cfg.YTDLP.JSRuntime,
	}
	if err := client.CheckDependencies(); err != nil {
		return nil, err
	}
	if _, err := ytdlp.CheckJSRuntime(cfg.YTDLP.JSRuntime); err != nil {
		return nil, err
	}

	recorder := eventlog.NewRecorder(recorderLimit)
	log, closer, err := eventlog.New(eventlog.Options{
		Dir:     cfg.LogDir,
		Level:   cfg.LogLevel,
		Console: opts.Console,
		Extra:   []slog.Handler{recorder.Handler()},
	})
	if err != nil {
		return nil, err
	}

	source := captions.NewYTDLPSource(captions.SourceOptions{
		Extractor:         client,
		Timeout:           cfg.Captions.Timeout,
		RequestsPerSecond: cfg.Captions.RequestsPerSecond,
		Logger:            log,
	})
	store := artifact.New(afero.NewOsFs(), cfg.DataDir, log)
	resolver := playlist.New(client, log)
	processor := batch.New(batch.Options{
		Resolver: resolver,
		Fetcher:  transcript.New(source, log),
		Store:    store,
		Logger:   log,
		Progress: opts.Progress,
	})

	return &app{
		cfg:       cfg,
		log:       log,
		closer:    closer,
		recorder:  recorder,
		ytdlp:     client,
		store:     store,
		resolver:  resolver,
		processor: processor,
	}, nil
}

func (a *app) Close() error {
	if a == nil || a.closer == nil {
		return nil
	}
	return a.closer.Close()
}

// newAuthBackend talks to the hosted identity service when one is configured
// and falls back to a process-local user table otherwise.
func newAuthBackend(cfg config.AuthConfig, log *slog.Logger) auth.Backend {
	if strings.TrimSpace(cfg.URL) == "" {
		log.Info("auth url not configured, using in-memory accounts")
		return auth.NewMemory()
	}
	return auth.NewGoTrue(cfg.URL, cfg.AnonKey, &http.Client{Timeout: config.DefaultCaptionTimeout}, log)
}

func languageOrDefault(flagValue string, cfg config.Config) string {
	if v := strings.ToLower(strings.TrimSpace(flagValue)); v != "" {
		return v
	}
	return cfg.Language
}

func requireURL(raw, label string) (string, error) {
	if v := strings.TrimSpace(raw); v != "" {
		return v, nil
	}
	v, err := promptRequired(label)
	if err != nil {
		return "", fmt.Errorf("--url is required: %w", err)
	}
	return v, nil
}
