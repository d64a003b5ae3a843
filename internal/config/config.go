// Package config loads settings from an optional YAML file, an optional
// .env file and the process environment, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	iofs "io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v2"

	"yt-transcripts/internal/eventlog"
)

const (
	DefaultPath     = "config.yml"
	DefaultEnvFile  = ".env"
	DefaultDataDir  = "data"
	DefaultLogDir   = "logs"
	DefaultLanguage = "en"
	DefaultBinary   = "yt-dlp"
	DefaultRuntime  = "auto"

	DefaultCaptionTimeout    = 15 * time.Second
	DefaultRequestsPerSecond = 2.0
)

type YTDLPConfig struct {
	Binary             string `yaml:"binary"`
	Cookies            string `yaml:"cookies"`
	CookiesFromBrowser string `yaml:"cookies_from_browser"`
	JSRuntime          string `yaml:"js_runtime"`
}

type CaptionsConfig struct {
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
}

type AuthConfig struct {
	URL     string `yaml:"url"`
	AnonKey string `yaml:"anon_key"`
}

type Config struct {
	DataDir  string         `yaml:"data_dir"`
	LogDir   string         `yaml:"log_dir"`
	LogLevel string         `yaml:"log_level"`
	Language string         `yaml:"language"`
	YTDLP    YTDLPConfig    `yaml:"ytdlp"`
	Captions CaptionsConfig `yaml:"captions"`
	Auth     AuthConfig     `yaml:"auth"`
}

type Options struct {
	Fs      afero.Fs
	Path    string
	EnvFile string
	// Getenv defaults to os.LookupEnv.
	Getenv func(string) (string, bool)
}

func Default() Config {
	return Config{
		DataDir:  DefaultDataDir,
		LogDir:   DefaultLogDir,
		LogLevel: eventlog.LevelInfo,
		Language: DefaultLanguage,
		YTDLP: YTDLPConfig{
			Binary:    DefaultBinary,
			JSRuntime: DefaultRuntime,
		},
		Captions: CaptionsConfig{
			Timeout:           DefaultCaptionTimeout,
			RequestsPerSecond: DefaultRequestsPerSecond,
		},
	}
}

// Load reads the YAML file and .env file named in opts. Missing default
// files are ignored; a missing explicit config path is an error.
func Load(opts Options) (Config, error) {
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	lookup := opts.Getenv
	if lookup == nil {
		lookup = os.LookupEnv
	}

	cfg := Config{}
	path := strings.TrimSpace(opts.Path)
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	data, err := afero.ReadFile(fs, path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, iofs.ErrNotExist) && !explicit:
	default:
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	dotenv, err := readDotenv(fs, opts.EnvFile)
	if err != nil {
		return Config{}, err
	}
	env := func(key string) (string, bool) {
		if v, ok := lookup(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	if err := applyEnv(&cfg, env); err != nil {
		return Config{}, err
	}
	return Normalize(cfg)
}

func readDotenv(fs afero.Fs, name string) (map[string]string, error) {
	if strings.TrimSpace(name) == "" {
		name = DefaultEnvFile
	}
	f, err := fs.Open(name)
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()
	values, err := godotenv.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	return values, nil
}

func applyEnv(cfg *Config, env func(string) (string, bool)) error {
	strVars := map[string]*string{
		"YTT_DATA_DIR":      &cfg.DataDir,
		"YTT_LOG_DIR":       &cfg.LogDir,
		"YTT_LOG_LEVEL":     &cfg.LogLevel,
		"YTT_LANGUAGE":      &cfg.Language,
		"YTDLP_BINARY":      &cfg.YTDLP.Binary,
		"YTDLP_COOKIES":     &cfg.YTDLP.Cookies,
		"YTDLP_JS_RUNTIME":  &cfg.YTDLP.JSRuntime,
		"SUPABASE_URL":      &cfg.Auth.URL,
		"SUPABASE_ANON_KEY": &cfg.Auth.AnonKey,
	}
	for key, dst := range strVars {
		if v, ok := env(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	if v, ok := env("YTT_CAPTIONS_TIMEOUT"); ok && strings.TrimSpace(v) != "" {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("YTT_CAPTIONS_TIMEOUT: %w", err)
		}
		cfg.Captions.Timeout = d
	}
	if v, ok := env("YTT_CAPTIONS_RPS"); ok && strings.TrimSpace(v) != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("YTT_CAPTIONS_RPS: %w", err)
		}
		cfg.Captions.RequestsPerSecond = f
	}
	return nil
}

// Normalize fills defaults and rejects values nothing downstream could use.
func Normalize(raw Config) (Config, error) {
	def := Default()
	norm := raw
	norm.DataDir = orDefault(norm.DataDir, def.DataDir)
	norm.LogDir = orDefault(norm.LogDir, def.LogDir)
	norm.Language = orDefault(norm.Language, def.Language)
	norm.YTDLP.Binary = orDefault(norm.YTDLP.Binary, def.YTDLP.Binary)
	norm.YTDLP.JSRuntime = strings.ToLower(orDefault(norm.YTDLP.JSRuntime, def.YTDLP.JSRuntime))
	norm.LogLevel = strings.ToLower(orDefault(norm.LogLevel, def.LogLevel))
	if _, err := eventlog.ParseLevel(norm.LogLevel); err != nil {
		return Config{}, err
	}
	if norm.Captions.Timeout <= 0 {
		norm.Captions.Timeout = def.Captions.Timeout
	}
	if norm.Captions.RequestsPerSecond <= 0 {
		norm.Captions.RequestsPerSecond = def.Captions.RequestsPerSecond
	}
	norm.Auth.URL = strings.TrimRight(strings.TrimSpace(norm.Auth.URL), "/")
	return norm, nil
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}
