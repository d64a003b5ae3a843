package config

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func noEnv(string) (string, bool) { return "", false }

func TestLoad_DefaultsWhenNothingExists(t *testing.T) {
	cfg, err := Load(Options{Fs: afero.NewMemMapFs(), Getenv: noEnv})
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoad_YAMLThenDotenvThenEnv(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "config.yml", []byte(`
data_dir: /srv/data
log_level: DEBUG
language: vi
ytdlp:
  binary: /opt/yt-dlp
  js_runtime: Node
captions:
  timeout: 30s
auth:
  url: https://proj.supabase.co/
`), 0o644))
	require.NoError(t, afero.WriteFile(fs, ".env", []byte("SUPABASE_ANON_KEY=from-dotenv\nYTT_LANGUAGE=ja\n"), 0o644))

	env := map[string]string{"YTT_LANGUAGE": "ko"}
	cfg, err := Load(Options{Fs: fs, Getenv: func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}})
	require.NoError(t, err)

	require.Equal(t, "/srv/data", cfg.DataDir)
	require.Equal(t, DefaultLogDir, cfg.LogDir)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, "ko", cfg.Language, "process env wins over .env and yaml")
	require.Equal(t, "/opt/yt-dlp", cfg.YTDLP.Binary)
	require.Equal(t, "node", cfg.YTDLP.JSRuntime)
	require.Equal(t, 30*time.Second, cfg.Captions.Timeout)
	require.Equal(t, DefaultRequestsPerSecond, cfg.Captions.RequestsPerSecond)
	require.Equal(t, "https://proj.supabase.co", cfg.Auth.URL)
	require.Equal(t, "from-dotenv", cfg.Auth.AnonKey)
}

func TestLoad_Errors(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, err := Load(Options{Fs: fs, Path: "missing.yml", Getenv: noEnv})
	require.Error(t, err)

	require.NoError(t, afero.WriteFile(fs, "bad.yml", []byte("log_level: [\n"), 0o644))
	_, err = Load(Options{Fs: fs, Path: "bad.yml", Getenv: noEnv})
	require.Error(t, err)

	_, err = Load(Options{Fs: fs, Getenv: func(k string) (string, bool) {
		if k == "YTT_LOG_LEVEL" {
			return "chatty", true
		}
		return "", false
	}})
	require.Error(t, err)

	_, err = Load(Options{Fs: fs, Getenv: func(k string) (string, bool) {
		if k == "YTT_CAPTIONS_TIMEOUT" {
			return "soon", true
		}
		return "", false
	}})
	require.Error(t, err)
}
