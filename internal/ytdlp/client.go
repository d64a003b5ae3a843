package ytdlp

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

const DefaultBinary = "yt-dlp"

// Client shells out to yt-dlp for metadata only; it never downloads media.
type Client struct {
	Binary             string
	CookiesPath        string
	CookiesFromBrowser string
	JSRuntime          string
}

type DependencyReport struct {
	YTDLPFound bool   `json:"yt_dlp_found"`
	YTDLPPath  string `json:"yt_dlp_path,omitempty"`
}

func (c Client) binary() string {
	if b := strings.TrimSpace(c.Binary); b != "" {
		return b
	}
	return DefaultBinary
}

func CheckJSRuntime(raw string) (string, error) {
	runtime, ok := normalizeJSRuntime(raw)
	if !ok {
		return "", fmt.Errorf("invalid js runtime %q (expected auto, deno, node, quickjs, or bun)", strings.TrimSpace(raw))
	}
	if runtime == "auto" {
		return runtime, nil
	}
	candidates := jsRuntimeBinaryCandidates(runtime)
	for _, bin := range candidates {
		if _, err := exec.LookPath(bin); err == nil {
			return runtime, nil
		}
	}
	return "", fmt.Errorf("missing dependency for js runtime %q: install one of [%s] or set js runtime to auto", runtime, strings.Join(candidates, ", "))
}

func (c Client) DependencyStatus() DependencyReport {
	report := DependencyReport{}
	if path, err := exec.LookPath(c.binary()); err == nil {
		report.YTDLPFound = true
		report.YTDLPPath = path
	}
	return report
}

func (c Client) CheckDependencies() error {
	if !c.DependencyStatus().YTDLPFound {
		return fmt.Errorf("missing dependency: %s is not installed or not on PATH", c.binary())
	}
	return nil
}

// FlatPlaylist returns the `--flat-playlist -J` document for sourceURL. A probe
// only asks for the first entry, which is enough to learn the result type.
func (c Client) FlatPlaylist(ctx context.Context, sourceURL string, probe bool) ([]byte, error) {
	if strings.TrimSpace(sourceURL) == "" {
		return nil, fmt.Errorf("source URL is required")
	}
	args := []string{"--flat-playlist", "-J"}
	if probe {
		args = append(args, "--playlist-end", "1")
	}
	return c.run(ctx, args, sourceURL)
}

// Video returns the single-video info document, including the subtitles and
// automatic_captions maps.
func (c Client) Video(ctx context.Context, videoURL string) ([]byte, error) {
	if strings.TrimSpace(videoURL) == "" {
		return nil, fmt.Errorf("video URL is required")
	}
	return c.run(ctx, []string{"-J", "--no-playlist", "--skip-download", "--no-warnings"}, videoURL)
}

func (c Client) run(ctx context.Context, args []string, target string) ([]byte, error) {
	if strings.TrimSpace(c.CookiesPath) != "" {
		cookiesPath, err := resolveCookiesPath(c.CookiesPath)
		if err != nil {
			return nil, err
		}
		args = append(args, "--cookies", cookiesPath)
	}
	if strings.TrimSpace(c.CookiesFromBrowser) != "" {
		args = append(args, "--cookies-from-browser", c.CookiesFromBrowser)
	}
	args, err := appendJSRuntimeArgs(args, c.JSRuntime)
	if err != nil {
		return nil, err
	}
	args = append(args, target)

	cmd := exec.CommandContext(ctx, c.binary(), args...)
	var stdout bytes.Buffer
	var stderr limitedBuffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("yt-dlp failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("yt-dlp returned empty output")
	}
	return stdout.Bytes(), nil
}

func appendJSRuntimeArgs(args []string, rawRuntime string) ([]string, error) {
	runtime, ok := normalizeJSRuntime(rawRuntime)
	if !ok {
		return nil, fmt.Errorf("invalid js runtime %q (expected auto, deno, node, quickjs, or bun)", strings.TrimSpace(rawRuntime))
	}
	if runtime == "auto" {
		return args, nil
	}
	return append(args, "--no-js-runtimes", "--js-runtimes", runtime), nil
}

func normalizeJSRuntime(raw string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "auto":
		return "auto", true
	case "deno", "node", "quickjs", "bun":
		return strings.ToLower(strings.TrimSpace(raw)), true
	default:
		return "", false
	}
}

func jsRuntimeBinaryCandidates(runtime string) []string {
	switch runtime {
	case "quickjs":
		return []string{"quickjs", "qjs"}
	default:
		return []string{runtime}
	}
}

// limitedBuffer keeps the head of stderr so a chatty failure cannot grow
// the error message without bound.
type limitedBuffer struct {
	buf bytes.Buffer
}

const maxKeep = 8192

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if remain := maxKeep - b.buf.Len(); remain > 0 {
		if len(p) > remain {
			b.buf.Write(p[:remain])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	return b.buf.String()
}

func resolveCookiesPath(path string) (string, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return "", nil
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("resolve cookies path %s: %w", p, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return "", fmt.Errorf("cookies file %s: %w", abs, err)
	}
	return abs, nil
}
