package cli

import (
	"flag"
	"fmt"
	"strings"

	"github.com/spf13/afero"

	"yt-transcripts/internal/config"
	"yt-transcripts/internal/filestore"
	"yt-transcripts/internal/ytdlp"
)

type doctorResult struct {
	OK     bool          `json:"ok"`
	Checks []doctorCheck `json:"checks"`
}

type doctorCheck struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

func runDoctor(args []string) error {
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "print JSON output")
	common := registerCommonFlags(fs)
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := common.loadConfig()
	if err != nil {
		return err
	}
	res := doctor(afero.NewOsFs(), cfg)
	if *jsonOut {
		if err := printJSON(res); err != nil {
			return err
		}
	} else {
		for _, c := range res.Checks {
			state := "ok"
			if !c.OK {
				state = "FAIL"
			}
			fmt.Printf("[%s] %s: %s\n", state, c.Name, c.Message)
		}
	}
	if !res.OK {
		return fmt.Errorf("doctor found failing checks")
	}
	return nil
}

func doctor(fs afero.Fs, cfg config.Config) doctorResult {
	client := ytdlp.Client{Binary: cfg.YTDLP.Binary, JSRuntime: cfg.YTDLP.JSRuntime}
	checks := make([]doctorCheck, 0, 5)

	dep := client.DependencyStatus()
	checks = append(checks, doctorCheck{
		Name:    "dependency:yt-dlp",
		OK:      dep.YTDLPFound,
		Message: dependencyMessage(dep.YTDLPFound, dep.YTDLPPath, cfg.YTDLP.Binary),
	})

	runtime, err := ytdlp.CheckJSRuntime(cfg.YTDLP.JSRuntime)
	jsCheck := doctorCheck{Name: "dependency:js-runtime", OK: err == nil, Message: runtime}
	if err != nil {
		jsCheck.Message = err.Error()
	}
	checks = append(checks, jsCheck)

	for _, dir := range []struct{ name, path string }{
		{"directory:data", cfg.DataDir},
		{"directory:logs", cfg.LogDir},
	} {
		ok, msg := ensureWritableDir(fs, dir.path)
		checks = append(checks, doctorCheck{Name: dir.name, OK: ok, Message: msg})
	}

	authMsg := "in-memory accounts (SUPABASE_URL not set)"
	if cfg.Auth.URL != "" {
		authMsg = "identity service at " + cfg.Auth.URL
	}
	checks = append(checks, doctorCheck{Name: "auth", OK: true, Message: authMsg})

	ok := true
	for _, c := range checks {
		if !c.OK {
			ok = false
			break
		}
	}
	return doctorResult{OK: ok, Checks: checks}
}

func dependencyMessage(ok bool, path, name string) string {
	if ok {
		return name + " found at " + path
	}
	return name + " not found on PATH"
}

func ensureWritableDir(fs afero.Fs, path string) (bool, string) {
	if strings.TrimSpace(path) == "" {
		return false, "empty path"
	}
	if err := filestore.Mkdir(fs, path); err != nil {
		return false, err.Error()
	}
	f, err := afero.TempFile(fs, path, "yt-transcripts-check-*.tmp")
	if err != nil {
		return false, err.Error()
	}
	_ = f.Close()
	_ = fs.Remove(f.Name())
	return true, path + " writable"
}
