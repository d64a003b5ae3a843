package cli

import (
	"context"
	"fmt"
)

func Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		printRootUsage()
		return nil
	}

	switch args[0] {
	case "video":
		return runVideo(ctx, args[1:])
	case "playlist":
		return runPlaylist(ctx, args[1:])
	case "export":
		return runExport(args[1:])
	case "doctor":
		return runDoctor(args[1:])
	case "ui":
		return runUI(ctx, args[1:])
	case "help", "-h", "--help":
		printRootUsage()
		return nil
	default:
		printRootUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printRootUsage() {
	fmt.Println("yt-transcripts: download YouTube transcripts for single videos and whole playlists")
	fmt.Println()
	fmt.Println("Quick Start:")
	fmt.Println("  yt-transcripts doctor")
	fmt.Println("  yt-transcripts video --url <watch-url> [--lang en]")
	fmt.Println("  yt-transcripts playlist --url <playlist-url> [--lang en] [--archive .]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  video     fetch one video's transcript and save it as a text file")
	fmt.Println("  playlist  fetch every transcript of a playlist into the data directory")
	fmt.Println("  export    bundle a stored playlist into a zip archive")
	fmt.Println("  doctor    run dependency and filesystem preflight checks")
	fmt.Println("  ui        interactive terminal UI (sign-in, video and playlist tabs)")
	fmt.Println()
	fmt.Println("Notes:")
	fmt.Println("  - Use --json on commands for machine-readable output")
	fmt.Println("  - Settings come from config.yml, .env and YTT_*/YTDLP_*/SUPABASE_* environment variables")
}
