// submodule cmd contains command definitions
package main

import (
	"time"

	"github.com/urfave/cli/v3"
)

// rootFlags are shared by every subcommand.
func rootFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file",
			Value:   defaultConfigPath,
		},
		&cli.StringFlag{
			Name:  "env",
			Usage: "Dotenv file with SPOTIFY_CLIENT_ID, SPOTIFY_CLIENT_SECRET and SPOTIFY_REDIRECT_URI",
			Value: ".env",
		},
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "Enable debug logging",
		},
		&cli.BoolFlag{
			Name:  "no-color",
			Usage: "Disable styled output",
		},
	}
}

// setupCommand handles setup operations for configuration and the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write an example configuration file",
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Action: r.SetupDatabase,
			},
		},
	}
}

// authCommand runs the OAuth2 authorization code flow.
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authorize with Spotify using OAuth2 and save the token",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "How long to wait for the browser callback",
				Value: 2 * time.Minute,
			},
			&cli.BoolFlag{
				Name:  "no-browser",
				Usage: "Print the authorization URL instead of opening a browser",
			},
		},
		Action: r.Auth,
	}
}

// rangesCommand prints the tempo partition without touching the remote.
func rangesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "ranges",
		Usage: "Show the tempo ranges built from the configuration",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Ranges,
	}
}

// organizeCommand buckets tracks into tempo playlists.
func organizeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "organize",
		Aliases: []string{"run"},
		Usage:   "Sort tracks from your playlists into tempo-range playlists",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Report planned changes without modifying any playlist",
			},
			&cli.BoolFlag{
				Name:  "skip-out-of-range",
				Usage: "Skip tracks at or above max_tempo instead of failing",
			},
			&cli.BoolFlag{
				Name:  "no-prune",
				Usage: "Keep empty playlists",
			},
			&cli.BoolFlag{
				Name:  "no-cache",
				Usage: "Fetch every audio feature from Spotify",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output the report as JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print JSON output",
				Value: true,
			},
			&cli.StringFlag{
				Name:  "csv",
				Usage: "Also write the per-playlist report to this CSV file",
			},
		},
		Action: r.Organize,
	}
}

// pruneCommand unfollows empty playlists.
func pruneCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "prune",
		Usage: "Unfollow every empty playlist you own",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "List the playlists that would be unfollowed",
			},
		},
		Action: r.Prune,
	}
}

// cacheCommand inspects the local audio feature cache.
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Manage the local audio feature cache",
		Commands: []*cli.Command{
			{
				Name:   "stats",
				Usage:  "Show cache size and the last fetch time",
				Action: r.CacheStats,
			},
			{
				Name:   "clear",
				Usage:  "Delete every cached audio feature",
				Action: r.CacheClear,
			},
		},
	}
}

// runsCommand lists recorded organize runs.
func runsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "runs",
		Usage: "List recent organize runs",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of runs to show",
				Value: 10,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Runs,
	}
}
