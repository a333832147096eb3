// submodule cmd contains command definitions
package main

import (
	"time"

	"github.com/urfave/cli/v3"
)

// syncFlags are the pass-shaping flags shared by `sync run` and `sync once`.
func syncFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "force-full-sync",
			Usage: "Ignore stored cursors and reprocess every liked track",
		},
		&cli.StringFlag{
			Name:  "track-sync-target",
			Usage: "Service that receives liked tracks (both, spotify, yandex)",
			Value: "yandex",
		},
		&cli.BoolFlag{
			Name:  "remove-duplicates",
			Usage: "Drop repeated likes once after the first clean pass",
		},
		&cli.BoolFlag{
			Name:  "sync-playlists",
			Usage: "Mirror owned playlists from Spotify to Yandex Music",
		},
		&cli.BoolFlag{
			Name:  "include-followed-playlists",
			Usage: "Also mirror playlists the user follows but does not own",
		},
		&cli.BoolFlag{
			Name:  "sync-favorite-albums",
			Usage: "Reconcile saved albums",
		},
		&cli.BoolFlag{
			Name:  "sync-favorite-artists",
			Usage: "Reconcile followed artists",
		},
		&cli.BoolFlag{
			Name:  "favorite-sync-readonly",
			Usage: "Snapshot and link favorites without applying changes",
		},
		&cli.StringFlag{
			Name:  "favorite-sync-target",
			Usage: "Service that receives favorites (both, spotify, yandex)",
			Value: "yandex",
		},
	}
}

// syncCommand handles the continuous and one-shot sync passes.
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Reconcile liked tracks, playlists and favorites",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Run sync passes forever, sleeping between them",
				Flags: append(syncFlags(),
					&cli.DurationFlag{
						Name:  "sleep",
						Usage: "Pause between passes",
						Value: 60 * time.Second,
					},
					&cli.BoolFlag{
						Name:  "serve-status",
						Usage: "Expose GET /status while the loop runs",
					},
				),
				Action: r.SyncRun,
			},
			{
				Name:   "once",
				Usage:  "Run a single sync pass and exit",
				Flags:  syncFlags(),
				Action: r.SyncOnce,
			},
		},
	}
}

// authCommand handles authentication operations
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage authentication",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Authenticate with Spotify using the OAuth2 code flow",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "How long to wait for the browser callback",
						Value: 5 * time.Minute,
					},
					&cli.BoolFlag{
						Name:  "no-browser",
						Usage: "Print the authorization URL instead of opening a browser",
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "status",
				Usage:  "Show current authentication state for both services",
				Action: r.AuthStatus,
			},
		},
	}
}

// linksCommand handles crosswalk inspection.
func linksCommand(r *Runner) *cli.Command {
	kindFlag := &cli.StringFlag{
		Name:    "kind",
		Aliases: []string{"k"},
		Usage:   "Entity kind (track, album, artist)",
		Value:   "track",
	}

	return &cli.Command{
		Name:  "links",
		Usage: "Inspect the service ID crosswalk",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List stored links for one entity kind",
				Flags: []cli.Flag{
					kindFlag,
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print JSON output",
						Value: true,
					},
					&cli.StringFlag{
						Name:    "export",
						Aliases: []string{"o"},
						Usage:   "Write a CSV export to <path>_links.csv",
					},
				},
				Action: r.LinksList,
			},
			{
				Name:  "find",
				Usage: "Look up a link by normalized key",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "key"},
				},
				Flags:  []cli.Flag{kindFlag},
				Action: r.LinksFind,
			},
			{
				Name:  "unlink",
				Usage: "Remove the link holding a service-side ID",
				Flags: []cli.Flag{
					kindFlag,
					&cli.StringFlag{
						Name:     "service",
						Usage:    "Service the ID belongs to (spotify or yandex)",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "id",
						Usage:    "Service-native entity ID",
						Required: true,
					},
				},
				Action: r.LinksUnlink,
			},
			{
				Name:  "missing",
				Usage: "List tracks that could not be found on a service",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "service",
						Usage: "Service the tracks are missing from",
						Value: "yandex",
					},
				},
				Action: r.LinksMissing,
			},
			{
				Name:    "browse",
				Aliases: []string{"ui"},
				Usage:   "Browse links interactively",
				Action:  r.LinksBrowse,
			},
		},
	}
}

// monitorCommand handles host monitoring operations.
func monitorCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "monitor",
		Usage: "Host and service health monitoring",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Run all checks once and notify on alerts",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "notify",
						Usage: "Send notifications when alerts fire",
						Value: true,
					},
					&cli.BoolFlag{
						Name:  "poll-subscribers",
						Usage: "Poll Telegram getUpdates for new /start subscribers first",
					},
				},
				Action: r.MonitorRun,
			},
			{
				Name:  "report",
				Usage: "Run all checks and print the report without notifying",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "send",
						Usage: "Also deliver the report to all channels",
					},
				},
				Action: r.MonitorReport,
			},
		},
	}
}

// setupCommand handles setup operations for configuration and the database.
func setupCommand(r *Runner) *cli.Command {
	configFlag := &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}

	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write an example configuration file",
				Flags:  []cli.Flag{configFlag},
				Action: r.SetupConfig,
			},
			{
				Name:    "db",
				Aliases: []string{"database"},
				Usage:   "Initialize database and run migrations",
				Flags:   []cli.Flag{configFlag},
				Action:  r.SetupDatabase,
			},
		},
	}
}
