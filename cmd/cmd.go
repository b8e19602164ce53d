// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// setupCommand initializes local state
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Initialize configuration and database",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write a config file from the built-in template",
				Action: r.SetupConfig,
			},
			{
				Name:    "database",
				Aliases: []string{"db"},
				Usage:   "Create the database and run migrations",
				Action:  r.SetupDatabase,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent migration",
				Action: r.SetupRollback,
			},
		},
	}
}

// authCommand handles Spotify sign-in
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Spotify authentication",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Sign in to Spotify with OAuth2",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "How long to wait for the browser callback",
						Value: defaultLoginTimeout,
					},
					&cli.BoolFlag{
						Name:  "no-browser",
						Usage: "Print the authorization URL instead of opening a browser",
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "logout",
				Usage:  "Forget stored Spotify tokens",
				Action: r.AuthLogout,
			},
			{
				Name:  "status",
				Usage: "Show the signed-in Spotify account",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.AuthStatus,
			},
		},
	}
}

// convertCommand runs the full pipeline for one video
func convertCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "convert",
		Usage:     "Recognize the songs in a YouTube video and create a Spotify playlist",
		ArgsUsage: "<youtube-url>",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "url"},
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "yes",
				Aliases: []string{"y"},
				Usage:   "Create the playlist without asking",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Stop after the preview",
			},
			&cli.BoolFlag{
				Name:  "private",
				Usage: "Create a private playlist",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Concurrent Spotify searches (overrides search.workers)",
			},
			&cli.StringFlag{
				Name:    "export",
				Aliases: []string{"o"},
				Usage:   "Write the result to a file (.csv, .md, .json or .txt)",
			},
		},
		Action: r.Convert,
	}
}

// recognizeCommand only identifies songs
func recognizeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "recognize",
		Usage:     "List the songs recognized in a YouTube video",
		ArgsUsage: "<youtube-url>",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "url"},
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
			},
		},
		Action: r.Recognize,
	}
}

// historyCommand browses finished conversions
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Browse past conversions",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List conversions, newest first",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of conversions to show",
						Value: 20,
					},
					&cli.StringFlag{
						Name:  "outcome",
						Usage: "Only show success, error or cancelled",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.HistoryList,
			},
			{
				Name:      "show",
				Usage:     "Show one conversion and its songs",
				ArgsUsage: "<id>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "format",
						Usage: "Output format (txt, md, csv, json)",
						Value: "txt",
					},
				},
				Action: r.HistoryShow,
			},
			{
				Name:      "delete",
				Usage:     "Remove a conversion from history",
				ArgsUsage: "<id>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Action: r.HistoryDelete,
			},
		},
	}
}

// cacheCommand manages the catalog match cache
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect the cache of Spotify matches",
		Commands: []*cli.Command{
			{
				Name:   "stats",
				Usage:  "Show the number of cached matches",
				Action: r.CacheStats,
			},
			{
				Name:      "show",
				Usage:     "Show the cached match for a song",
				ArgsUsage: "<title> [artist]",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "title"},
					&cli.StringArg{Name: "artist"},
				},
				Action: r.CacheShow,
			},
			{
				Name:   "clear",
				Usage:  "Remove every cached match",
				Action: r.CacheClear,
			},
		},
	}
}

// serveCommand runs the HTTP API
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the conversion API over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (overrides server.host and server.port)",
			},
		},
		Action: r.Serve,
	}
}

// tuiCommand launches the interactive interface
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "tui",
		Usage:     "Interactive terminal interface",
		ArgsUsage: "[youtube-url]",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "url"},
		},
		Action: r.TUI,
	}
}
