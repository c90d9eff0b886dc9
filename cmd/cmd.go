// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// configFlag is shared by every command that reads or writes the config file.
func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

// setupCommand bootstraps the config file, credential key file, and store.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create the config file, key file, and local store",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Setup,
	}
}

// authCommand handles authorization against Discogs
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage Discogs authorization",
		Commands: []*cli.Command{
			{
				Name:   "login",
				Usage:  "Authorize with Discogs using OAuth (opens browser)",
				Flags:  []cli.Flag{configFlag()},
				Action: r.AuthLogin,
			},
			{
				Name:  "whoami",
				Usage: "Verify credentials against the identity endpoint",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.AuthWhoami,
			},
			{
				Name:   "logout",
				Usage:  "Clear the stored access credentials",
				Flags:  []cli.Flag{configFlag()},
				Action: r.AuthLogout,
			},
		},
	}
}

// syncCommand refreshes the collection snapshot from the live catalog.
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Fetch the full collection and refresh the local snapshot",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "username",
				Aliases: []string{"u"},
				Usage:   "Collection owner (defaults to the configured username)",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output the sync result as JSON",
			},
			&cli.BoolFlag{
				Name:  "tui",
				Usage: "Show progress in an interactive view",
			},
		},
		Action: r.SyncRun,
	}
}

// enrichCommand copies master release data onto snapshot releases.
func enrichCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "enrich",
		Usage: "Enrich snapshot releases with master year, genres, and styles",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "username",
				Aliases: []string{"u"},
				Usage:   "Collection owner (defaults to the configured username)",
			},
			&cli.IntFlag{
				Name:  "max-items",
				Usage: "Cap this batch (default: enrich.batch_size from config)",
			},
			&cli.BoolFlag{
				Name:  "all",
				Usage: "Process the whole remaining work list in one run",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output the batch result as JSON",
			},
			&cli.BoolFlag{
				Name:  "tui",
				Usage: "Show progress in an interactive view",
			},
		},
		Action: r.EnrichRun,
	}
}

// collectionCommand is the read side over the stored snapshot
func collectionCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "collection",
		Aliases: []string{"col"},
		Usage:   "Inspect and export the stored collection snapshot",
		Commands: []*cli.Command{
			{
				Name:  "stats",
				Usage: "Show aggregate statistics for the snapshot",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "username",
						Aliases: []string{"u"},
						Usage:   "Collection owner (defaults to the configured username)",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.CollectionStats,
			},
			{
				Name:  "list",
				Usage: "List snapshot releases, newest additions first",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "username",
						Aliases: []string{"u"},
						Usage:   "Collection owner (defaults to the configured username)",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of releases to print",
						Value: 25,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.CollectionList,
			},
			{
				Name:  "export",
				Usage: "Write the snapshot to local files",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "username",
						Aliases: []string{"u"},
						Usage:   "Collection owner (defaults to the configured username)",
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Export format: json, csv, markdown, or txt",
						Value:   "json",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output directory (default: collection_export_<timestamp>)",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output the export manifest as JSON",
					},
				},
				Action: r.CollectionExport,
			},
		},
	}
}

// statusCommand summarizes snapshot freshness, enrichment state, and quota.
func statusCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show snapshot, enrichment, and rate-limit status",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "username",
				Aliases: []string{"u"},
				Usage:   "Collection owner (defaults to the configured username)",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Status,
	}
}
