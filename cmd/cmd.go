// submodule cmd contains command definitions
package main

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/spotrcpt/internal/formatter"
	"github.com/desertthunder/spotrcpt/internal/services"
)

func rangeFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "range",
		Aliases: []string{"r"},
		Usage:   "Time range: short_term (4 weeks), medium_term (6 months) or long_term (all time)",
		Value:   "short_term",
	}
}

func limitFlag() cli.Flag {
	return &cli.IntFlag{
		Name:    "limit",
		Aliases: []string{"n"},
		Usage:   fmt.Sprintf("Number of tracks (1-%d)", services.MaxTopTracksLimit),
		Value:   services.DefaultTopTracksLimit,
	}
}

func formatFlag() cli.Flag {
	names := make([]string, len(formatter.Formats))
	for i, f := range formatter.Formats {
		names[i] = string(f)
	}
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: " + strings.Join(names, ", "),
		Value:   string(formatter.Text),
	}
}

// setupCommand handles setup operations for configuration and the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "config",
				Usage: "Write a config.toml template to the --config path",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Overwrite an existing file",
					},
				},
				Action: r.SetupConfig,
			},
			{
				Name:  "database",
				Usage: "Initialize database and run migrations",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Roll back the most recent migration instead",
					},
				},
				Action: r.SetupDatabase,
			},
		},
	}
}

// authCommand handles authentication operations
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage the Spotify session",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Authorize with Spotify (Authorization Code with PKCE)",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "no-browser",
						Usage: "Print the authorization URL instead of opening a browser",
					},
					&cli.BoolFlag{
						Name:  "manual",
						Usage: "Print the URL and exit; finish with 'auth callback <redirected-url>'",
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:  "callback",
				Usage: "Complete a --manual login with the URL the browser was redirected to",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "url"},
				},
				Action: r.AuthCallback,
			},
			{
				Name:  "status",
				Usage: "Show whether a usable access token is stored",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output JSON",
					},
				},
				Action: r.AuthStatus,
			},
			{
				Name:   "refresh",
				Usage:  "Exchange the refresh token for a new access token",
				Action: r.AuthRefresh,
			},
			{
				Name:   "logout",
				Usage:  "Forget all stored tokens",
				Action: r.AuthLogout,
			},
		},
	}
}

// receiptCommand handles receipt generation and history
func receiptCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "receipt",
		Aliases: []string{"rcpt"},
		Usage:   "Print listening receipts",
		Commands: []*cli.Command{
			{
				Name:  "generate",
				Usage: "Print a receipt of your top tracks",
				Flags: []cli.Flag{
					rangeFlag(),
					limitFlag(),
					formatFlag(),
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write to a file instead of stdout",
					},
					&cli.BoolFlag{
						Name:  "save",
						Usage: "Save the receipt to history",
					},
				},
				Action: r.ReceiptGenerate,
			},
			{
				Name:  "all",
				Usage: "Print a receipt for every time range",
				Flags: []cli.Flag{
					limitFlag(),
					formatFlag(),
					&cli.BoolFlag{
						Name:  "save",
						Usage: "Save the receipts to history",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent requests",
						Value: 3,
					},
				},
				Action: r.ReceiptAll,
			},
			{
				Name:  "history",
				Usage: "List saved receipts",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "range",
						Aliases: []string{"r"},
						Usage:   "Only receipts for this time range",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of receipts",
						Value: 20,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output JSON",
					},
				},
				Action: r.ReceiptHistory,
			},
			{
				Name:  "show",
				Usage: "Print a saved receipt by number or id",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags: []cli.Flag{
					formatFlag(),
				},
				Action: r.ReceiptShow,
			},
			{
				Name:  "delete",
				Usage: "Remove a saved receipt from history",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Action: r.ReceiptDelete,
			},
		},
	}
}

// apiCommand makes raw authenticated calls
func apiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Raw authenticated calls to the Spotify Web API",
		Commands: []*cli.Command{
			{
				Name:  "get",
				Usage: "GET an endpoint (e.g. me or me/top/tracks?limit=5) and print the JSON",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "endpoint"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "no-cache",
						Usage: "Skip the response cache",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
				},
				Action: r.APIGet,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command for the interactive receipt viewer.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch the interactive receipt viewer",
		Flags: []cli.Flag{
			limitFlag(),
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Where logs go while the TUI owns the terminal",
				Value: "./tmp/spotrcpt-tui.log",
			},
		},
		Action: r.TUI,
	}
}
