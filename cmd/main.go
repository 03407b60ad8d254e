package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"
)

func main() {
	runner := NewRunner(RunnerOpts{})

	app := &cli.Command{
		Name:    "spotrcpt",
		Usage:   "Print receipts of your top Spotify tracks",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
				Sources: cli.EnvVars("SPOTRCPT_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "dotenv file with SPOTIFY_CLIENT_ID and friends",
				Value: ".env",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Before:   runner.Load,
		After:    func(ctx context.Context, cmd *cli.Command) error { return runner.Close() },
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		runner.logger.Fatalf("application error: %v", err)
	}
}
