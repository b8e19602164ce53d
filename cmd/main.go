package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/yt2spotify/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	if err := shared.LoadEnv(".env"); err != nil {
		logger.Warn("failed to load .env", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := NewRunner(RunnerOpts{Logger: logger})

	app := &cli.Command{
		Name:    "yt2spotify",
		Usage:   "Turn the music in a YouTube video into a Spotify playlist",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error)",
			},
		},
		Before:   runner.Configure,
		Commands: runner.register(),
	}

	err := app.Run(ctx, os.Args)
	runner.Close()
	stop()

	if err != nil {
		switch {
		case errors.Is(err, shared.ErrNotImplemented):
			logger.Warn("not implemented")
			os.Exit(0)
		case errors.Is(err, shared.ErrConversionCancelled), errors.Is(err, context.Canceled):
			fmt.Fprintln(os.Stderr, "Conversion cancelled.")
			os.Exit(130)
		default:
			logger.Error("application error", "error", err)
			fmt.Fprintln(os.Stderr, shared.UserMessage(err))
			os.Exit(1)
		}
	}
}

// Configure loads the config file named by --config (or the XDG default) and applies environment overrides.
//
// A missing file is not an error: defaults apply.
func (r *Runner) Configure(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	config := shared.DefaultConfig()
	if path := shared.ResolveConfigPath(cmd.String("config")); path != "" {
		loaded, err := shared.LoadConfig(path)
		if err != nil {
			return ctx, err
		}
		config = loaded
		r.logger.Debug("loaded config", "path", path)
	}

	config.ApplyEnv()
	if err := config.ResolvePaths(); err != nil {
		return ctx, err
	}
	if err := config.Validate(); err != nil {
		return ctx, err
	}

	level := config.Log.Level
	if l := cmd.String("log-level"); l != "" {
		level = l
	}
	if level != "" {
		shared.SetLogLevel(r.logger, shared.ParseLogLevel(level))
	}

	r.SetConfig(config)
	return ctx, nil
}
