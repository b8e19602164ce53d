package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/yt2spotify/internal/shared"
	"github.com/desertthunder/yt2spotify/internal/tasks"
	"github.com/desertthunder/yt2spotify/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive terminal UI for converting videos.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, f, err := shared.NewFileLogger(r.config.Log.File)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	defer f.Close()
	shared.SetLogLevel(fileLogger, shared.ParseLogLevel(r.config.Log.Level))
	r.SetLogger(fileLogger)

	rec, accounts, opts, err := r.pipeline()
	if err != nil {
		return err
	}

	updates := make(chan tasks.ProgressUpdate, 64)
	opts.Progress = updates
	conv := tasks.NewConverter(rec, r.catalog, r.playlists, accounts, opts)

	model := ui.NewModel(ctx, conv, updates, cmd.StringArg("url"))
	p := tea.NewProgram(model, tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
