package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/huh/spinner"
	"github.com/desertthunder/yt2spotify/internal/formatter"
	"github.com/desertthunder/yt2spotify/internal/models"
	"github.com/desertthunder/yt2spotify/internal/shared"
	"github.com/desertthunder/yt2spotify/internal/tasks"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
)

// Convert recognizes the songs in a video, previews the Spotify matches and creates the playlist once confirmed.
func (r *Runner) Convert(ctx context.Context, cmd *cli.Command) error {
	youtubeURL := strings.TrimSpace(cmd.StringArg("url"))
	if youtubeURL == "" {
		return fmt.Errorf("%w: youtube url is required", shared.ErrMissingArgument)
	}

	rec, accounts, opts, err := r.pipeline()
	if err != nil {
		return err
	}
	if w := cmd.Int("workers"); w > 0 {
		opts.Workers = w
	}
	if cmd.Bool("private") {
		opts.Public = false
	}

	updates := make(chan tasks.ProgressUpdate, 64)
	opts.Progress = updates
	conv := tasks.NewConverter(rec, r.catalog, r.playlists, accounts, opts)

	reporter := r.newReporter(updates)
	defer reporter.stop()

	// Interrupts abandon the conversion instead of leaving it half done.
	stopWatch := context.AfterFunc(ctx, func() { _ = conv.Cancel() })
	defer stopWatch()

	if err := conv.Start(ctx, youtubeURL); err != nil {
		reporter.stop()
		return err
	}
	reporter.stop()

	session := conv.Session()
	export := formatter.FromSession(session)
	if err := r.writePreview(session, export); err != nil {
		return err
	}

	if cmd.Bool("dry-run") {
		_ = conv.Cancel()
		return r.writeExportFile(cmd.String("export"), export)
	}

	if !cmd.Bool("yes") {
		found := models.CountFound(session.MatchedSongs)
		if found > 0 && !r.confirm(fmt.Sprintf("Create a playlist with %d songs?", found)) {
			_ = conv.Cancel()
			return r.writePlain("Conversion cancelled.\n")
		}
	}

	var result *tasks.Result
	create := func(ctx context.Context) error {
		var err error
		result, err = conv.Confirm(ctx)
		return err
	}
	if r.interactive {
		err = spinner.New().Title("Creating playlist...").Context(ctx).ActionWithErr(create).Run()
	} else {
		err = create(ctx)
	}

	if result != nil && result.Playlist != nil {
		export.Playlist = result.Playlist
	}
	if err != nil {
		if result != nil && result.Playlist != nil {
			if werr := r.writePlain("✗ Playlist %s was created but only %d of %d tracks were added\n",
				result.Playlist.Name, result.TracksAdded, result.Requested); werr != nil {
				return errors.Join(err, werr)
			}
		}
		return err
	}

	if err := r.writePlain("✓ Added %d tracks to %s.\n", result.TracksAdded, result.Playlist.Name); err != nil {
		return err
	}
	if result.Playlist.URL != "" {
		if err := r.writePlain("  %s\n", result.Playlist.URL); err != nil {
			return err
		}
	}
	return r.writeExportFile(cmd.String("export"), export)
}

func (r *Runner) writePreview(session models.Session, export *formatter.Export) error {
	r.writePlainHeader("Preview")
	text, err := formatter.ExportToText(export)
	if err != nil {
		return err
	}
	if _, err := r.output.Write(text); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return r.writePlainln("%s", session.Message)
}

func (r *Runner) writeExportFile(path string, export *formatter.Export) error {
	if path == "" {
		return nil
	}
	if err := formatter.WriteExport(export, path); err != nil {
		return err
	}
	r.logger.Info("export written", "path", path)
	return r.writePlain("Saved to %s\n", path)
}

// confirm asks a yes/no question on the runner's input and output.
//
// Without a terminal the form runs in accessible mode, reading a plain y/n answer line.
func (r *Runner) confirm(question string) bool {
	ok := false
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(question).
			Affirmative("Yes").
			Negative("No").
			Value(&ok),
	)).
		WithInput(r.input).
		WithOutput(r.output).
		WithAccessible(!r.interactive).
		WithShowHelp(false)

	if err := form.Run(); err != nil {
		r.logger.Debug("confirmation not answered", "error", err)
		return false
	}
	return ok
}

// reporter renders progress updates: a bar while searching in a terminal, log lines otherwise.
type reporter struct {
	runner  *Runner
	updates <-chan tasks.ProgressUpdate
	quit    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
	bar     *progressbar.ProgressBar
}

func (r *Runner) newReporter(updates <-chan tasks.ProgressUpdate) *reporter {
	rp := &reporter{runner: r, updates: updates, quit: make(chan struct{})}
	rp.wg.Add(1)
	go rp.run()
	return rp
}

func (rp *reporter) run() {
	defer rp.wg.Done()
	for {
		select {
		case u := <-rp.updates:
			rp.handle(u)
		case <-rp.quit:
			for {
				select {
				case u := <-rp.updates:
					rp.handle(u)
				default:
					rp.finishBar()
					return
				}
			}
		}
	}
}

// stop drains pending updates and waits for the reporter to exit. Safe to call more than once.
func (rp *reporter) stop() {
	rp.once.Do(func() { close(rp.quit) })
	rp.wg.Wait()
}

func (rp *reporter) handle(u tasks.ProgressUpdate) {
	logger := rp.runner.logger

	if !rp.runner.interactive {
		switch u.Phase {
		case models.PhaseSearching:
			logger.Debug(u.Message)
		default:
			logger.Info(u.Message)
		}
		return
	}

	switch u.Phase {
	case models.PhaseRecognizing:
		_ = rp.runner.writePlain("%s\n", u.Message) // progress lines are best effort
	case models.PhaseSearching:
		if rp.bar == nil {
			rp.bar = newSearchBar(rp.runner.output, u.Total)
		}
		rp.bar.Describe(u.Message)
		_ = rp.bar.Set(u.Step)
	default:
		rp.finishBar()
	}
}

func (rp *reporter) finishBar() {
	if rp.bar == nil {
		return
	}
	_ = rp.bar.Finish()
	rp.bar = nil
}

func newSearchBar(w io.Writer, total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("Searching Spotify"),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
}
