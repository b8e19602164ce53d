package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh/spinner"
	"github.com/desertthunder/yt2spotify/internal/models"
	"github.com/desertthunder/yt2spotify/internal/shared"
	"github.com/urfave/cli/v3"
)

// Recognize lists the songs a recognition provider finds in a video without touching Spotify.
func (r *Runner) Recognize(ctx context.Context, cmd *cli.Command) error {
	youtubeURL := strings.TrimSpace(cmd.StringArg("url"))
	if youtubeURL == "" {
		return fmt.Errorf("%w: youtube url is required", shared.ErrMissingArgument)
	}

	rec, err := r.recognition()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, r.config.Recognition.Budget())
	defer cancel()

	var candidates []models.Candidate
	run := func(ctx context.Context) error {
		var err error
		candidates, err = rec.Recognize(ctx, youtubeURL)
		return err
	}
	if r.interactive && !cmd.Bool("json") {
		err = spinner.New().Title("Listening with " + rec.Name() + "...").Context(ctx).ActionWithErr(run).Run()
	} else {
		err = run(ctx)
	}
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(candidates, cmd.Bool("pretty"))
	}

	if len(candidates) == 0 {
		return r.writePlain("%s\n", shared.MessageNoMusic)
	}

	r.writePlainHeader(fmt.Sprintf("Recognized %d songs", len(candidates)))
	for i, c := range candidates {
		label := c.Title
		if c.Artist != "" {
			label = c.Artist + " - " + c.Title
		}
		if strings.TrimSpace(c.Title) == "" {
			label = "(untitled)"
		}
		r.writePlain("%2d. %s\n", i+1, label)
	}
	return nil
}
