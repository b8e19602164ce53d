package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/yt2spotify/internal/shared"
	"github.com/urfave/cli/v3"
)

// CacheStats reports how many song matches are cached.
func (r *Runner) CacheStats(ctx context.Context, cmd *cli.Command) error {
	cache, err := r.matchCache()
	if err != nil {
		return err
	}

	n, err := cache.Count()
	if err != nil {
		return err
	}

	state := "enabled"
	if !r.config.Search.UseCache {
		state = "disabled"
	}
	return r.writePlain("Cached matches: %d (cache %s)\n", n, state)
}

// CacheShow prints the cached Spotify match for a title and optional artist.
func (r *Runner) CacheShow(ctx context.Context, cmd *cli.Command) error {
	title := strings.TrimSpace(cmd.StringArg("title"))
	if title == "" {
		return fmt.Errorf("%w: title is required", shared.ErrMissingArgument)
	}

	cache, err := r.matchCache()
	if err != nil {
		return err
	}

	m, err := cache.Get(shared.NormalizeTrackKey(title, cmd.StringArg("artist")))
	if err != nil {
		return err
	}

	r.writePlain("%s - %s\n", m.Artist, m.Name)
	r.writePlain("  URI:  %s\n", m.URI)
	r.writePlain("  Hits: %d\n", m.Hits)
	return nil
}

// CacheClear removes every cached match.
func (r *Runner) CacheClear(ctx context.Context, cmd *cli.Command) error {
	cache, err := r.matchCache()
	if err != nil {
		return err
	}

	n, err := cache.Clear()
	if err != nil {
		return err
	}

	r.logger.Info("match cache cleared", "removed", n)
	return r.writePlain("✓ Removed %d cached matches\n", n)
}
