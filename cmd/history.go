package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/yt2spotify/internal/formatter"
	"github.com/desertthunder/yt2spotify/internal/models"
	"github.com/desertthunder/yt2spotify/internal/shared"
	"github.com/urfave/cli/v3"
)

// historyEntry is the JSON shape of one listed conversion.
type historyEntry struct {
	ID          string    `json:"id"`
	Sequence    int       `json:"sequence"`
	YouTubeURL  string    `json:"youtube_url"`
	Outcome     string    `json:"outcome"`
	Message     string    `json:"message"`
	Recognized  int       `json:"recognized"`
	TracksAdded int       `json:"tracks_added"`
	PlaylistURL string    `json:"playlist_url,omitempty"`
	Created     time.Time `json:"created"`
}

func newHistoryEntry(rec *models.ConversionRecord) historyEntry {
	e := historyEntry{
		ID:          rec.ID,
		Sequence:    rec.Sequence,
		YouTubeURL:  rec.YouTubeURL,
		Outcome:     rec.Outcome.String(),
		Message:     rec.Message,
		Recognized:  rec.RecognizedCount,
		TracksAdded: rec.TracksAdded,
		Created:     rec.Created,
	}
	if rec.Playlist != nil {
		e.PlaylistURL = rec.Playlist.URL
	}
	return e
}

// HistoryList prints recent conversions, newest first.
func (r *Runner) HistoryList(ctx context.Context, cmd *cli.Command) error {
	repo, err := r.history()
	if err != nil {
		return err
	}

	outcome := strings.ToLower(strings.TrimSpace(cmd.String("outcome")))
	if outcome != "" && models.ParseOutcome(outcome) == models.OutcomeNone {
		return fmt.Errorf("%w: outcome must be success, error or cancelled", shared.ErrInvalidArgument)
	}

	recs, err := repo.List(map[string]any{"limit": cmd.Int("limit"), "outcome": outcome})
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		entries := make([]historyEntry, 0, len(recs))
		for _, rec := range recs {
			entries = append(entries, newHistoryEntry(rec))
		}
		return r.writeJSON(entries, true)
	}

	if len(recs) == 0 {
		return r.writePlain("No conversions yet.\n")
	}

	r.writePlainHeader(fmt.Sprintf("%d conversions", len(recs)))
	for _, rec := range recs {
		r.writePlain("%-4d %s  %-9s  %s\n", rec.Sequence, rec.Created.Local().Format("2006-01-02 15:04"),
			rec.Outcome, shared.Truncate(rec.YouTubeURL, 48))
		r.writePlain("     %s  %s\n", rec.ID, rec.Message)
	}
	return nil
}

// HistoryShow renders one conversion and its songs in the requested format.
func (r *Runner) HistoryShow(ctx context.Context, cmd *cli.Command) error {
	id := strings.TrimSpace(cmd.StringArg("id"))
	if id == "" {
		return fmt.Errorf("%w: conversion id is required", shared.ErrMissingArgument)
	}

	repo, err := r.history()
	if err != nil {
		return err
	}
	rec, err := repo.Get(id)
	if err != nil {
		return err
	}

	data, err := formatter.Render(formatter.FromRecord(rec), cmd.String("format"))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}
	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// HistoryDelete removes a conversion from the history listing.
func (r *Runner) HistoryDelete(ctx context.Context, cmd *cli.Command) error {
	id := strings.TrimSpace(cmd.StringArg("id"))
	if id == "" {
		return fmt.Errorf("%w: conversion id is required", shared.ErrMissingArgument)
	}

	repo, err := r.history()
	if err != nil {
		return err
	}
	if err := repo.Delete(id); err != nil {
		return err
	}

	r.logger.Info("conversion deleted", "id", id)
	return r.writePlain("✓ Deleted conversion %s\n", id)
}
