package main

import (
	"context"

	"github.com/desertthunder/yt2spotify/internal/web"
	"github.com/urfave/cli/v3"
)

// Serve exposes the conversion pipeline as an HTTP API until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	rec, accounts, opts, err := r.pipeline()
	if err != nil {
		return err
	}
	hist, err := r.history()
	if err != nil {
		return err
	}

	srv := web.NewServer(web.Deps{
		Recognizer: rec,
		Catalog:    r.catalog,
		Playlists:  r.playlists,
		Accounts:   accounts,
		Options:    opts,
		History:    hist,
		Logger:     r.logger,
	})

	addr := cmd.String("addr")
	if addr == "" {
		addr = r.config.Server.Addr()
	}
	return srv.ListenAndServe(ctx, addr)
}
