// package tasks implements the conversion of a YouTube video into a Spotify playlist.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/yt2spotify/internal/models"
	"github.com/desertthunder/yt2spotify/internal/recognition"
	"github.com/desertthunder/yt2spotify/internal/services"
	"github.com/desertthunder/yt2spotify/internal/shared"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	DefaultAppName     = "YT2Spotify"
	DefaultSearchLimit = 5
	DefaultCallTimeout = 30 * time.Second
)

// AccountSource supplies the signed-in account a conversion acts for.
type AccountSource interface {
	Account(ctx context.Context) (*models.Account, error)
}

// MatchCache remembers catalog matches across conversions.
type MatchCache interface {
	Lookup(key string) (uri string, ok bool)
	Remember(key string, track models.CatalogTrack) error
}

// HistoryRecorder keeps finished conversions.
type HistoryRecorder interface {
	Record(rec *models.ConversionRecord) error
}

// Options tune a [Converter]. Zero values select the defaults.
type Options struct {
	AppName     string        // playlist name prefix
	SearchLimit int           // results requested per search
	Workers     int           // concurrent searches, 1 searches sequentially
	RateLimit   float64       // searches per second, 0 for unlimited
	CallTimeout time.Duration // budget for each external call
	Public      bool          // visibility of created playlists

	// RecognitionTimeout bounds the recognizer call, which may poll. Defaults to CallTimeout.
	RecognitionTimeout time.Duration

	Cache    MatchCache
	History  HistoryRecorder
	Profiles services.Profiles // fills a missing Spotify user id before creating a playlist
	Logger   *log.Logger
	Progress chan<- ProgressUpdate
}

// OptionsFromConfig maps configuration onto [Options].
func OptionsFromConfig(cfg *shared.Config) Options {
	return Options{
		AppName:            cfg.Playlist.NamePrefix,
		SearchLimit:        cfg.Search.Limit,
		Workers:            cfg.Search.Workers,
		RateLimit:          cfg.Search.RateLimit,
		CallTimeout:        cfg.Recognition.Timeout(),
		RecognitionTimeout: cfg.Recognition.Budget(),
		Public:             cfg.Playlist.Public,
	}
}

// Result describes the outcome of [Converter.Confirm].
type Result struct {
	Playlist    *models.PlaylistHandle
	TracksAdded int
	Requested   int
}

// Converter runs one conversion at a time: recognize, search, preview, then create on confirmation.
//
// Session state is guarded by a mutex so observers may read snapshots while calls are in flight.
// Cancelling bumps a generation counter; results of calls started under an older generation are discarded.
type Converter struct {
	recognizer recognition.Recognizer
	catalog    services.Catalog
	playlists  services.Playlists
	accounts   AccountSource
	opts       Options
	limiter    *rate.Limiter
	logger     *log.Logger

	mu      sync.Mutex
	session models.Session
	account *models.Account
	gen     uint64
	pending uint64        // generation entered by Begin and not yet claimed by Run
	changed chan struct{} // closed and replaced whenever the session changes
}

// NewConverter wires the three clients and the account source into an idle converter.
func NewConverter(r recognition.Recognizer, c services.Catalog, p services.Playlists, a AccountSource, opts Options) *Converter {
	if opts.AppName == "" {
		opts.AppName = DefaultAppName
	}
	if opts.SearchLimit < 1 {
		opts.SearchLimit = DefaultSearchLimit
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	if opts.RecognitionTimeout <= 0 {
		opts.RecognitionTimeout = opts.CallTimeout
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}

	conv := &Converter{
		recognizer: r,
		catalog:    c,
		playlists:  p,
		accounts:   a,
		opts:       opts,
		logger:     shared.WithLogger(opts.Logger, "component", "converter"),
		session:    models.Session{Phase: models.PhaseIdle, UpdatedAt: time.Now()},
		changed:    make(chan struct{}),
	}
	if opts.RateLimit > 0 {
		conv.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}
	return conv
}

// Session returns a snapshot of the current conversion.
func (c *Converter) Session() models.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

// Watch returns a snapshot of the current conversion and a channel closed on its next change.
//
// Unlike progress updates, which are dropped when nobody drains them, a change is never missed:
// take a new snapshot each time the channel closes.
func (c *Converter) Watch() (models.Session, <-chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot(), c.changed
}

// notifyLocked wakes every [Converter.Watch] caller. c.mu must be held.
func (c *Converter) notifyLocked() {
	close(c.changed)
	c.changed = make(chan struct{})
}

func (c *Converter) snapshot() models.Session {
	s := c.session
	s.MatchedSongs = append([]models.MatchedSong(nil), c.session.MatchedSongs...)
	if c.session.Playlist != nil {
		h := *c.session.Playlist
		s.Playlist = &h
	}
	return s
}

// sendProgress sends a progress update through the channel without blocking.
func (c *Converter) sendProgress(id string, update ProgressUpdate) {
	if c.opts.Progress == nil {
		return
	}
	update.SessionID = id
	select {
	case c.opts.Progress <- update:
	default:
	}
}

// Start begins a conversion and runs it until the session reaches preview or idle.
//
// It is [Converter.Begin] followed by [Converter.Run] on the same goroutine.
func (c *Converter) Start(ctx context.Context, youtubeURL string) error {
	if err := c.Begin(ctx, youtubeURL); err != nil {
		return err
	}
	return c.Run(ctx)
}

// Begin validates the request and enters recognizing without calling any provider.
//
// Validation failures return an error wrapping [shared.ErrValidation] and leave the session untouched.
// The signed-in account is resolved here, once per conversion; refreshing an expired token belongs
// to the account source and happens before the session changes.
func (c *Converter) Begin(ctx context.Context, youtubeURL string) error {
	youtubeURL = strings.TrimSpace(youtubeURL)
	if youtubeURL == "" {
		return fmt.Errorf("%w: youtube url is required", shared.ErrValidation)
	}

	acct, err := c.accounts.Account(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrValidation, err)
	}
	if acct == nil || acct.AccessToken == "" {
		return fmt.Errorf("%w: %w", shared.ErrValidation, shared.ErrNotAuthenticated)
	}

	c.mu.Lock()
	if c.session.Phase != models.PhaseIdle {
		phase := c.session.Phase
		c.mu.Unlock()
		return fmt.Errorf("%w: conversion already %s", shared.ErrInvalidState, phase)
	}
	c.gen++
	c.pending = c.gen
	c.account = acct
	c.session = models.Session{
		ID:         shared.GenerateID(),
		Phase:      models.PhaseRecognizing,
		YouTubeURL: youtubeURL,
		Message:    "Recognizing songs...",
		UpdatedAt:  time.Now(),
	}
	c.notifyLocked()
	id := c.session.ID
	c.mu.Unlock()

	c.logger.Info("conversion started", "session", id, "provider", c.recognizer.Name())
	c.sendProgress(id, recognizingUpdate(youtubeURL))
	return nil
}

// Run recognizes and searches for the conversion entered by [Converter.Begin].
//
// It returns once the session reaches preview or idle, and may be called once per Begin.
func (c *Converter) Run(ctx context.Context) error {
	c.mu.Lock()
	gen := c.pending
	c.pending = 0
	if gen == 0 {
		c.mu.Unlock()
		return fmt.Errorf("%w: no conversion waiting to run", shared.ErrInvalidState)
	}
	if gen != c.gen {
		c.mu.Unlock()
		return shared.ErrConversionCancelled
	}
	id, youtubeURL, acct := c.session.ID, c.session.YouTubeURL, *c.account
	c.mu.Unlock()

	rctx, cancel := context.WithTimeout(ctx, c.opts.RecognitionTimeout)
	cands, err := c.recognizer.Recognize(rctx, youtubeURL)
	err = expired(rctx, err)
	cancel()

	if c.stale(gen) {
		return shared.ErrConversionCancelled
	}
	if err != nil {
		return c.fail(gen, err, shared.UserMessage(err))
	}

	usable := make([]models.Candidate, 0, len(cands))
	for _, cand := range cands {
		if cand.Usable() {
			usable = append(usable, cand)
		}
	}
	if len(usable) == 0 {
		if len(cands) == 0 {
			return c.fail(gen, fmt.Errorf("%s: %w", c.recognizer.Name(), shared.ErrNoSongsRecognized), shared.MessageNoMusic)
		}
		return c.fail(gen, fmt.Errorf("%w: every recognized song lacks a title", shared.ErrNoSongsRecognized), shared.MessageNoUsableSongs)
	}

	if !c.transition(gen, func(s *models.Session) {
		s.Phase = models.PhaseSearching
		s.Recognized = len(cands)
		s.Message = fmt.Sprintf("Searching Spotify for %d songs...", len(usable))
	}) {
		return shared.ErrConversionCancelled
	}
	c.sendProgress(id, recognizedUpdate(len(usable)))

	matches := c.match(ctx, gen, id, acct.AccessToken, usable)

	if c.stale(gen) {
		return shared.ErrConversionCancelled
	}
	if err := ctx.Err(); err != nil {
		return c.fail(gen, fmt.Errorf("%w: %w", shared.ErrTransport, err), shared.MessageGenericError)
	}

	if !c.transition(gen, func(s *models.Session) {
		s.Phase = models.PhasePreview
		s.MatchedSongs = matches
		s.Message = fmt.Sprintf("Found %d of %d songs on Spotify.", models.CountFound(matches), len(matches))
	}) {
		return shared.ErrConversionCancelled
	}
	c.sendProgress(id, previewUpdate(matches))
	c.logger.Info("preview ready", "session", id, "songs", len(matches), "found", models.CountFound(matches))
	return nil
}

// Confirm creates the playlist from the previewed matches.
//
// Only found songs are added. A populate failure still reports the playlist and the count actually sent.
func (c *Converter) Confirm(ctx context.Context) (*Result, error) {
	c.mu.Lock()
	if c.session.Phase != models.PhasePreview {
		phase := c.session.Phase
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: nothing to confirm while %s", shared.ErrInvalidState, phase)
	}
	c.session.Phase = models.PhaseCreating
	c.session.Message = "Creating playlist..."
	c.session.UpdatedAt = time.Now()
	c.notifyLocked()
	gen, id := c.gen, c.session.ID
	songs := append([]models.MatchedSong(nil), c.session.MatchedSongs...)
	youtubeURL := c.session.YouTubeURL
	acct := *c.account
	c.mu.Unlock()

	uris := models.FoundURIs(songs)
	if len(uris) == 0 {
		return nil, c.fail(gen, shared.ErrNoSongsFound, shared.MessageNoSongsToAdd)
	}

	if acct.SpotifyID == "" && c.opts.Profiles != nil {
		pctx, cancel := context.WithTimeout(ctx, c.opts.CallTimeout)
		profile, err := c.opts.Profiles.CurrentUser(pctx, acct.AccessToken)
		err = expired(pctx, err)
		cancel()
		if c.stale(gen) {
			return nil, shared.ErrConversionCancelled
		}
		if err != nil {
			return nil, c.fail(gen, err, shared.MessageCreateError)
		}
		acct.SpotifyID = profile.SpotifyID
	}

	name := PlaylistName(c.opts.AppName, songs)
	desc := PlaylistDescription(c.opts.AppName, youtubeURL)
	c.sendProgress(id, creatingUpdate(1, fmt.Sprintf("Creating playlist %q...", name)))

	cctx, cancel := context.WithTimeout(ctx, c.opts.CallTimeout)
	handle, err := c.playlists.CreatePlaylist(cctx, acct.AccessToken, acct.SpotifyID, name, desc, c.opts.Public)
	err = expired(cctx, err)
	cancel()
	if c.stale(gen) {
		return nil, shared.ErrConversionCancelled
	}
	if err != nil {
		return nil, c.fail(gen, err, shared.MessageCreateError)
	}

	c.sendProgress(id, creatingUpdate(2, fmt.Sprintf("Adding %d tracks...", len(uris))))

	actx, cancel := context.WithTimeout(ctx, c.opts.CallTimeout)
	sent, err := c.playlists.AddTracks(actx, acct.AccessToken, handle.ID, uris)
	err = expired(actx, err)
	cancel()
	result := &Result{Playlist: handle, TracksAdded: sent, Requested: len(uris)}
	if c.stale(gen) {
		return result, shared.ErrConversionCancelled
	}
	if err != nil {
		c.mu.Lock()
		c.session.Playlist = handle
		c.session.TracksAdded = sent
		c.notifyLocked()
		c.mu.Unlock()
		return result, c.fail(gen, err, shared.MessageCreateError)
	}

	msg := fmt.Sprintf("Added %d tracks to %s.", sent, handle.Name)
	rec, ok := c.finish(gen, models.OutcomeSuccess, msg, func(s *models.Session) {
		s.Playlist = handle
		s.TracksAdded = sent
	})
	if !ok {
		return result, shared.ErrConversionCancelled
	}
	c.logger.Info("playlist created", "session", id, "playlist", handle.ID, "tracks", sent)
	c.record(rec)
	c.sendProgress(id, finishedUpdate(models.OutcomeSuccess, msg, result))
	return result, nil
}

// Cancel abandons the current conversion.
//
// From preview no playlist call is made. While a call is in flight the call is left to finish
// and its result is discarded.
func (c *Converter) Cancel() error {
	return c.cancel(func(p models.Phase) bool { return p != models.PhaseIdle })
}

// CancelPreview abandons the conversion only while it waits in preview.
//
// The phase check and the cancellation happen under one lock, so a concurrent
// [Converter.Confirm] either wins and keeps its playlist or sees the cancelled session.
func (c *Converter) CancelPreview() error {
	return c.cancel(func(p models.Phase) bool { return p == models.PhasePreview })
}

func (c *Converter) cancel(allowed func(models.Phase) bool) error {
	c.mu.Lock()
	phase := c.session.Phase
	if !allowed(phase) {
		c.mu.Unlock()
		return fmt.Errorf("%w: nothing to cancel while %s", shared.ErrInvalidState, phase)
	}
	c.gen++
	rec := c.finishLocked(models.OutcomeCancelled, "Conversion cancelled.", nil)
	c.mu.Unlock()

	c.logger.Info("conversion cancelled", "session", rec.ID, "phase", phase)
	c.record(rec)
	c.sendProgress(rec.ID, finishedUpdate(models.OutcomeCancelled, "Conversion cancelled.", nil))
	return nil
}

// Reset clears a finished conversion's outcome and message.
func (c *Converter) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session.Phase != models.PhaseIdle {
		return fmt.Errorf("%w: conversion is %s", shared.ErrInvalidState, c.session.Phase)
	}
	c.session = models.Session{Phase: models.PhaseIdle, UpdatedAt: time.Now()}
	c.notifyLocked()
	return nil
}

func (c *Converter) currentGen() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

func (c *Converter) stale(gen uint64) bool {
	return c.currentGen() != gen
}

// transition applies fn to the session when gen is still current.
func (c *Converter) transition(gen uint64, fn func(*models.Session)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return false
	}
	fn(&c.session)
	c.session.UpdatedAt = time.Now()
	c.notifyLocked()
	return true
}

// finish moves the session to idle with outcome and returns the history record for it.
//
// On success and cancellation the URL and matched songs are cleared; on error they are kept for display.
func (c *Converter) finish(gen uint64, outcome models.Outcome, msg string, fn func(*models.Session)) (*models.ConversionRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return nil, false
	}
	return c.finishLocked(outcome, msg, fn), true
}

func (c *Converter) finishLocked(outcome models.Outcome, msg string, fn func(*models.Session)) *models.ConversionRecord {
	if fn != nil {
		fn(&c.session)
	}

	s := &c.session
	rec := &models.ConversionRecord{
		ID:              s.ID,
		YouTubeURL:      s.YouTubeURL,
		Outcome:         outcome,
		Message:         msg,
		RecognizedCount: s.Recognized,
		TracksAdded:     s.TracksAdded,
		Playlist:        s.Playlist,
		Songs:           append([]models.MatchedSong(nil), s.MatchedSongs...),
		Created:         time.Now(),
	}
	if c.account != nil {
		rec.UserID = c.account.UserID
	}

	s.Phase = models.PhaseIdle
	s.Outcome = outcome
	s.Message = msg
	s.UpdatedAt = time.Now()
	if outcome != models.OutcomeError {
		s.YouTubeURL = ""
		s.MatchedSongs = nil
	}
	c.notifyLocked()
	return rec
}

// fail ends the conversion with an error outcome and returns err.
func (c *Converter) fail(gen uint64, err error, msg string) error {
	rec, ok := c.finish(gen, models.OutcomeError, msg, nil)
	if !ok {
		return shared.ErrConversionCancelled
	}
	c.logger.Warn("conversion failed", "session", rec.ID, "error", shared.Redact(err.Error()))
	c.record(rec)
	c.sendProgress(rec.ID, finishedUpdate(models.OutcomeError, msg, err.Error()))
	return err
}

func (c *Converter) record(rec *models.ConversionRecord) {
	if c.opts.History == nil || rec == nil || rec.YouTubeURL == "" {
		return
	}
	if err := c.opts.History.Record(rec); err != nil {
		c.logger.Warn("failed to record conversion", "session", rec.ID, "error", err)
	}
}

// match searches each candidate and returns one entry per candidate in candidate order.
//
// With Workers > 1 searches run concurrently, bounded by an [errgroup.Group] limit.
func (c *Converter) match(ctx context.Context, gen uint64, id, token string, cands []models.Candidate) []models.MatchedSong {
	out := make([]models.MatchedSong, len(cands))
	total := len(cands)
	var done atomic.Int32

	lookup := func(i int) {
		out[i] = c.lookup(ctx, token, cands[i])
		c.sendProgress(id, searchUpdate(int(done.Add(1)), total, out[i]))
	}

	if c.opts.Workers == 1 {
		for i := range cands {
			if ctx.Err() != nil || c.stale(gen) {
				break
			}
			lookup(i)
		}
		return out
	}

	var g errgroup.Group
	g.SetLimit(c.opts.Workers)
	for i := range cands {
		if ctx.Err() != nil || c.stale(gen) {
			break
		}
		g.Go(func() error {
			lookup(i)
			return nil
		})
	}
	g.Wait()
	return out
}

// expired reports an error from a call whose own deadline passed as a transport timeout.
//
// Must be called before the call's cancel func runs.
func expired(callCtx context.Context, err error) error {
	if err == nil || errors.Is(err, shared.ErrTransport) {
		return err
	}
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w: %w", shared.ErrTransport, shared.ErrTimeout, err)
	}
	return err
}

// lookup resolves one candidate. Search failures yield a not-found entry.
func (c *Converter) lookup(ctx context.Context, token string, cand models.Candidate) models.MatchedSong {
	key := cand.Key()
	if c.opts.Cache != nil {
		if uri, ok := c.opts.Cache.Lookup(key); ok {
			return models.Found(cand, uri)
		}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return models.NotFound(cand)
		}
	}

	sctx, cancel := context.WithTimeout(ctx, c.opts.CallTimeout)
	defer cancel()

	query := BuildQuery(cand)
	results, err := c.catalog.Search(sctx, token, query, c.opts.SearchLimit)
	if err = expired(sctx, err); err != nil {
		var apiErr *services.APIError
		if errors.As(err, &apiErr) {
			c.logger.Warn("search failed", "query", query, "status", apiErr.Status)
		} else {
			c.logger.Warn("search failed", "query", query, "error", err)
		}
		return models.NotFound(cand)
	}
	if len(results) == 0 || results[0].URI == "" {
		return models.NotFound(cand)
	}

	if c.opts.Cache != nil {
		if err := c.opts.Cache.Remember(key, results[0]); err != nil {
			c.logger.Debug("failed to cache match", "key", key, "error", err)
		}
	}
	return models.Found(cand, results[0].URI)
}

// BuildQuery returns "<title> <artist>", or the title alone when the artist is blank.
func BuildQuery(c models.Candidate) string {
	title := strings.TrimSpace(c.Title)
	artist := strings.TrimSpace(c.Artist)
	if title == "" {
		return ""
	}
	if artist == "" {
		return title
	}
	return title + " " + artist
}

// PlaylistName derives the playlist name from the first matched song.
func PlaylistName(app string, songs []models.MatchedSong) string {
	if app == "" {
		app = DefaultAppName
	}
	first := "Playlist"
	if len(songs) > 0 && strings.TrimSpace(songs[0].Title) != "" {
		first = strings.TrimSpace(songs[0].Title)
	}
	return app + ": " + first
}

// PlaylistDescription embeds the source video URL.
func PlaylistDescription(app, youtubeURL string) string {
	if app == "" {
		app = DefaultAppName
	}
	return fmt.Sprintf("Converted from %s by %s", youtubeURL, app)
}
