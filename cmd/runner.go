package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/yt2spotify/internal/recognition"
	"github.com/desertthunder/yt2spotify/internal/repositories"
	"github.com/desertthunder/yt2spotify/internal/services"
	"github.com/desertthunder/yt2spotify/internal/shared"
	"github.com/desertthunder/yt2spotify/internal/tasks"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Collaborators left nil are built from the config on first use.
type Runner struct {
	config      *shared.Config
	httpClient  *http.Client
	logger      *log.Logger
	output      io.Writer
	input       io.Reader
	interactive bool

	db         *sql.DB
	recognizer recognition.Recognizer
	catalog    services.Catalog
	playlists  services.Playlists
	profiles   services.Profiles
	accounts   tasks.AccountSource
	oauth      *services.OAuth
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	Input      io.Reader

	// Interactive enables spinners and progress bars. Defaults to whether stdout is a terminal.
	Interactive *bool

	DB         *sql.DB
	Recognizer recognition.Recognizer
	Catalog    services.Catalog
	Playlists  services.Playlists
	Profiles   services.Profiles
	Accounts   tasks.AccountSource
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Config.Recognition.Timeout()}
	}

	interactive := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	if opts.Output != os.Stdout {
		interactive = false
	}
	if opts.Interactive != nil {
		interactive = *opts.Interactive
	}

	return &Runner{
		config:      opts.Config,
		httpClient:  opts.HTTPClient,
		logger:      opts.Logger,
		output:      opts.Output,
		input:       opts.Input,
		interactive: interactive,
		db:          opts.DB,
		recognizer:  opts.Recognizer,
		catalog:     opts.Catalog,
		playlists:   opts.Playlists,
		profiles:    opts.Profiles,
		accounts:    opts.Accounts,
	}
}

// SetConfig replaces the configuration. Collaborators already built keep their settings.
func (r *Runner) SetConfig(cfg *shared.Config) {
	r.config = cfg
}

// SetLogger replaces the logger for subsequent commands.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// Close releases the database handle if one was opened.
func (r *Runner) Close() error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, convertCommand, recognizeCommand, historyCommand, cacheCommand, serveCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// database opens and migrates the configured database once.
func (r *Runner) database() (*sql.DB, error) {
	if r.db != nil {
		return r.db, nil
	}
	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	r.db = db
	return db, nil
}

func (r *Runner) tokens() (*repositories.TokenRepository, error) {
	db, err := r.database()
	if err != nil {
		return nil, err
	}
	return repositories.NewTokenRepository(db), nil
}

func (r *Runner) history() (*repositories.ConversionRepository, error) {
	db, err := r.database()
	if err != nil {
		return nil, err
	}
	return repositories.NewConversionRepository(db), nil
}

func (r *Runner) matchCache() (*repositories.MatchCacheRepository, error) {
	db, err := r.database()
	if err != nil {
		return nil, err
	}
	return repositories.NewMatchCacheRepository(db), nil
}

// oauthFlow returns the Spotify authorization flow, or an error when credentials are missing.
func (r *Runner) oauthFlow() (*services.OAuth, error) {
	if r.oauth != nil {
		return r.oauth, nil
	}
	o, err := services.NewOAuth(r.config.Credentials.Spotify)
	if err != nil {
		return nil, err
	}
	r.oauth = o
	return o, nil
}

// spotifyClients fills any nil catalog, playlist or profile client with one Spotify client.
func (r *Runner) spotifyClients() {
	if r.catalog != nil && r.playlists != nil && r.profiles != nil {
		return
	}
	sp := services.NewSpotify(r.config.Credentials.Spotify.APIBaseURL, r.httpClient, r.logger)
	if r.catalog == nil {
		r.catalog = sp
	}
	if r.playlists == nil {
		r.playlists = sp
	}
	if r.profiles == nil {
		r.profiles = sp
	}
}

// accountSource resolves the signed-in account from stored tokens.
//
// Without client credentials expired tokens cannot be refreshed but valid ones still work.
func (r *Runner) accountSource() (tasks.AccountSource, error) {
	if r.accounts != nil {
		return r.accounts, nil
	}
	store, err := r.tokens()
	if err != nil {
		return nil, err
	}
	o, err := r.oauthFlow()
	if err != nil {
		r.logger.Debug("token refresh disabled", "reason", err)
		o = nil
	}
	r.accounts = services.NewAccounts(store, o, r.logger)
	return r.accounts, nil
}

func (r *Runner) recognition() (recognition.Recognizer, error) {
	if r.recognizer != nil {
		return r.recognizer, nil
	}
	rec, err := recognition.FromConfig(r.config, r.httpClient, r.logger)
	if err != nil {
		return nil, err
	}
	r.recognizer = rec
	return rec, nil
}

// converterOptions maps the config onto converter options and attaches the match cache and history stores.
func (r *Runner) converterOptions() (tasks.Options, error) {
	opts := tasks.OptionsFromConfig(r.config)
	opts.Logger = r.logger
	opts.Profiles = r.profiles

	hist, err := r.history()
	if err != nil {
		return opts, err
	}
	opts.History = hist

	if r.config.Search.UseCache {
		cache, err := r.matchCache()
		if err != nil {
			return opts, err
		}
		opts.Cache = cache
	}
	return opts, nil
}

// pipeline builds every collaborator a conversion needs.
func (r *Runner) pipeline() (recognition.Recognizer, tasks.AccountSource, tasks.Options, error) {
	rec, err := r.recognition()
	if err != nil {
		return nil, nil, tasks.Options{}, err
	}
	r.spotifyClients()
	accts, err := r.accountSource()
	if err != nil {
		return nil, nil, tasks.Options{}, err
	}
	opts, err := r.converterOptions()
	if err != nil {
		return nil, nil, tasks.Options{}, err
	}
	return rec, accts, opts, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
