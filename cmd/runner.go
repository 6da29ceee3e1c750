package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tempox/internal/formatter"
	"github.com/desertthunder/tempox/internal/services"
	"github.com/desertthunder/tempox/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

const defaultConfigPath = "config.toml"

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config      *shared.Config
	configPath  string
	remote      services.Remote
	db          *sql.DB
	ownsDB      bool
	logger      *log.Logger
	output      io.Writer
	palette     *formatter.Palette
	openBrowser func(string) error
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Config, Remote and DB are resolved lazily from the config file when left nil.
type RunnerOpts struct {
	Config      *shared.Config
	ConfigPath  string
	Remote      services.Remote
	DB          *sql.DB
	Logger      *log.Logger
	Output      io.Writer
	Palette     *formatter.Palette
	OpenBrowser func(string) error
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.ConfigPath == "" {
		opts.ConfigPath = defaultConfigPath
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Palette == nil {
		opts.Palette = formatter.DefaultPalette()
	}
	if opts.OpenBrowser == nil {
		opts.OpenBrowser = shared.OpenBrowser
	}

	return &Runner{
		config:      opts.Config,
		configPath:  opts.ConfigPath,
		remote:      opts.Remote,
		db:          opts.DB,
		logger:      opts.Logger,
		output:      opts.Output,
		palette:     opts.Palette,
		openBrowser: opts.OpenBrowser,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, rangesCommand, organizeCommand, pruneCommand, cacheCommand, runsCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// before loads configuration for every command. An explicitly injected config is kept.
func (r *Runner) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.IsSet("config") {
		r.configPath = cmd.String("config")
	}

	if r.config == nil {
		config, err := shared.LoadConfig(r.configPath)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			r.logger.Debug("config file not found, using defaults", "path", r.configPath)
			config = shared.DefaultConfig()
		case err != nil:
			return ctx, err
		}
		r.config = config
	}

	if env := cmd.String("env"); env != "" {
		if err := shared.ApplyEnv(r.config, env); err != nil {
			return ctx, err
		}
	}

	level := r.config.LogLevel
	if cmd.Bool("verbose") {
		level = "debug"
	}
	if err := shared.SetLogLevel(r.logger, level); err != nil {
		return ctx, err
	}
	if cmd.Bool("no-color") {
		r.palette = formatter.PlainPalette()
	}

	return ctx, nil
}

// spotifyService builds an unauthenticated Spotify client from the configured credentials.
func (r *Runner) spotifyService() (*services.SpotifyService, error) {
	creds := r.config.Credentials.Spotify
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return nil, fmt.Errorf("%w: Spotify client_id and client_secret must be set in %s or the environment",
			shared.ErrInvalidArgument, r.configPath)
	}

	return services.NewSpotifyService(creds.Map(), services.SpotifyOpts{
		BaseURL:     r.config.Spotify.APIURL,
		AccountsURL: r.config.Spotify.AccountsURL,
		RateLimit:   r.config.Spotify.RateLimit,
	})
}

// remoteService returns the injected remote, or an authenticated Spotify client whose refreshed
// tokens are written back to the config file.
func (r *Runner) remoteService(ctx context.Context) (services.Remote, error) {
	if r.remote != nil {
		return r.remote, nil
	}

	svc, err := r.spotifyService()
	if err != nil {
		return nil, err
	}

	token := r.config.Credentials.Spotify.Token()
	if token == nil {
		return nil, fmt.Errorf("%w: no Spotify token stored, run 'tempox auth'", shared.ErrNotAuthenticated)
	}

	svc.SetTokenRefreshCallback(func(t *oauth2.Token) {
		if err := r.saveTokens(t); err != nil {
			r.logger.Warn("failed to persist refreshed token", "err", err)
			return
		}
		r.logger.Debug("refreshed token saved", "path", r.configPath)
	})

	if err := svc.OAuthenticate(ctx, token); err != nil {
		return nil, err
	}

	r.remote = svc
	return svc, nil
}

// database returns the injected connection or opens (and migrates) the configured one.
func (r *Runner) database() (*sql.DB, error) {
	if r.db != nil {
		return r.db, nil
	}

	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", r.config.Database.Path, err)
	}
	r.db = db
	r.ownsDB = true
	return db, nil
}

// close releases the database opened by [Runner.database]. Injected connections stay open.
func (r *Runner) close() error {
	if r.db == nil || !r.ownsDB {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	r.ownsDB = false
	return err
}

// saveTokens stores token in the config and writes the config file.
func (r *Runner) saveTokens(token *oauth2.Token) error {
	if r.config == nil {
		return fmt.Errorf("%w: config not loaded", shared.ErrInvalidConfig)
	}
	if r.configPath == "" {
		return fmt.Errorf("%w: config path not set", shared.ErrMissingArgument)
	}
	if err := r.config.Credentials.Spotify.Update(token); err != nil {
		return fmt.Errorf("failed to update spotify configuration: %w", err)
	}
	if err := shared.SaveConfig(r.configPath, r.config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
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
