package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/spotrcpt/internal/auth"
	"github.com/desertthunder/spotrcpt/internal/repositories"
	"github.com/desertthunder/spotrcpt/internal/services"
	"github.com/desertthunder/spotrcpt/internal/shared"
	"github.com/desertthunder/spotrcpt/internal/tasks"
)

const defaultLoginTimeout = 2 * time.Minute

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The session, services, and receipt store are built lazily by [Runner.open] so commands like
// `setup config` work without credentials.
type Runner struct {
	config       *shared.Config
	configPath   string
	httpClient   *http.Client
	logger       *log.Logger
	output       io.Writer
	navigate     func(string) error
	loginTimeout time.Duration

	db        *sql.DB
	store     auth.Store
	exchanger auth.Exchanger

	session  *auth.Manager
	spotify  services.Service
	receipts *repositories.ReceiptRepository
	engine   *tasks.ReceiptEngine
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config       *shared.Config
	ConfigPath   string
	HTTPClient   *http.Client
	Logger       *log.Logger
	Output       io.Writer
	Navigate     func(string) error // opens the authorization page; defaults to [shared.OpenBrowser]
	LoginTimeout time.Duration

	DB        *sql.DB        // opened from the [database] section when nil
	Store     auth.Store     // defaults to a [repositories.KVStore] on DB
	Exchanger auth.Exchanger // defaults to the relay when relay_url is set, the token endpoint otherwise
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
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Navigate == nil {
		opts.Navigate = shared.OpenBrowser
	}
	if opts.LoginTimeout <= 0 {
		opts.LoginTimeout = defaultLoginTimeout
	}

	return &Runner{
		config:       opts.Config,
		configPath:   opts.ConfigPath,
		httpClient:   opts.HTTPClient,
		logger:       opts.Logger,
		output:       opts.Output,
		navigate:     opts.Navigate,
		loginTimeout: opts.LoginTimeout,
		db:           opts.DB,
		store:        opts.Store,
		exchanger:    opts.Exchanger,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, receiptCommand, apiCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Load reads the configuration named by --config, applies .env and environment overrides, and sets the log
// level. A missing file falls back to the defaults.
func (r *Runner) Load(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if err := shared.LoadEnv(cmd.String("env-file")); err != nil {
		r.logger.Warn("failed to load env file", "error", err)
	}

	r.configPath = cmd.String("config")
	if _, err := os.Stat(r.configPath); err == nil {
		config, err := shared.LoadConfig(r.configPath)
		if err != nil {
			return ctx, err
		}
		r.config = config
	} else {
		r.logger.Debug("config file not found, using defaults", "path", r.configPath)
	}
	r.config.ApplyEnv()

	if cmd.Bool("debug") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}
	return ctx, nil
}

// SetLogger replaces the logger, e.g. with a file logger while the TUI owns the terminal.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// openDB opens and migrates the database once.
func (r *Runner) openDB() error {
	if r.db != nil {
		return nil
	}

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return err
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	r.db = db
	return nil
}

// openReceipts opens the receipt history without requiring credentials.
func (r *Runner) openReceipts() error {
	if r.receipts != nil {
		return nil
	}
	if err := r.openDB(); err != nil {
		return err
	}
	r.receipts = repositories.NewReceiptRepository(r.db)
	return nil
}

// open builds the session manager and everything layered on it.
func (r *Runner) open() error {
	if r.session != nil {
		return nil
	}
	if err := r.config.Validate(); err != nil {
		return fmt.Errorf("%w (edit %s or run `spotrcpt setup config`)", err, r.configPath)
	}
	if err := r.openReceipts(); err != nil {
		return err
	}

	store := r.store
	if store == nil {
		store = repositories.NewKVStore(r.db)
	}
	exchanger := r.exchanger
	if exchanger == nil {
		exchanger = r.newExchanger()
	}

	session, err := auth.NewManager(
		auth.ManagerConfigFrom(r.config),
		store,
		exchanger,
		auth.WithHTTPClient(r.httpClient),
		auth.WithLogger(shared.WithLogger(r.logger, "component", "session")),
		auth.WithNavigator(r.openURL),
	)
	if err != nil {
		return err
	}

	r.session = session
	r.spotify = services.NewSpotifyService(session)
	r.engine = tasks.NewReceiptEngine(r.spotify, r.receipts, shared.WithLogger(r.logger, "component", "receipts"))
	return nil
}

func (r *Runner) newExchanger() auth.Exchanger {
	if relay := r.config.Credentials.Spotify.RelayURL; relay != "" {
		r.logger.Debug("using token exchange relay", "url", relay)
		return auth.NewRelayExchanger(relay, r.httpClient)
	}
	return auth.NewDirectExchanger(auth.ManagerConfigFrom(r.config).OAuth2(), r.httpClient)
}

// openURL is the session's navigator. It reads r.navigate at call time so `--no-browser` can swap it.
func (r *Runner) openURL(u string) error {
	return r.navigate(u)
}

// printURL is the navigator for headless use.
func (r *Runner) printURL(u string) error {
	return r.writePlain("Open this URL in your browser:\n\n%s\n\n", u)
}

// Close releases the database.
func (r *Runner) Close() error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
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

// withHint appends a next step to errors that need the user to sign in again.
func withHint(err error) error {
	switch {
	case errors.Is(err, shared.ErrNotAuthenticated),
		errors.Is(err, shared.ErrNoRefreshToken),
		errors.Is(err, shared.ErrAuthenticationExpired),
		errors.Is(err, shared.ErrRefreshFailed):
		return fmt.Errorf("%w (run `spotrcpt auth login`)", err)
	}
	return err
}
