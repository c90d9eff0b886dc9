package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/thirtythreehz/crates/internal/discogs"
	"github.com/thirtythreehz/crates/internal/shared"
	"github.com/thirtythreehz/crates/internal/signature"
	"github.com/thirtythreehz/crates/internal/store"
	"github.com/thirtythreehz/crates/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The store and catalog client open lazily on first use, so commands like
// `crates setup` and `--help` never touch the network or the database file.
type Runner struct {
	config     *shared.Config
	configPath string
	client     *discogs.Client
	store      store.Store
	engine     *tasks.Engine
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Client     *discogs.Client
	Store      store.Store
	Engine     *tasks.Engine
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
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
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		client:     opts.Client,
		store:      opts.Store,
		engine:     opts.Engine,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

// SetLogger swaps the runner's logger, used when an interactive view owns the
// terminal and log lines would corrupt it.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

// Close releases the store if a command opened it.
func (r *Runner) Close() {
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			r.logger.Warn("failed to close store", "error", err)
		}
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, syncCommand, enrichCommand, collectionCommand, statusCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// ensureStore opens the configured storage backend on first use.
func (r *Runner) ensureStore(ctx context.Context) (store.Store, error) {
	if r.store != nil {
		return r.store, nil
	}

	st, err := store.Open(ctx, r.config.Storage)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrStoreUnavailable, err)
	}
	r.store = st
	return st, nil
}

// ensureClient builds the catalog client from configured credentials on first
// use. A personal token wins over the OAuth pair when both are present.
func (r *Runner) ensureClient() (*discogs.Client, error) {
	if r.client != nil {
		return r.client, nil
	}

	dc := r.config.Discogs
	opts := discogs.ClientOpts{
		ConsumerKey:    dc.ConsumerKey,
		ConsumerSecret: dc.ConsumerSecret,
		PersonalToken:  dc.PersonalToken,
		UserAgent:      dc.UserAgent,
		HTTPClient:     r.httpClient,
		Logger:         r.logger,
	}

	if dc.PersonalToken == "" {
		pair, err := r.accessPair()
		if err != nil {
			return nil, err
		}
		opts.Access = pair
	}

	client, err := discogs.NewClient(opts)
	if err != nil {
		return nil, err
	}
	r.client = client
	return client, nil
}

// ensureEngine wires the sync and enrichment engine on first use.
func (r *Runner) ensureEngine(ctx context.Context) (*tasks.Engine, error) {
	if r.engine != nil {
		return r.engine, nil
	}

	client, err := r.ensureClient()
	if err != nil {
		return nil, err
	}
	st, err := r.ensureStore(ctx)
	if err != nil {
		return nil, err
	}

	r.engine = tasks.NewEngine(client, st, r.engineOpts())
	return r.engine, nil
}

// offlineEngine builds an engine over the store alone, enough for operations
// that never touch the catalog (export, enrichment breakdown).
func (r *Runner) offlineEngine(ctx context.Context) (*tasks.Engine, error) {
	if r.engine != nil {
		return r.engine, nil
	}

	st, err := r.ensureStore(ctx)
	if err != nil {
		return nil, err
	}
	return tasks.NewEngine(nil, st, r.engineOpts()), nil
}

// engineOpts translates config values into engine options.
func (r *Runner) engineOpts() tasks.EngineOpts {
	return tasks.EngineOpts{
		PageSize:     r.config.Sync.PageSize,
		PageDelay:    time.Duration(r.config.Sync.PageDelayMS) * time.Millisecond,
		SnapshotTTL:  time.Duration(r.config.Sync.SnapshotTTLHours) * time.Hour,
		ItemDelay:    time.Duration(r.config.Enrich.ItemDelayMS) * time.Millisecond,
		SaveInterval: r.config.Enrich.SaveInterval,
		ProgressTTL:  time.Duration(r.config.Enrich.ProgressTTLHours) * time.Hour,
		MasterTTL:    time.Duration(r.config.Enrich.MasterTTLHours) * time.Hour,
		Logger:       r.logger,
	}
}

// owner resolves the acting collection owner, preferring the flag value over
// the configured username.
func (r *Runner) owner(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if r.config.Discogs.Username != "" {
		return r.config.Discogs.Username, nil
	}
	return "", fmt.Errorf("%w: no username configured, run 'crates auth login' or pass --username", shared.ErrMissingArgument)
}

// keyPath resolves the credential key file location.
func (r *Runner) keyPath() (string, error) {
	if r.config.Security.KeyPath != "" {
		return r.config.Security.KeyPath, nil
	}
	return shared.DefaultKeyPath()
}

// accessPair opens the sealed access secret from config with the key file.
// Returns nil when no OAuth pair is stored.
func (r *Runner) accessPair() (*discogs.CredentialPair, error) {
	dc := r.config.Discogs
	if dc.OAuthToken == "" || dc.OAuthSecret == "" {
		return nil, nil
	}

	path, err := r.keyPath()
	if err != nil {
		return nil, err
	}
	key, err := shared.LoadOrCreateKey(path)
	if err != nil {
		return nil, err
	}

	secret, err := signature.Decrypt(dc.OAuthSecret, key)
	if err != nil {
		return nil, fmt.Errorf("failed to unseal access secret (wrong key file?): %w", err)
	}
	return &discogs.CredentialPair{Token: dc.OAuthToken, Secret: secret}, nil
}

// saveCredentials seals the access secret under the key file and writes the
// pair plus the authenticated username back to the config file.
func (r *Runner) saveCredentials(pair discogs.CredentialPair, username string) error {
	if r.config == nil {
		return fmt.Errorf("config is nil")
	}

	path, err := r.keyPath()
	if err != nil {
		return err
	}
	key, err := shared.LoadOrCreateKey(path)
	if err != nil {
		return err
	}
	sealed, err := signature.Encrypt(pair.Secret, key)
	if err != nil {
		return fmt.Errorf("failed to seal access secret: %w", err)
	}

	r.config.Discogs.OAuthToken = pair.Token
	r.config.Discogs.OAuthSecret = sealed
	if username != "" {
		r.config.Discogs.Username = username
	}

	if r.configPath == "" {
		return nil
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

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
