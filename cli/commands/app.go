// Package commands implements the CLI command structure using Cobra.
package commands

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/petal-labs/warden/cli/config"
	"github.com/petal-labs/warden/core"
	"github.com/petal-labs/warden/providers/petal"
	"github.com/petal-labs/warden/securestore"
)

// apiKeyEntry is the secure store entry holding the API key.
const apiKeyEntry = "api_key"

// ConfigLoader loads CLI config from a path.
type ConfigLoader func(path string) (*config.Config, error)

// StoreFactory opens the secure store at a path.
type StoreFactory func(path string) (*securestore.Store, error)

// ProviderFactory creates a provider using CLI config context.
type ProviderFactory func(apiKey string, cfg *config.Config) (core.Provider, error)

// AppOption customizes App dependencies.
type AppOption func(*App)

// App holds CLI state and runtime dependencies.
type App struct {
	root *cobra.Command

	loadConfig     ConfigLoader
	openStore      StoreFactory
	createProvider ProviderFactory
	stdin          io.Reader
	stdout         io.Writer
	stderr         io.Writer

	cfgFile    string
	model      string
	jsonOutput bool
	verbose    bool
	cfg        *config.Config

	chatPrompt      string
	chatSystem      string
	chatTemperature float32
	chatMaxTokens   int
	chatStream      bool

	initBundleID    string
	initTeamID      string
	initEnvironment string
	initBaseURL     string
	initModel       string
}

// WithConfigLoader injects a config loader dependency.
func WithConfigLoader(loader ConfigLoader) AppOption {
	return func(a *App) {
		if loader != nil {
			a.loadConfig = loader
		}
	}
}

// WithStoreFactory injects a secure store factory dependency.
func WithStoreFactory(factory StoreFactory) AppOption {
	return func(a *App) {
		if factory != nil {
			a.openStore = factory
		}
	}
}

// WithProviderFactory injects a provider factory dependency.
func WithProviderFactory(factory ProviderFactory) AppOption {
	return func(a *App) {
		if factory != nil {
			a.createProvider = factory
		}
	}
}

// WithIO injects process I/O streams.
func WithIO(stdin io.Reader, stdout, stderr io.Writer) AppOption {
	return func(a *App) {
		if stdin != nil {
			a.stdin = stdin
		}
		if stdout != nil {
			a.stdout = stdout
		}
		if stderr != nil {
			a.stderr = stderr
		}
	}
}

// NewApp creates a new CLI app with default dependencies.
func NewApp(opts ...AppOption) *App {
	a := &App{
		loadConfig:     config.LoadConfig,
		openStore:      securestore.Open,
		createProvider: defaultProviderFactory,
		stdin:          os.Stdin,
		stdout:         os.Stdout,
		stderr:         os.Stderr,
	}

	for _, opt := range opts {
		opt(a)
	}

	a.root = a.newRootCommand()
	return a
}

func (a *App) newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "warden",
		Short: "Warden - secured Petal API CLI",
		Long: `Warden is a command-line interface for the Petal chat API.

Every request is signed; device attestation is handled transparently.
Use Warden to set up credentials, chat with models, and inspect the
local device registration state.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initConfig()
		},
		SilenceUsage: true,
	}

	// Global flags available to all commands.
	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is ~/.warden/config.yaml)")
	root.PersistentFlags().StringVar(&a.model, "model", "", "model ID (e.g. petal-2)")
	root.PersistentFlags().BoolVar(&a.jsonOutput, "json", false, "emit JSON output")
	root.PersistentFlags().BoolVar(&a.verbose, "verbose", false, "enable debug logging")

	root.AddCommand(a.newChatCommand())
	root.AddCommand(a.newDeviceCommand())
	root.AddCommand(a.newInitCommand())
	root.AddCommand(a.newVersionCommand())

	return root
}

// Execute runs the root command.
func (a *App) Execute() error {
	return a.root.Execute()
}

func (a *App) initConfig() error {
	path := a.cfgFile
	if path == "" {
		path = config.DefaultConfigPath()
	}

	cfg, err := a.loadConfig(path)
	if err != nil {
		return err
	}
	a.cfg = cfg

	// Apply config defaults if flags not set.
	if a.model == "" && cfg.DefaultModel != "" {
		a.model = cfg.DefaultModel
	}

	return nil
}

// configPath returns the effective config file path.
func (a *App) configPath() string {
	if a.cfgFile != "" {
		return a.cfgFile
	}
	return config.DefaultConfigPath()
}

// storePath returns the effective secure store path.
func (a *App) storePath() string {
	if a.cfg != nil && a.cfg.StorePath != "" {
		return a.cfg.StorePath
	}
	return securestore.DefaultPath()
}

// defaultProviderFactory builds a Petal provider from the CLI config, with
// store-backed device attestation enabled.
func defaultProviderFactory(apiKey string, cfg *config.Config) (core.Provider, error) {
	opts := []petal.Option{petal.WithStorePath(cfg.StorePath)}
	if cfg.BaseURL != "" {
		opts = append(opts, petal.WithBaseURL(cfg.BaseURL))
	}
	if cfg.TeamID != "" {
		opts = append(opts, petal.WithTeamID(cfg.TeamID))
	}
	if cfg.Environment != "" {
		opts = append(opts, petal.WithEnvironment(core.Environment(cfg.Environment)))
	}
	return petal.New(apiKey, cfg.BundleID, opts...)
}

// Execute runs the default app root command.
func Execute() error {
	return NewApp().Execute()
}
