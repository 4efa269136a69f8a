package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/petal-labs/warden/cli/config"
	"github.com/petal-labs/warden/core"
)

func (a *App) newInitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Set up Warden credentials and configuration",
		Long: `Set up Warden: prompt for the API key, store it in the encrypted
store, and write the configuration file.

Example:
  warden init --bundle-id com.example.app --model petal-2`,
		RunE: a.runInit,
	}

	cmd.Flags().StringVar(&a.initBundleID, "bundle-id", "", "Application bundle ID (required)")
	cmd.Flags().StringVar(&a.initTeamID, "team-id", "", "Team ID")
	cmd.Flags().StringVar(&a.initEnvironment, "environment", "production", "Environment (production or test)")
	cmd.Flags().StringVar(&a.initBaseURL, "base-url", "", "API base URL override")
	cmd.Flags().StringVar(&a.initModel, "model", "", "Default model")

	_ = cmd.MarkFlagRequired("bundle-id")

	return cmd
}

func (a *App) runInit(cmd *cobra.Command, args []string) error {
	switch core.Environment(a.initEnvironment) {
	case core.EnvironmentProduction, core.EnvironmentTest:
	default:
		return exitWithCode(ExitValidation, fmt.Errorf("invalid environment %q: must be production or test", a.initEnvironment))
	}

	apiKey, err := a.promptAPIKey()
	if err != nil {
		return exitWithCode(ExitValidation, err)
	}

	cfg := &config.Config{
		BundleID:     a.initBundleID,
		TeamID:       a.initTeamID,
		Environment:  a.initEnvironment,
		BaseURL:      a.initBaseURL,
		DefaultModel: a.initModel,
	}
	if a.cfg != nil {
		cfg.StorePath = a.cfg.StorePath
	}

	store, err := a.openStore(a.storePath())
	if err != nil {
		return exitWithCode(ExitValidation, fmt.Errorf("failed to open secure store: %w", err))
	}
	if err := store.Set(apiKeyEntry, apiKey); err != nil {
		return exitWithCode(ExitValidation, fmt.Errorf("failed to store API key: %w", err))
	}

	path := a.configPath()
	if err := cfg.Save(path); err != nil {
		return exitWithCode(ExitValidation, fmt.Errorf("failed to write config: %w", err))
	}

	fmt.Fprintf(a.stdout, "Configuration written to %s\n", path)
	fmt.Fprintln(a.stdout, "API key stored.")
	return nil
}

// promptAPIKey reads the API key from stdin, without echo when stdin is a
// terminal.
func (a *App) promptAPIKey() (string, error) {
	fmt.Fprint(a.stdout, "Enter Petal API key: ")

	var apiKey string
	if f, ok := a.stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		keyBytes, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", fmt.Errorf("failed to read key: %w", err)
		}
		apiKey = string(keyBytes)
		fmt.Fprintln(a.stdout) // Newline after hidden input
	} else {
		// Fallback for non-terminal (e.g., piped input)
		reader := bufio.NewReader(a.stdin)
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("failed to read key: %w", err)
		}
		apiKey = strings.TrimSpace(line)
	}

	if apiKey == "" {
		return "", fmt.Errorf("API key cannot be empty")
	}
	return apiKey, nil
}
