package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/petal-labs/warden/attest"
)

func (a *App) newDeviceCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "device",
		Short: "Inspect and manage local device attestation state",
		Long: `Inspect and manage the local device attestation state.

The attestation key and replay counter live in the encrypted store. The
key is created and registered automatically on first use of an
attestation-enforcing backend.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the local attestation key and replay counter",
		RunE:  a.runDeviceStatus,
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove the local attestation key and reset the replay counter",
		Long: `Remove the local attestation key and reset the replay counter.

The next request against an attestation-enforcing backend will generate
and register a fresh key.`,
		RunE: a.runDeviceClear,
	})

	return cmd
}

func (a *App) runDeviceStatus(cmd *cobra.Command, args []string) error {
	store, err := a.openStore(a.storePath())
	if err != nil {
		return exitWithCode(ExitValidation, fmt.Errorf("failed to open secure store: %w", err))
	}

	provider := attest.NewPlatformProvider(store)
	keyID, err := provider.KeyID()
	if err != nil {
		return exitWithCode(ExitValidation, fmt.Errorf("failed to read attestation key: %w", err))
	}

	counter, err := store.Counter()
	if err != nil {
		return exitWithCode(ExitValidation, fmt.Errorf("failed to read replay counter: %w", err))
	}

	if a.jsonOutput {
		fmt.Fprintf(a.stdout, `{"registered":%t,"key_id":%q,"counter":%d}`+"\n",
			keyID != "", keyID, counter)
		return nil
	}

	if keyID == "" {
		fmt.Fprintln(a.stdout, "No attestation key. The device will register on first use.")
		return nil
	}

	fmt.Fprintf(a.stdout, "Attestation key: %s\n", keyID)
	fmt.Fprintf(a.stdout, "Replay counter:  %d\n", counter)
	return nil
}

func (a *App) runDeviceClear(cmd *cobra.Command, args []string) error {
	store, err := a.openStore(a.storePath())
	if err != nil {
		return exitWithCode(ExitValidation, fmt.Errorf("failed to open secure store: %w", err))
	}

	provider := attest.NewPlatformProvider(store)
	if err := provider.Clear(); err != nil {
		return exitWithCode(ExitValidation, fmt.Errorf("failed to clear attestation key: %w", err))
	}
	if err := store.ClearCounter(); err != nil {
		return exitWithCode(ExitValidation, fmt.Errorf("failed to reset replay counter: %w", err))
	}

	fmt.Fprintln(a.stdout, "Attestation state cleared.")
	return nil
}
