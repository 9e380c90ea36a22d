package commands

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"momentkey/internal/app"
)

var (
	configPath      string
	home            string
	passphrase      string
	tokenPassphrase string
	ledgerURL       string
	appCtx          *app.Wire
)

// Execute runs the CLI until ctx is cancelled.
func Execute(ctx context.Context) error {
	root := &cobra.Command{
		Use:           "momentkey",
		Short:         "Bind encrypted media to shared moments between presence tokens",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig(configPath)
			if err != nil {
				return err
			}
			if home != "" {
				cfg.Home = home
			}
			if ledgerURL != "" {
				cfg.LedgerURL = ledgerURL
			}
			if err := os.MkdirAll(cfg.Home, 0o700); err != nil {
				return err
			}
			appCtx, err = app.NewWire(cfg, os.Stderr)
			return err
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default <home>/config.yaml)")
	root.PersistentFlags().StringVar(&home, "home", "", "data dir (default ~/.momentkey)")
	root.PersistentFlags().StringVarP(&passphrase, "passphrase", "p", "", "passphrase protecting the coordinator and issuer keys")
	root.PersistentFlags().StringVar(&tokenPassphrase, "token-passphrase", "", "passphrase of the simulated tokens (default: --passphrase)")
	root.PersistentFlags().StringVar(&ledgerURL, "ledger", "", "ledger base URL (e.g. http://127.0.0.1:8090)")

	root.AddCommand(initCmd(), fingerprintCmd(), tokenCmd(), momentCmd())
	return root.ExecuteContext(ctx)
}

func requirePassphrase() error {
	if passphrase == "" {
		return errPassphraseRequired
	}
	return nil
}

func tokenPass() string {
	if tokenPassphrase != "" {
		return tokenPassphrase
	}
	return passphrase
}
