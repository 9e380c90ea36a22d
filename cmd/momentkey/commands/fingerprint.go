package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"momentkey/internal/domain"
)

// fingerprintCmd prints the coordinator key and the issuer its tokens chain
// to, for comparison out of band.
func fingerprintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fingerprint",
		Short: "Print coordinator and issuer fingerprints",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			fp, err := appCtx.Identity.FingerprintIdentity(passphrase)
			if err != nil {
				return err
			}
			fmt.Printf("Fingerprint: %s\n", fp)

			issuer, err := appCtx.Identity.FingerprintIssuer()
			switch {
			case errors.Is(err, domain.ErrNotFound):
				fmt.Println("Issuer fingerprint: none (run init)")
			case err != nil:
				return err
			default:
				fmt.Printf("Issuer fingerprint: %s\n", issuer)
			}
			return nil
		},
	}
}
