package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"momentkey/internal/crypto"
	"momentkey/internal/domain"
)

var errPassphraseRequired = errors.New("passphrase required (-p)")

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Generate the coordinator identity and the token issuer",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			_, fp, err := appCtx.Identity.GenerateIdentity(passphrase)
			if err != nil {
				return err
			}
			fmt.Printf("Identity created.\nFingerprint: %s\n", fp)

			pub, err := appCtx.Identity.CreateIssuer(passphrase)
			switch {
			case errors.Is(err, domain.ErrAlreadyExists):
				fmt.Println("Issuer already present.")
			case err != nil:
				return err
			default:
				fmt.Printf("Issuer created.\nIssuer fingerprint: %s\n", crypto.Fingerprint(pub[:]))
			}
			return nil
		},
	}
}
