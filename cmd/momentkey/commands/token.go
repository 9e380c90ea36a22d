package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"momentkey/internal/crypto"
)

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage simulated presence tokens",
	}
	cmd.AddCommand(tokenProvisionCmd(), tokenListCmd())
	return cmd
}

func tokenProvisionCmd() *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Issue new token identities signed by the issuer",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			for i := 0; i < count; i++ {
				id, err := appCtx.Identity.ProvisionToken(passphrase, tokenPass())
				if err != nil {
					return err
				}
				fmt.Printf("%s  %s\n", id.TokenID, crypto.Pseudonym(id.TokenID, id.PublicKey))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 1, "number of tokens to provision")
	return cmd
}

func tokenListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List provisioned tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := appCtx.Identity.Tokens()
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Printf("%s  %s  fp=%s\n", id.TokenID, crypto.Pseudonym(id.TokenID, id.PublicKey), crypto.Fingerprint(id.PublicKey[:]))
			}
			return nil
		},
	}
}
