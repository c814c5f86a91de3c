package commands

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DarkoDimitrov/Cloud-Resource-Manager/pkg/crypto"
)

func newKeygenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate a credential encryption key",
		Long: `Generate a random 32-byte key for sealing provider credentials at rest.
Store it in the CRM_ENCRYPTION_KEY environment variable or under
encryption.key_hex in the config file. Losing the key makes every stored
credential unreadable.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := crypto.GenerateKey()
			if err != nil {
				return err
			}
			fmt.Println(hex.EncodeToString(key))
			return nil
		},
	}
}
