package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"passage/internal/keystore"
	"passage/pkg/identity"
)

type keyInfo struct {
	DID      string `json:"did"`
	KeyID    string `json:"keyId"`
	Keystore string `json:"keystore"`
}

func (c *cli) keygenCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a signing identity and store it encrypted",
		Long: `Generate an Ed25519 identity and write it to the keystore, encrypted
with the passphrase read from --passphrase-env.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if keystore.Exists(c.keystorePath) && !force {
				return fmt.Errorf("keystore %s already exists: use --force to replace it", c.keystorePath)
			}
			pass, err := c.passphrase()
			if err != nil {
				return err
			}
			id, err := identity.Generate()
			if err != nil {
				return err
			}
			if err := keystore.Save(c.keystorePath, id, pass); err != nil {
				return err
			}
			c.status("%s identity written to %s", okFmt("created"), c.keystorePath)
			return c.render(keyInfo{DID: id.DID(), KeyID: id.KeyID(), Keystore: c.keystorePath})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Replace an existing keystore")
	return cmd
}

func (c *cli) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the DID held by the keystore",
		Long:  "Show the DID held by the keystore. The passphrase is not needed.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			did, err := keystore.DID(c.keystorePath)
			if err != nil {
				return err
			}
			return c.render(keyInfo{DID: did, KeyID: identity.KeyIDFromDID(did), Keystore: c.keystorePath})
		},
	}
}
