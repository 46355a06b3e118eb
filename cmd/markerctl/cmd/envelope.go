package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"passage/internal/envelope"
)

type sealedInfo struct {
	Token string `json:"token"`
}

type openedInfo struct {
	Kind   string `json:"kind"`
	Issuer string `json:"issuer"`
	ID     string `json:"id"`
	Marker any    `json:"marker"`
}

func (c *cli) sealCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seal <marker.json|->",
		Short: "Wrap a marker in a signed envelope token",
		Long: `Wrap an EXIT or ARRIVAL marker in a compact EdDSA token signed by the
keystore identity, for transports that carry bearer strings.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := c.readInput(args[0])
			if err != nil {
				return err
			}
			signer, err := c.signer()
			if err != nil {
				return err
			}
			token, err := envelope.Seal(data, signer)
			if err != nil {
				return err
			}
			return c.render(sealedInfo{Token: token})
		},
	}
}

func (c *cli) openCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open <token|token-file|->",
		Short: "Verify an envelope token and print the marker inside",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := c.token(args[0])
			if err != nil {
				return err
			}
			env, err := envelope.Open(token)
			if err != nil {
				return err
			}
			info := openedInfo{Kind: string(env.Kind), Issuer: env.Issuer, ID: env.ID(), Marker: env.Raw}
			c.status("%s %s envelope from %s", okFmt("opened"), env.Kind, dimFmt(env.Issuer))
			return c.render(info)
		},
	}
}

// token accepts the token itself, a file holding it, or "-" for stdin.
func (c *cli) token(arg string) (string, error) {
	if strings.Count(arg, ".") == 2 && !strings.ContainsAny(arg, "/\\") {
		return arg, nil
	}
	data, err := c.readInput(arg)
	if err != nil {
		return "", err
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", fmt.Errorf("no token in %s", arg)
	}
	return token, nil
}
