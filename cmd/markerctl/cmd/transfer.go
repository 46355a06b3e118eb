package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"passage/pkg/transfer"
)

func (c *cli) transferCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transfer <exit-marker.json> <arrival-marker.json>",
		Short: "Verify a departure, its arrival and their continuity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			exitJSON, err := c.readInput(args[0])
			if err != nil {
				return err
			}
			arrivalJSON, err := c.readInput(args[1])
			if err != nil {
				return err
			}
			rec := transfer.VerifyJSON(exitJSON, arrivalJSON)
			if err := c.render(rec); err != nil {
				return err
			}
			if !rec.Verified {
				for _, e := range rec.Errors {
					c.status("%s %s", errFmt("failed"), e)
				}
				return errInvalid
			}
			c.status("%s transfer at %s", okFmt("verified"), rec.TransferTime.UTC().Format(time.RFC3339))
			return nil
		},
	}
}
