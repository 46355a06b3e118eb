// Package cmd implements the markerctl CLI commands.
package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"passage/internal/keystore"
	dErrors "passage/pkg/domain-errors"
	"passage/pkg/identity"
	"passage/pkg/marker"
)

// Version is set at build time.
var Version = "0.1.0"

const (
	defaultKeystore      = "passage.key"
	defaultPassphraseEnv = "PASSAGE_KEYSTORE_PASSPHRASE"
)

var (
	okFmt   = color.New(color.FgGreen).SprintFunc()
	warnFmt = color.New(color.FgYellow).SprintFunc()
	errFmt  = color.New(color.FgRed, color.Bold).SprintFunc()
	dimFmt  = color.New(color.Faint).SprintFunc()
)

// cli carries global flag values and the streams commands write to.
type cli struct {
	outputFormat  string
	keystorePath  string
	passphraseEnv string

	in     io.Reader
	out    io.Writer
	errOut io.Writer
	getenv func(string) string
}

// Execute runs the root command against the process streams.
func Execute() error {
	return newRootCmd(os.Stdin, os.Stdout, os.Stderr, os.Getenv).Execute()
}

func newRootCmd(in io.Reader, out, errOut io.Writer, getenv func(string) string) *cobra.Command {
	c := &cli{in: in, out: out, errOut: errOut, getenv: getenv}

	root := &cobra.Command{
		Use:   "markerctl",
		Short: "Sign, verify and admit agent EXIT and ARRIVAL markers",
		Long: `markerctl works with EXIT and ARRIVAL markers offline.

It creates a keystore for the signing identity, signs departures and
arrivals, verifies documents, evaluates admission policies, checks
transfers and wraps markers in signed envelopes.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			switch c.outputFormat {
			case "json", "yaml":
				return nil
			default:
				return fmt.Errorf("unsupported output format %q: use json or yaml", c.outputFormat)
			}
		},
	}
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	root.PersistentFlags().StringVarP(&c.outputFormat, "output", "o", "json", "Output format: json, yaml")
	root.PersistentFlags().StringVar(&c.keystorePath, "keystore", defaultKeystore, "Path to the encrypted identity keystore")
	root.PersistentFlags().StringVar(&c.passphraseEnv, "passphrase-env", defaultPassphraseEnv, "Environment variable holding the keystore passphrase")

	root.AddCommand(
		c.keygenCmd(),
		c.whoamiCmd(),
		c.exitCmd(),
		c.arriveCmd(),
		c.verifyCmd(),
		c.admitCmd(),
		c.policiesCmd(),
		c.transferCmd(),
		c.sealCmd(),
		c.openCmd(),
	)

	return withErrorReport(root, c)
}

// withErrorReport prints failures in red before returning them to main.
func withErrorReport(root *cobra.Command, c *cli) *cobra.Command {
	for _, sub := range root.Commands() {
		run := sub.RunE
		if run == nil {
			continue
		}
		sub.RunE = func(cmd *cobra.Command, args []string) error {
			err := run(cmd, args)
			if err != nil && !errors.Is(err, errInvalid) && !errors.Is(err, errNotAdmitted) {
				fmt.Fprintf(c.errOut, "%s %s\n", errFmt("error:"), message(err))
			}
			return err
		}
	}
	return root
}

// message prefers the domain error's client message over the wrapped chain.
func message(err error) string {
	if msg := dErrors.ClientMessage(err); msg != "" {
		return msg
	}
	return err.Error()
}

func (c *cli) passphrase() (string, error) {
	p := c.getenv(c.passphraseEnv)
	if p == "" {
		return "", fmt.Errorf("keystore passphrase not set: export %s", c.passphraseEnv)
	}
	return p, nil
}

// signer loads the keystore identity.
func (c *cli) signer() (*identity.Identity, error) {
	p, err := c.passphrase()
	if err != nil {
		return nil, err
	}
	return keystore.Load(c.keystorePath, p)
}

// readInput reads a document from a file path, or stdin when path is "-".
func (c *cli) readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(c.in)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// render writes data in the selected format. Values are routed through
// their JSON form so YAML output uses the same field names.
func (c *cli) render(data any) error {
	raw, err := marker.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	switch c.outputFormat {
	case "yaml":
		var generic any
		if err := json.Unmarshal(raw, &generic); err != nil {
			return fmt.Errorf("encode output: %w", err)
		}
		out, err := yaml.Marshal(generic)
		if err != nil {
			return fmt.Errorf("encode output: %w", err)
		}
		_, err = c.out.Write(out)
		return err
	default:
		enc := marker.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(json.RawMessage(raw))
	}
}

// status prints a human-facing line to stderr so stdout stays parseable.
func (c *cli) status(format string, args ...any) {
	fmt.Fprintf(c.errOut, format+"\n", args...)
}
