package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"passage/pkg/domain"
	"passage/pkg/entry"
	"passage/pkg/exit"
	"passage/pkg/marker"
)

// errInvalid signals a document that failed verification. The result has
// already been rendered.
var errInvalid = errors.New("document failed verification")

func (c *cli) exitCmd() *cobra.Command {
	var (
		origin        string
		exitType      string
		reason        string
		justification string
		modules       []string
	)
	cmd := &cobra.Command{
		Use:   "exit",
		Short: "Sign an EXIT marker for the keystore identity",
		Example: `  markerctl exit --origin platform-a --reason "migrating"
  markerctl exit --origin platform-a --type emergency --justification "host compromised"
  markerctl exit --origin platform-a --module session=session.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			signer, err := c.signer()
			if err != nil {
				return err
			}
			var opts []exit.Option
			for _, arg := range modules {
				name, bag, err := c.readModule(arg)
				if err != nil {
					return err
				}
				opts = append(opts, exit.WithModule(name, bag))
			}
			m, err := exit.Create(signer, origin, marker.ExitType(exitType), exit.Metadata(reason, justification), opts...)
			if err != nil {
				return err
			}
			c.status("%s %s %s", okFmt("signed"), m.ExitType, dimFmt(m.ID))
			return c.render(m)
		},
	}
	cmd.Flags().StringVar(&origin, "origin", "", "Platform the agent is leaving")
	cmd.Flags().StringVar(&exitType, "type", string(marker.ExitVoluntary), "Exit type: voluntary, forced, emergency, keyCompromise")
	cmd.Flags().StringVar(&reason, "reason", "", "Free-text reason for departure")
	cmd.Flags().StringVar(&justification, "justification", "", "Justification, required for emergency exits")
	cmd.Flags().StringArrayVar(&modules, "module", nil, "Extra module as name=file.json (repeatable)")
	_ = cmd.MarkFlagRequired("origin")
	return cmd
}

// readModule loads a name=path module flag into a bag.
func (c *cli) readModule(arg string) (string, *marker.Bag, error) {
	name, path, ok := strings.Cut(arg, "=")
	if !ok || name == "" || path == "" {
		return "", nil, fmt.Errorf("invalid --module %q: want name=file.json", arg)
	}
	if name == marker.ModuleMetadata {
		return "", nil, fmt.Errorf("module %q is reserved: use --reason and --justification", name)
	}
	data, err := c.readInput(path)
	if err != nil {
		return "", nil, err
	}
	bag := marker.NewBag()
	if err := json.Unmarshal(data, bag); err != nil {
		return "", nil, fmt.Errorf("module %s: %w", name, err)
	}
	return name, bag, nil
}

func (c *cli) arriveCmd() *cobra.Command {
	var destination string
	cmd := &cobra.Command{
		Use:   "arrive <exit-marker.json|->",
		Short: "Verify an EXIT marker and sign the matching ARRIVAL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := c.readInput(args[0])
			if err != nil {
				return err
			}
			signer, err := c.signer()
			if err != nil {
				return err
			}
			res, err := entry.QuickEntry(data, destination, signer)
			if err != nil {
				var invalid *entry.InvalidExitMarkerError
				if errors.As(err, &invalid) {
					c.status("%s exit marker rejected: %s", errFmt("invalid"), joinCodes(invalid.Codes))
				}
				return err
			}
			if !res.Continuity.Valid {
				c.status("%s continuity: %v", warnFmt("warning"), res.Continuity.Reasons)
			}
			c.status("%s arrival %s", okFmt("signed"), dimFmt(res.Arrival.ID))
			return c.render(res)
		},
	}
	cmd.Flags().StringVar(&destination, "destination", "", "Platform the agent is arriving at")
	_ = cmd.MarkFlagRequired("destination")
	return cmd
}

func (c *cli) verifyCmd() *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "verify <marker.json|->",
		Short: "Verify an EXIT or ARRIVAL marker",
		Long: `Verify a marker document. The kind is read from the document's
id unless --kind is given. Exits non-zero when verification fails.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := c.readInput(args[0])
			if err != nil {
				return err
			}
			if kind == "" {
				kind = detectKind(data)
			}
			var res marker.Result
			switch kind {
			case "arrival":
				res = entry.VerifyArrivalJSON(data)
			case "exit":
				res = exit.VerifyJSON(data)
			default:
				return fmt.Errorf("unknown marker kind %q: use exit or arrival", kind)
			}
			if err := c.render(res); err != nil {
				return err
			}
			if !res.Valid {
				c.status("%s %s", errFmt("invalid"), joinCodes(res.Errors))
				return errInvalid
			}
			c.status("%s", okFmt("valid"))
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "Marker kind: exit or arrival")
	return cmd
}

// detectKind reads the kind from the document id, falling back to exit so
// parse failures are reported by the EXIT reader.
func detectKind(data []byte) string {
	var head struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return string(domain.MarkerKindExit)
	}
	id, err := domain.ParseMarkerID(head.ID)
	if err != nil {
		return string(domain.MarkerKindExit)
	}
	return string(id.Kind)
}

func joinCodes(codes []marker.Code) string {
	parts := make([]string, len(codes))
	for i, code := range codes {
		parts[i] = string(code)
	}
	return strings.Join(parts, ", ")
}
