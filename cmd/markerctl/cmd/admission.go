package cmd

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"passage/pkg/admission"
	"passage/pkg/marker"
	pstrings "passage/pkg/platform/strings"
)

var errNotAdmitted = errors.New("marker not admitted")

func (c *cli) admitCmd() *cobra.Command {
	var (
		policyName           string
		requireJustification bool
		admitKeyCompromise   bool
		blockedOrigins       []string
		requiredModules      []string
		maxAge               time.Duration
	)
	cmd := &cobra.Command{
		Use:   "admit <exit-marker.json|->",
		Short: "Evaluate an EXIT marker against an admission policy",
		Long: `Evaluate an EXIT marker against a preset policy, optionally tightened
with extra conditions. Exits non-zero unless the marker is admitted.`,
		Example: `  markerctl admit --policy STRICT exit.json
  markerctl admit --block-origin rogue-platform --max-age 24h exit.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := admission.Preset(policyName)
			if err != nil {
				return err
			}
			policy.RequireJustification = policy.RequireJustification || requireJustification
			policy.AdmitKeyCompromise = policy.AdmitKeyCompromise || admitKeyCompromise
			policy.BlockedOrigins = pstrings.DedupeAndTrim(append(policy.BlockedOrigins, blockedOrigins...))
			policy.RequiredModules = pstrings.DedupeAndTrim(append(policy.RequiredModules, requiredModules...))
			if maxAge > 0 {
				policy.MaxAge = maxAge
			}

			data, err := c.readInput(args[0])
			if err != nil {
				return err
			}
			decision := admission.EvaluateAt(marker.ParseExit(data).Value, policy, time.Now())
			if err := c.render(decision); err != nil {
				return err
			}
			switch decision.Outcome {
			case admission.OutcomeAdmitted:
				c.status("%s under %s", okFmt("admitted"), policy.Name)
				return nil
			case admission.OutcomeInvalid:
				c.status("%s %s", errFmt("invalid"), joinCodes(decision.Errors))
			default:
				c.status("%s %s", warnFmt("denied"), decision.Reason)
			}
			return errNotAdmitted
		},
	}
	cmd.Flags().StringVar(&policyName, "policy", admission.NameOpenDoor, "Preset policy: OPEN_DOOR, STRICT, EMERGENCY_ONLY")
	cmd.Flags().BoolVar(&requireJustification, "require-justification", false, "Deny departures without a justification")
	cmd.Flags().BoolVar(&admitKeyCompromise, "admit-key-compromise", false, "Admit valid keyCompromise departures before other checks")
	cmd.Flags().StringArrayVar(&blockedOrigins, "block-origin", nil, "Deny departures from this origin (repeatable)")
	cmd.Flags().StringArrayVar(&requiredModules, "require-module", nil, "Deny departures missing this module (repeatable)")
	cmd.Flags().DurationVar(&maxAge, "max-age", 0, "Deny departures older than this")
	return cmd
}

type policyInfo struct {
	Name                 string   `json:"name"`
	AllowedExitTypes     []string `json:"allowedExitTypes"`
	RequireJustification bool     `json:"requireJustification"`
	AdmitKeyCompromise   bool     `json:"admitKeyCompromise"`
}

func (c *cli) policiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "policies",
		Short: "List the preset admission policies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			presets := admission.Presets()
			out := make([]policyInfo, 0, len(presets))
			for _, p := range presets {
				types := make([]string, 0, len(p.AllowedExitTypes))
				for _, t := range p.AllowedExitTypes {
					types = append(types, t.String())
				}
				out = append(out, policyInfo{
					Name:                 p.Name,
					AllowedExitTypes:     types,
					RequireJustification: p.RequireJustification,
					AdmitKeyCompromise:   p.AdmitKeyCompromise,
				})
			}
			return c.render(out)
		},
	}
}
