// Package tools exposes marker operations as named actions with JSON input
// and output, for agent frameworks that call tools by name.
package tools

import (
	"context"
	"encoding/json"
	"sort"

	"passage/internal/marker/service"
	"passage/pkg/admission"
	dErrors "passage/pkg/domain-errors"
	"passage/pkg/entry"
	"passage/pkg/marker"
	"passage/pkg/platform/httputil"
	"passage/pkg/transfer"
)

// Tool names.
const (
	CreateExitMarker        = "create_exit_marker"
	VerifyAndCreateArrival  = "verify_and_create_arrival"
	EvaluateAdmissionPolicy = "evaluate_admission_policy"
	VerifyTransfer          = "verify_transfer"
)

// Backend is the marker service surface the tools call.
type Backend interface {
	CreateExit(ctx context.Context, req service.ExitRequest) (*marker.ExitMarker, error)
	CreateArrival(ctx context.Context, req service.ArrivalRequest) (*entry.Result, error)
	EvaluateAdmission(ctx context.Context, exitJSON []byte, policy string) (admission.Decision, error)
	VerifyTransfer(ctx context.Context, exitJSON, arrivalJSON []byte) transfer.Record
}

// Invoker runs a tool on raw JSON input.
type Invoker func(ctx context.Context, input json.RawMessage) (json.RawMessage, error)

// Tool is a named action.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
	Invoke      Invoker         `json:"-"`
}

// ArrivalOutput is what verify_and_create_arrival returns.
type ArrivalOutput struct {
	ArrivalMarker *marker.ArrivalMarker  `json:"arrivalMarker"`
	ExitMarkerID  string                 `json:"exitMarkerId"`
	Continuity    entry.ContinuityRecord `json:"continuity"`
}

// Registry holds the tools by name.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry builds the four marker tools over backend.
func NewRegistry(backend Backend) *Registry {
	r := &Registry{tools: make(map[string]Tool)}
	r.add(Tool{
		Name: CreateExitMarker,
		Description: "Create a cryptographically signed EXIT marker, a verifiable departure record " +
			"for an agent leaving a platform or system.",
		InputSchema: createExitSchema,
		Invoke: typed(func(ctx context.Context, in *CreateExitInput) (any, error) {
			return backend.CreateExit(ctx, service.ExitRequest{
				Origin:        in.Origin,
				ExitType:      marker.ExitType(in.ExitType),
				Reason:        in.Reason,
				Justification: in.EmergencyJustification,
			})
		}),
	})
	r.add(Tool{
		Name: VerifyAndCreateArrival,
		Description: "Verify a signed EXIT marker and create a linked arrival marker at this destination. " +
			"Returns the signed arrival marker with continuity verification.",
		InputSchema: arrivalSchema,
		Invoke: typed(func(ctx context.Context, in *ArrivalInput) (any, error) {
			res, err := backend.CreateArrival(ctx, service.ArrivalRequest{
				ExitMarker:  []byte(in.ExitMarkerJSON),
				Destination: in.Destination,
			})
			if err != nil {
				return nil, err
			}
			return ArrivalOutput{
				ArrivalMarker: res.Arrival,
				ExitMarkerID:  res.Exit.ID,
				Continuity:    res.Continuity,
			}, nil
		}),
	})
	r.add(Tool{
		Name: EvaluateAdmissionPolicy,
		Description: "Evaluate whether an EXIT departure marker meets an admission policy. " +
			"Does not create an arrival.",
		InputSchema: admissionSchema,
		Invoke: typed(func(ctx context.Context, in *AdmissionInput) (any, error) {
			return backend.EvaluateAdmission(ctx, []byte(in.ExitMarkerJSON), in.Policy)
		}),
	})
	r.add(Tool{
		Name:        VerifyTransfer,
		Description: "Verify a complete EXIT to ARRIVAL transfer: both markers' signatures and their continuity.",
		InputSchema: transferSchema,
		Invoke: typed(func(ctx context.Context, in *TransferInput) (any, error) {
			return backend.VerifyTransfer(ctx, []byte(in.ExitMarkerJSON), []byte(in.ArrivalMarkerJSON)), nil
		}),
	})
	return r
}

func (r *Registry) add(t Tool) {
	r.tools[t.Name] = t
}

// List returns the tools sorted by name.
func (r *Registry) List() []Tool {
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Get looks up a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Invoke runs the named tool.
func (r *Registry) Invoke(ctx context.Context, name string, input json.RawMessage) (json.RawMessage, error) {
	t, ok := r.Get(name)
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeUnknownTool, "unknown tool %q", name)
	}
	return t.Invoke(ctx, input)
}

// typed decodes and prepares the input DTO before calling fn, then encodes
// its result.
func typed[T any, PT interface {
	*T
	httputil.Preparable
}](fn func(context.Context, *T) (any, error)) Invoker {
	return func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
		in := PT(new(T))
		if len(input) == 0 {
			input = json.RawMessage(`{}`)
		}
		if err := json.Unmarshal(input, in); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "tool input is not a valid JSON object")
		}
		in.Normalize()
		if err := in.Validate(); err != nil {
			return nil, err
		}
		out, err := fn(ctx, (*T)(in))
		if err != nil {
			return nil, err
		}
		encoded, err := marker.Marshal(out)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode tool output")
		}
		return encoded, nil
	}
}
