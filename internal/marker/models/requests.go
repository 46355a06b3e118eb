// Package models holds the HTTP request and response shapes of the marker
// API.
package models

import (
	"encoding/json"
	"strings"

	"passage/internal/marker/service"
	dErrors "passage/pkg/domain-errors"
	"passage/pkg/marker"
)

const (
	maxLabelLength    = 255
	maxFreeTextLength = 2000
	maxModules        = 16
	// MaxTransfersPerRequest bounds batch verification.
	MaxTransfersPerRequest = 100
	maxTokenLength         = 64 << 10
)

type CreateExitRequest struct {
	Origin        string                 `json:"origin"`
	ExitType      marker.ExitType        `json:"exitType,omitempty"`
	Reason        string                 `json:"reason,omitempty"`
	Justification string                 `json:"justification,omitempty"`
	Modules       map[string]*marker.Bag `json:"modules,omitempty"`
}

func (r *CreateExitRequest) Normalize() {
	if r == nil {
		return
	}
	r.Origin = strings.TrimSpace(r.Origin)
	r.ExitType = marker.ExitType(strings.TrimSpace(string(r.ExitType)))
	r.Reason = strings.TrimSpace(r.Reason)
	r.Justification = strings.TrimSpace(r.Justification)
}

// Follows validation order: Size -> Required -> Syntax -> Semantic.
func (r *CreateExitRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}

	if len(r.Origin) > maxLabelLength {
		return dErrors.New(dErrors.CodeValidation, "origin must be 255 characters or less")
	}
	if len(r.Reason) > maxFreeTextLength {
		return dErrors.New(dErrors.CodeValidation, "reason must be 2000 characters or less")
	}
	if len(r.Justification) > maxFreeTextLength {
		return dErrors.New(dErrors.CodeValidation, "justification must be 2000 characters or less")
	}
	if len(r.Modules) > maxModules {
		return dErrors.New(dErrors.CodeValidation, "at most 16 modules are allowed")
	}

	if r.Origin == "" {
		return dErrors.New(dErrors.CodeValidation, "origin is required")
	}

	if r.ExitType != "" && !r.ExitType.Valid() {
		return dErrors.Newf(dErrors.CodeValidation, "unrecognized exit type %q", r.ExitType)
	}
	for name, bag := range r.Modules {
		if strings.TrimSpace(name) == "" {
			return dErrors.New(dErrors.CodeValidation, "module names must not be empty")
		}
		if name == marker.ModuleMetadata {
			return dErrors.New(dErrors.CodeValidation, "metadata is built from reason and justification")
		}
		if bag == nil {
			return dErrors.Newf(dErrors.CodeValidation, "module %q must be an object", name)
		}
	}

	if r.ExitType == marker.ExitEmergency && r.Justification == "" {
		return dErrors.New(dErrors.CodeValidation, "justification is required for emergency exits")
	}
	return nil
}

func (r *CreateExitRequest) ToService() service.ExitRequest {
	return service.ExitRequest{
		Origin:        r.Origin,
		ExitType:      r.ExitType,
		Reason:        r.Reason,
		Justification: r.Justification,
		Modules:       r.Modules,
	}
}

type CreateArrivalRequest struct {
	ExitMarker  json.RawMessage `json:"exitMarker"`
	Destination string          `json:"destination"`
	Policy      string          `json:"policy,omitempty"`
}

func (r *CreateArrivalRequest) Normalize() {
	if r == nil {
		return
	}
	r.Destination = strings.TrimSpace(r.Destination)
	r.Policy = strings.ToUpper(strings.TrimSpace(r.Policy))
}

func (r *CreateArrivalRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if len(r.Destination) > maxLabelLength {
		return dErrors.New(dErrors.CodeValidation, "destination must be 255 characters or less")
	}
	if isEmptyDocument(r.ExitMarker) {
		return dErrors.New(dErrors.CodeValidation, "exitMarker is required")
	}
	if r.Destination == "" {
		return dErrors.New(dErrors.CodeValidation, "destination is required")
	}
	return nil
}

func (r *CreateArrivalRequest) ToService() service.ArrivalRequest {
	return service.ArrivalRequest{
		ExitMarker:  r.ExitMarker,
		Destination: r.Destination,
		Policy:      r.Policy,
	}
}

type EvaluateAdmissionRequest struct {
	ExitMarker json.RawMessage `json:"exitMarker"`
	Policy     string          `json:"policy,omitempty"`
}

func (r *EvaluateAdmissionRequest) Normalize() {
	if r == nil {
		return
	}
	r.Policy = strings.ToUpper(strings.TrimSpace(r.Policy))
}

func (r *EvaluateAdmissionRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if len(r.Policy) > maxLabelLength {
		return dErrors.New(dErrors.CodeValidation, "policy must be 255 characters or less")
	}
	if isEmptyDocument(r.ExitMarker) {
		return dErrors.New(dErrors.CodeValidation, "exitMarker is required")
	}
	return nil
}

type VerifyTransfersRequest struct {
	Transfers []service.TransferDocuments `json:"transfers"`
}

func (r *VerifyTransfersRequest) Normalize() {}

func (r *VerifyTransfersRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if len(r.Transfers) > MaxTransfersPerRequest {
		return dErrors.New(dErrors.CodeValidation, "at most 100 transfers per request")
	}
	if len(r.Transfers) == 0 {
		return dErrors.New(dErrors.CodeValidation, "transfers is required")
	}
	for i, t := range r.Transfers {
		if isEmptyDocument(t.Exit) || isEmptyDocument(t.Arrival) {
			return dErrors.Newf(dErrors.CodeValidation, "transfers[%d] needs exitMarker and arrivalMarker", i)
		}
	}
	return nil
}

type OpenEnvelopeRequest struct {
	Token string `json:"token"`
}

func (r *OpenEnvelopeRequest) Normalize() {
	if r == nil {
		return
	}
	r.Token = strings.TrimSpace(r.Token)
}

// Follows validation order: Size -> Required -> Syntax -> Semantic.
func (r *OpenEnvelopeRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if len(r.Token) > maxTokenLength {
		return dErrors.New(dErrors.CodeValidation, "token is too large")
	}
	if r.Token == "" {
		return dErrors.New(dErrors.CodeValidation, "token is required")
	}
	if strings.Count(r.Token, ".") != 2 {
		return dErrors.New(dErrors.CodeValidation, "token must be a compact JWS")
	}
	return nil
}

func isEmptyDocument(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s == "" || s == "null"
}
