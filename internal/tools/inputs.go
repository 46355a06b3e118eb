package tools

import (
	"strings"

	dErrors "passage/pkg/domain-errors"
	"passage/pkg/marker"
)

const (
	maxLabelLength    = 255
	maxFreeTextLength = 2000
	maxDocumentLength = 1 << 20
)

// CreateExitInput is the input of create_exit_marker.
type CreateExitInput struct {
	Origin                 string `json:"origin"`
	ExitType               string `json:"exitType,omitempty"`
	Reason                 string `json:"reason,omitempty"`
	EmergencyJustification string `json:"emergencyJustification,omitempty"`
}

func (in *CreateExitInput) Normalize() {
	if in == nil {
		return
	}
	in.Origin = strings.TrimSpace(in.Origin)
	in.ExitType = strings.TrimSpace(in.ExitType)
	in.Reason = strings.TrimSpace(in.Reason)
	in.EmergencyJustification = strings.TrimSpace(in.EmergencyJustification)
}

// Follows validation order: Size -> Required -> Syntax -> Semantic.
func (in *CreateExitInput) Validate() error {
	if in == nil {
		return dErrors.New(dErrors.CodeBadRequest, "input is required")
	}
	if len(in.Origin) > maxLabelLength {
		return dErrors.New(dErrors.CodeValidation, "origin must be 255 characters or less")
	}
	if len(in.Reason) > maxFreeTextLength || len(in.EmergencyJustification) > maxFreeTextLength {
		return dErrors.New(dErrors.CodeValidation, "reason and justification must be 2000 characters or less")
	}
	if in.Origin == "" {
		return dErrors.New(dErrors.CodeValidation, "origin is required")
	}
	if in.ExitType != "" {
		if _, err := marker.ParseExitType(in.ExitType); err != nil {
			return dErrors.New(dErrors.CodeValidation, "exitType must be one of voluntary, forced, emergency, keyCompromise")
		}
	}
	if marker.ExitType(in.ExitType) == marker.ExitEmergency && in.EmergencyJustification == "" {
		return dErrors.New(dErrors.CodeValidation, "emergencyJustification is required for emergency exits")
	}
	return nil
}

// ArrivalInput is the input of verify_and_create_arrival.
type ArrivalInput struct {
	ExitMarkerJSON string `json:"exitMarkerJson"`
	Destination    string `json:"destination"`
}

func (in *ArrivalInput) Normalize() {
	if in == nil {
		return
	}
	in.Destination = strings.TrimSpace(in.Destination)
}

func (in *ArrivalInput) Validate() error {
	if in == nil {
		return dErrors.New(dErrors.CodeBadRequest, "input is required")
	}
	if len(in.ExitMarkerJSON) > maxDocumentLength {
		return dErrors.New(dErrors.CodeValidation, "exitMarkerJson is too large")
	}
	if len(in.Destination) > maxLabelLength {
		return dErrors.New(dErrors.CodeValidation, "destination must be 255 characters or less")
	}
	if strings.TrimSpace(in.ExitMarkerJSON) == "" {
		return dErrors.New(dErrors.CodeValidation, "exitMarkerJson is required")
	}
	if in.Destination == "" {
		return dErrors.New(dErrors.CodeValidation, "destination is required")
	}
	return nil
}

// AdmissionInput is the input of evaluate_admission_policy.
type AdmissionInput struct {
	ExitMarkerJSON string `json:"exitMarkerJson"`
	Policy         string `json:"policy"`
}

func (in *AdmissionInput) Normalize() {
	if in == nil {
		return
	}
	in.Policy = strings.ToUpper(strings.TrimSpace(in.Policy))
}

func (in *AdmissionInput) Validate() error {
	if in == nil {
		return dErrors.New(dErrors.CodeBadRequest, "input is required")
	}
	if len(in.ExitMarkerJSON) > maxDocumentLength {
		return dErrors.New(dErrors.CodeValidation, "exitMarkerJson is too large")
	}
	if strings.TrimSpace(in.ExitMarkerJSON) == "" {
		return dErrors.New(dErrors.CodeValidation, "exitMarkerJson is required")
	}
	if in.Policy == "" {
		return dErrors.New(dErrors.CodeValidation, "policy is required")
	}
	return nil
}

// TransferInput is the input of verify_transfer.
type TransferInput struct {
	ExitMarkerJSON    string `json:"exitMarkerJson"`
	ArrivalMarkerJSON string `json:"arrivalMarkerJson"`
}

func (in *TransferInput) Normalize() {}

func (in *TransferInput) Validate() error {
	if in == nil {
		return dErrors.New(dErrors.CodeBadRequest, "input is required")
	}
	if len(in.ExitMarkerJSON) > maxDocumentLength || len(in.ArrivalMarkerJSON) > maxDocumentLength {
		return dErrors.New(dErrors.CodeValidation, "marker documents are too large")
	}
	if strings.TrimSpace(in.ExitMarkerJSON) == "" || strings.TrimSpace(in.ArrivalMarkerJSON) == "" {
		return dErrors.New(dErrors.CodeValidation, "exitMarkerJson and arrivalMarkerJson are required")
	}
	return nil
}
