package models

import (
	"encoding/json"
	"time"

	"passage/internal/envelope"
	"passage/internal/marker/store"
	"passage/pkg/transfer"
)

// MarkerResponse is an archived marker with its document inline.
type MarkerResponse struct {
	ID           string          `json:"id"`
	Kind         string          `json:"kind"`
	Subject      string          `json:"subject"`
	ExitMarkerID string          `json:"exitMarkerId,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
	Document     json.RawMessage `json:"document"`
}

func NewMarkerResponse(rec *store.Record) MarkerResponse {
	return MarkerResponse{
		ID:           rec.ID,
		Kind:         string(rec.Kind),
		Subject:      rec.Subject,
		ExitMarkerID: rec.ExitMarkerID,
		Timestamp:    rec.Timestamp,
		Document:     rec.Document,
	}
}

type MarkerListResponse struct {
	Markers []MarkerResponse `json:"markers"`
	Count   int              `json:"count"`
}

func NewMarkerListResponse(records []store.Record) MarkerListResponse {
	out := MarkerListResponse{Markers: make([]MarkerResponse, 0, len(records))}
	for i := range records {
		out.Markers = append(out.Markers, NewMarkerResponse(&records[i]))
	}
	out.Count = len(out.Markers)
	return out
}

type VerifyTransfersResponse struct {
	Results  []transfer.Record `json:"results"`
	Verified int               `json:"verified"`
	Failed   int               `json:"failed"`
}

func NewVerifyTransfersResponse(records []transfer.Record) VerifyTransfersResponse {
	resp := VerifyTransfersResponse{Results: records}
	for _, r := range records {
		if r.Verified {
			resp.Verified++
		} else {
			resp.Failed++
		}
	}
	return resp
}

type SealEnvelopeResponse struct {
	Token string `json:"token"`
}

// EnvelopeResponse is an opened envelope. Marker is the sealed document as
// it was signed.
type EnvelopeResponse struct {
	ID     string          `json:"id"`
	Kind   string          `json:"kind"`
	Issuer string          `json:"issuer"`
	Marker json.RawMessage `json:"marker"`
}

func NewEnvelopeResponse(env *envelope.Envelope) EnvelopeResponse {
	return EnvelopeResponse{
		ID:     env.ID(),
		Kind:   string(env.Kind),
		Issuer: env.Issuer,
		Marker: env.Raw,
	}
}
