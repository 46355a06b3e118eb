package tools

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"passage/internal/marker/service"
	"passage/pkg/admission"
	dErrors "passage/pkg/domain-errors"
	"passage/pkg/exit"
	"passage/pkg/identity"
	"passage/pkg/marker"
	"passage/pkg/transfer"
)

func newRegistry(t *testing.T) (*Registry, *identity.Identity) {
	t.Helper()
	signer := identity.MustGenerate()
	svc, err := service.New(signer, service.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	return NewRegistry(svc), signer
}

func invoke(t *testing.T, r *Registry, name string, input any) (json.RawMessage, error) {
	t.Helper()
	raw, err := json.Marshal(input)
	require.NoError(t, err)
	return r.Invoke(context.Background(), name, raw)
}

func foreignExitJSON(t *testing.T, exitType marker.ExitType) string {
	t.Helper()
	meta := exit.Metadata("", "")
	if exitType == marker.ExitEmergency {
		meta = exit.Metadata("", "host on fire")
	}
	m, err := exit.Create(identity.MustGenerate(), "platform-a", exitType, meta,
		exit.WithClock(func() time.Time { return time.Now().Add(-time.Minute) }))
	require.NoError(t, err)
	data, err := json.Marshal(m)
	require.NoError(t, err)
	return string(data)
}

func Test_List(t *testing.T) {
	r, _ := newRegistry(t)
	var names []string
	for _, tool := range r.List() {
		names = append(names, tool.Name)
		assert.NotEmpty(t, tool.Description)
		assert.True(t, json.Valid(tool.InputSchema), tool.Name)
	}
	assert.Equal(t, []string{CreateExitMarker, EvaluateAdmissionPolicy, VerifyAndCreateArrival, VerifyTransfer}, names)
}

func Test_Invoke_UnknownTool(t *testing.T) {
	r, _ := newRegistry(t)
	_, err := r.Invoke(context.Background(), "delete_everything", nil)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnknownTool))
}

func Test_Invoke_BadJSON(t *testing.T) {
	r, _ := newRegistry(t)
	_, err := r.Invoke(context.Background(), CreateExitMarker, json.RawMessage(`[1,2]`))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func Test_CreateExitMarker(t *testing.T) {
	r, signer := newRegistry(t)

	t.Run("defaults to voluntary", func(t *testing.T) {
		out, err := invoke(t, r, CreateExitMarker, CreateExitInput{Origin: " platform-a ", Reason: "moving on"})
		require.NoError(t, err)

		res := exit.VerifyJSON(out)
		assert.True(t, res.Valid, res.Errors)
		var m marker.ExitMarker
		require.NoError(t, json.Unmarshal(out, &m))
		assert.Equal(t, marker.ExitVoluntary, m.ExitType)
		assert.Equal(t, "platform-a", m.Origin)
		assert.Equal(t, signer.DID(), m.Subject)
		assert.Equal(t, "moving on", m.Reason())
	})

	t.Run("emergency carries its justification", func(t *testing.T) {
		out, err := invoke(t, r, CreateExitMarker, CreateExitInput{
			Origin:                 "platform-a",
			ExitType:               "emergency",
			EmergencyJustification: "credentials leaked",
		})
		require.NoError(t, err)
		var m marker.ExitMarker
		require.NoError(t, json.Unmarshal(out, &m))
		assert.Equal(t, "credentials leaked", m.Justification())
	})

	tests := []struct {
		name  string
		input CreateExitInput
	}{
		{"missing origin", CreateExitInput{}},
		{"unknown exit type", CreateExitInput{Origin: "a", ExitType: "rage_quit"}},
		{"emergency without justification", CreateExitInput{Origin: "a", ExitType: "emergency"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := invoke(t, r, CreateExitMarker, tt.input)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		})
	}
}

func Test_VerifyAndCreateArrival(t *testing.T) {
	r, signer := newRegistry(t)
	exitJSON := foreignExitJSON(t, marker.ExitVoluntary)

	out, err := invoke(t, r, VerifyAndCreateArrival, ArrivalInput{ExitMarkerJSON: exitJSON, Destination: "platform-b"})
	require.NoError(t, err)

	var got ArrivalOutput
	require.NoError(t, json.Unmarshal(out, &got))
	require.NotNil(t, got.ArrivalMarker)
	assert.Equal(t, got.ExitMarkerID, got.ArrivalMarker.ExitMarkerID)
	assert.Equal(t, "platform-b", got.ArrivalMarker.Destination)
	assert.Equal(t, signer.DID(), got.ArrivalMarker.Attester)
	assert.True(t, got.Continuity.Valid)

	t.Run("rejects an invalid departure", func(t *testing.T) {
		_, err := invoke(t, r, VerifyAndCreateArrival, ArrivalInput{ExitMarkerJSON: `{"id":"x"}`, Destination: "platform-b"})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidExitMarker))
	})

	t.Run("requires destination", func(t *testing.T) {
		_, err := invoke(t, r, VerifyAndCreateArrival, ArrivalInput{ExitMarkerJSON: exitJSON})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func Test_EvaluateAdmissionPolicy(t *testing.T) {
	r, _ := newRegistry(t)

	tests := []struct {
		name     string
		exitType marker.ExitType
		policy   string
		admitted bool
	}{
		{"open door admits forced", marker.ExitForced, "OPEN_DOOR", true},
		{"strict admits voluntary", marker.ExitVoluntary, "strict", true},
		{"strict denies forced", marker.ExitForced, "STRICT", false},
		{"emergency only denies voluntary", marker.ExitVoluntary, "EMERGENCY_ONLY", false},
		{"emergency only admits emergency", marker.ExitEmergency, "EMERGENCY_ONLY", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := invoke(t, r, EvaluateAdmissionPolicy, AdmissionInput{
				ExitMarkerJSON: foreignExitJSON(t, tt.exitType),
				Policy:         tt.policy,
			})
			require.NoError(t, err)
			var d admission.Decision
			require.NoError(t, json.Unmarshal(out, &d))
			assert.Equal(t, tt.admitted, d.Admitted)
			assert.Equal(t, strings.ToUpper(tt.policy), d.Policy)
		})
	}

	t.Run("unknown policy", func(t *testing.T) {
		_, err := invoke(t, r, EvaluateAdmissionPolicy, AdmissionInput{
			ExitMarkerJSON: foreignExitJSON(t, marker.ExitVoluntary),
			Policy:         "VIP",
		})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnknownPolicy))
	})
}

func Test_VerifyTransfer(t *testing.T) {
	r, _ := newRegistry(t)
	exitJSON := foreignExitJSON(t, marker.ExitVoluntary)
	out, err := invoke(t, r, VerifyAndCreateArrival, ArrivalInput{ExitMarkerJSON: exitJSON, Destination: "platform-b"})
	require.NoError(t, err)
	var arrival ArrivalOutput
	require.NoError(t, json.Unmarshal(out, &arrival))
	arrivalJSON, err := json.Marshal(arrival.ArrivalMarker)
	require.NoError(t, err)

	out, err = invoke(t, r, VerifyTransfer, TransferInput{ExitMarkerJSON: exitJSON, ArrivalMarkerJSON: string(arrivalJSON)})
	require.NoError(t, err)
	var rec transfer.Record
	require.NoError(t, json.Unmarshal(out, &rec))
	assert.True(t, rec.Verified)
	assert.NotNil(t, rec.TransferTime)

	out, err = invoke(t, r, VerifyTransfer, TransferInput{ExitMarkerJSON: exitJSON, ArrivalMarkerJSON: "{not json"})
	require.NoError(t, err)
	rec = transfer.Record{}
	require.NoError(t, json.Unmarshal(out, &rec))
	assert.False(t, rec.Verified)
	assert.Nil(t, rec.TransferTime)
	assert.Equal(t, []string{transfer.ParseFailure}, rec.Errors)
}
