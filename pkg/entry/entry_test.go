package entry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"passage/pkg/domain"
	dErrors "passage/pkg/domain-errors"
	"passage/pkg/exit"
	"passage/pkg/identity"
	"passage/pkg/marker"
	"passage/pkg/proof"
)

var t0 = time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

func at(ts time.Time) func() time.Time { return func() time.Time { return ts } }

type EntrySuite struct {
	suite.Suite
	agent       *identity.Identity
	destination *identity.Identity
	departure   *marker.ExitMarker
}

func TestEntrySuite(t *testing.T) {
	suite.Run(t, new(EntrySuite))
}

func (s *EntrySuite) SetupTest() {
	s.agent = identity.MustGenerate()
	s.destination = identity.MustGenerate()
	m, err := exit.Create(s.agent, "platform-a", marker.ExitVoluntary, nil, exit.WithClock(at(t0)))
	s.Require().NoError(err)
	s.departure = m
}

func (s *EntrySuite) TestCreateArrival() {
	s.Run("destination attests arrival", func() {
		res, err := CreateArrival(s.departure, "platform-b", s.destination, WithClock(at(t0.Add(time.Minute))))
		s.Require().NoError(err)

		a := res.Arrival
		s.Equal(s.agent.DID(), a.Subject)
		s.Equal(s.destination.DID(), a.Attester)
		s.Equal("platform-b", a.Destination)
		s.Equal(s.departure.ID, a.ExitMarkerID)
		s.Equal(marker.StatusArrived, a.Status)
		s.Equal(t0.Add(time.Minute), a.Timestamp)
		s.Same(s.departure, res.Exit)
		s.True(res.Continuity.Valid)
		s.True(VerifyArrival(a).Valid)

		id, err := domain.ParseMarkerID(a.ID)
		s.Require().NoError(err)
		s.Equal(domain.MarkerKindArrival, id.Kind)
	})

	s.Run("self attested arrival has no attester", func() {
		res, err := CreateArrival(s.departure, "platform-b", s.agent)
		s.Require().NoError(err)
		s.Empty(res.Arrival.Attester)
		s.True(VerifyArrival(res.Arrival).Valid)
	})

	s.Run("clock behind departure is clamped", func() {
		res, err := CreateArrival(s.departure, "platform-b", s.destination, WithClock(at(t0.Add(-time.Hour))))
		s.Require().NoError(err)
		s.Equal(s.departure.Timestamp, res.Arrival.Timestamp)
		s.True(res.Continuity.Valid)
	})
}

func (s *EntrySuite) TestCreateArrivalRefusesInvalidDeparture() {
	tampered := s.departure.Clone()
	tampered.Origin = "platform-z"

	res, err := CreateArrival(tampered, "platform-b", s.destination)
	s.Require().Error(err)
	s.Nil(res)

	var invalid *InvalidExitMarkerError
	s.Require().True(errors.As(err, &invalid))
	s.Equal([]marker.Code{marker.CodeInvalidSignature}, invalid.Codes)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidExitMarker))
}

func (s *EntrySuite) TestCreateArrivalValidation() {
	_, err := CreateArrival(s.departure, " ", s.destination)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = CreateArrival(s.departure, "platform-b", nil)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *EntrySuite) TestQuickEntry() {
	data, err := json.Marshal(s.departure)
	s.Require().NoError(err)

	res, err := QuickEntry(data, "platform-b", s.destination)
	s.Require().NoError(err)
	s.Equal(s.departure.ID, res.Arrival.ExitMarkerID)

	_, err = QuickEntry([]byte("{"), "platform-b", s.destination)
	var invalid *InvalidExitMarkerError
	s.Require().ErrorAs(err, &invalid)
	s.Equal([]marker.Code{marker.CodeParseFailure}, invalid.Codes)
}

func (s *EntrySuite) TestVerifyArrivalFailures() {
	res, err := CreateArrival(s.departure, "platform-b", s.destination)
	s.Require().NoError(err)

	cases := map[string]struct {
		mutate func(a *marker.ArrivalMarker)
		want   marker.Code
	}{
		"destination":    {func(a *marker.ArrivalMarker) { a.Destination = "platform-c" }, marker.CodeInvalidSignature},
		"no destination": {func(a *marker.ArrivalMarker) { a.Destination = "" }, marker.CodeMissingDestination},
		"no reference":   {func(a *marker.ArrivalMarker) { a.ExitMarkerID = "" }, marker.CodeMissingExitReference},
		"arrival as reference": {func(a *marker.ArrivalMarker) { a.ExitMarkerID = a.ID }, marker.CodeMalformedReference},
		"status":   {func(a *marker.ArrivalMarker) { a.Status = marker.StatusDeparted }, marker.CodeInvalidStatus},
		"attester": {func(a *marker.ArrivalMarker) { a.Attester = identity.MustGenerate().DID() }, marker.CodeKeyMismatch},
		"dropped attester": {func(a *marker.ArrivalMarker) { a.Attester = "" }, marker.CodeKeyMismatch},
	}
	for name, tc := range cases {
		s.Run(name, func() {
			a := res.Arrival.Clone()
			tc.mutate(a)
			got := VerifyArrival(a)
			s.False(got.Valid)
			s.True(got.Has(tc.want), "errors: %v", got.Errors)
		})
	}

	s.Equal([]marker.Code{marker.CodeParseFailure}, VerifyArrival(nil).Errors)
	s.Equal([]marker.Code{marker.CodeParseFailure}, VerifyArrivalJSON([]byte("nope")).Errors)
}

// signedArrival builds an arrival with explicit fields, signed by signer.
func signedArrival(t *testing.T, signer *identity.Identity, subject, ref string, ts time.Time) *marker.ArrivalMarker {
	t.Helper()
	a := &marker.ArrivalMarker{
		Context:      marker.ContextV1,
		ID:           domain.NewMarkerID(domain.MarkerKindArrival).String(),
		Subject:      subject,
		Destination:  "platform-b",
		Timestamp:    ts,
		ExitMarkerID: ref,
		Status:       marker.StatusArrived,
	}
	if signer.DID() != subject {
		a.Attester = signer.DID()
	}
	p, err := proof.Attach(a, signer)
	require.NoError(t, err)
	a.Proof = p
	return a
}

func TestVerifyContinuity_Monotonicity(t *testing.T) {
	agent := identity.MustGenerate()
	dest := identity.MustGenerate()
	ex, err := exit.Create(agent, "platform-a", marker.ExitVoluntary, nil, exit.WithClock(at(t0)))
	require.NoError(t, err)
	otherID := domain.NewMarkerID(domain.MarkerKindExit).String()
	otherSubject := identity.MustGenerate().DID()

	tests := []struct {
		name    string
		subject string
		ref     string
		ts      time.Time
		want    []Reason
	}{
		{"later arrival", agent.DID(), ex.ID, t0.Add(time.Second), []Reason{}},
		{"equal timestamps", agent.DID(), ex.ID, t0, []Reason{}},
		{"earlier arrival", agent.DID(), ex.ID, t0.Add(-time.Millisecond), []Reason{ReasonTemporalInversion}},
		{"subject mismatch", otherSubject, ex.ID, t0.Add(time.Second), []Reason{ReasonSubjectMismatch}},
		{"dangling reference", agent.DID(), otherID, t0.Add(time.Second), []Reason{ReasonDanglingReference}},
		{"all three", otherSubject, otherID, t0.Add(-time.Second), []Reason{ReasonSubjectMismatch, ReasonDanglingReference, ReasonTemporalInversion}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := signedArrival(t, dest, tt.subject, tt.ref, tt.ts)
			rec := VerifyContinuity(ex, a)
			assert.Equal(t, tt.want, rec.Reasons)
			assert.Equal(t, len(tt.want) == 0, rec.Valid)
		})
	}
}

func TestVerifyContinuity_RequiresIndividuallyValidMarkers(t *testing.T) {
	agent := identity.MustGenerate()
	ex, err := exit.Create(agent, "platform-a", marker.ExitVoluntary, nil, exit.WithClock(at(t0)))
	require.NoError(t, err)
	res, err := CreateArrival(ex, "platform-b", agent, WithClock(at(t0.Add(time.Second))))
	require.NoError(t, err)

	brokenExit := ex.Clone()
	brokenExit.Origin = "elsewhere"
	rec := VerifyContinuity(brokenExit, res.Arrival)
	assert.False(t, rec.Valid)
	assert.Equal(t, []Reason{ReasonExitMarkerInvalid}, rec.Reasons)

	brokenArrival := res.Arrival.Clone()
	brokenArrival.Destination = "elsewhere"
	rec = VerifyContinuity(ex, brokenArrival)
	assert.Equal(t, []Reason{ReasonArrivalMarkerInvalid}, rec.Reasons)

	rec = VerifyContinuity(nil, nil)
	assert.True(t, rec.Has(ReasonExitMarkerInvalid))
	assert.True(t, rec.Has(ReasonArrivalMarkerInvalid))
}
