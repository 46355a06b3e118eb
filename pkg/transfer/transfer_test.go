package transfer

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"passage/pkg/entry"
	"passage/pkg/exit"
	"passage/pkg/identity"
	"passage/pkg/marker"
)

var t0 = time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

func clock(ts time.Time) func() time.Time { return func() time.Time { return ts } }

func newTransfer(t *testing.T) (*marker.ExitMarker, *marker.ArrivalMarker) {
	t.Helper()
	agent := identity.MustGenerate()
	ex, err := exit.Create(agent, "platform-a", marker.ExitVoluntary, exit.Metadata("migrating", ""), exit.WithClock(clock(t0)))
	require.NoError(t, err)
	res, err := entry.CreateArrival(ex, "platform-b", identity.MustGenerate(), entry.WithClock(clock(t0.Add(2*time.Second))))
	require.NoError(t, err)
	return ex, res.Arrival
}

func TestVerify_ValidTransfer(t *testing.T) {
	ex, arrival := newTransfer(t)

	rec := Verify(ex, arrival)
	assert.True(t, rec.Verified)
	assert.Empty(t, rec.Errors)
	require.NotNil(t, rec.TransferTime)
	assert.Equal(t, t0.Add(2*time.Second), *rec.TransferTime)
	assert.True(t, rec.Continuity.Valid)
}

func TestVerify_StageTaggedErrors(t *testing.T) {
	ex, arrival := newTransfer(t)

	brokenExit := ex.Clone()
	brokenExit.Origin = "platform-z"
	rec := Verify(brokenExit, arrival)
	assert.False(t, rec.Verified)
	assert.Nil(t, rec.TransferTime)
	assert.Equal(t, []string{"exit:invalid_signature", "continuity:exit_marker_invalid"}, rec.Errors)

	brokenArrival := arrival.Clone()
	brokenArrival.Destination = "platform-z"
	rec = Verify(ex, brokenArrival)
	assert.Equal(t, []string{"arrival:invalid_signature", "continuity:arrival_marker_invalid"}, rec.Errors)

	_, unrelated := newTransfer(t)
	rec = Verify(ex, unrelated)
	assert.False(t, rec.Verified)
	assert.Equal(t, []string{"continuity:subject_mismatch", "continuity:dangling_reference"}, rec.Errors)
}

func TestVerifyJSON(t *testing.T) {
	ex, arrival := newTransfer(t)
	exitJSON, err := json.Marshal(ex)
	require.NoError(t, err)
	arrivalJSON, err := json.Marshal(arrival)
	require.NoError(t, err)

	rec := VerifyJSON(exitJSON, arrivalJSON)
	assert.True(t, rec.Verified)

	for name, pair := range map[string][2][]byte{
		"bad exit":    {[]byte("{"), arrivalJSON},
		"bad arrival": {exitJSON, []byte(`{"id":1}`)},
		"swapped":     {arrivalJSON, exitJSON},
	} {
		t.Run(name, func(t *testing.T) {
			rec := VerifyJSON(pair[0], pair[1])
			assert.False(t, rec.Verified)
			assert.Nil(t, rec.TransferTime)
			assert.Nil(t, rec.Continuity)
			assert.Equal(t, []string{ParseFailure}, rec.Errors)

			out, err := json.Marshal(rec)
			require.NoError(t, err)
			assert.JSONEq(t, `{"verified":false,"transferTime":null,"errors":["parse failure"],"continuity":null}`, string(out))
		})
	}
}

func TestVerifyBatch_KeepsOrder(t *testing.T) {
	var pairs []Pair
	for i := 0; i < 20; i++ {
		ex, arrival := newTransfer(t)
		if i%3 == 0 {
			arrival = arrival.Clone()
			arrival.Status = marker.StatusDeparted
		}
		pairs = append(pairs, Pair{Exit: ex, Arrival: arrival})
	}

	records, err := VerifyBatch(context.Background(), pairs)
	require.NoError(t, err)
	require.Len(t, records, len(pairs))
	for i, rec := range records {
		assert.Equal(t, i%3 != 0, rec.Verified, "pair %d", i)
		assert.Equal(t, Verify(pairs[i].Exit, pairs[i].Arrival), rec)
	}
}

func TestVerifyBatch_Cancelled(t *testing.T) {
	ex, arrival := newTransfer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := VerifyBatch(ctx, []Pair{{Exit: ex, Arrival: arrival}})
	assert.ErrorIs(t, err, context.Canceled)
}
