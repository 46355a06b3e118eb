package envelope

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"passage/pkg/domain"
	dErrors "passage/pkg/domain-errors"
	"passage/pkg/entry"
	"passage/pkg/exit"
	"passage/pkg/identity"
	"passage/pkg/marker"
)

var departedAt = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newExit(t *testing.T, agent *identity.Identity) *marker.ExitMarker {
	t.Helper()
	m, err := exit.Create(agent, "platform-a", marker.ExitVoluntary, exit.Metadata("done", ""),
		exit.WithClock(func() time.Time { return departedAt }))
	require.NoError(t, err)
	return m
}

func Test_SealExit_Open(t *testing.T) {
	agent := identity.MustGenerate()
	m := newExit(t, agent)

	token, err := SealExit(m, agent)
	require.NoError(t, err)
	assert.Len(t, strings.Split(token, "."), 3)

	env, err := Open(token)
	require.NoError(t, err)
	assert.Equal(t, domain.MarkerKindExit, env.Kind)
	assert.Equal(t, agent.DID(), env.Issuer)
	assert.Equal(t, m.ID, env.ID())
	require.NotNil(t, env.Exit)
	assert.Equal(t, "done", env.Exit.Reason())
}

func Test_SealArrival_Open(t *testing.T) {
	agent := identity.MustGenerate()
	attester := identity.MustGenerate()
	res, err := entry.CreateArrival(newExit(t, agent), "platform-b", attester,
		entry.WithClock(func() time.Time { return departedAt.Add(time.Minute) }))
	require.NoError(t, err)

	token, err := SealArrival(res.Arrival, attester)
	require.NoError(t, err)

	env, err := Open(token)
	require.NoError(t, err)
	assert.Equal(t, domain.MarkerKindArrival, env.Kind)
	require.NotNil(t, env.Arrival)
	assert.Equal(t, res.Arrival.ExitMarkerID, env.Arrival.ExitMarkerID)
	assert.Equal(t, attester.DID(), env.Issuer)
}

func Test_Seal_KeepsDocumentBytes(t *testing.T) {
	agent := identity.MustGenerate()
	m, err := exit.Create(agent, "a<b & c>d", marker.ExitVoluntary, exit.Metadata("moved <on>", ""))
	require.NoError(t, err)

	var buf bytes.Buffer
	enc := marker.NewEncoder(&buf)
	enc.SetIndent("", "\t")
	require.NoError(t, enc.Encode(m))
	doc := buf.Bytes()
	require.True(t, exit.VerifyJSON(doc).Valid)

	token, err := Seal(doc, agent)
	require.NoError(t, err)
	env, err := Open(token)
	require.NoError(t, err)
	assert.Equal(t, string(doc), string(env.Raw))
	assert.Equal(t, "a<b & c>d", env.Exit.Origin)
}

func Test_Seal_RejectsNonMarker(t *testing.T) {
	_, err := Seal([]byte(`{"id":"nope"}`), identity.MustGenerate())
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

	_, err = Seal([]byte(`not json`), identity.MustGenerate())
	assert.True(t, dErrors.HasCode(err, dErrors.CodeParseFailure))
}

func Test_Open_RejectsTamperedSignature(t *testing.T) {
	agent := identity.MustGenerate()
	token, err := SealExit(newExit(t, agent), agent)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	_, err = Open(parts[0] + "." + parts[1] + "." + string(sig))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func Test_Open_RejectsOtherAlgorithms(t *testing.T) {
	agent := identity.MustGenerate()
	m := newExit(t, agent)
	raw, err := json.Marshal(m)
	require.NoError(t, err)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Marker: base64.RawURLEncoding.EncodeToString(raw),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:  agent.DID(),
			Subject: m.Subject,
			ID:      m.ID,
		},
	})
	signed, err := token.SignedString([]byte("shared-secret"))
	require.NoError(t, err)

	_, err = Open(signed)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func Test_Open_RejectsInvalidMarker(t *testing.T) {
	agent := identity.MustGenerate()
	m := newExit(t, agent)
	m.Origin = "platform-z"

	token, err := SealExit(m, agent)
	require.NoError(t, err)

	_, err = Open(token)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	assert.Contains(t, err.Error(), string(marker.CodeInvalidSignature))
}

func Test_Open_RejectsMismatchedClaims(t *testing.T) {
	agent := identity.MustGenerate()
	m := newExit(t, agent)
	raw, err := json.Marshal(m)
	require.NoError(t, err)

	token, err := seal(raw, m.ID, "did:key:zSomeoneElse", m.Timestamp, agent)
	require.NoError(t, err)

	_, err = Open(token)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func Test_Open_Garbage(t *testing.T) {
	_, err := Open("not-a-token")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}
