package identity

import (
	"bytes"
	"crypto/ed25519"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "passage/pkg/domain-errors"
)

func TestGenerate(t *testing.T) {
	id, err := Generate()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(id.DID(), "did:key:z6Mk"), "ed25519 did:key identifiers start with z6Mk, got %s", id.DID())
	assert.Len(t, id.PublicKey(), ed25519.PublicKeySize)
	assert.Len(t, id.Seed(), ed25519.SeedSize)
}

func TestGenerate_NoCollisions(t *testing.T) {
	seen := make(map[string]struct{})
	for range 64 {
		id := MustGenerate()
		_, dup := seen[id.DID()]
		require.False(t, dup)
		seen[id.DID()] = struct{}{}
	}
}

// The identifier must be re-derivable from the public key alone.
func TestPublicKeyFromDID_RoundTrip(t *testing.T) {
	id := MustGenerate()

	pub, err := PublicKeyFromDID(id.DID())
	require.NoError(t, err)
	assert.True(t, bytes.Equal(id.PublicKey(), pub))
	assert.Equal(t, id.DID(), DIDFromPublicKey(pub))
}

func TestPublicKeyFromDID_AcceptsKeyID(t *testing.T) {
	id := MustGenerate()

	pub, err := PublicKeyFromDID(id.KeyID())
	require.NoError(t, err)
	assert.True(t, bytes.Equal(id.PublicKey(), pub))
	assert.Equal(t, id.DID(), ControllerOf(id.KeyID()))
}

func TestPublicKeyFromDID_Rejects(t *testing.T) {
	cases := map[string]string{
		"empty":           "",
		"other method":    "did:web:example.com",
		"wrong multibase": "did:key:f0123",
		"not base58":      "did:key:z0OIl",
		"short key":       "did:key:z2J9",
	}
	for name, did := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := PublicKeyFromDID(did)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
		})
	}
}

func TestFromSeed_Deterministic(t *testing.T) {
	seed := bytes.Repeat([]byte{7}, ed25519.SeedSize)

	a, err := FromSeed(seed)
	require.NoError(t, err)
	b, err := FromSeed(seed)
	require.NoError(t, err)
	assert.Equal(t, a.DID(), b.DID())

	_, err = FromSeed([]byte("short"))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestFromPrivateKey(t *testing.T) {
	id := MustGenerate()

	restored, err := FromPrivateKey(id.PrivateKey())
	require.NoError(t, err)
	assert.Equal(t, id.DID(), restored.DID())

	_, err = FromPrivateKey(ed25519.PrivateKey("too short"))
	assert.Error(t, err)
}

func TestStringDoesNotLeakKey(t *testing.T) {
	id := MustGenerate()
	assert.Equal(t, id.DID(), id.String())
	assert.Equal(t, id.DID(), id.LogValue().String())
}
