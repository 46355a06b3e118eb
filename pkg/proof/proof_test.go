package proof

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"passage/pkg/canonical"
	"passage/pkg/identity"
)

type doc struct {
	fields canonical.Object
}

func (d doc) Canonical() canonical.Object { return d.fields }

func newDoc() doc {
	return doc{fields: canonical.Object{"origin": "platform-a", "timestamp": int64(1700000000000)}}
}

func TestSignVerifyRoundTrip(t *testing.T) {
	id := identity.MustGenerate()
	msg := []byte("departure")

	sig, err := Sign(msg, id.PrivateKey())
	require.NoError(t, err)
	assert.True(t, Verify(msg, sig, id.PublicKey()))
	assert.False(t, Verify([]byte("arrival"), sig, id.PublicKey()))
}

func TestVerify_MalformedInputsReturnFalse(t *testing.T) {
	id := identity.MustGenerate()
	assert.False(t, Verify([]byte("m"), []byte("short"), id.PublicKey()))
	assert.False(t, Verify([]byte("m"), make([]byte, 64), []byte("short")))
	assert.False(t, Verify([]byte("m"), nil, nil))
}

func TestAttachAndCheck(t *testing.T) {
	signer := identity.MustGenerate()
	d := newDoc()

	p, err := Attach(d, signer)
	require.NoError(t, err)
	assert.Equal(t, TypeEd25519Signature2020, p.Type)
	assert.Equal(t, signer.KeyID(), p.VerificationMethod)
	assert.Empty(t, Check(d, p, signer.DID()))
}

func TestCheck_Failures(t *testing.T) {
	signer := identity.MustGenerate()
	other := identity.MustGenerate()
	d := newDoc()
	p, err := Attach(d, signer)
	require.NoError(t, err)

	t.Run("missing proof", func(t *testing.T) {
		assert.Equal(t, []Code{CodeMissingProof}, Check(d, Proof{}, signer.DID()))
	})

	t.Run("unsupported scheme", func(t *testing.T) {
		bad := p
		bad.Type = "RsaSignature2018"
		assert.Equal(t, []Code{CodeUnsupportedProofType}, Check(d, bad, signer.DID()))
	})

	t.Run("controller is not a did:key", func(t *testing.T) {
		assert.Equal(t, []Code{CodeInvalidSubject}, Check(d, p, "did:web:example.com"))
	})

	t.Run("key reference for another subject", func(t *testing.T) {
		assert.Equal(t, []Code{CodeKeyMismatch}, Check(d, p, other.DID()))
	})

	t.Run("signature from another key", func(t *testing.T) {
		forged, err := Attach(d, other)
		require.NoError(t, err)
		forged.VerificationMethod = signer.KeyID()
		assert.Equal(t, []Code{CodeInvalidSignature}, Check(d, forged, signer.DID()))
	})

	t.Run("garbage signature does not panic", func(t *testing.T) {
		bad := p
		bad.Signature = "not-multibase"
		assert.Equal(t, []Code{CodeInvalidSignature}, Check(d, bad, signer.DID()))
	})

	t.Run("mutated document", func(t *testing.T) {
		mutated := newDoc()
		mutated.fields["origin"] = "platform-b"
		assert.Equal(t, []Code{CodeInvalidSignature}, Check(mutated, p, signer.DID()))
	})

	t.Run("unencodable document", func(t *testing.T) {
		broken := doc{fields: canonical.Object{"n": 1.5}}
		assert.Equal(t, []Code{CodeEncodingFailure}, Check(broken, p, signer.DID()))
	})
}

func TestPayloadExcludesProof(t *testing.T) {
	d := newDoc()
	withProof := doc{fields: canonical.Object{"origin": "platform-a", "timestamp": int64(1700000000000), "proof": canonical.Object{"type": "x"}}}

	a, err := Payload(d)
	require.NoError(t, err)
	b, err := Payload(withProof)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
