// Package identity manages the long-lived Ed25519 identity an agent carries
// between platforms.
//
// An identity is addressed by a did:key identifier derived from its public key,
// so any verifier can recover the verification key from the identifier alone:
//
//	did:key:z + base58btc(0xed 0x01 || publicKey)
//
// The private key is never serialised into markers and never printed.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mr-tron/base58"

	dErrors "passage/pkg/domain-errors"
)

const (
	// MethodPrefix is the DID method prefix for key-derived identifiers.
	MethodPrefix = "did:key:"

	multibaseBase58BTC = 'z'
)

// ed25519-pub multicodec, varint encoded.
var ed25519Multicodec = []byte{0xed, 0x01}

// Identity holds a subject identifier and its keypair.
type Identity struct {
	did        string
	publicKey  ed25519.PublicKey
	privateKey ed25519.PrivateKey
}

// Generate creates an identity from fresh randomness.
func Generate() (*Identity, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate ed25519 key: %w", err)
	}
	return newIdentity(pub, priv), nil
}

// MustGenerate is Generate for tests and tooling where entropy failure is fatal.
func MustGenerate() *Identity {
	id, err := Generate()
	if err != nil {
		panic(err)
	}
	return id
}

// FromSeed rebuilds an identity from a 32-byte Ed25519 seed.
func FromSeed(seed []byte) (*Identity, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return newIdentity(priv.Public().(ed25519.PublicKey), priv), nil
}

// FromPrivateKey rebuilds an identity from a 64-byte Ed25519 private key.
func FromPrivateKey(priv ed25519.PrivateKey) (*Identity, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "private key must be %d bytes, got %d", ed25519.PrivateKeySize, len(priv))
	}
	keyCopy := make(ed25519.PrivateKey, len(priv))
	copy(keyCopy, priv)
	return newIdentity(keyCopy.Public().(ed25519.PublicKey), keyCopy), nil
}

func newIdentity(pub ed25519.PublicKey, priv ed25519.PrivateKey) *Identity {
	return &Identity{
		did:        DIDFromPublicKey(pub),
		publicKey:  pub,
		privateKey: priv,
	}
}

// DID returns the subject identifier.
func (i *Identity) DID() string { return i.did }

// PublicKey returns the verification key.
func (i *Identity) PublicKey() ed25519.PublicKey { return i.publicKey }

// Seed returns the 32-byte private seed. Callers persisting it must encrypt it.
func (i *Identity) Seed() []byte { return i.privateKey.Seed() }

// KeyID returns the verification method reference for this identity.
func (i *Identity) KeyID() string { return KeyIDFromDID(i.did) }

// Sign signs payload with the identity's private key.
func (i *Identity) Sign(payload []byte) []byte {
	return ed25519.Sign(i.privateKey, payload)
}

// PrivateKey exposes the signing key to token signers that need the raw key.
func (i *Identity) PrivateKey() ed25519.PrivateKey { return i.privateKey }

func (i *Identity) String() string { return i.did }

// LogValue keeps key material out of structured logs.
func (i *Identity) LogValue() slog.Value { return slog.StringValue(i.did) }

// DIDFromPublicKey derives the did:key identifier for pub.
func DIDFromPublicKey(pub ed25519.PublicKey) string {
	buf := make([]byte, 0, len(ed25519Multicodec)+len(pub))
	buf = append(buf, ed25519Multicodec...)
	buf = append(buf, pub...)
	return MethodPrefix + string(multibaseBase58BTC) + base58.Encode(buf)
}

// PublicKeyFromDID recovers the Ed25519 verification key from a did:key
// identifier. A DID URL fragment, if present, is ignored.
func PublicKeyFromDID(did string) (ed25519.PublicKey, error) {
	did, _, _ = strings.Cut(did, "#")
	if !strings.HasPrefix(did, MethodPrefix) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "identifier is not a did:key")
	}
	encoded := strings.TrimPrefix(did, MethodPrefix)
	if len(encoded) < 2 || encoded[0] != multibaseBase58BTC {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "did:key must use base58btc multibase")
	}
	raw, err := base58.Decode(encoded[1:])
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "did:key is not valid base58")
	}
	if len(raw) != len(ed25519Multicodec)+ed25519.PublicKeySize ||
		raw[0] != ed25519Multicodec[0] || raw[1] != ed25519Multicodec[1] {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "did:key does not encode an ed25519 public key")
	}
	return ed25519.PublicKey(raw[len(ed25519Multicodec):]), nil
}

// KeyIDFromDID returns the verification method for a did:key: the DID with
// its own multibase fingerprint as fragment.
func KeyIDFromDID(did string) string {
	return did + "#" + strings.TrimPrefix(did, MethodPrefix)
}

// ControllerOf strips the fragment from a verification method reference.
func ControllerOf(keyID string) string {
	controller, _, _ := strings.Cut(keyID, "#")
	return controller
}
