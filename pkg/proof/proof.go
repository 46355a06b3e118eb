// Package proof creates and checks detached Ed25519 proofs over the canonical
// encoding of a document.
package proof

import (
	"crypto/ed25519"
	"fmt"

	"github.com/mr-tron/base58"

	"passage/pkg/canonical"
	dErrors "passage/pkg/domain-errors"
	"passage/pkg/identity"
)

// TypeEd25519Signature2020 is the only supported proof scheme.
const TypeEd25519Signature2020 = "Ed25519Signature2020"

// FieldName is the document member that carries the proof and is therefore
// excluded from the signed payload.
const FieldName = "proof"

// Code identifies why a proof failed to check.
type Code string

const (
	CodeMissingProof         Code = "missing_proof"
	CodeUnsupportedProofType Code = "unsupported_proof_type"
	CodeInvalidSubject       Code = "invalid_subject"
	CodeKeyMismatch          Code = "key_mismatch"
	CodeInvalidSignature     Code = "invalid_signature"
	CodeEncodingFailure      Code = "encoding_failure"
)

// Proof is the detached signature object embedded in a marker.
type Proof struct {
	Type               string `json:"type"`
	VerificationMethod string `json:"verificationMethod"`
	Signature          string `json:"signature"`
}

// IsZero reports whether the proof is absent.
func (p Proof) IsZero() bool {
	return p == Proof{}
}

// Document is anything with a canonical signable view.
type Document interface {
	Canonical() canonical.Object
}

// Sign signs payload with priv.
func Sign(payload []byte, priv ed25519.PrivateKey) ([]byte, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "private key must be %d bytes, got %d", ed25519.PrivateKeySize, len(priv))
	}
	return ed25519.Sign(priv, payload), nil
}

// Verify checks sig over payload. Malformed keys or signatures return false.
func Verify(payload, sig []byte, pub ed25519.PublicKey) bool {
	if len(pub) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(pub, payload, sig)
}

// Payload returns the bytes a proof over doc signs.
func Payload(doc Document) ([]byte, error) {
	return canonical.Encode(doc.Canonical(), FieldName)
}

// Attach signs doc with signer and returns the proof to embed.
func Attach(doc Document, signer *identity.Identity) (Proof, error) {
	if signer == nil {
		return Proof{}, dErrors.New(dErrors.CodeValidation, "signing identity is required")
	}
	payload, err := Payload(doc)
	if err != nil {
		return Proof{}, dErrors.Wrap(err, dErrors.CodeInternal, "canonicalize document")
	}
	return Proof{
		Type:               TypeEd25519Signature2020,
		VerificationMethod: signer.KeyID(),
		Signature:          EncodeSignature(signer.Sign(payload)),
	}, nil
}

// Check verifies p over doc against the key controlled by controller (a
// did:key). It returns the failure codes in check order; an empty result
// means the proof is valid.
func Check(doc Document, p Proof, controller string) []Code {
	if p.IsZero() {
		return []Code{CodeMissingProof}
	}
	if p.Type != TypeEd25519Signature2020 {
		return []Code{CodeUnsupportedProofType}
	}

	pub, err := identity.PublicKeyFromDID(controller)
	if err != nil {
		return []Code{CodeInvalidSubject}
	}
	if p.VerificationMethod != "" && identity.ControllerOf(p.VerificationMethod) != controller {
		return []Code{CodeKeyMismatch}
	}

	sig, err := DecodeSignature(p.Signature)
	if err != nil {
		return []Code{CodeInvalidSignature}
	}
	payload, err := Payload(doc)
	if err != nil {
		return []Code{CodeEncodingFailure}
	}
	if !Verify(payload, sig, pub) {
		return []Code{CodeInvalidSignature}
	}
	return nil
}

// EncodeSignature renders signature bytes as multibase base58btc.
func EncodeSignature(sig []byte) string {
	return "z" + base58.Encode(sig)
}

// DecodeSignature parses a multibase base58btc signature.
func DecodeSignature(s string) ([]byte, error) {
	if len(s) < 2 || s[0] != 'z' {
		return nil, fmt.Errorf("signature must be multibase base58btc")
	}
	sig, err := base58.Decode(s[1:])
	if err != nil {
		return nil, fmt.Errorf("decode signature: %w", err)
	}
	if len(sig) != ed25519.SignatureSize {
		return nil, fmt.Errorf("signature must be %d bytes, got %d", ed25519.SignatureSize, len(sig))
	}
	return sig, nil
}
