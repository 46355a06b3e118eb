// Package envelope carries a marker as a compact EdDSA-signed JWT for
// transports that only take a single string. The envelope is an extra
// signature by the sealer; the embedded marker keeps its own proof and is
// verified on open.
package envelope

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"passage/pkg/domain"
	dErrors "passage/pkg/domain-errors"
	"passage/pkg/entry"
	"passage/pkg/exit"
	"passage/pkg/identity"
	"passage/pkg/marker"
)

// Claims are the JWT claims of a sealed marker. Marker is the document in
// unpadded base64url so it survives the JSON claim encoding unchanged.
type Claims struct {
	Marker string `json:"marker"`
	jwt.RegisteredClaims
}

// Envelope is an opened, verified envelope.
type Envelope struct {
	Kind    domain.MarkerKind
	Issuer  string
	Exit    *marker.ExitMarker
	Arrival *marker.ArrivalMarker
	// Raw is the marker exactly as it was sealed.
	Raw json.RawMessage
}

// ID is the id of the embedded marker.
func (e *Envelope) ID() string {
	if e.Arrival != nil {
		return e.Arrival.ID
	}
	if e.Exit != nil {
		return e.Exit.ID
	}
	return ""
}

// SealExit wraps an EXIT marker in an envelope signed by signer.
func SealExit(m *marker.ExitMarker, signer *identity.Identity) (string, error) {
	if m == nil {
		return "", dErrors.New(dErrors.CodeValidation, "exit marker is required")
	}
	raw, err := marker.Marshal(m)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode exit marker")
	}
	return seal(raw, m.ID, m.Subject, m.Timestamp, signer)
}

// SealArrival wraps an ARRIVAL marker in an envelope signed by signer.
func SealArrival(a *marker.ArrivalMarker, signer *identity.Identity) (string, error) {
	if a == nil {
		return "", dErrors.New(dErrors.CodeValidation, "arrival marker is required")
	}
	raw, err := marker.Marshal(a)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode arrival marker")
	}
	return seal(raw, a.ID, a.Subject, a.Timestamp, signer)
}

// Seal wraps a serialized marker of either kind. Open returns the document
// byte for byte.
func Seal(document []byte, signer *identity.Identity) (string, error) {
	var head struct {
		ID        string    `json:"id"`
		Subject   string    `json:"subject"`
		Timestamp time.Time `json:"timestamp"`
	}
	if err := json.Unmarshal(document, &head); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeParseFailure, "marker is not valid JSON")
	}
	if _, err := domain.ParseMarkerID(head.ID); err != nil {
		return "", err
	}
	return seal(document, head.ID, head.Subject, head.Timestamp, signer)
}

func seal(raw []byte, id, subject string, issued time.Time, signer *identity.Identity) (string, error) {
	if signer == nil {
		return "", dErrors.New(dErrors.CodeValidation, "signing identity is required")
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, Claims{
		Marker: base64.RawURLEncoding.EncodeToString(raw),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   signer.DID(),
			Subject:  subject,
			ID:       id,
			IssuedAt: jwt.NewNumericDate(issued),
		},
	})
	token.Header["kid"] = signer.KeyID()

	signed, err := token.SignedString(signer.PrivateKey())
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign envelope")
	}
	return signed, nil
}

// Open verifies an envelope against the key named by its issuer and then
// verifies the marker inside it. No network lookups are made.
func Open(tokenString string) (*Envelope, error) {
	parsed, err := jwt.ParseWithClaims(strings.TrimSpace(tokenString), &Claims{}, func(token *jwt.Token) (interface{}, error) {
		claims, ok := token.Claims.(*Claims)
		if !ok {
			return nil, jwt.ErrTokenInvalidClaims
		}
		pub, err := identity.PublicKeyFromDID(claims.Issuer)
		if err != nil {
			return nil, jwt.ErrTokenUnverifiable
		}
		return pub, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "envelope signature is invalid")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid envelope")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid envelope claims")
	}
	if len(claims.Marker) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "envelope carries no marker")
	}
	return unwrap(claims)
}

func unwrap(claims *Claims) (*Envelope, error) {
	id, err := domain.ParseMarkerID(claims.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "envelope jti is not a marker id")
	}
	raw, err := base64.RawURLEncoding.DecodeString(claims.Marker)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "envelope marker is not base64url")
	}
	env := &Envelope{Kind: id.Kind, Issuer: claims.Issuer, Raw: raw}

	var (
		res      marker.Result
		markerID string
		subject  string
	)
	switch id.Kind {
	case domain.MarkerKindArrival:
		p := marker.ParseArrival(raw)
		if !p.OK() {
			return nil, invalid(p.Errors)
		}
		env.Arrival = p.Value
		res = entry.VerifyArrival(p.Value)
		markerID, subject = p.Value.ID, p.Value.Subject
	default:
		p := marker.ParseExit(raw)
		if !p.OK() {
			return nil, invalid(p.Errors)
		}
		env.Exit = p.Value
		res = exit.Verify(p.Value)
		markerID, subject = p.Value.ID, p.Value.Subject
	}
	if !res.Valid {
		return nil, invalid(res.Errors)
	}
	if markerID != claims.ID || subject != claims.Subject {
		return nil, dErrors.New(dErrors.CodeValidation, "envelope claims do not match the sealed marker")
	}
	return env, nil
}

func invalid(codes []marker.Code) error {
	names := make([]string, len(codes))
	for i, c := range codes {
		names[i] = string(c)
	}
	return dErrors.Newf(dErrors.CodeValidation, "sealed marker failed verification: %s", strings.Join(names, ","))
}
