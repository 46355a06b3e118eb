//go:build go1.18

package domain

import (
	"testing"
	"unicode/utf8"
)

// FuzzParseMarkerID checks that parsing never panics on arbitrary input and
// that every accepted id round-trips.
func FuzzParseMarkerID(f *testing.F) {
	f.Add("")
	f.Add("urn:exit:550e8400-e29b-41d4-a716-446655440000")
	f.Add("urn:arrival:550e8400-e29b-41d4-a716-446655440000")
	f.Add("urn:exit:00000000-0000-0000-0000-000000000000")
	f.Add("urn:exit:not-a-uuid")
	f.Add(string([]byte{0x00, 0x01, 0x02}))

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseMarkerID(input)
		if err != nil {
			return
		}
		if !utf8.ValidString(id.String()) {
			t.Errorf("accepted id renders invalid UTF-8: %q", id.String())
		}
		roundTrip, err := ParseMarkerID(id.String())
		if err != nil {
			t.Errorf("accepted id failed round-trip: %v", err)
		}
		if roundTrip != id {
			t.Error("round-trip changed id value")
		}
	})
}
