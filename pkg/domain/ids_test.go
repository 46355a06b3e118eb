package domain

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "passage/pkg/domain-errors"
)

// TestParseMarkerID_Invariants validates the parsing invariant:
// "marker ids are urn:<exit|arrival>:<non-nil canonical uuid>"
func TestParseMarkerID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseMarkerID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects unknown kind", func(t *testing.T) {
		_, err := ParseMarkerID("urn:session:" + uuid.NewString())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseMarkerID("urn:exit:" + uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts both kinds", func(t *testing.T) {
		for _, kind := range []MarkerKind{MarkerKindExit, MarkerKindArrival} {
			want := NewMarkerID(kind)
			got, err := ParseMarkerID(want.String())
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}
	})
}

// TestParseMarkerID_SecurityInvariants: ids arrive in URL paths, so parsing
// must reject attack vectors before they reach a store.
func TestParseMarkerID_SecurityInvariants(t *testing.T) {
	valid := uuid.NewString()
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"SQL injection attempt", "urn:exit:'; DROP TABLE markers;--", true},
		{"Path traversal", "urn:exit:../../../etc/passwd", true},
		{"Null byte injection", "urn:exit:550e8400\x00-e29b-41d4-a716-446655440000", true},
		{"Oversized input", "urn:exit:" + strings.Repeat("a", 1000), true},
		{"Braced uuid", "urn:exit:{" + valid + "}", true},
		{"Missing kind", "urn:" + valid, true},
		{"Bare uuid", valid, true},

		{"Valid exit", "urn:exit:" + valid, false},
		{"Valid arrival", "urn:arrival:" + valid, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMarkerID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestNewMarkerID_Unique(t *testing.T) {
	a := NewMarkerID(MarkerKindExit)
	b := NewMarkerID(MarkerKindExit)
	assert.NotEqual(t, a, b)
	assert.False(t, a.IsNil())
	assert.True(t, strings.HasPrefix(a.String(), "urn:exit:"))
}
