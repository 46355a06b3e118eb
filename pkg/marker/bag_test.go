package marker

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"passage/pkg/canonical"
)

func TestBag_PreservesInsertionOrder(t *testing.T) {
	b := NewBag().SetString("zeta", "last").Set("alpha", Int(7)).SetString("zeta", "again")

	assert.Equal(t, []string{"zeta", "alpha"}, b.Keys())
	out, err := json.Marshal(b)
	require.NoError(t, err)
	assert.JSONEq(t, `{"zeta":"again","alpha":7}`, string(out))
	assert.Equal(t, `{"zeta":"again","alpha":7}`, string(out))
}

func TestBag_SetOnEmptyBags(t *testing.T) {
	t.Run("zero value", func(t *testing.T) {
		var b Bag
		b.SetString("reason", "done").Set("attempt", Int(2))
		assert.Equal(t, []string{"reason", "attempt"}, b.Keys())
		assert.Equal(t, "done", b.GetString("reason"))
	})

	t.Run("nil pointer returns a new bag", func(t *testing.T) {
		var b *Bag
		got := b.SetString("reason", "done")
		require.NotNil(t, got)
		assert.Nil(t, b)
		assert.Equal(t, 1, got.Len())
		assert.Equal(t, "done", got.GetString("reason"))
	})
}

func TestBag_CanonicalIsOrderIndependent(t *testing.T) {
	a := NewBag().SetString("reason", "done").Set("attempt", Int(2))
	b := NewBag().Set("attempt", Int(2)).SetString("reason", "done")

	ea, err := canonical.Encode(a.Canonical())
	require.NoError(t, err)
	eb, err := canonical.Encode(b.Canonical())
	require.NoError(t, err)
	assert.Equal(t, ea, eb)
}

func TestBag_UnmarshalNested(t *testing.T) {
	var b Bag
	require.NoError(t, json.Unmarshal([]byte(`{"metadata":{"reason":"shutdown","attempt":3},"x":{}}`), &b))

	meta, ok := b.Bag("metadata")
	require.True(t, ok)
	assert.Equal(t, "shutdown", meta.GetString("reason"))
	n, ok := mustGet(t, meta, "attempt").AsInt()
	assert.True(t, ok)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, []string{"metadata", "x"}, b.Keys())
}

func TestBag_UnmarshalRejectsOpenValues(t *testing.T) {
	cases := map[string]string{
		"float":         `{"a":1.5}`,
		"exponent":      `{"a":1e3}`,
		"negative zero": `{"a":-0}`,
		"bool":          `{"a":true}`,
		"null":          `{"a":null}`,
		"array":         `{"a":[1]}`,
		"nested float":  `{"a":{"b":0.1}}`,
		"not an object": `"text"`,
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			var b Bag
			err := json.Unmarshal([]byte(input), &b)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrUnsupportedValue)
		})
	}
}

func TestBag_UnmarshalRejectsDuplicateKeys(t *testing.T) {
	var b Bag
	err := json.Unmarshal([]byte(`{"a":"1","a":"2"}`), &b)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnsupportedValue)
}

func TestBag_CloneIsDeep(t *testing.T) {
	inner := NewBag().SetString("reason", "original")
	b := NewBag().Set(ModuleMetadata, Nested(inner))

	c := b.Clone()
	inner.SetString("reason", "changed")

	got, _ := c.Bag(ModuleMetadata)
	assert.Equal(t, "original", got.GetString("reason"))
}

func TestBag_NilIsEmpty(t *testing.T) {
	var b *Bag
	assert.Zero(t, b.Len())
	assert.Empty(t, b.Keys())
	assert.Equal(t, canonical.Object{}, b.Canonical())
	assert.Equal(t, "", b.GetString("reason"))
}

func mustGet(t *testing.T, b *Bag, key string) Value {
	t.Helper()
	v, ok := b.Get(key)
	require.True(t, ok, "missing key %q", key)
	return v
}
