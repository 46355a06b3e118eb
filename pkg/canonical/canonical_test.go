package canonical

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_SortsKeysRecursively(t *testing.T) {
	doc := Object{
		"zeta":  "last",
		"alpha": int64(1),
		"nested": Object{
			"b": "two",
			"a": "one",
		},
	}

	out, err := Encode(doc)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":1,"nested":{"a":"one","b":"two"},"zeta":"last"}`, string(out))
}

func TestEncode_InsertionOrderIndependent(t *testing.T) {
	a := Object{}
	a["origin"] = "platform-a"
	a["subject"] = "did:key:z6Mk"
	a["timestamp"] = int64(1700000000000)

	b := Object{}
	b["timestamp"] = int64(1700000000000)
	b["subject"] = "did:key:z6Mk"
	b["origin"] = "platform-a"

	ea, err := Encode(a)
	require.NoError(t, err)
	eb, err := Encode(b)
	require.NoError(t, err)
	assert.Equal(t, ea, eb)
}

func TestEncode_NullEqualsAbsent(t *testing.T) {
	withNull, err := Encode(Object{"id": "x", "attester": nil})
	require.NoError(t, err)
	without, err := Encode(Object{"id": "x"})
	require.NoError(t, err)
	assert.Equal(t, without, withNull)
}

func TestEncode_Exclude(t *testing.T) {
	out, err := Encode(Object{"id": "x", "proof": Object{"type": "t"}}, "proof")
	require.NoError(t, err)
	assert.Equal(t, `{"id":"x"}`, string(out))
}

func TestEncode_ExcludeIsTopLevelOnly(t *testing.T) {
	out, err := Encode(Object{"modules": Object{"proof": "kept"}}, "proof")
	require.NoError(t, err)
	assert.Equal(t, `{"modules":{"proof":"kept"}}`, string(out))
}

func TestEncode_StringEscaping(t *testing.T) {
	out, err := Encode(Object{"reason": "a<b> & \"q\" ✓"})
	require.NoError(t, err)
	assert.Equal(t, `{"reason":"a<b> & \"q\" ✓"}`, string(out))
}

func TestEncode_Arrays(t *testing.T) {
	out, err := Encode(Object{"@context": []string{"x", "y"}, "list": Array{int64(2), true}})
	require.NoError(t, err)
	assert.Equal(t, `{"@context":["x","y"],"list":[2,true]}`, string(out))
}

func TestEncode_RejectsFloats(t *testing.T) {
	_, err := Encode(Object{"n": 1.5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `member "n"`)
}

func TestMillis(t *testing.T) {
	ts := time.Date(2026, 10, 17, 12, 0, 0, 123456789, time.FixedZone("X", 3600))
	assert.Equal(t, ts.UnixMilli(), Millis(ts))
}

func TestString(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "platform-a", `"platform-a"`},
		{"html is not escaped", "a<b & c>d", `"a<b & c>d"`},
		{"quote", `say "hi"`, `"say \"hi\""`},
		{"short escapes", "a\nb\tc", `"a\nb\tc"`},
		{"control uses lower hex", "\x1b[0m", `"\u001b[0m"`},
		{"line separator", "a\u2028b", `"a\u2028b"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(String(tt.in)))
		})
	}
}
