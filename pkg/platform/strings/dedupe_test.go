package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	tests := map[string]struct {
		in   []string
		want []string
	}{
		"nil stays nil":         {in: nil, want: nil},
		"empty stays empty":     {in: []string{}, want: []string{}},
		"blank origins dropped": {in: []string{"platform-a", " ", ""}, want: []string{"platform-a"}},
		"repeated --require-module flags": {
			in:   []string{"lineage", " lineage ", "stateSnapshot", "lineage"},
			want: []string{"lineage", "stateSnapshot"},
		},
		"order follows first occurrence": {
			in:   []string{"platform-z", "platform-a", "platform-z"},
			want: []string{"platform-z", "platform-a"},
		},
		"case is significant": {
			in:   []string{"Platform-A", "platform-a"},
			want: []string{"Platform-A", "platform-a"},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, DedupeAndTrim(tc.in))
		})
	}
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, SplitList(""))
	assert.Nil(t, SplitList("   "))
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, SplitList("k1:9092, k2:9092,"))
	assert.Equal(t, []string{"a", "b"}, SplitList("a,b,a"))
}
