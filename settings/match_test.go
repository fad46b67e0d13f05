package settings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatternMatching(t *testing.T) {
	tests := []struct {
		pattern string
		key     string
		want    bool
	}{
		{"a.b", "a.b", true},
		{"a.b", "a.c", false},
		{"a.b", "a.b.c", false},
		{"a.*", "a.b", true},
		{"a.*", "a.b.c", false},
		{"a.*", "a", false},
		{"a.#", "a.b.c", true},
		{"a.#", "a.b", true},
		{"#", "anything.at.all", true},
		{"#", "plain", true},
		{"*.b", "a.b", true},
		{"*.b", "a.c", false},
		{"a.#.z", "a.b.c.z", true},
		{"a.#.z", "a.z", false},
		// regexp metacharacters in tokens stay literal
		{"a+b.c", "a+b.c", true},
		{"a+b.c", "aab.c", false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"/"+tt.key, func(t *testing.T) {
			m, err := newMatch(tt.pattern, struct{}{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.matches(tt.key))
		})
	}
}

func TestVerifyPattern(t *testing.T) {
	for _, valid := range []string{"a", "a.b", "*", "#", "a.*.b", "a.#"} {
		assert.NoError(t, verifyPattern(valid), "pattern %q", valid)
	}
	for _, invalid := range []string{"", ".", "..", "a..b", ".a", "a."} {
		assert.Error(t, verifyPattern(invalid), "pattern %q", invalid)
	}
}
