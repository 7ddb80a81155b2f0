package tokens

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{"empty", "", 1},
		{"single char", "a", 1},
		{"below one token", "abc", 1},
		{"exactly one token", "abcd", 1},
		{"two tokens", "abcdefgh", 2},
		{"rounds down", "abcdefghij", 2},
		{"multibyte counts runes", "ééééééééé", 2},
		{"large", strings.Repeat("x", 4000), 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Estimate(tt.input))
		})
	}
}

func TestEstimate_Monotonic(t *testing.T) {
	prev := 0
	for n := 1; n <= 256; n++ {
		got := Estimate(strings.Repeat("z", n))
		assert.GreaterOrEqual(t, got, 1, "length %d", n)
		assert.GreaterOrEqual(t, got, prev, "estimate decreased at length %d", n)
		prev = got
	}
}
