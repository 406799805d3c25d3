package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeCity(t *testing.T) {
	cases := map[string]string{
		"London":          "london",
		"  LONDON  ":      "london",
		"New   York":      "new york",
		"\tsan francisco": "san francisco",
		"":                "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeCity(in), "input %q", in)
	}
}

func TestHasAny(t *testing.T) {
	assert.True(t, HasAny("Light Rain Shower", "rain", "snow"))
	assert.False(t, HasAny("Sunny", "rain", "snow"))
	assert.False(t, HasAny("Sunny"))
}
