package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTitle_Idempotent(t *testing.T) {
	in := "Sri Lanka's Economy Shows Growth!"
	once := NormalizeTitle(in)
	twice := NormalizeTitle(once)
	assert.Equal(t, once, twice)
}

func TestNormalizeTitle_PunctuationInsensitive(t *testing.T) {
	a := NormalizeTitle("Sri Lanka's Economy Shows Growth")
	b := NormalizeTitle("Sri Lanka's Economy Shows Growth!")
	assert.Equal(t, a, b)
}

func TestNormalizeTitle_PreservesZWJ(t *testing.T) {
	in := "ශ්‍රී ලංකාව"
	out := NormalizeTitle(in)
	found := false
	for _, r := range out {
		if r == zwj {
			found = true
		}
	}
	assert.True(t, found, "expected ZWJ to survive normalization")
	assert.Equal(t, out, NormalizeTitle(out))
}

func TestUsableForDedup_ShortTitleExcluded(t *testing.T) {
	short := NormalizeTitle("Top News")
	assert.False(t, UsableForDedup(short))
}
