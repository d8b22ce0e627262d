package veto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	home = 10
	away = 20
)

func TestGenerateSequence(t *testing.T) {
	cases := []struct {
		name     string
		maps     int
		expected []int
	}{
		{"two maps", 2, []int{home}},
		{"three maps", 3, []int{home, away}},
		{"four maps", 4, []int{home, away, away}},
		{"seven maps", 7, []int{home, away, away, home, away, home}},
		{"nine maps", 9, []int{home, away, away, home, away, home, away, home}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			seq, err := GenerateSequence(home, away, tc.maps)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, seq)
		})
	}
}

func TestGenerateSequenceRejectsTinyPool(t *testing.T) {
	for _, n := range []int{-1, 0, 1} {
		_, err := GenerateSequence(home, away, n)
		assert.ErrorIs(t, err, ErrInvalidMapCount)
	}
}
