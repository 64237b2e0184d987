package fixedpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScalesAndRounds(t *testing.T) {
	v, err := Parse("10.00000001", DefaultScale)
	require.NoError(t, err)
	assert.EqualValues(t, 1000000001, v)

	v, err = Parse("0.1", 100)
	require.NoError(t, err)
	assert.EqualValues(t, 10, v)
}

func TestParseRoundsHalfAwayFromZero(t *testing.T) {
	v, err := Parse("1.005", 100)
	require.NoError(t, err)
	assert.EqualValues(t, 101, v)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse("not-a-number", DefaultScale)
	assert.ErrorIs(t, err, ErrUnparseable)
}

func TestFloat64RoundTrips(t *testing.T) {
	v, err := Parse("11.5", DefaultScale)
	require.NoError(t, err)
	assert.InDelta(t, 11.5, v.Float64(DefaultScale), 1e-9)
}
