package execution

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestDepKey_RoundTrip verifies that packing and unpacking a (partition,
// dependency) pair is lossless across the whole 16-bit range, including the
// boundary values where field overlap bugs would show up first.
func TestDepKey_RoundTrip(t *testing.T) {
	cases := []struct{ partition, dependency int }{
		{0, 0},
		{1, 0},
		{0, 1},
		{1, 2},
		{255, 255},
		{256, 1},
		{keyMaxValue, 0},
		{0, keyMaxValue},
		{keyMaxValue, keyMaxValue},
		{keyMaxValue - 1, 1},
		{12345, 54321},
	}
	for _, tc := range cases {
		key, err := makeDepKey(tc.partition, tc.dependency)
		require.NoError(t, err)
		require.Equal(t, tc.partition, key.partitionID())
		require.Equal(t, tc.dependency, key.dependencyID())
	}
}

// TestDepKey_RangeValidation verifies that ids outside the 16-bit budget are
// rejected instead of silently corrupting a neighboring field.
func TestDepKey_RangeValidation(t *testing.T) {
	_, err := makeDepKey(keyMaxValue+1, 0)
	require.Error(t, err)
	_, err = makeDepKey(0, keyMaxValue+1)
	require.Error(t, err)
	_, err = makeDepKey(-1, 0)
	require.Error(t, err)
	_, err = makeDepKey(0, -1)
	require.Error(t, err)
}

// TestDepKeyRegistry_IndexStability verifies that encoding the same pair
// twice returns the same index and that distinct pairs get distinct indexes
// in first-seen order.
func TestDepKeyRegistry_IndexStability(t *testing.T) {
	r := newDepKeyRegistry()

	first, err := r.encode(7, 3)
	require.NoError(t, err)
	require.Equal(t, 0, first)

	second, err := r.encode(8, 3)
	require.NoError(t, err)
	require.Equal(t, 1, second)

	third, err := r.encode(7, 4)
	require.NoError(t, err)
	require.Equal(t, 2, third)

	// Re-encoding returns the stable positions.
	again, err := r.encode(7, 3)
	require.NoError(t, err)
	require.Equal(t, first, again)
	again, err = r.encode(8, 3)
	require.NoError(t, err)
	require.Equal(t, second, again)

	require.Equal(t, 3, r.size())
}

// TestDepKeyRegistry_Decode verifies the inverse lookup by position.
func TestDepKeyRegistry_Decode(t *testing.T) {
	r := newDepKeyRegistry()

	idx, err := r.encode(42, 17)
	require.NoError(t, err)

	p, d, err := r.decode(idx)
	require.NoError(t, err)
	require.Equal(t, 42, p)
	require.Equal(t, 17, d)

	_, _, err = r.decode(idx + 1)
	require.Error(t, err)
	_, _, err = r.decode(-1)
	require.Error(t, err)
}

// TestDepKeyRegistry_Lookup verifies lookup does not insert.
func TestDepKeyRegistry_Lookup(t *testing.T) {
	r := newDepKeyRegistry()

	_, ok := r.lookup(1, 1)
	require.False(t, ok)
	require.Equal(t, 0, r.size())

	idx, err := r.encode(1, 1)
	require.NoError(t, err)

	got, ok := r.lookup(1, 1)
	require.True(t, ok)
	require.Equal(t, idx, got)
}

// TestDepKeyRegistry_Reset verifies a reset registry assigns indexes from
// zero again.
func TestDepKeyRegistry_Reset(t *testing.T) {
	r := newDepKeyRegistry()

	_, err := r.encode(1, 1)
	require.NoError(t, err)
	_, err = r.encode(2, 2)
	require.NoError(t, err)

	r.reset()
	require.Equal(t, 0, r.size())

	idx, err := r.encode(2, 2)
	require.NoError(t, err)
	require.Equal(t, 0, idx)
}
