package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForTargetSize(t *testing.T) {
	t.Run("reference scenario 50MB over 120s", func(t *testing.T) {
		got, err := ForTargetSize(50, 120)
		require.NoError(t, err)
		// floor(50*8*1024*1024/120 - 128000)
		assert.Equal(t, 3367253, got)
	})

	t.Run("never returns below the floor", func(t *testing.T) {
		got, err := ForTargetSize(1, 7200)
		require.NoError(t, err)
		assert.Equal(t, MinVideoBitrate, got)
	})

	t.Run("rejects bad parameters", func(t *testing.T) {
		_, err := ForTargetSize(0.5, 120)
		assert.ErrorIs(t, err, ErrInvalidParameter)
		_, err = ForTargetSize(50, 0)
		assert.ErrorIs(t, err, ErrInvalidParameter)
		_, err = ForTargetSize(50, -3)
		assert.ErrorIs(t, err, ErrInvalidParameter)
	})
}

func TestForSizeAndFormat(t *testing.T) {
	t.Run("clamps into working range", func(t *testing.T) {
		got, err := ForSizeAndFormat(5000, 10)
		require.NoError(t, err)
		assert.Equal(t, MaxVideoBitrate, got)

		got, err = ForSizeAndFormat(1, 7200)
		require.NoError(t, err)
		assert.Equal(t, MinVideoBitrate, got)
	})

	t.Run("passes mid-range values through", func(t *testing.T) {
		got, err := ForSizeAndFormat(20, 60)
		require.NoError(t, err)
		assert.Equal(t, 2668202, got)
	})
}

func TestForPercent(t *testing.T) {
	t.Run("keeps the complement of the percent", func(t *testing.T) {
		assert.Equal(t, 500000, ForPercent(50, 1000000))
		assert.Equal(t, 300000, ForPercent(70, 1000000))
	})

	t.Run("output is strictly below the original", func(t *testing.T) {
		for p := 1; p <= 99; p++ {
			got := ForPercent(p, 2000000)
			assert.Less(t, got, 2000000, "percent %d", p)
			assert.GreaterOrEqual(t, got, MinVideoBitrate)
		}
	})

	t.Run("re-clamps out-of-range percents", func(t *testing.T) {
		// 150 -> 95, so 5% of the original remains.
		assert.Equal(t, ForPercent(95, 4000000), ForPercent(150, 4000000))
		assert.Equal(t, ForPercent(5, 4000000), ForPercent(-10, 4000000))
	})

	t.Run("never violates the floor", func(t *testing.T) {
		assert.Equal(t, MinVideoBitrate, ForPercent(95, 120000))
	})
}

func TestCRFForPercent(t *testing.T) {
	assert.Equal(t, 20, CRFForPercent(5))
	assert.Equal(t, 35, CRFForPercent(50))
	assert.Equal(t, 49, CRFForPercent(95))
	// Out-of-range percent clamps before mapping.
	assert.Equal(t, CRFForPercent(95), CRFForPercent(200))
}
