package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubRoundsToTwelveDigits(t *testing.T) {
	assert.Equal(t, -0.04, SubFloat(31.48, 31.52))
	assert.Equal(t, 0.02, SubFloat(31.52, 31.5))
	assert.Equal(t, 0.3, SubFloat(0.5, 0.2))
	assert.Equal(t, 1.1, SubFloat(4.35, 3.25))

	assert.Nil(t, Sub(nil, ptr(1)))
	assert.Nil(t, Sub(ptr(1), nil))
	assert.Equal(t, 2.5, *Sub(ptr(4.2), ptr(1.7)))
}

func TestPrecision12(t *testing.T) {
	assert.Equal(t, 0.3, Precision12(0.1+0.2))
	assert.Equal(t, 123456789012.0, Precision12(123456789012.4))
	assert.Equal(t, 0.0, Precision12(0))
}

func TestSum(t *testing.T) {
	assert.Equal(t, 3700.0, *Sum(ptr(500), ptr(200), ptr(3000)))
	assert.Nil(t, Sum(ptr(1), nil))
}

func TestPercentChange(t *testing.T) {
	assert.Equal(t, 3.00, PercentChange(103, 3))
	assert.Equal(t, -0.43, PercentChange(17853.76, -76.73))
	assert.Equal(t, 0.0, PercentChange(5, 5))

	assert.Nil(t, PercentChangeOf(nil, ptr(1)))
	require.NotNil(t, PercentChangeOf(ptr(103), ptr(3)))
	assert.Equal(t, 3.0, *PercentChangeOf(ptr(103), ptr(3)))
}

func TestIndexChangePercent(t *testing.T) {
	assert.Equal(t, 1.5, IndexChangePercent(1.5, 100))
	assert.Equal(t, -0.25, IndexChangePercent(-50, 20000))
	assert.Equal(t, 0.0, IndexChangePercent(3, 0))
}

func TestRoundAndRatio(t *testing.T) {
	assert.Equal(t, 5.5, Round(5.45, 1))
	assert.Equal(t, -5.5, Round(-5.45, 1))
	assert.Equal(t, 0.63, *Ratio(6300, 10000, 4))
	assert.Equal(t, 0.3333, *Ratio(1, 3, 4))
	assert.Nil(t, Ratio(1, 0, 4))
}
