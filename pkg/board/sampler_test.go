package board

import (
	"testing"

	"github.com/srg/wbb/internal/calibration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reading(total float64) calibration.Reading {
	q := total / 4
	return calibration.Reading{TopRight: q, BottomRight: q, TopLeft: q, BottomLeft: q}
}

func TestSampler_AveragesWindow(t *testing.T) {
	s, err := NewSampler(4)
	require.NoError(t, err)

	for i, total := range []float64{10, 20, 30} {
		avg, full, err := s.Add(reading(total))
		require.NoError(t, err)
		assert.False(t, full, "window MUST NOT be full after %d samples", i+1)
		assert.Zero(t, avg)
	}
	assert.Equal(t, 3, s.Count())

	avg, full, err := s.Add(reading(40))
	require.NoError(t, err)
	assert.True(t, full)
	assert.InDelta(t, 25.0, avg, 1e-9)
	assert.Equal(t, 0, s.Count(), "full window MUST start over")

	// second window is independent of the first
	for _, total := range []float64{1, 1, 1} {
		_, full, err = s.Add(reading(total))
		require.NoError(t, err)
		assert.False(t, full)
	}
	avg, full, err = s.Add(reading(5))
	require.NoError(t, err)
	assert.True(t, full)
	assert.InDelta(t, 2.0, avg, 1e-9)
}

func TestSampler_DefaultWindow(t *testing.T) {
	s, err := NewSampler(DefaultSamples)
	require.NoError(t, err)

	var windows int
	for i := 0; i < 2*DefaultSamples; i++ {
		avg, full, err := s.Add(reading(70))
		require.NoError(t, err)
		if full {
			windows++
			assert.InDelta(t, 70.0, avg, 1e-9)
		}
	}
	assert.Equal(t, 2, windows)
}

func TestSampler_Reset(t *testing.T) {
	s, err := NewSampler(2)
	require.NoError(t, err)

	_, _, err = s.Add(reading(100))
	require.NoError(t, err)
	s.Reset()
	assert.Equal(t, 0, s.Count())

	_, full, err := s.Add(reading(10))
	require.NoError(t, err)
	assert.False(t, full)
	avg, full, err := s.Add(reading(30))
	require.NoError(t, err)
	assert.True(t, full)
	assert.InDelta(t, 20.0, avg, 1e-9, "reset samples MUST NOT leak into the next window")
}

func TestSampler_InvalidSize(t *testing.T) {
	_, err := NewSampler(0)
	assert.Error(t, err)
}
