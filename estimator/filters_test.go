package estimator

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryRingDeltas(t *testing.T) {
	var h HistoryRing

	_, _, ok := h.Append(HistoryEntry{Voltage: 4000, Time: 0})
	assert.False(t, ok)
	_, _, ok = h.Append(HistoryEntry{Voltage: 3950, Time: 60})
	assert.False(t, ok)

	dv, dt, ok := h.Append(HistoryEntry{Voltage: 3940, Time: 120})
	require.True(t, ok)
	assert.Equal(t, 50, dv)
	assert.Equal(t, 60, dt)

	dv, dt, ok = h.Append(HistoryEntry{Voltage: 3930, Time: 1000})
	require.True(t, ok)
	assert.Equal(t, 10, dv)
	assert.Equal(t, 60, dt)

	assert.Equal(t, 3, h.Len())
	latest, ok := h.Latest()
	require.True(t, ok)
	assert.Equal(t, int64(1000), latest.Time)
}

func TestMedianFilter(t *testing.T) {
	var m MedianFilter
	assert.Equal(t, 3700, m.Push(3700))
	// A single spike never makes it through.
	assert.Equal(t, 3700, m.Push(5000))
	assert.Equal(t, 3700, m.Push(3800))
	assert.Equal(t, 3800, m.Push(3800))

	m.Reset()
	assert.Equal(t, 4000, m.Push(4000))
}

func fillSmoother(s *VoltageSmoother, v int) {
	for len(s.Recorded()) < s.cfg.SmootherWindow {
		s.Filter(v, FilterInput{Fallback: v, Level: 80})
	}
}

func TestSmootherFillPhase(t *testing.T) {
	cfg := DefaultConfig()
	s := NewVoltageSmoother(&cfg)

	v, ok := s.Filter(4000, FilterInput{Startup: true})
	require.True(t, ok)
	assert.Equal(t, 4000, v)
	assert.Len(t, s.Recorded(), 3)

	v, _ = s.Filter(3700, FilterInput{Fallback: 4000})
	assert.Equal(t, 3850, v)
}

func TestSmootherSteadyInput(t *testing.T) {
	cfg := DefaultConfig()
	s := NewVoltageSmoother(&cfg)
	var v int
	for i := 0; i < 24; i++ {
		v, _ = s.Filter(4125, FilterInput{Fallback: 4125, Level: 100})
	}
	assert.Equal(t, 4125, v)
	assert.Len(t, s.Recorded(), 24)
}

func TestSmootherBadReading(t *testing.T) {
	cfg := DefaultConfig()
	s := NewVoltageSmoother(&cfg)
	v, ok := s.Filter(0, FilterInput{Fallback: 3900})
	assert.False(t, ok)
	assert.Equal(t, 3900, v)
	assert.Empty(t, s.Recorded())
}

func TestSmootherBlend(t *testing.T) {
	cfg := DefaultConfig()
	s := NewVoltageSmoother(&cfg)
	fillSmoother(s, 4000)

	v, ok := s.Filter(3900, FilterInput{Fallback: 4000, GapKnown: true, DeltaSeconds: 20, Level: 80})
	require.True(t, ok)
	assert.Equal(t, 3958, v)
}

func TestSmootherResumeWeight(t *testing.T) {
	cfg := DefaultConfig()
	s := NewVoltageSmoother(&cfg)
	fillSmoother(s, 4000)

	v, _ := s.Filter(3900, FilterInput{Fallback: 4000, GapKnown: true, DeltaSeconds: 3600, Level: 80})
	assert.Equal(t, 3908, v)
}

func TestSmootherRejectsGlitch(t *testing.T) {
	cfg := DefaultConfig()
	s := NewVoltageSmoother(&cfg)
	fillSmoother(s, 4000)

	// Samples closer together than the minimum interval are not trusted.
	v, _ := s.Filter(3900, FilterInput{Fallback: 4000, GapKnown: true, DeltaSeconds: 5, Level: 80})
	assert.Equal(t, 4000, v)

	v, _ = s.Filter(3700, FilterInput{Fallback: 4000, GapKnown: true, DeltaSeconds: 20, DeltaVoltage: -150, Level: 80})
	assert.Equal(t, 4000, v)
}

func TestSmootherWeight(t *testing.T) {
	cfg := DefaultConfig()
	s := NewVoltageSmoother(&cfg)

	assert.Equal(t, 10, s.weight(FilterInput{Level: 50}))
	assert.Equal(t, 8, s.weight(FilterInput{Level: 50, Busy: BusyFlags{Call: true, Screen: true}}))
	assert.Equal(t, 8, s.weight(FilterInput{Level: 10, Busy: BusyFlags{Music: true}}))
	assert.Equal(t, 0, s.weight(FilterInput{Level: 10, Busy: BusyFlags{
		Call: true, Music: true, Video: true, Camera: true, Screen: true, GPS: true,
	}}))
	assert.Equal(t, 16, s.weight(FilterInput{Level: 3, Busy: BusyFlags{Call: true}}))
	assert.Equal(t, 12, s.weight(FilterInput{GapKnown: true, DeltaSeconds: 700, Level: 50}))
	assert.Equal(t, 10, s.weight(FilterInput{GapKnown: true, DeltaSeconds: 100, Level: 50, Busy: BusyFlags{Call: true}}))
}

func TestSmootherOutputWithinWindow(t *testing.T) {
	cfg := DefaultConfig()
	s := NewVoltageSmoother(&cfg)
	r := rand.New(rand.NewSource(1))
	fallback := 3800
	for i := 0; i < 500; i++ {
		raw := 3500 + r.Intn(700)
		in := FilterInput{
			Fallback:     fallback,
			GapKnown:     true,
			DeltaSeconds: r.Intn(4000),
			DeltaVoltage: r.Intn(300) - 150,
			Level:        r.Intn(101),
			Busy:         BusyFlags{Call: r.Intn(2) == 0, GPS: r.Intn(2) == 0},
		}
		v, ok := s.Filter(raw, in)
		require.True(t, ok)
		lo, hi := bounds(s.Recorded())
		require.True(t, v >= lo && v <= hi, "output %d outside [%d,%d]", v, lo, hi)
		fallback = v
	}
}
