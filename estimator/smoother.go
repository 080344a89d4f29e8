/*
battery-estimator - Estimates battery charge from noisy voltage samples
Copyright (C) 2026, The Cacophony Project

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

package estimator

// FilterInput is the context the smoother needs besides the raw voltage.
type FilterInput struct {
	// Fallback is the last reported voltage, used for failed or rejected readings.
	Fallback int
	// History deltas, only meaningful when GapKnown is set.
	DeltaVoltage int
	DeltaSeconds int
	GapKnown     bool
	// Startup is set on the first cycle after the process starts.
	Startup bool
	// Level is the previous cycle's level, used to scale the busy penalties.
	Level int
	Busy  BusyFlags
}

// busyPenalty is the weight adjustment per active indicator.
type busyPenalty struct {
	call, music, video, camera, screen, gps int
}

var (
	busyPenaltyNormal = busyPenalty{call: 1, music: 1, video: 1, camera: 1, screen: 1, gps: 1}
	busyPenaltyLow    = busyPenalty{call: 3, music: 2, video: 3, camera: 3, screen: 3, gps: 3}
)

// VoltageSmoother is an adaptive weighted moving average. Until the window is
// full every sample is recorded several times and the plain mean is returned.
// After that the new sample is blended with the previous window mean using a
// weight that grows with sleep time and shrinks when the device is busy.
type VoltageSmoother struct {
	cfg      *Config
	window   []int
	prevMean int
}

func NewVoltageSmoother(cfg *Config) *VoltageSmoother {
	return &VoltageSmoother{
		cfg:    cfg,
		window: make([]int, 0, cfg.SmootherWindow),
	}
}

// Filter returns the smoothed voltage. The bool is false when raw was a
// failed reading and the fallback was returned without touching the window.
func (s *VoltageSmoother) Filter(raw int, in FilterInput) (int, bool) {
	if raw > MaxVoltage {
		raw = MaxVoltage
	}
	if raw <= 0 {
		return in.Fallback, false
	}
	if s.isGlitch(raw, in) {
		log.Debugf("Rejecting %dmV (moved %dmV in %ds), using %dmV", raw, in.DeltaVoltage, in.DeltaSeconds, in.Fallback)
		raw = in.Fallback
	}

	size := s.cfg.SmootherWindow
	if len(s.window) < size {
		for i := 0; i < s.cfg.SmootherRepeat && len(s.window) < size; i++ {
			s.window = append(s.window, raw)
		}
		s.prevMean = mean(s.window)
		return s.prevMean, true
	}

	w := s.weight(in)
	out := (raw*w + s.prevMean*(size-w)) / size

	copy(s.window, s.window[1:])
	s.window[size-1] = raw
	s.prevMean = mean(s.window)

	lo, hi := bounds(s.window)
	if out < lo {
		out = lo
	} else if out > hi {
		out = hi
	}
	return out, true
}

func (s *VoltageSmoother) isGlitch(raw int, in FilterInput) bool {
	if in.Startup || !in.GapKnown || in.Fallback <= 0 {
		return false
	}
	if raw < s.cfg.GlitchMinVoltage {
		return false
	}
	return in.DeltaSeconds < s.cfg.GlitchMinInterval || abs(in.DeltaVoltage) >= s.cfg.GlitchVoltageDelta
}

// weight is how many parts out of the window size the new sample gets.
func (s *VoltageSmoother) weight(in FilterInput) int {
	w := s.cfg.BaseWeight
	if in.GapKnown && in.DeltaSeconds > s.cfg.SuspendThreshold {
		steps := s.cfg.ResumeSteps
		for i := len(steps) - 1; i >= 0; i-- {
			if in.DeltaSeconds >= steps[i] {
				w += (i + 1) * s.cfg.ResumeWeightStep
				break
			}
		}
	} else {
		w += s.busyAdjustment(in.Level, in.Busy)
	}
	if w > s.cfg.SmootherWindow {
		return s.cfg.SmootherWindow
	}
	if w < 0 {
		return 0
	}
	return w
}

func (s *VoltageSmoother) busyAdjustment(level int, b BusyFlags) int {
	if level <= s.cfg.BusyCriticalLevel {
		return s.cfg.BusyCriticalBonus
	}
	p := busyPenaltyNormal
	if level <= s.cfg.BusyLowLevel {
		p = busyPenaltyLow
	}
	adj := 0
	if b.Call {
		adj -= p.call
	}
	if b.Music {
		adj -= p.music
	}
	if b.Video {
		adj -= p.video
	}
	if b.Camera {
		adj -= p.camera
	}
	if b.Screen {
		adj -= p.screen
	}
	if b.GPS {
		adj -= p.gps
	}
	return adj
}

// Mean is the plain moving average of the window.
func (s *VoltageSmoother) Mean() int {
	return s.prevMean
}

// Recorded returns a copy of the window.
func (s *VoltageSmoother) Recorded() []int {
	out := make([]int, len(s.window))
	copy(out, s.window)
	return out
}

func (s *VoltageSmoother) Reset() {
	s.window = s.window[:0]
	s.prevMean = 0
}

func mean(values []int) int {
	if len(values) == 0 {
		return 0
	}
	total := 0
	for _, v := range values {
		total += v
	}
	return total / len(values)
}

func bounds(values []int) (int, int) {
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
