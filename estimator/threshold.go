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

// ThresholdOutcome is what changed in the warning state this cycle.
type ThresholdOutcome struct {
	Zone        int
	PrevZone    int
	LowBattery  bool
	BatteryOkay bool
	Shutdown    bool
}

// ThresholdTracker maps levels to warning zones, decides the low battery and
// battery okay edges, and ratchets the displayed level across icon bins.
type ThresholdTracker struct {
	cfg *Config

	zone           int
	lowBatterySent bool
	okayPending    bool
	shutdownSent   bool

	displayLevel int
	primed       bool
}

func NewThresholdTracker(cfg *Config) *ThresholdTracker {
	return &ThresholdTracker{cfg: cfg}
}

// WarningZone returns the index of the first warning boundary at or below
// level. Levels under every boundary fall in the last zone.
func (t *ThresholdTracker) WarningZone(level int) int {
	thresholds := t.cfg.WarningThresholds
	for i, b := range thresholds {
		if level >= b {
			return i
		}
	}
	return len(thresholds) - 1
}

// IconZone returns the icon bin for level.
func (t *ThresholdTracker) IconZone(level int) int {
	for i, top := range t.cfg.IconMax {
		if level <= top {
			return i
		}
	}
	return len(t.cfg.IconMax) - 1
}

// Update moves the tracker to level. A low battery signal fires once per
// discharge, when the zone worsens past the warning boundary while running on
// battery. Connecting power starts a new discharge. Battery okay fires once
// the level is back at the close warning boundary.
func (t *ThresholdTracker) Update(level int, status Status, plug PlugType) ThresholdOutcome {
	thresholds := t.cfg.WarningThresholds
	out := ThresholdOutcome{PrevZone: t.zone}
	t.zone = t.WarningZone(level)
	out.Zone = t.zone

	onBattery := (!plug.Plugged() && status != StatusUnknown) ||
		(plug == PlugDocking && !status.IsCharging())

	if onBattery && level == 0 {
		if !t.shutdownSent {
			t.shutdownSent = true
			out.Shutdown = true
		}
	} else {
		t.shutdownSent = false
	}

	if !onBattery && plug.Plugged() {
		t.lowBatterySent = false
	}

	worsened := t.zone > out.PrevZone && t.zone > ThresholdWarning
	switch {
	case onBattery && level > 0 && level < thresholds[ThresholdWarning] && worsened && !t.lowBatterySent:
		t.lowBatterySent = true
		t.okayPending = true
		out.LowBattery = true
	case t.okayPending && level >= thresholds[ThresholdCloseWarning]:
		t.lowBatterySent = false
		t.okayPending = false
		out.BatteryOkay = true
	}
	return out
}

// DisplayLevel returns the level to show. It only leaves the current icon bin
// once the level is comfortably past the bin edge, or jumps two bins at once.
func (t *ThresholdTracker) DisplayLevel(level int) int {
	if !t.primed {
		t.primed = true
		t.displayLevel = level
		return level
	}
	prev := t.IconZone(t.displayLevel)
	cur := t.IconZone(level)
	h := t.cfg.IconHysteresis
	switch {
	case cur == prev:
		t.displayLevel = level
	case cur < prev:
		if level <= t.cfg.IconMax[cur]-h || prev-cur >= 2 {
			t.displayLevel = level
		}
	default:
		if level >= t.cfg.IconMax[cur-1]+h || cur-prev >= 2 {
			t.displayLevel = level
		}
	}
	return t.displayLevel
}

// LowBatterySent reports whether a low battery signal is outstanding.
func (t *ThresholdTracker) LowBatterySent() bool {
	return t.lowBatterySent
}
