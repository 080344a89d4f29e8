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

// ChargeInput is what the charging ramp needs each cycle.
type ChargeInput struct {
	Voltage     int // raw voltage this cycle
	LastVoltage int // voltage reported last cycle
	LastLevel   int
	Ceiling     int // level the discharge curve gives for Voltage
	Plug        PlugType
	Minute      int64
}

// ChargingLevelEstimator advances the level with elapsed time while charging.
// The terminal voltage reads high under charge current, so it only bounds
// the ramp from above.
type ChargingLevelEstimator struct {
	cfg         *Config
	active      bool
	startMinute int64
}

func NewChargingLevelEstimator(cfg *Config) *ChargingLevelEstimator {
	return &ChargingLevelEstimator{cfg: cfg}
}

// Next returns the level for this cycle. The first call of a session only
// starts the timer and returns the last level.
func (c *ChargingLevelEstimator) Next(in ChargeInput) int {
	if in.Voltage > MaxVoltage {
		in.Voltage = MaxVoltage
	}
	if !c.active {
		c.active = true
		c.startMinute = in.Minute
		return in.LastLevel
	}

	dv := in.Voltage - in.LastVoltage
	dt := in.Minute - c.startMinute

	step := int64(c.cfg.USBStepMinutes)
	if in.Plug == PlugAC {
		step = int64(c.cfg.ACStepMinutes)
	}

	switch {
	case dv <= 0:
		// No credit while the voltage dips.
		c.startMinute = in.Minute
		return in.LastLevel
	case in.Plug != PlugAC && dv > c.cfg.USBJumpVoltage:
		c.startMinute = in.Minute
		return c.cap(in.LastLevel+1, in)
	case dt >= step:
		c.startMinute = in.Minute
		return c.cap(in.LastLevel+int(dt/step), in)
	default:
		return in.LastLevel
	}
}

// cap bounds a ramped level by the voltage ceiling and by 100. The ceiling
// never pulls the level below where it already was.
func (c *ChargingLevelEstimator) cap(level int, in ChargeInput) int {
	ceiling := in.Ceiling
	if ceiling < in.LastLevel {
		ceiling = in.LastLevel
	}
	if level > ceiling {
		level = ceiling
	}
	return clampLevel(level)
}

// Active reports whether a charging session is in progress.
func (c *ChargingLevelEstimator) Active() bool {
	return c.active
}

func (c *ChargingLevelEstimator) Reset() {
	c.active = false
	c.startMinute = 0
}
