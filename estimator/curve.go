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

// VoltageTableMiss is what CapacityToVoltage returns for a level below the
// lowest row of the table. It is a percent-like sentinel, not a voltage.
const VoltageTableMiss = 100

// CapacityCurve is a piecewise linear mapping between voltage and capacity,
// ordered from full to empty.
type CapacityCurve struct {
	points []Breakpoint
}

func NewCapacityCurve(points []Breakpoint) (*CapacityCurve, error) {
	if err := validateCurve(points); err != nil {
		return nil, err
	}
	p := make([]Breakpoint, len(points))
	copy(p, points)
	return &CapacityCurve{points: p}, nil
}

// VoltageToCapacity interpolates the capacity (0-100) for v millivolts.
// Anything below the last row is empty.
func (c *CapacityCurve) VoltageToCapacity(v int) int {
	p := c.points
	if v >= p[0].Voltage {
		return clampLevel(p[0].Capacity)
	}
	for i := 1; i < len(p); i++ {
		if v < p[i].Voltage {
			continue
		}
		rangeVolt := p[i-1].Voltage - p[i].Voltage
		rangeCap := p[i-1].Capacity - p[i].Capacity
		return clampLevel(p[i].Capacity + rangeCap*(v-p[i].Voltage)/rangeVolt)
	}
	return 0
}

// CapacityToVoltage interpolates the voltage expected at level. The bool is
// false when the level is below the table, in which case the value is
// VoltageTableMiss.
func (c *CapacityCurve) CapacityToVoltage(level int) (int, bool) {
	p := c.points
	if level >= p[0].Capacity {
		return p[0].Voltage, true
	}
	for i := 1; i < len(p); i++ {
		if level < p[i].Capacity {
			continue
		}
		rangeCap := p[i-1].Capacity - p[i].Capacity
		if rangeCap == 0 {
			return p[i].Voltage, true
		}
		rangeVolt := p[i-1].Voltage - p[i].Voltage
		return p[i].Voltage + rangeVolt*(level-p[i].Capacity)/rangeCap, true
	}
	return VoltageTableMiss, false
}

func clampLevel(l int) int {
	if l < 0 {
		return 0
	}
	if l > Scale {
		return Scale
	}
	return l
}

func clampVoltage(v int) int {
	if v < 0 {
		return 0
	}
	if v > MaxVoltage {
		return MaxVoltage
	}
	return v
}
