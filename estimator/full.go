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

type FullInput struct {
	Level   int
	Voltage int
	Status  Status
	Plug    PlugType
	Minute  int64
}

// FullOutcome is the (possibly overridden) level, voltage and status.
type FullOutcome struct {
	Level   int
	Voltage int
	Status  Status
	// Full is set while the battery is declared full.
	Full bool
	// JustDeclared is set on the cycle the dwell timer completes.
	JustDeclared bool
}

// FullDetector only reports 100% once the level has sat at the near-full
// level for the dwell time while charging, unless the driver already says
// Full with a plug attached. Nothing is forced while unplugged.
type FullDetector struct {
	cfg         *Config
	curve       *CapacityCurve
	timing      bool
	startMinute int64
	declared    bool
}

func NewFullDetector(cfg *Config, chargeCurve *CapacityCurve) *FullDetector {
	return &FullDetector{cfg: cfg, curve: chargeCurve}
}

func (f *FullDetector) Apply(in FullInput) FullOutcome {
	out := FullOutcome{Level: in.Level, Voltage: in.Voltage, Status: in.Status}

	if in.Status == StatusFull && in.Plug.Plugged() {
		out.Level = Scale
		out.Voltage = FullVoltage
		out.Full = true
		out.JustDeclared = !f.declared
		f.declared = true
		// Already full, so a later Charging status from the driver must not
		// restart the dwell.
		f.timing = true
		f.startMinute = in.Minute - int64(f.cfg.FullDwellMinutes)
		return out
	}

	if !in.Status.IsCharging() || !in.Plug.Plugged() || in.Level < f.cfg.NearFullLevel {
		f.Reset()
		return out
	}

	if !f.timing {
		f.timing = true
		f.startMinute = in.Minute
	}
	if in.Minute-f.startMinute >= int64(f.cfg.FullDwellMinutes) {
		if !f.declared {
			log.Info("Battery has been near full long enough, declaring it full")
		}
		out.Level = Scale
		out.Voltage = FullVoltage
		out.Status = StatusFull
		out.Full = true
		out.JustDeclared = !f.declared
		f.declared = true
		return out
	}

	out.Level = f.cfg.NearFullLevel
	if v, ok := f.curve.CapacityToVoltage(out.Level); ok {
		out.Voltage = v
	}
	f.declared = false
	return out
}

// Dwelling reports whether the dwell timer is running.
func (f *FullDetector) Dwelling() bool {
	return f.timing
}

func (f *FullDetector) Reset() {
	f.timing = false
	f.startMinute = 0
	f.declared = false
}
