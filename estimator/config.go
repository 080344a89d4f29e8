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

import (
	"errors"
	"fmt"
)

const (
	// MaxVoltage is the ceiling applied to every raw and reported voltage (mV).
	MaxVoltage = 4200
	// FullVoltage is the voltage reported once the battery is declared full.
	FullVoltage = 4200
	// Scale is the maximum level, reported alongside every level.
	Scale = 100

	historySize = 3
	medianSize  = 5
)

// Breakpoint is one row of a capacity curve.
type Breakpoint struct {
	Voltage  int `mapstructure:"voltage"`
	Capacity int `mapstructure:"capacity"`
}

// Config holds every tunable of the estimator. The zero value is not usable,
// start from DefaultConfig.
type Config struct {
	// Capacity tables, ordered from full to empty.
	DischargeCurve []Breakpoint `mapstructure:"discharge-curve"`
	ChargeCurve    []Breakpoint `mapstructure:"charge-curve"`

	// Smoother.
	SmootherWindow     int   `mapstructure:"smoother-window"`
	SmootherRepeat     int   `mapstructure:"smoother-repeat"`
	BaseWeight         int   `mapstructure:"base-weight"`
	SuspendThreshold   int   `mapstructure:"suspend-threshold"` // seconds
	ResumeSteps        []int `mapstructure:"resume-steps"`      // seconds, ascending
	ResumeWeightStep   int   `mapstructure:"resume-weight-step"`
	GlitchMinVoltage   int   `mapstructure:"glitch-min-voltage"`
	GlitchMinInterval  int   `mapstructure:"glitch-min-interval"` // seconds
	GlitchVoltageDelta int   `mapstructure:"glitch-voltage-delta"`
	BusyLowLevel       int   `mapstructure:"busy-low-level"`
	BusyCriticalLevel  int   `mapstructure:"busy-critical-level"`
	BusyCriticalBonus  int   `mapstructure:"busy-critical-bonus"`

	// Charging ramp.
	ACStepMinutes  int `mapstructure:"ac-step-minutes"`
	USBStepMinutes int `mapstructure:"usb-step-minutes"`
	USBJumpVoltage int `mapstructure:"usb-jump-voltage"`

	// Full detection.
	NearFullLevel    int `mapstructure:"near-full-level"`
	FullDwellMinutes int `mapstructure:"full-dwell-minutes"`

	// Thresholds, warning boundaries descending and icon maxima ascending.
	WarningThresholds []int `mapstructure:"warning-thresholds"`
	IconMax           []int `mapstructure:"icon-max"`
	IconHysteresis    int   `mapstructure:"icon-hysteresis"`

	// Reporting.
	ReportDropStep        int `mapstructure:"report-drop-step"`
	ReportEveryCycleBelow int `mapstructure:"report-every-cycle-below"`
	CriticalLevel         int `mapstructure:"critical-level"`
	OverTemperature       int `mapstructure:"over-temperature"` // tenths of a degree
}

// Indices into WarningThresholds.
const (
	ThresholdCloseWarning = 0
	ThresholdWarning      = 1
)

// DefaultConfig returns the tables and thresholds tuned for a single Li-ion cell.
func DefaultConfig() Config {
	return Config{
		DischargeCurve: []Breakpoint{
			{4125, 100},
			{4020, 90},
			{3865, 70},
			{3761, 50},
			{3707, 30},
			{3658, 15},
			{3599, 5},
			{3500, 0},
		},
		ChargeCurve: []Breakpoint{
			{4200, 100},
			{4020, 90},
			{3865, 70},
			{3761, 50},
			{3707, 30},
			{3658, 15},
			{3599, 5},
			{3500, 0},
		},
		SmootherWindow:     24,
		SmootherRepeat:     3,
		BaseWeight:         10,
		SuspendThreshold:   30,
		ResumeSteps:        []int{600, 1200, 1800, 2400, 3000, 3600},
		ResumeWeightStep:   2,
		GlitchMinVoltage:   3500,
		GlitchMinInterval:  10,
		GlitchVoltageDelta: 100,
		BusyLowLevel:       15,
		BusyCriticalLevel:  5,
		BusyCriticalBonus:  6,

		ACStepMinutes:  1,
		USBStepMinutes: 3,
		USBJumpVoltage: 100,

		NearFullLevel:    99,
		FullDwellMinutes: 40,

		WarningThresholds: []int{31, 16, 11, 6, 1},
		IconMax:           []int{4, 14, 29, 49, 69, 89, 100},
		IconHysteresis:    3,

		ReportDropStep:        2,
		ReportEveryCycleBelow: 5,
		CriticalLevel:         4,
		OverTemperature:       680,
	}
}

// Validate checks the monotonicity of every table and the ranges of the
// scalar tunables.
func (c Config) Validate() error {
	if err := validateCurve(c.DischargeCurve); err != nil {
		return fmt.Errorf("discharge curve: %w", err)
	}
	if err := validateCurve(c.ChargeCurve); err != nil {
		return fmt.Errorf("charge curve: %w", err)
	}
	if c.SmootherWindow < 1 {
		return errors.New("smoother window must be at least 1")
	}
	if c.SmootherRepeat < 1 || c.SmootherRepeat > c.SmootherWindow {
		return fmt.Errorf("smoother repeat %d must be in [1,%d]", c.SmootherRepeat, c.SmootherWindow)
	}
	if c.BaseWeight < 0 || c.BaseWeight > c.SmootherWindow {
		return fmt.Errorf("base weight %d must be in [0,%d]", c.BaseWeight, c.SmootherWindow)
	}
	for i := 1; i < len(c.ResumeSteps); i++ {
		if c.ResumeSteps[i] <= c.ResumeSteps[i-1] {
			return fmt.Errorf("resume steps must be strictly ascending, got %v", c.ResumeSteps)
		}
	}
	if c.ACStepMinutes < 1 || c.USBStepMinutes < 1 {
		return errors.New("charging step periods must be at least one minute")
	}
	if c.NearFullLevel < 0 || c.NearFullLevel > Scale {
		return fmt.Errorf("near full level %d out of range", c.NearFullLevel)
	}
	if len(c.WarningThresholds) <= ThresholdWarning {
		return fmt.Errorf("need at least %d warning thresholds", ThresholdWarning+1)
	}
	for i := 1; i < len(c.WarningThresholds); i++ {
		if c.WarningThresholds[i] >= c.WarningThresholds[i-1] {
			return fmt.Errorf("warning thresholds must be strictly descending, got %v", c.WarningThresholds)
		}
	}
	if len(c.IconMax) == 0 || c.IconMax[len(c.IconMax)-1] != Scale {
		return fmt.Errorf("icon table must end at %d, got %v", Scale, c.IconMax)
	}
	for i := 1; i < len(c.IconMax); i++ {
		if c.IconMax[i] <= c.IconMax[i-1] {
			return fmt.Errorf("icon table must be strictly ascending, got %v", c.IconMax)
		}
	}
	if c.ReportDropStep < 1 {
		return errors.New("report drop step must be at least 1")
	}
	return nil
}

func validateCurve(points []Breakpoint) error {
	if len(points) < 2 {
		return fmt.Errorf("need at least 2 breakpoints, got %d", len(points))
	}
	for i, p := range points {
		if p.Capacity < 0 || p.Capacity > Scale {
			return fmt.Errorf("row %d: capacity %d out of range", i, p.Capacity)
		}
		if p.Voltage < 0 || p.Voltage > MaxVoltage {
			return fmt.Errorf("row %d: voltage %d out of range", i, p.Voltage)
		}
		if i == 0 {
			continue
		}
		if p.Voltage >= points[i-1].Voltage {
			return fmt.Errorf("row %d: voltage must be strictly decreasing (%d after %d)", i, p.Voltage, points[i-1].Voltage)
		}
		if p.Capacity > points[i-1].Capacity {
			return fmt.Errorf("row %d: capacity must not rise as voltage falls (%d after %d)", i, p.Capacity, points[i-1].Capacity)
		}
	}
	return nil
}
