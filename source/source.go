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

// Package source reads raw battery samples from the hardware.
package source

import (
	"errors"

	"github.com/TheCacophonyProject/battery-estimator/estimator"
	"github.com/sirupsen/logrus"
)

var log logrus.FieldLogger = logrus.New()

func SetLogger(l logrus.FieldLogger) {
	log = l
}

// Source produces one sample per call. The timestamp is left for the caller
// to fill in from its own clock, except for replayed samples.
type Source interface {
	Read() (estimator.Sample, error)
	Close() error
}

// VoltageReader reads the cell voltage in millivolts.
type VoltageReader interface {
	ReadVoltage() (int, error)
}

// PlugDetector reports what power source is attached.
type PlugDetector interface {
	ReadPlug() (estimator.PlugType, error)
}

// Thermometer reads the battery temperature in tenths of a degree.
type Thermometer interface {
	ReadTemperature() (int, error)
}

var errNoVoltageReader = errors.New("no voltage reader configured")

// Composite builds samples from separate voltage, plug and temperature
// readers, for boards without a fuel gauge. The status is derived from the
// plug.
type Composite struct {
	Voltage     VoltageReader
	Plug        PlugDetector
	Thermometer Thermometer
	Technology  string

	lastTemp int
}

func (c *Composite) Read() (estimator.Sample, error) {
	if c.Voltage == nil {
		return estimator.Sample{}, errNoVoltageReader
	}
	s := estimator.Sample{
		Status:      estimator.StatusDischarging,
		Plug:        estimator.PlugNone,
		Health:      estimator.HealthGood,
		Present:     true,
		Technology:  c.Technology,
		Temperature: c.lastTemp,
	}

	v, err := c.Voltage.ReadVoltage()
	if err != nil {
		// Zero is a failed reading, the estimator falls back to the last voltage.
		log.Warnf("Failed to read battery voltage: %v", err)
		v = 0
	}
	s.Voltage = v

	if c.Plug != nil {
		plug, err := c.Plug.ReadPlug()
		if err != nil {
			log.Warnf("Failed to read plug state: %v", err)
		} else {
			s.Plug = plug
		}
	}
	if s.Plug.Plugged() {
		s.Status = estimator.StatusCharging
	}

	if c.Thermometer != nil {
		temp, err := c.Thermometer.ReadTemperature()
		if err != nil {
			log.Debugf("Failed to read temperature, using last value: %v", err)
		} else {
			c.lastTemp = temp
			s.Temperature = temp
		}
	}
	return s, nil
}

func (c *Composite) Close() error {
	var errs []error
	for _, r := range []interface{}{c.Voltage, c.Plug, c.Thermometer} {
		if closer, ok := r.(interface{ Close() error }); ok {
			errs = append(errs, closer.Close())
		}
	}
	return errors.Join(errs...)
}
