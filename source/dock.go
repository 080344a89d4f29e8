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

package source

import (
	"fmt"

	"github.com/TheCacophonyProject/battery-estimator/estimator"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

// DockPin detects a docking station from a GPIO held high by the dock.
type DockPin struct {
	pin gpio.PinIn
}

// OpenDockPin looks up the named pin. host.Init must have been called.
func OpenDockPin(name string) (*DockPin, error) {
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("failed to find GPIO pin '%s'", name)
	}
	return NewDockPin(pin)
}

func NewDockPin(pin gpio.PinIn) (*DockPin, error) {
	if err := pin.In(gpio.PullDown, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("failed to set %s as input: %w", pin, err)
	}
	return &DockPin{pin: pin}, nil
}

func (d *DockPin) ReadPlug() (estimator.PlugType, error) {
	if d.pin.Read() == gpio.High {
		return estimator.PlugDocking, nil
	}
	return estimator.PlugNone, nil
}
