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
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/TheCacophonyProject/battery-estimator/estimator"
)

const DefaultPowerSupplyDir = "/sys/class/power_supply"

// Charger is a power supply directory with an "online" file.
type Charger struct {
	Name string
	Plug estimator.PlugType
}

// Sysfs reads a kernel power supply class directory. Chargers are checked in
// order and the first one online wins.
type Sysfs struct {
	Dir      string
	Battery  string
	Chargers []Charger
}

func NewSysfs(dir string) *Sysfs {
	return &Sysfs{
		Dir:     dir,
		Battery: "battery",
		Chargers: []Charger{
			{"ac", estimator.PlugAC},
			{"usb", estimator.PlugUSB},
			{"dock", estimator.PlugDocking},
		},
	}
}

func (s *Sysfs) Read() (estimator.Sample, error) {
	battery := filepath.Join(s.Dir, s.Battery)
	if _, err := os.Stat(battery); err != nil {
		return estimator.Sample{}, fmt.Errorf("no battery at %s: %w", battery, err)
	}

	sample := estimator.Sample{
		Status:     estimator.ParseStatus(readAttr(battery, "status")),
		Health:     estimator.ParseHealth(readAttr(battery, "health")),
		Present:    readAttr(battery, "present") == "1",
		Technology: readAttr(battery, "technology"),
	}
	// voltage_now is in microvolts.
	if uv, err := strconv.Atoi(readAttr(battery, "voltage_now")); err == nil {
		sample.Voltage = uv / 1000
	} else {
		log.Warnf("Bad voltage_now in %s: %v", battery, err)
	}
	if temp, err := strconv.Atoi(readAttr(battery, "temp")); err == nil {
		sample.Temperature = temp
	}

	for _, c := range s.Chargers {
		if readAttr(filepath.Join(s.Dir, c.Name), "online") == "1" {
			sample.Plug = c.Plug
			break
		}
	}
	return sample, nil
}

func (s *Sysfs) Close() error {
	return nil
}

func readAttr(dir, name string) string {
	b, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}
