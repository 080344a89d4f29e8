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
	"strings"
	"time"
)

// Status is the charging status reported by the battery driver.
type Status uint8

const (
	StatusUnknown Status = iota
	StatusCharging
	StatusDischarging
	StatusNotCharging
	StatusFull
)

func (s Status) String() string {
	switch s {
	case StatusCharging:
		return "charging"
	case StatusDischarging:
		return "discharging"
	case StatusNotCharging:
		return "not-charging"
	case StatusFull:
		return "full"
	default:
		return "unknown"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ParseStatus maps a driver status string to a Status. Anything it does not
// recognise is StatusUnknown.
func ParseStatus(s string) Status {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "charging":
		return StatusCharging
	case "discharging":
		return StatusDischarging
	case "not charging", "not-charging", "notcharging":
		return StatusNotCharging
	case "full":
		return StatusFull
	default:
		return StatusUnknown
	}
}

// IsCharging is true for Charging and Full, both of which mean external
// power is feeding the battery.
func (s Status) IsCharging() bool {
	return s == StatusCharging || s == StatusFull
}

// PlugType is the power source currently attached. PlugNone is its own value
// and is never treated as a bitmask.
type PlugType uint8

const (
	PlugNone PlugType = iota
	PlugAC
	PlugUSB
	PlugDocking
)

func (p PlugType) String() string {
	switch p {
	case PlugAC:
		return "ac"
	case PlugUSB:
		return "usb"
	case PlugDocking:
		return "docking"
	default:
		return "none"
	}
}

func (p PlugType) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// ParsePlugType maps "ac", "usb", "docking"/"dock" to a PlugType.
func ParsePlugType(s string) PlugType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ac", "mains":
		return PlugAC
	case "usb":
		return PlugUSB
	case "docking", "dock":
		return PlugDocking
	default:
		return PlugNone
	}
}

// Plugged reports whether any power source is attached.
func (p PlugType) Plugged() bool {
	return p != PlugNone
}

type Health uint8

const (
	HealthUnknown Health = iota
	HealthGood
	HealthOverheat
	HealthDead
	HealthOverVoltage
	HealthFailure
)

func (h Health) String() string {
	switch h {
	case HealthGood:
		return "good"
	case HealthOverheat:
		return "overheat"
	case HealthDead:
		return "dead"
	case HealthOverVoltage:
		return "over-voltage"
	case HealthFailure:
		return "failure"
	default:
		return "unknown"
	}
}

func (h Health) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func ParseHealth(s string) Health {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "good":
		return HealthGood
	case "overheat":
		return HealthOverheat
	case "dead":
		return HealthDead
	case "over voltage", "over-voltage", "overvoltage":
		return HealthOverVoltage
	case "unspecified failure", "failure":
		return HealthFailure
	default:
		return HealthUnknown
	}
}

// Sample is one raw reading from the battery driver.
type Sample struct {
	Voltage     int // mV
	Status      Status
	Plug        PlugType
	Health      Health
	Temperature int // tenths of a degree Celsius
	Present     bool
	Technology  string
	Timestamp   int64 // monotonic seconds
}

// BusyFlags is a snapshot of device activity. Active indicators mean the
// terminal voltage is sagging under load, so the smoother trusts history more.
type BusyFlags struct {
	Call   bool
	Music  bool
	Video  bool
	Camera bool
	Screen bool
	GPS    bool
}

// BatteryReport is the public battery state emitted when a report is due.
type BatteryReport struct {
	Level          int      `json:"level"`
	EstimatedLevel int      `json:"estimatedLevel"`
	Scale          int      `json:"scale"`
	Status         Status   `json:"status"`
	Health         Health   `json:"health"`
	Present        bool     `json:"present"`
	Voltage        int      `json:"voltage"`
	Temperature    int      `json:"temperature"`
	Technology     string   `json:"technology"`
	Plug           PlugType `json:"plugged"`
	IconZone       int      `json:"iconZone"`
	Time           int64    `json:"time"`
}

// EventType identifies an edge event raised by a cycle.
type EventType uint8

const (
	EventLowBattery EventType = iota
	EventBatteryOkay
	EventPowerConnected
	EventPowerDisconnected
	EventDischargeCycle
	EventOverTemperature
	EventShutdownRequired
)

func (e EventType) String() string {
	switch e {
	case EventLowBattery:
		return "lowBattery"
	case EventBatteryOkay:
		return "batteryOkay"
	case EventPowerConnected:
		return "powerConnected"
	case EventPowerDisconnected:
		return "powerDisconnected"
	case EventDischargeCycle:
		return "batteryDischarge"
	case EventOverTemperature:
		return "batteryOverTemperature"
	case EventShutdownRequired:
		return "batteryShutdown"
	default:
		return "unknown"
	}
}

// Event is a boolean-edge signal. Only the fields relevant to Type are set.
type Event struct {
	Type        EventType
	Level       int
	StartLevel  int
	Duration    time.Duration
	Temperature int
}

// Result is the outcome of one estimation cycle.
type Result struct {
	Level   int
	Voltage int
	Status  Status
	Plug    PlugType
	Report  *BatteryReport
	Events  []Event
}

// PersistentEstimate is the state kept across process restarts.
type PersistentEstimate struct {
	LastVoltage int
	LastLevel   int
}
