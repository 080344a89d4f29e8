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

package batteryestimator

import (
	"context"
	"fmt"
	"time"

	"github.com/TheCacophonyProject/battery-estimator/estimator"
	"github.com/TheCacophonyProject/battery-estimator/source"
	"golang.org/x/sys/unix"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

var processStart = time.Now()

// bootSeconds is the time since boot including time spent suspended, so the
// estimator can see how long the device slept.
func bootSeconds() int64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_BOOTTIME, &ts); err != nil {
		return int64(time.Since(processStart).Seconds())
	}
	return int64(ts.Sec)
}

type pollLoop struct {
	est      *estimator.Estimator
	src      source.Source
	activity *activityTracker
	reporter *reporter
	interval time.Duration
	clock    func() int64
}

func (l *pollLoop) run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		l.cycle()
		select {
		case <-ctx.Done():
			log.Info("Stopping")
			return nil
		case <-ticker.C:
		}
	}
}

func (l *pollLoop) cycle() {
	s, err := l.src.Read()
	if err != nil {
		log.Errorf("Failed to read battery sample: %v", err)
		return
	}
	s.Timestamp = l.clock()
	res := l.est.Process(s, l.activity.Flags())
	if res.Report != nil {
		log.Infof("Battery %d%% (%dmV, %s, %s)", res.Report.Level, res.Voltage, res.Status, res.Plug)
	}
	l.reporter.Dispatch(res)
}

func openSource(cmd *RunCmd) (source.Source, error) {
	switch cmd.Source {
	case "sysfs":
		return source.NewSysfs(cmd.PowerSupplyDir), nil
	case "serial":
		return source.OpenSerial(cmd.SerialPort, cmd.Baud)
	case "attiny":
		return openATtinySource(cmd)
	default:
		return nil, fmt.Errorf("unknown source '%s'", cmd.Source)
	}
}

func openATtinySource(cmd *RunCmd) (source.Source, error) {
	if _, err := host.Init(); err != nil {
		return nil, err
	}
	bus, err := i2creg.Open("")
	if err != nil {
		return nil, err
	}
	rail := source.RailHV
	if cmd.Rail == "lv" {
		rail = source.RailLV
	}
	attiny, err := source.NewATtiny(bus, rail, cmd.Cells)
	if err != nil {
		bus.Close()
		return nil, err
	}
	c := &source.Composite{Voltage: attiny, Technology: "Li-ion"}

	if cmd.DockPin != "" {
		dock, err := source.OpenDockPin(cmd.DockPin)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.Plug = dock
	}
	if cmd.AHT20 {
		sensor := source.AHT20{}
		log.Info("Checking AHT20 calibration")
		if err := sensor.CheckCalibration(); err != nil {
			log.Warnf("AHT20 calibration check failed: %v", err)
		}
		c.Thermometer = sensor
	}
	return c, nil
}
