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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/TheCacophonyProject/battery-estimator/estimator"
	"github.com/TheCacophonyProject/battery-estimator/source"
)

// replay runs a readings log through a fresh estimator and writes every
// report as a line of JSON.
func replay(path string, cfg estimator.Config, w io.Writer) error {
	src, err := source.OpenReplay(path)
	if err != nil {
		return err
	}
	defer src.Close()
	return replayFrom(src, cfg, w)
}

func replayFrom(src source.Source, cfg estimator.Config, w io.Writer) error {
	est, err := estimator.New(cfg)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	samples := 0
	for {
		s, err := src.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		samples++
		res := est.Process(s, estimator.BusyFlags{})
		for _, e := range res.Events {
			log.Infof("%d: %s at %d%%", s.Timestamp, e.Type, e.Level)
		}
		if res.Report != nil {
			if err := enc.Encode(res.Report); err != nil {
				return err
			}
		}
	}
	log.Infof("Replayed %d samples", samples)
	return nil
}

// printCurves writes the voltage for every step of both capacity curves.
func printCurves(cfg estimator.Config, step int, w io.Writer) error {
	if step <= 0 {
		return fmt.Errorf("step must be positive, got %d", step)
	}
	discharge, err := estimator.NewCapacityCurve(cfg.DischargeCurve)
	if err != nil {
		return fmt.Errorf("discharge curve: %w", err)
	}
	charge, err := estimator.NewCapacityCurve(cfg.ChargeCurve)
	if err != nil {
		return fmt.Errorf("charge curve: %w", err)
	}
	fmt.Fprintf(w, "%5s %10s %10s\n", "level", "discharge", "charge")
	for level := estimator.Scale; level >= 0; level -= step {
		fmt.Fprintf(w, "%5d %10s %10s\n", level, curveVoltage(discharge, level), curveVoltage(charge, level))
	}
	return nil
}

func curveVoltage(c *estimator.CapacityCurve, level int) string {
	v, ok := c.CapacityToVoltage(level)
	if !ok {
		return "-"
	}
	return strconv.Itoa(v)
}
