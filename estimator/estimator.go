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

// Package estimator turns raw battery voltage and status samples into a
// stable charge level and decides when that level is worth reporting.
package estimator

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var log logrus.FieldLogger = logrus.New()

// SetLogger replaces the package logger.
func SetLogger(l logrus.FieldLogger) {
	log = l
}

// BatteryState is forwarded to the stats recorder every cycle. Status is the
// estimated status, DriverStatus the one the sample came in with.
type BatteryState struct {
	Status       Status
	DriverStatus Status
	Health      Health
	Plug        PlugType
	Level       int
	Voltage     int
	RawVoltage  int
	Temperature int
	Time        int64
}

// StatsRecorder receives every cycle's state from a background goroutine.
// Failures are dropped, as are updates while the recorder is behind.
type StatsRecorder interface {
	SetBatteryState(s BatteryState) error
	RecordCurrentLevel(level int) error
}

// Persister stores the estimate so a restarted process can pick up where
// the last one left off. It must not block.
type Persister interface {
	Save(p PersistentEstimate) error
}

type Option func(*Estimator)

// WithPersisted seeds the first cycle with a previously saved estimate.
func WithPersisted(p PersistentEstimate) Option {
	return func(e *Estimator) {
		e.seed = p
	}
}

func WithStats(s StatsRecorder) Option {
	return func(e *Estimator) {
		e.statsRec = s
	}
}

func WithPersister(p Persister) Option {
	return func(e *Estimator) {
		e.persister = p
	}
}

// EstimatorState is all the mutable state carried between cycles.
type EstimatorState struct {
	first bool

	history   HistoryRing
	smoother  *VoltageSmoother
	median    MedianFilter
	charging  *ChargingLevelEstimator
	full      *FullDetector
	threshold *ThresholdTracker
	report    *ReportDecision

	// Values reported by the previous cycle.
	level       int
	voltage     int
	status      Status
	plug        PlugType
	health      Health
	present     bool
	temperature int
	critical    bool
	overTemp    bool

	dischargeTracking   bool
	dischargeStart      int64
	dischargeStartLevel int

	last       Result
	lastReport *BatteryReport
}

// Estimator runs the estimation pipeline. Cycles are serialised by a single
// mutex, each one runs to completion before the next is admitted.
type Estimator struct {
	mu sync.Mutex

	cfg       Config
	discharge *CapacityCurve
	charge    *CapacityCurve
	state     EstimatorState

	seed      PersistentEstimate
	statsRec  StatsRecorder
	stats     *statsQueue
	persister Persister
}

func New(cfg Config, opts ...Option) (*Estimator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid estimator config: %w", err)
	}
	e := &Estimator{cfg: cfg}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.buildCurves(); err != nil {
		return nil, err
	}
	if e.statsRec != nil {
		e.stats = newStatsQueue(e.statsRec, statsQueueSize)
	}
	e.state = EstimatorState{
		first:     true,
		smoother:  NewVoltageSmoother(&e.cfg),
		charging:  NewChargingLevelEstimator(&e.cfg),
		full:      NewFullDetector(&e.cfg, e.charge),
		threshold: NewThresholdTracker(&e.cfg),
		report:    NewReportDecision(&e.cfg),
	}
	return e, nil
}

func (e *Estimator) buildCurves() error {
	discharge, err := NewCapacityCurve(e.cfg.DischargeCurve)
	if err != nil {
		return fmt.Errorf("discharge curve: %w", err)
	}
	charge, err := NewCapacityCurve(e.cfg.ChargeCurve)
	if err != nil {
		return fmt.Errorf("charge curve: %w", err)
	}
	e.discharge = discharge
	e.charge = charge
	return nil
}

// Reconfigure swaps in new tunables. The filters restart from the next sample.
func (e *Estimator) Reconfigure(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid estimator config: %w", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg = cfg
	if err := e.buildCurves(); err != nil {
		return err
	}
	e.state.full.curve = e.charge
	e.state.smoother.Reset()
	e.state.median.Reset()
	return nil
}

// Process runs one cycle over s.
func (e *Estimator) Process(s Sample, busy BusyFlags) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := &e.state
	cfg := &e.cfg
	first := st.first

	raw := clampVoltage(s.Voltage)
	if first && raw == 0 && e.seed.LastVoltage <= 0 {
		// Nothing to fall back on yet.
		log.Warn("No valid battery voltage yet, skipping cycle")
		return st.last
	}
	voltage := raw
	if first {
		if e.seed.LastVoltage > 0 {
			voltage = clampVoltage(e.seed.LastVoltage)
			log.Infof("Restoring last estimate of %dmV, %d%%", voltage, e.seed.LastLevel)
		}
		st.level = clampLevel(e.seed.LastLevel)
		st.voltage = voltage
	}

	dv, dt, gapKnown := st.history.Append(HistoryEntry{
		Level:   st.level,
		Voltage: voltage,
		Status:  s.Status,
		Time:    s.Timestamp,
	})
	minute := s.Timestamp / 60

	var level int
	switch {
	case s.Status.IsCharging() && s.Plug.Plugged() && !first:
		level = st.charging.Next(ChargeInput{
			Voltage:     voltage,
			LastVoltage: st.voltage,
			LastLevel:   st.level,
			Ceiling:     e.discharge.VoltageToCapacity(voltage),
			Plug:        s.Plug,
			Minute:      minute,
		})
		voltage = e.chargeVoltage(level)
		st.smoother.Reset()
		st.median.Reset()
	case !s.Status.IsCharging() && st.status.IsCharging() && !first:
		// Charger just went away, the voltage is still settling.
		level = st.level
		voltage = st.voltage
		st.charging.Reset()
	default:
		st.charging.Reset()
		voltage = e.filter(voltage, FilterInput{
			Fallback:     st.voltage,
			DeltaVoltage: dv,
			DeltaSeconds: dt,
			GapKnown:     gapKnown,
			Startup:      first,
			Level:        st.level,
			Busy:         busy,
		})
		level = e.discharge.VoltageToCapacity(voltage)
	}

	full := st.full.Apply(FullInput{
		Level:   level,
		Voltage: voltage,
		Status:  s.Status,
		Plug:    s.Plug,
		Minute:  minute,
	})
	level = clampLevel(full.Level)
	voltage = clampVoltage(full.Voltage)
	status := full.Status

	log.Debugf("Cycle: raw=%dmV voltage=%dmV level=%d%% status=%s plug=%s", raw, voltage, level, status, s.Plug)

	res := Result{Level: level, Voltage: voltage, Status: status, Plug: s.Plug}

	overTemp := s.Temperature > cfg.OverTemperature
	if overTemp && !st.overTemp {
		log.Warnf("Battery temperature %.1fC is over the limit", float64(s.Temperature)/10)
		res.Events = append(res.Events, Event{Type: EventOverTemperature, Temperature: s.Temperature, Level: level})
	}
	st.overTemp = overTemp

	e.forwardStats(func(r StatsRecorder) error {
		return r.SetBatteryState(BatteryState{
			Status:       status,
			DriverStatus: s.Status,
			Health:       s.Health,
			Plug:         s.Plug,
			Level:        level,
			Voltage:      voltage,
			RawVoltage:   raw,
			Temperature:  s.Temperature,
			Time:         s.Timestamp,
		})
	})

	changed := first ||
		status != st.status ||
		s.Health != st.health ||
		s.Present != st.present ||
		level != st.level ||
		s.Plug != st.plug ||
		voltage != st.voltage ||
		s.Temperature != st.temperature
	if changed {
		e.observeChange(s, &res, full.JustDeclared)
	}

	e.persist(PersistentEstimate{LastVoltage: voltage, LastLevel: level})

	st.first = false
	st.level = level
	st.voltage = voltage
	st.status = status
	st.plug = s.Plug
	st.health = s.Health
	st.present = s.Present
	st.temperature = s.Temperature
	st.last = res
	return res
}

// observeChange raises the edge events and makes the report decision. It
// reads the previous cycle's values from the state, so it runs before they
// are overwritten.
func (e *Estimator) observeChange(s Sample, res *Result, fullJustDeclared bool) {
	st := &e.state
	first := st.first
	level := res.Level
	plugged := s.Plug.Plugged()

	if first && !plugged {
		e.startDischarge(s.Timestamp, level)
	} else if !first && s.Plug != st.plug {
		switch {
		case !st.plug.Plugged():
			if st.dischargeTracking && st.dischargeStartLevel != level {
				res.Events = append(res.Events, e.dischargeEvent(s.Timestamp, level))
			}
			st.dischargeTracking = false
		case !plugged:
			e.startDischarge(s.Timestamp, level)
		}
	}

	if level != st.level && !plugged {
		e.forwardStats(func(r StatsRecorder) error {
			return r.RecordCurrentLevel(level)
		})
	}

	critical := level <= e.cfg.CriticalLevel
	if critical && !st.critical && !plugged && st.dischargeTracking && !first {
		res.Events = append(res.Events, e.dischargeEvent(s.Timestamp, level))
	}
	st.critical = critical

	if !first {
		if plugged && !st.plug.Plugged() {
			res.Events = append(res.Events, Event{Type: EventPowerConnected, Level: level})
		} else if !plugged && st.plug.Plugged() {
			res.Events = append(res.Events, Event{Type: EventPowerDisconnected, Level: level})
		}
	}

	th := st.threshold.Update(level, res.Status, s.Plug)
	if th.LowBattery {
		log.Warnf("Low battery: %d%%", level)
		res.Events = append(res.Events, Event{Type: EventLowBattery, Level: level})
	}
	if th.BatteryOkay {
		res.Events = append(res.Events, Event{Type: EventBatteryOkay, Level: level})
	}
	if th.Shutdown {
		log.Error("Battery is empty and no power is connected")
		res.Events = append(res.Events, Event{Type: EventShutdownRequired, Level: level})
	}

	report := st.report.Decide(ReportInput{
		First:            first,
		Level:            level,
		LastLevel:        st.level,
		Status:           res.Status,
		LastStatus:       st.status,
		Plug:             s.Plug,
		LastPlug:         st.plug,
		FullJustDeclared: fullJustDeclared,
		ShutdownPending:  th.Shutdown,
	})
	if report {
		display := st.threshold.DisplayLevel(level)
		res.Report = &BatteryReport{
			Level:          display,
			EstimatedLevel: level,
			Scale:          Scale,
			Status:         res.Status,
			Health:         s.Health,
			Present:        s.Present,
			Voltage:        res.Voltage,
			Temperature:    s.Temperature,
			Technology:     s.Technology,
			Plug:           s.Plug,
			IconZone:       st.threshold.IconZone(display),
			Time:           s.Timestamp,
		}
		r := *res.Report
		st.lastReport = &r
	}
}

func (e *Estimator) startDischarge(now int64, level int) {
	e.state.dischargeTracking = true
	e.state.dischargeStart = now
	e.state.dischargeStartLevel = level
}

func (e *Estimator) dischargeEvent(now int64, level int) Event {
	return Event{
		Type:       EventDischargeCycle,
		Level:      level,
		StartLevel: e.state.dischargeStartLevel,
		Duration:   time.Duration(now-e.state.dischargeStart) * time.Second,
	}
}

func (e *Estimator) filter(raw int, in FilterInput) int {
	v, ok := e.state.smoother.Filter(raw, in)
	if !ok {
		log.Warnf("Bad voltage reading %dmV, keeping %dmV", raw, v)
		return v
	}
	return e.state.median.Push(v)
}

// chargeVoltage is the voltage reported for level while charging. A level
// under the charge table is a table miss and reports the table's lowest
// voltage rather than the miss sentinel.
func (e *Estimator) chargeVoltage(level int) int {
	v, ok := e.charge.CapacityToVoltage(level)
	if ok {
		return v
	}
	pts := e.cfg.ChargeCurve
	lowest := pts[len(pts)-1].Voltage
	log.Warnf("Level %d%% is below the charge table (miss value %d), using %dmV", level, v, lowest)
	return lowest
}

func (e *Estimator) forwardStats(fn func(StatsRecorder) error) {
	if e.stats == nil {
		return
	}
	e.stats.push(fn)
}

// Close waits for queued stats updates to be delivered. Process must not be
// called afterwards.
func (e *Estimator) Close() {
	if e.stats != nil {
		e.stats.close()
	}
}

func (e *Estimator) persist(p PersistentEstimate) {
	if e.persister == nil {
		return
	}
	if err := e.persister.Save(p); err != nil {
		log.Errorf("Failed to save battery estimate: %v", err)
	}
}

// Snapshot returns the result of the latest cycle.
func (e *Estimator) Snapshot() Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.last
}

// LastReport returns a copy of the latest emitted report, nil before the
// first one.
func (e *Estimator) LastReport() *BatteryReport {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.lastReport == nil {
		return nil
	}
	r := *e.state.lastReport
	return &r
}
