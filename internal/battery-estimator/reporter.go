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
	"time"

	"github.com/TheCacophonyProject/battery-estimator/estimator"
	"github.com/TheCacophonyProject/event-reporter/v3/eventclient"
	"github.com/godbus/dbus"
)

const reportQueueSize = 16

// sink is somewhere reports and edge events are published.
type sink interface {
	report(r estimator.BatteryReport) error
	event(e estimator.Event) error
}

// reporter publishes results off the estimation goroutine. When the sinks
// fall behind, new results are dropped.
type reporter struct {
	results chan estimator.Result
	sinks   []sink
	done    chan struct{}
}

func newReporter(queueSize int, sinks ...sink) *reporter {
	r := &reporter{
		results: make(chan estimator.Result, queueSize),
		sinks:   sinks,
		done:    make(chan struct{}),
	}
	go r.run()
	return r
}

// Dispatch queues res and reports false when it had to be dropped.
func (r *reporter) Dispatch(res estimator.Result) bool {
	if res.Report == nil && len(res.Events) == 0 {
		return true
	}
	select {
	case r.results <- res:
		return true
	default:
		log.Warn("Report queue is full, dropping result")
		return false
	}
}

func (r *reporter) run() {
	defer close(r.done)
	for res := range r.results {
		for _, s := range r.sinks {
			if res.Report != nil {
				if err := s.report(*res.Report); err != nil {
					log.Errorf("Failed to publish battery report: %v", err)
				}
			}
			for _, e := range res.Events {
				if err := s.event(e); err != nil {
					log.Errorf("Failed to publish %s: %v", e.Type, err)
				}
			}
		}
	}
}

// Close publishes everything queued and stops.
func (r *reporter) Close() {
	close(r.results)
	<-r.done
}

type eventSink struct {
	addEvent func(eventclient.Event) error
	now      func() time.Time
}

func (s eventSink) report(r estimator.BatteryReport) error {
	return s.addEvent(eventclient.Event{
		Timestamp: s.now(),
		Type:      "batteryReport",
		Details: map[string]interface{}{
			"level":          r.Level,
			"estimatedLevel": r.EstimatedLevel,
			"voltage":        r.Voltage,
			"status":         r.Status.String(),
			"plugged":        r.Plug.String(),
			"temperature":    float64(r.Temperature) / 10,
		},
	})
}

func (s eventSink) event(e estimator.Event) error {
	details := map[string]interface{}{
		"level": e.Level,
	}
	switch e.Type {
	case estimator.EventDischargeCycle:
		details["startLevel"] = e.StartLevel
		details["durationSeconds"] = int64(e.Duration.Seconds())
	case estimator.EventOverTemperature:
		details["temperature"] = float64(e.Temperature) / 10
	}
	return s.addEvent(eventclient.Event{
		Timestamp: s.now(),
		Type:      e.Type.String(),
		Details:   details,
	})
}

type dbusSink struct {
	conn *dbus.Conn
}

func (s dbusSink) report(r estimator.BatteryReport) error {
	b, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return s.conn.Emit(dbusPath, dbusName+".Report", string(b))
}

func (s dbusSink) event(e estimator.Event) error {
	return s.conn.Emit(dbusPath, dbusName+".Event", e.Type.String(), int32(e.Level))
}
