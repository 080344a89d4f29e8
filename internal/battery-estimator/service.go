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
	"strings"
	"sync"

	"github.com/TheCacophonyProject/battery-estimator/estimator"
	"github.com/godbus/dbus"
	"github.com/godbus/dbus/introspect"
)

const (
	dbusName = "org.cacophony.BatteryEstimator"
	dbusPath = "/org/cacophony/BatteryEstimator"
)

type service struct {
	conn     *dbus.Conn
	est      *estimator.Estimator
	activity *activityTracker
}

func startService(est *estimator.Estimator, activity *activityTracker) (*service, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, err
	}
	reply, err := conn.RequestName(dbusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return nil, err
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return nil, errors.New("name already taken")
	}

	s := &service{
		conn:     conn,
		est:      est,
		activity: activity,
	}
	if err := conn.Export(s, dbusPath, dbusName); err != nil {
		return nil, err
	}
	if err := conn.Export(genIntrospectable(s), dbusPath, "org.freedesktop.DBus.Introspectable"); err != nil {
		return nil, err
	}
	log.Infof("Started dbus service %s", dbusName)
	return s, nil
}

func genIntrospectable(v interface{}) introspect.Introspectable {
	node := &introspect.Node{
		Interfaces: []introspect.Interface{{
			Name:    dbusName,
			Methods: introspect.Methods(v),
			Signals: []introspect.Signal{
				{Name: "Report", Args: []introspect.Arg{{Name: "report", Type: "s"}}},
				{Name: "Event", Args: []introspect.Arg{{Name: "type", Type: "s"}, {Name: "level", Type: "i"}}},
			},
		}},
	}
	return introspect.NewIntrospectable(node)
}

// GetLevel returns the level of the latest cycle.
func (s *service) GetLevel() (int32, *dbus.Error) {
	return int32(s.est.Snapshot().Level), nil
}

// GetReport returns the latest report as JSON.
func (s *service) GetReport() (string, *dbus.Error) {
	r := s.est.LastReport()
	if r == nil {
		return "", makeDbusError("GetReport", errors.New("no report yet"))
	}
	b, err := json.Marshal(r)
	if err != nil {
		return "", makeDbusError("GetReport", err)
	}
	return string(b), nil
}

// SetActivity marks an activity (call, music, video, camera, screen, gps) as
// running or stopped.
func (s *service) SetActivity(name string, active bool) *dbus.Error {
	if err := s.activity.Set(name, active); err != nil {
		return makeDbusError("SetActivity", err)
	}
	log.Debugf("Activity %s set to %t", name, active)
	return nil
}

func makeDbusError(name string, err error) *dbus.Error {
	return &dbus.Error{
		Name: dbusName + "." + name,
		Body: []interface{}{err.Error()},
	}
}

// activityTracker holds what the device is busy with. Busy devices sag the
// battery voltage.
type activityTracker struct {
	mu    sync.Mutex
	flags estimator.BusyFlags
}

func (a *activityTracker) Set(name string, active bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch strings.ToLower(name) {
	case "call":
		a.flags.Call = active
	case "music":
		a.flags.Music = active
	case "video":
		a.flags.Video = active
	case "camera":
		a.flags.Camera = active
	case "screen":
		a.flags.Screen = active
	case "gps":
		a.flags.GPS = active
	default:
		return fmt.Errorf("unknown activity '%s'", name)
	}
	return nil
}

func (a *activityTracker) Flags() estimator.BusyFlags {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.flags
}
