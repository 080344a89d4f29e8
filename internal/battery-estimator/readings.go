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
	"encoding/csv"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/TheCacophonyProject/battery-estimator/estimator"
	"github.com/TheCacophonyProject/battery-estimator/source"
)

const readingsTrimInterval = 24 * time.Hour

// readingsLog writes every cycle to a CSV file that the replay command can
// read back.
type readingsLog struct {
	mu       sync.Mutex
	path     string
	maxLines int
	lastTrim time.Time
	now      func() time.Time
}

func newReadingsLog(path string, maxLines int) *readingsLog {
	return &readingsLog{
		path:     path,
		maxLines: maxLines,
		now:      time.Now,
	}
}

func (r *readingsLog) SetBatteryState(s estimator.BatteryState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := os.Stat(r.path)
	newFile := os.IsNotExist(err)

	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if newFile {
		if err := w.Write(source.ReplayColumns); err != nil {
			return err
		}
	}
	err = w.Write([]string{
		strconv.FormatInt(s.Time, 10),
		strconv.Itoa(s.RawVoltage),
		s.DriverStatus.String(),
		s.Plug.String(),
		strconv.Itoa(s.Temperature),
		strconv.Itoa(s.Voltage),
		strconv.Itoa(s.Level),
	})
	if err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	if r.now().Sub(r.lastTrim) > readingsTrimInterval {
		if err := r.trimLocked(); err != nil {
			log.Errorf("Failed to trim readings log: %v", err)
		}
	}
	return nil
}

func (r *readingsLog) RecordCurrentLevel(level int) error {
	log.Debugf("Current level %d%%", level)
	return nil
}

func (r *readingsLog) trim() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.trimLocked()
}

func (r *readingsLog) trimLocked() error {
	r.lastTrim = r.now()
	return keepLastLines(r.path, r.maxLines)
}

// keepLastLines keeps the header and the last `maxLines` lines of the file.
func keepLastLines(filePath string, maxLines int) error {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil
	}
	tmpFile := filepath.Join(filepath.Dir(filePath), "."+filepath.Base(filePath)+".tmp")
	err := os.Remove(tmpFile)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	script := fmt.Sprintf("{ head -n 1 '%[1]s'; tail -n +2 '%[1]s' | tail -n %[2]d; } > '%[3]s'", filePath, maxLines, tmpFile)
	commands := []string{"sh", "-c", script}
	cmd := exec.Command(commands[0], commands[1:]...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("err running '%s', %v, %v", strings.Join(commands, " "), string(out), err)
	}
	return os.Rename(tmpFile, filePath)
}
