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

package store

import (
	"encoding/json"
	"os"
	"time"

	"github.com/TheCacophonyProject/battery-estimator/estimator"
)

type fileState struct {
	LastVoltage int       `json:"last_voltage_mV"`
	LastLevel   int       `json:"last_level"`
	LastUpdated time.Time `json:"last_updated"`
}

// FileStore keeps the estimate in a small JSON file.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load() (estimator.PersistentEstimate, bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return estimator.PersistentEstimate{}, false, nil
		}
		return estimator.PersistentEstimate{}, false, err
	}

	var state fileState
	if err := json.Unmarshal(data, &state); err != nil {
		return estimator.PersistentEstimate{}, false, err
	}
	return estimator.PersistentEstimate{LastVoltage: state.LastVoltage, LastLevel: state.LastLevel}, true, nil
}

// Save replaces the state file with a rename.
func (s *FileStore) Save(p estimator.PersistentEstimate) error {
	data, err := json.MarshalIndent(fileState{
		LastVoltage: p.LastVoltage,
		LastLevel:   p.LastLevel,
		LastUpdated: time.Now(),
	}, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *FileStore) Close() error {
	return nil
}
