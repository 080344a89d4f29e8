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

// Package store keeps the last battery estimate across restarts.
package store

import (
	"fmt"
	"path/filepath"

	"github.com/TheCacophonyProject/battery-estimator/estimator"
	"github.com/sirupsen/logrus"
)

var log logrus.FieldLogger = logrus.New()

func SetLogger(l logrus.FieldLogger) {
	log = l
}

// Store persists a single PersistentEstimate.
type Store interface {
	// Load returns false when nothing has been saved yet.
	Load() (estimator.PersistentEstimate, bool, error)
	Save(p estimator.PersistentEstimate) error
	Close() error
}

const (
	KindBolt = "bolt"
	KindFile = "file"

	boltFileName = "estimate.db"
	jsonFileName = "estimate.json"
)

// Open opens the store of the given kind inside dir.
func Open(kind, dir string) (Store, error) {
	switch kind {
	case KindBolt, "":
		return OpenBolt(filepath.Join(dir, boltFileName))
	case KindFile:
		return NewFileStore(filepath.Join(dir, jsonFileName)), nil
	default:
		return nil, fmt.Errorf("unknown store kind '%s'", kind)
	}
}
