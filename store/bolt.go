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
	"fmt"
	"strconv"
	"time"

	"github.com/TheCacophonyProject/battery-estimator/estimator"
	"github.com/boltdb/bolt"
)

var (
	estimateBucket = []byte("estimate")
	voltageKey     = []byte("last_voltage_mV")
	levelKey       = []byte("last_level")
)

// BoltStore keeps the estimate as two decimal strings in a bolt bucket.
type BoltStore struct {
	db *bolt.DB
}

func OpenBolt(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(estimateBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Load() (estimator.PersistentEstimate, bool, error) {
	var p estimator.PersistentEstimate
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(estimateBucket)
		voltage := b.Get(voltageKey)
		level := b.Get(levelKey)
		if voltage == nil || level == nil {
			return nil
		}
		var err error
		if p.LastVoltage, err = strconv.Atoi(string(voltage)); err != nil {
			return fmt.Errorf("bad stored voltage %q: %w", voltage, err)
		}
		if p.LastLevel, err = strconv.Atoi(string(level)); err != nil {
			return fmt.Errorf("bad stored level %q: %w", level, err)
		}
		found = true
		return nil
	})
	return p, found, err
}

func (s *BoltStore) Save(p estimator.PersistentEstimate) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(estimateBucket)
		if err := b.Put(voltageKey, []byte(strconv.Itoa(p.LastVoltage))); err != nil {
			return err
		}
		return b.Put(levelKey, []byte(strconv.Itoa(p.LastLevel)))
	})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
