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
	"errors"
	"path/filepath"

	"github.com/gofrs/flock"
)

var ErrLocked = errors.New("state directory is locked by another process")

const lockFileName = ".lock"

// DirLock stops two estimators from sharing one state directory.
type DirLock struct {
	fl *flock.Flock
}

func LockDir(dir string) (*DirLock, error) {
	fl := flock.New(filepath.Join(dir, lockFileName))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, err
	}
	if !locked {
		return nil, ErrLocked
	}
	return &DirLock{fl: fl}, nil
}

func (l *DirLock) Unlock() error {
	return l.fl.Unlock()
}
