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
	"sync"

	"github.com/TheCacophonyProject/battery-estimator/estimator"
)

var ErrClosed = errors.New("writer is closed")

// AsyncWriter hands saves to a background goroutine so an estimation cycle
// never waits on the disk. Only the newest pending estimate is kept.
type AsyncWriter struct {
	store Store

	mu      sync.Mutex
	closed  bool
	pending chan estimator.PersistentEstimate
	done    chan struct{}
}

func NewAsyncWriter(s Store) *AsyncWriter {
	w := &AsyncWriter{
		store:   s,
		pending: make(chan estimator.PersistentEstimate, 1),
		done:    make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *AsyncWriter) run() {
	defer close(w.done)
	for p := range w.pending {
		if err := w.store.Save(p); err != nil {
			log.Errorf("Failed to save estimate: %v", err)
		}
	}
}

// Save queues p, replacing anything not yet written.
func (w *AsyncWriter) Save(p estimator.PersistentEstimate) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	select {
	case <-w.pending:
	default:
	}
	w.pending <- p
	return nil
}

// Close writes out the pending estimate and closes the underlying store.
func (w *AsyncWriter) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	w.closed = true
	close(w.pending)
	w.mu.Unlock()

	<-w.done
	return w.store.Close()
}
