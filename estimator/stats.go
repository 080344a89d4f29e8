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

package estimator

import "sync"

const statsQueueSize = 32

// statsQueue delivers stats updates from its own goroutine. When the recorder
// falls behind, new updates are dropped.
type statsQueue struct {
	rec StatsRecorder

	mu     sync.Mutex
	closed bool
	calls  chan func(StatsRecorder) error
	done   chan struct{}
}

func newStatsQueue(rec StatsRecorder, size int) *statsQueue {
	q := &statsQueue{
		rec:   rec,
		calls: make(chan func(StatsRecorder) error, size),
		done:  make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *statsQueue) push(fn func(StatsRecorder) error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	select {
	case q.calls <- fn:
	default:
		log.Debug("Stats recorder is behind, dropping update")
	}
}

func (q *statsQueue) run() {
	defer close(q.done)
	for fn := range q.calls {
		q.deliver(fn)
	}
}

func (q *statsQueue) deliver(fn func(StatsRecorder) error) {
	defer func() {
		if r := recover(); r != nil {
			log.Warnf("Stats recorder panicked: %v", r)
		}
	}()
	if err := fn(q.rec); err != nil {
		log.Debugf("Dropping stats update: %v", err)
	}
}

func (q *statsQueue) close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.calls)
	q.mu.Unlock()
	<-q.done
}
