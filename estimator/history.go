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

// HistoryEntry is one recorded cycle.
type HistoryEntry struct {
	Level   int
	Voltage int
	Status  Status
	Time    int64 // seconds
}

// HistoryRing keeps the last three cycles so the filters can see how long the
// device slept and how far the voltage moved.
type HistoryRing struct {
	entries [historySize]HistoryEntry
	next    int
	count   int
}

// Append records e and returns the deltas between the two most recent entries
// as they stood before e was written. ok is false until two entries exist.
func (h *HistoryRing) Append(e HistoryEntry) (deltaVoltage, deltaSeconds int, ok bool) {
	if h.count >= 2 {
		last := h.at(1)
		prev := h.at(2)
		deltaVoltage = prev.Voltage - last.Voltage
		deltaSeconds = int(last.Time - prev.Time)
		ok = true
	}
	h.entries[h.next] = e
	h.next = (h.next + 1) % historySize
	if h.count < historySize {
		h.count++
	}
	return deltaVoltage, deltaSeconds, ok
}

// at returns the entry written n appends ago, 1 being the latest.
func (h *HistoryRing) at(n int) HistoryEntry {
	return h.entries[(h.next-n+historySize)%historySize]
}

// Latest returns the newest entry, or false when the ring is empty.
func (h *HistoryRing) Latest() (HistoryEntry, bool) {
	if h.count == 0 {
		return HistoryEntry{}, false
	}
	return h.at(1), true
}

func (h *HistoryRing) Len() int {
	return h.count
}
