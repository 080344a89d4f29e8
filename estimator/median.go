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

import "sort"

// MedianFilter is a five slot median over the smoother output. It always
// holds five values: the first push after a reset fills every slot.
type MedianFilter struct {
	window  [medianSize]int
	scratch [medianSize]int
	cursor  int
	seeded  bool
}

// Push records v and returns the median of the window.
func (m *MedianFilter) Push(v int) int {
	if !m.seeded {
		for i := range m.window {
			m.window[i] = v
		}
		m.cursor = 0
		m.seeded = true
	} else {
		m.window[m.cursor] = v
		m.cursor = (m.cursor + 1) % medianSize
	}
	m.scratch = m.window
	sort.Ints(m.scratch[:])
	return m.scratch[medianSize/2]
}

func (m *MedianFilter) Reset() {
	m.seeded = false
	m.cursor = 0
}
