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

package source

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/TheCacophonyProject/battery-estimator/estimator"
)

// ReplayColumns is the header written by the readings log and expected by
// Replay.
var ReplayColumns = []string{"timestamp", "raw_mV", "status", "plug", "temperature", "voltage_mV", "level"}

// Replay feeds samples back from a readings log. Timestamps come from the
// file. Read returns io.EOF after the last row.
type Replay struct {
	file   io.Closer
	reader *csv.Reader
	index  map[string]int
	line   int
}

func OpenReplay(path string) (*Replay, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r, err := NewReplay(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.file = f
	return r, nil
}

func NewReplay(r io.Reader) (*Replay, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	index := map[string]int{}
	for i, name := range header {
		index[name] = i
	}
	for _, required := range []string{"timestamp", "raw_mV", "status", "plug"} {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("missing column '%s'", required)
		}
	}
	return &Replay{reader: reader, index: index, line: 1}, nil
}

func (r *Replay) Read() (estimator.Sample, error) {
	record, err := r.reader.Read()
	if err != nil {
		return estimator.Sample{}, err
	}
	r.line++

	field := func(name string) string {
		i, ok := r.index[name]
		if !ok || i >= len(record) {
			return ""
		}
		return record[i]
	}
	ts, err := strconv.ParseInt(field("timestamp"), 10, 64)
	if err != nil {
		return estimator.Sample{}, fmt.Errorf("line %d: bad timestamp: %w", r.line, err)
	}
	voltage, err := strconv.Atoi(field("raw_mV"))
	if err != nil {
		return estimator.Sample{}, fmt.Errorf("line %d: bad voltage: %w", r.line, err)
	}
	temp, _ := strconv.Atoi(field("temperature"))

	return estimator.Sample{
		Voltage:     voltage,
		Status:      estimator.ParseStatus(field("status")),
		Plug:        estimator.ParsePlugType(field("plug")),
		Health:      estimator.HealthGood,
		Temperature: temp,
		Present:     true,
		Timestamp:   ts,
	}, nil
}

func (r *Replay) Close() error {
	if r.file == nil {
		return nil
	}
	return r.file.Close()
}
