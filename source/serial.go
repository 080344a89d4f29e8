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
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/TheCacophonyProject/battery-estimator/estimator"
	"github.com/tarm/serial"
)

// Serial reads a fuel gauge that prints one line of key=value pairs per
// sample, for example "voltage=3850 status=charging plug=usb temp=251".
type Serial struct {
	port   io.ReadCloser
	reader *bufio.Reader
}

func OpenSerial(name string, baud int) (*Serial, error) {
	port, err := serial.OpenPort(&serial.Config{
		Name:        name,
		Baud:        baud,
		ReadTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	return NewSerial(port), nil
}

func NewSerial(port io.ReadCloser) *Serial {
	return &Serial{port: port, reader: bufio.NewReader(port)}
}

func (s *Serial) Read() (estimator.Sample, error) {
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			return estimator.Sample{}, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		return ParseGaugeLine(line)
	}
}

func (s *Serial) Close() error {
	return s.port.Close()
}

// ParseGaugeLine parses one fuel gauge line. Unknown keys are ignored and a
// line without a voltage is an error.
func ParseGaugeLine(line string) (estimator.Sample, error) {
	s := estimator.Sample{
		Health:  estimator.HealthGood,
		Present: true,
	}
	hasVoltage := false
	for _, field := range strings.Fields(line) {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			return estimator.Sample{}, fmt.Errorf("malformed field '%s'", field)
		}
		switch key {
		case "voltage":
			v, err := strconv.Atoi(value)
			if err != nil {
				return estimator.Sample{}, fmt.Errorf("bad voltage '%s': %w", value, err)
			}
			s.Voltage = v
			hasVoltage = true
		case "status":
			s.Status = estimator.ParseStatus(value)
		case "plug":
			s.Plug = estimator.ParsePlugType(value)
		case "health":
			s.Health = estimator.ParseHealth(value)
		case "temp":
			t, err := strconv.Atoi(value)
			if err != nil {
				return estimator.Sample{}, fmt.Errorf("bad temperature '%s': %w", value, err)
			}
			s.Temperature = t
		case "present":
			s.Present = value == "1" || value == "true"
		case "tech":
			s.Technology = value
		}
	}
	if !hasVoltage {
		return estimator.Sample{}, fmt.Errorf("no voltage in '%s'", line)
	}
	return s, nil
}
