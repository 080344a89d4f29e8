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
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/TheCacophonyProject/battery-estimator/i2crequest"
	"github.com/sigurn/crc8"
)

const (
	AHT20Address     = 0x38
	AHT20_BUSY       = 1 << 7
	AHT20_CALIBRATED = 1 << 3
	AHT20_STATUS_REG = 0x71

	aht20Timeout  = 3000
	aht20Attempts = 3
)

var errBadCRC = errors.New("bad crc")

var aht20CRCTable = crc8.MakeTable(crc8.Params{
	Poly:   0x31, // 1 + x^4 + x^5 + x^8
	Init:   0xFF,
	RefIn:  false,
	RefOut: false,
	XorOut: 0x00,
})

// AHT20 reads the board temperature through the i2c service. The sensor sits
// next to the battery so it stands in for the battery temperature.
type AHT20 struct{}

// CheckCalibration only needs to be done once at startup.
func (AHT20) CheckCalibration() error {
	rawData, err := i2crequest.Tx(AHT20Address, []byte{AHT20_STATUS_REG}, 7, aht20Timeout)
	if err != nil {
		return err
	}
	if len(rawData) == 0 {
		return errors.New("empty status read")
	}
	if rawData[0]&AHT20_CALIBRATED == AHT20_CALIBRATED {
		return nil
	}

	log.Debug("AHT20 is not calibrated, triggering a calibration")
	if _, err := i2crequest.Tx(AHT20Address, []byte{0xBE, 0x08, 0x00}, 0, aht20Timeout); err != nil {
		return err
	}
	sleepFn(100 * time.Millisecond)

	rawData, err = i2crequest.Tx(AHT20Address, []byte{AHT20_STATUS_REG}, 7, aht20Timeout)
	if err != nil {
		return err
	}
	if len(rawData) == 0 {
		return errors.New("empty status read")
	}
	if rawData[0]&AHT20_CALIBRATED == AHT20_CALIBRATED {
		return nil
	}
	return errors.New("calibration failed")
}

// ReadTemperature returns tenths of a degree Celsius.
func (a AHT20) ReadTemperature() (int, error) {
	var err error
	for range aht20Attempts {
		var temp float64
		temp, err = a.readingAttempt()
		if err == nil {
			return int(math.Round(temp * 10)), nil
		}
		log.Debug("Error in attempt for getting a temperature reading: ", err)
	}
	return 0, err
}

func (AHT20) readingAttempt() (float64, error) {
	// Trigger reading by sending AC 33 00
	if _, err := i2crequest.Tx(AHT20Address, []byte{0xAC, 0x33, 0x00}, 0, aht20Timeout); err != nil {
		return 0, err
	}

	// Datasheet says at least 75ms.
	var rawData []byte
	ready := false
	for range 3 {
		sleepFn(100 * time.Millisecond)
		var err error
		rawData, err = i2crequest.Tx(AHT20Address, []byte{AHT20_STATUS_REG}, 7, aht20Timeout)
		if err != nil {
			return 0, err
		}
		if len(rawData) > 0 && rawData[0]&AHT20_BUSY == 0 {
			ready = true
			break
		}
	}
	if !ready {
		return 0, errors.New("temperature reading was not ready after 3 tries")
	}
	if len(rawData) != 7 {
		return 0, fmt.Errorf("reading length: %d", len(rawData))
	}
	if crc8.Checksum(rawData[:6], aht20CRCTable) != rawData[6] {
		return 0, errBadCRC
	}

	temperatureRaw := uint32(rawData[3]&0x0F)<<16 | uint32(rawData[4])<<8 | uint32(rawData[5])
	return float64(temperatureRaw)/float64(1<<20)*200 - 50, nil
}
