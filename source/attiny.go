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
	"io"
	"sync"
	"time"

	"github.com/TheCacophonyProject/battery-estimator/i2crequest"
	"periph.io/x/conn/v3/i2c"
)

type Register uint8

const (
	batteryCheckCtrlReg Register = iota + 0x10
	batteryLow1Reg
	batteryLow2Reg
	batteryLVDivVal1Reg
	batteryLVDivVal2Reg
	batteryHVDivVal1Reg
	batteryHVDivVal2Reg
)

const (
	attinyI2CAddress = 0x25

	// Parameters for transaction retries.
	maxTxAttempts   = 5
	txRetryInterval = time.Second
)

var sleepFn = time.Sleep

// Rail picks which of the ATtiny's voltage dividers to read.
type Rail struct {
	reg1, reg2 Register
	// Divider resistors in ohms, top and bottom.
	top, bottom float64
}

var (
	RailHV = Rail{reg1: batteryHVDivVal1Reg, reg2: batteryHVDivVal2Reg, top: 2000, bottom: 150 + 22}
	RailLV = Rail{reg1: batteryLVDivVal1Reg, reg2: batteryLVDivVal2Reg, top: 2000, bottom: 560 + 33}
)

// ATtiny reads the battery voltage through the ATtiny's ADC and reports it
// per cell.
type ATtiny struct {
	mu    sync.Mutex
	dev   *i2c.Dev
	rail  Rail
	cells int
}

func NewATtiny(bus i2c.Bus, rail Rail, cells int) (*ATtiny, error) {
	if cells < 1 {
		return nil, fmt.Errorf("cell count must be at least 1, got %d", cells)
	}
	return &ATtiny{
		dev:   &i2c.Dev{Bus: bus, Addr: attinyI2CAddress},
		rail:  rail,
		cells: cells,
	}, nil
}

func (a *ATtiny) ReadVoltage() (int, error) {
	raw, err := a.readBattery(a.rail.reg1, a.rail.reg2)
	if err != nil {
		return 0, err
	}
	v := float64(raw) * 3.3 / 1023
	v = v * (a.rail.top + a.rail.bottom) / a.rail.bottom
	return int(v * 1000 / float64(a.cells)), nil
}

// Close closes the bus if it can be closed.
func (a *ATtiny) Close() error {
	if c, ok := a.dev.Bus.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// readBattery triggers a conversion by setting bit 7 of reg1 and waits for
// the ATtiny to clear it.
func (a *ATtiny) readBattery(reg1, reg2 Register) (uint16, error) {
	if err := a.tx(i2crequest.AddCRC([]byte{byte(reg1), 1 << 7}), nil); err != nil {
		return 0, err
	}
	for i := 0; i < 5; i++ {
		sleepFn(200 * time.Millisecond)
		val1, err := a.readRegister(reg1)
		if err != nil {
			return 0, err
		}
		if val1&(1<<7) == 0 {
			val2, err := a.readRegister(reg2)
			if err != nil {
				return 0, err
			}
			return uint16(val1)<<8 | uint16(val2), nil
		}
	}
	return 0, fmt.Errorf("failed to read battery voltage from registers %d and %d", reg1, reg2)
}

func (a *ATtiny) readRegister(register Register) (uint8, error) {
	read := make([]byte, 3) // 1 byte of data and 2 of CRC
	if err := a.tx(i2crequest.AddCRC([]byte{byte(register)}), read); err != nil {
		return 0, err
	}
	if err := i2crequest.VerifyCRC(read); err != nil {
		return 0, err
	}
	return read[0], nil
}

func (a *ATtiny) tx(write, read []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var errs []error
	for attempt := 1; ; attempt++ {
		err := a.dev.Tx(write, read)
		if err == nil {
			return nil
		}
		errs = append(errs, err)
		if attempt >= maxTxAttempts {
			return errors.Join(errs...)
		}
		sleepFn(txRetryInterval)
	}
}
