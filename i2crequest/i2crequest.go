package i2crequest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/godbus/dbus"
)

const (
	dbusName = "org.cacophony.i2c"
	dbusPath = "/org/cacophony/i2c"
)

// TxResponse is a canned reply for Tx, used when running without the i2c
// service.
type TxResponse struct {
	Response []byte
	Err      error
}

var (
	mockMu        sync.Mutex
	mocking       bool
	mockResponses []TxResponse
)

var errNoMockResponse = errors.New("no mocked i2c responses left")

// MockTxResponses makes every following Tx return the given responses in
// order instead of calling the i2c service.
func MockTxResponses(responses []TxResponse) {
	mockMu.Lock()
	defer mockMu.Unlock()
	mocking = true
	mockResponses = append([]TxResponse(nil), responses...)
}

// StopMocking sends Tx back to the i2c service.
func StopMocking() {
	mockMu.Lock()
	defer mockMu.Unlock()
	mocking = false
	mockResponses = nil
}

func nextMockResponse() (TxResponse, bool) {
	mockMu.Lock()
	defer mockMu.Unlock()
	if !mocking {
		return TxResponse{}, false
	}
	if len(mockResponses) == 0 {
		return TxResponse{Err: errNoMockResponse}, true
	}
	r := mockResponses[0]
	mockResponses = mockResponses[1:]
	return r, true
}

// Tx writes to and then reads from the device at address through the i2c
// service, which serialises access to the bus between processes.
func Tx(address byte, write []byte, readLen, timeout int) ([]byte, error) {
	if r, ok := nextMockResponse(); ok {
		return r.Response, r.Err
	}
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, err
	}
	obj := conn.Object(dbusName, dbusPath)

	var response []byte
	if err := obj.Call(dbusName+".Tx", 0, address, write, readLen, timeout).Store(&response); err != nil {
		return nil, err
	}

	return response, nil
}

func CheckAddress(address byte, timeout int) error {
	_, err := Tx(address, []byte{0x00}, 1, timeout)
	return err
}

// TxWithCRC appends a CRC to write and checks and strips the CRC on the
// response.
func TxWithCRC(address byte, write []byte, readLen, timeout int) ([]byte, error) {
	if readLen != 0 {
		readLen += 2
	}
	response, err := Tx(address, AddCRC(write), readLen, timeout)
	if err != nil {
		return nil, err
	}
	if readLen == 0 {
		return []byte{}, nil
	}
	if err := VerifyCRC(response); err != nil {
		return nil, err
	}
	return response[:len(response)-2], nil
}

// AddCRC returns data with its big endian CRC appended.
func AddCRC(data []byte) []byte {
	crc := CalculateCRC(data)
	out := make([]byte, 0, len(data)+2)
	out = append(out, data...)
	return append(out, byte(crc>>8), byte(crc&0xFF))
}

// VerifyCRC checks the trailing two byte CRC of data.
func VerifyCRC(data []byte) error {
	if len(data) < 3 {
		return fmt.Errorf("invalid data length for CRC check: %d", len(data))
	}
	calculatedCRC := CalculateCRC(data[:len(data)-2])
	receivedCRC := uint16(data[len(data)-2])<<8 | uint16(data[len(data)-1])
	if calculatedCRC != receivedCRC {
		return fmt.Errorf("CRC mismatch: received 0x%X, calculated 0x%X", receivedCRC, calculatedCRC)
	}
	return nil
}

// CalculateCRC is CRC-16/AUG-CCITT.
func CalculateCRC(data []byte) uint16 {
	var crc uint16 = 0x1D0F
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
