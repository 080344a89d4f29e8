package source

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/TheCacophonyProject/battery-estimator/estimator"
	"github.com/TheCacophonyProject/battery-estimator/i2crequest"
	"github.com/sigurn/crc8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/i2c/i2ctest"
)

var noSleepFn = func(d time.Duration) {}

func writeAttr(t *testing.T, dir, name, value string) {
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(value+"\n"), 0644))
}

func TestSysfs(t *testing.T) {
	dir := t.TempDir()
	battery := filepath.Join(dir, "battery")
	writeAttr(t, battery, "voltage_now", "3850000")
	writeAttr(t, battery, "status", "Charging")
	writeAttr(t, battery, "health", "Good")
	writeAttr(t, battery, "present", "1")
	writeAttr(t, battery, "temp", "265")
	writeAttr(t, battery, "technology", "Li-ion")
	writeAttr(t, filepath.Join(dir, "ac"), "online", "0")
	writeAttr(t, filepath.Join(dir, "usb"), "online", "1")

	s, err := NewSysfs(dir).Read()
	require.NoError(t, err)
	assert.Equal(t, 3850, s.Voltage)
	assert.Equal(t, estimator.StatusCharging, s.Status)
	assert.Equal(t, estimator.HealthGood, s.Health)
	assert.True(t, s.Present)
	assert.Equal(t, 265, s.Temperature)
	assert.Equal(t, "Li-ion", s.Technology)
	assert.Equal(t, estimator.PlugUSB, s.Plug)
}

func TestSysfsMissingBattery(t *testing.T) {
	_, err := NewSysfs(t.TempDir()).Read()
	assert.Error(t, err)
}

func TestATtinyReadVoltage(t *testing.T) {
	sleepFn = noSleepFn
	bus := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: attinyI2CAddress, W: i2crequest.AddCRC([]byte{byte(batteryHVDivVal1Reg), 0x80})},
			// Conversion still running.
			{Addr: attinyI2CAddress, W: i2crequest.AddCRC([]byte{byte(batteryHVDivVal1Reg)}), R: i2crequest.AddCRC([]byte{0x80})},
			{Addr: attinyI2CAddress, W: i2crequest.AddCRC([]byte{byte(batteryHVDivVal1Reg)}), R: i2crequest.AddCRC([]byte{0x01})},
			{Addr: attinyI2CAddress, W: i2crequest.AddCRC([]byte{byte(batteryHVDivVal2Reg)}), R: i2crequest.AddCRC([]byte{0x00})},
		},
		DontPanic: true,
	}
	a, err := NewATtiny(bus, RailHV, 3)
	require.NoError(t, err)

	v, err := a.ReadVoltage()
	require.NoError(t, err)
	// 256 counts through the 2172/172 divider, split over 3 cells.
	assert.InDelta(t, 3476, v, 1)
	require.NoError(t, bus.Close())
}

func TestATtinyBadCRC(t *testing.T) {
	sleepFn = noSleepFn
	bus := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: attinyI2CAddress, W: i2crequest.AddCRC([]byte{byte(batteryLVDivVal1Reg), 0x80})},
			{Addr: attinyI2CAddress, W: i2crequest.AddCRC([]byte{byte(batteryLVDivVal1Reg)}), R: []byte{0x01, 0x00, 0x00}},
		},
		DontPanic: true,
	}
	a, err := NewATtiny(bus, RailLV, 1)
	require.NoError(t, err)
	_, err = a.ReadVoltage()
	assert.Error(t, err)

	_, err = NewATtiny(bus, RailLV, 0)
	assert.Error(t, err)
}

func TestDockPin(t *testing.T) {
	pin := &gpiotest.Pin{N: "GPIO12"}
	d, err := NewDockPin(pin)
	require.NoError(t, err)

	plug, err := d.ReadPlug()
	require.NoError(t, err)
	assert.Equal(t, estimator.PlugNone, plug)

	pin.L = gpio.High
	plug, err = d.ReadPlug()
	require.NoError(t, err)
	assert.Equal(t, estimator.PlugDocking, plug)
}

func withCRC(data []byte) []byte {
	table := crc8.MakeTable(crc8.Params{Poly: 0x31, Init: 0xFF})
	return append(data, crc8.Checksum(data, table))
}

func TestAHT20ReadTemperature(t *testing.T) {
	sleepFn = noSleepFn
	defer i2crequest.StopMocking()
	i2crequest.MockTxResponses([]i2crequest.TxResponse{
		{Response: []byte{}},
		{Response: withCRC([]byte{0x00, 0x00, 0x00, 0x06, 0x00, 0x00})},
	})
	temp, err := AHT20{}.ReadTemperature()
	require.NoError(t, err)
	assert.Equal(t, 250, temp)
}

func TestAHT20BadCRC(t *testing.T) {
	sleepFn = noSleepFn
	defer i2crequest.StopMocking()
	responses := []i2crequest.TxResponse{}
	for range aht20Attempts {
		responses = append(responses,
			i2crequest.TxResponse{Response: []byte{}},
			i2crequest.TxResponse{Response: []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01}},
		)
	}
	i2crequest.MockTxResponses(responses)
	_, err := AHT20{}.ReadTemperature()
	assert.Equal(t, errBadCRC, err)
}

func TestAHT20Calibration(t *testing.T) {
	sleepFn = noSleepFn
	defer i2crequest.StopMocking()
	i2crequest.MockTxResponses([]i2crequest.TxResponse{
		{Response: []byte{0x00, 0, 0, 0, 0, 0, 0}},
		{Response: []byte{}},
		{Response: []byte{AHT20_CALIBRATED, 0, 0, 0, 0, 0, 0}},
	})
	assert.NoError(t, AHT20{}.CheckCalibration())
}

func TestParseGaugeLine(t *testing.T) {
	s, err := ParseGaugeLine("voltage=3850 status=charging plug=usb temp=251 tech=LiPo")
	require.NoError(t, err)
	assert.Equal(t, 3850, s.Voltage)
	assert.Equal(t, estimator.StatusCharging, s.Status)
	assert.Equal(t, estimator.PlugUSB, s.Plug)
	assert.Equal(t, 251, s.Temperature)
	assert.Equal(t, "LiPo", s.Technology)
	assert.True(t, s.Present)

	_, err = ParseGaugeLine("status=charging")
	assert.Error(t, err)
	_, err = ParseGaugeLine("voltage=abc")
	assert.Error(t, err)
	_, err = ParseGaugeLine("voltage")
	assert.Error(t, err)
}

func TestSerialRead(t *testing.T) {
	s := NewSerial(io.NopCloser(strings.NewReader("\nvoltage=3700 status=discharging\nvoltage=3690")))
	sample, err := s.Read()
	require.NoError(t, err)
	assert.Equal(t, 3700, sample.Voltage)
	assert.Equal(t, estimator.StatusDischarging, sample.Status)

	sample, err = s.Read()
	require.NoError(t, err)
	assert.Equal(t, 3690, sample.Voltage)

	_, err = s.Read()
	assert.Equal(t, io.EOF, err)
}

func TestReplay(t *testing.T) {
	data := "timestamp,raw_mV,status,plug,temperature,voltage_mV,level\n" +
		"60,3761,discharging,none,250,3761,50\n" +
		"120,3900,charging,ac,255,3761,50\n"
	r, err := NewReplay(strings.NewReader(data))
	require.NoError(t, err)

	s, err := r.Read()
	require.NoError(t, err)
	assert.Equal(t, int64(60), s.Timestamp)
	assert.Equal(t, 3761, s.Voltage)
	assert.Equal(t, estimator.PlugNone, s.Plug)

	s, err = r.Read()
	require.NoError(t, err)
	assert.Equal(t, estimator.StatusCharging, s.Status)
	assert.Equal(t, estimator.PlugAC, s.Plug)
	assert.Equal(t, 255, s.Temperature)

	_, err = r.Read()
	assert.Equal(t, io.EOF, err)
	assert.NoError(t, r.Close())

	_, err = NewReplay(strings.NewReader("timestamp,level\n"))
	assert.Error(t, err)
}

type fakeVoltage struct {
	v   int
	err error
}

func (f fakeVoltage) ReadVoltage() (int, error) { return f.v, f.err }

type fakePlug estimator.PlugType

func (f fakePlug) ReadPlug() (estimator.PlugType, error) { return estimator.PlugType(f), nil }

type fakeThermometer struct {
	temps []int
}

func (f *fakeThermometer) ReadTemperature() (int, error) {
	if len(f.temps) == 0 {
		return 0, errors.New("sensor gone")
	}
	t := f.temps[0]
	f.temps = f.temps[1:]
	return t, nil
}

func TestComposite(t *testing.T) {
	c := &Composite{
		Voltage:     fakeVoltage{v: 3800},
		Plug:        fakePlug(estimator.PlugDocking),
		Thermometer: &fakeThermometer{temps: []int{230}},
	}
	s, err := c.Read()
	require.NoError(t, err)
	assert.Equal(t, 3800, s.Voltage)
	assert.Equal(t, estimator.PlugDocking, s.Plug)
	assert.Equal(t, estimator.StatusCharging, s.Status)
	assert.Equal(t, 230, s.Temperature)

	// A failed voltage read becomes a zero sample, the temperature is kept.
	c.Voltage = fakeVoltage{err: errors.New("i2c timeout")}
	c.Plug = fakePlug(estimator.PlugNone)
	s, err = c.Read()
	require.NoError(t, err)
	assert.Equal(t, 0, s.Voltage)
	assert.Equal(t, estimator.StatusDischarging, s.Status)
	assert.Equal(t, 230, s.Temperature)
	assert.NoError(t, c.Close())

	_, err = (&Composite{}).Read()
	assert.Error(t, err)
}
