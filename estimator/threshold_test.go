package estimator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWarningZone(t *testing.T) {
	cfg := DefaultConfig()
	th := NewThresholdTracker(&cfg)

	zones := map[int]int{100: 0, 31: 0, 30: 1, 16: 1, 15: 2, 10: 3, 5: 4, 1: 4, 0: 4}
	for level, zone := range zones {
		assert.Equal(t, zone, th.WarningZone(level), "level %d", level)
	}
}

func TestIconZone(t *testing.T) {
	cfg := DefaultConfig()
	th := NewThresholdTracker(&cfg)

	zones := map[int]int{0: 0, 4: 0, 5: 1, 29: 2, 50: 4, 89: 5, 100: 6}
	for level, zone := range zones {
		assert.Equal(t, zone, th.IconZone(level), "level %d", level)
	}
}

func TestLowBatteryOncePerDischarge(t *testing.T) {
	cfg := DefaultConfig()
	th := NewThresholdTracker(&cfg)

	lows := 0
	for _, level := range []int{20, 15, 9} {
		if th.Update(level, StatusDischarging, PlugNone).LowBattery {
			lows++
		}
	}
	assert.Equal(t, 1, lows)
	assert.True(t, th.LowBatterySent())

	out := th.Update(25, StatusCharging, PlugAC)
	assert.False(t, out.BatteryOkay)

	out = th.Update(35, StatusCharging, PlugAC)
	assert.True(t, out.BatteryOkay)
	assert.False(t, th.LowBatterySent())
}

func TestNoLowBatteryWhileCharging(t *testing.T) {
	cfg := DefaultConfig()
	th := NewThresholdTracker(&cfg)

	th.Update(20, StatusCharging, PlugUSB)
	assert.False(t, th.Update(15, StatusCharging, PlugUSB).LowBattery)

	// An unknown status on battery is not trusted either.
	th = NewThresholdTracker(&cfg)
	th.Update(20, StatusUnknown, PlugNone)
	assert.False(t, th.Update(15, StatusUnknown, PlugNone).LowBattery)
}

func TestLowBatteryOnDockWithoutCharge(t *testing.T) {
	cfg := DefaultConfig()
	th := NewThresholdTracker(&cfg)

	th.Update(20, StatusNotCharging, PlugDocking)
	assert.True(t, th.Update(15, StatusNotCharging, PlugDocking).LowBattery)
}

func TestShutdownEdge(t *testing.T) {
	cfg := DefaultConfig()
	th := NewThresholdTracker(&cfg)

	assert.True(t, th.Update(0, StatusDischarging, PlugNone).Shutdown)
	assert.False(t, th.Update(0, StatusDischarging, PlugNone).Shutdown)
	assert.False(t, th.Update(0, StatusCharging, PlugAC).Shutdown)
	assert.True(t, th.Update(0, StatusDischarging, PlugNone).Shutdown)
}

func TestDisplayLevelHysteresis(t *testing.T) {
	cfg := DefaultConfig()
	th := NewThresholdTracker(&cfg)

	assert.Equal(t, 50, th.DisplayLevel(50))
	assert.Equal(t, 50, th.DisplayLevel(49))
	assert.Equal(t, 46, th.DisplayLevel(46))
	assert.Equal(t, 48, th.DisplayLevel(48))
	assert.Equal(t, 48, th.DisplayLevel(50))
	assert.Equal(t, 53, th.DisplayLevel(53))
	// Two bins at once always moves.
	assert.Equal(t, 20, th.DisplayLevel(20))
}

func TestReportDecisionDischarging(t *testing.T) {
	cfg := DefaultConfig()
	r := NewReportDecision(&cfg)

	in := ReportInput{First: true, Level: 50, Status: StatusDischarging}
	assert.True(t, r.Decide(in))

	in = ReportInput{Level: 49, LastLevel: 50, Status: StatusDischarging, LastStatus: StatusDischarging}
	assert.False(t, r.Decide(in))
	in = ReportInput{Level: 48, LastLevel: 49, Status: StatusDischarging, LastStatus: StatusDischarging}
	assert.True(t, r.Decide(in))
	assert.Equal(t, 48, r.LastReported())
	in = ReportInput{Level: 47, LastLevel: 48, Status: StatusDischarging, LastStatus: StatusDischarging}
	assert.False(t, r.Decide(in))

	in = ReportInput{Level: 4, LastLevel: 4, Status: StatusDischarging, LastStatus: StatusDischarging}
	assert.True(t, r.Decide(in))
	assert.True(t, r.Decide(in))
}

func TestReportDecisionChanges(t *testing.T) {
	cfg := DefaultConfig()
	r := NewReportDecision(&cfg)
	r.Decide(ReportInput{First: true, Level: 60, Status: StatusDischarging})

	assert.True(t, r.Decide(ReportInput{Level: 60, LastLevel: 60, Status: StatusCharging, LastStatus: StatusDischarging, Plug: PlugAC}))
	assert.False(t, r.Decide(ReportInput{Level: 60, LastLevel: 60, Status: StatusCharging, LastStatus: StatusCharging, Plug: PlugAC, LastPlug: PlugAC}))
	assert.True(t, r.Decide(ReportInput{Level: 61, LastLevel: 60, Status: StatusCharging, LastStatus: StatusCharging, Plug: PlugAC, LastPlug: PlugAC}))
	assert.True(t, r.Decide(ReportInput{Level: 100, LastLevel: 100, Status: StatusFull, LastStatus: StatusFull, Plug: PlugAC, LastPlug: PlugAC, FullJustDeclared: true}))
	assert.True(t, r.Decide(ReportInput{Level: 100, LastLevel: 100, Status: StatusDischarging, LastStatus: StatusDischarging, Plug: PlugNone, LastPlug: PlugAC}))
	assert.True(t, r.Decide(ReportInput{Level: 99, LastLevel: 100, Status: StatusDischarging, LastStatus: StatusDischarging, ShutdownPending: true}))
}

func TestLowBatteryRearmsAfterCharging(t *testing.T) {
	cfg := DefaultConfig()
	th := NewThresholdTracker(&cfg)

	lows := []int{}
	step := func(level int, status Status, plug PlugType) {
		out := th.Update(level, status, plug)
		assert.False(t, out.BatteryOkay, "level %d", level)
		if out.LowBattery {
			lows = append(lows, level)
		}
	}

	step(20, StatusDischarging, PlugNone)
	step(15, StatusDischarging, PlugNone)

	// Topped up, but not past the close warning boundary.
	step(20, StatusCharging, PlugAC)
	step(28, StatusCharging, PlugAC)

	for _, level := range []int{28, 20, 15, 9, 3} {
		step(level, StatusDischarging, PlugNone)
	}
	assert.Equal(t, []int{15, 15}, lows)

	out := th.Update(40, StatusCharging, PlugAC)
	assert.True(t, out.BatteryOkay)
	assert.False(t, th.Update(45, StatusCharging, PlugAC).BatteryOkay)
}
