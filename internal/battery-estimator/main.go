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

package batteryestimator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/TheCacophonyProject/battery-estimator/estimator"
	"github.com/TheCacophonyProject/battery-estimator/source"
	"github.com/TheCacophonyProject/battery-estimator/store"
	"github.com/TheCacophonyProject/event-reporter/v3/eventclient"
	config "github.com/TheCacophonyProject/go-config"
	"github.com/TheCacophonyProject/go-utils/logging"
	arg "github.com/alexflint/go-arg"
)

var (
	log     = logging.NewLogger("info")
	version = "<not set>"
)

type Args struct {
	Run       *RunCmd    `arg:"subcommand:run"    help:"Run the estimator service."`
	Replay    *ReplayCmd `arg:"subcommand:replay" help:"Run a readings log through the estimator and print the reports."`
	Curve     *CurveCmd  `arg:"subcommand:curve"  help:"Print the capacity curves in use."`
	ConfigDir string     `arg:"-c,--config" help:"configuration folder"`
	logging.LogArgs
}

type RunCmd struct {
	StateDir       string        `arg:"--state-dir" default:"/var/lib/battery-estimator" help:"where the last estimate is kept"`
	Store          string        `arg:"--store" default:"bolt" help:"state store, bolt or file"`
	Source         string        `arg:"--source" default:"sysfs" help:"where samples come from: sysfs, attiny or serial"`
	PowerSupplyDir string        `arg:"--power-supply-dir" default:"/sys/class/power_supply" help:"sysfs power supply folder"`
	SerialPort     string        `arg:"--serial-port" default:"/dev/serial0" help:"fuel gauge serial port"`
	Baud           int           `arg:"--baud" default:"9600" help:"fuel gauge baud rate"`
	Rail           string        `arg:"--rail" default:"hv" help:"ATtiny voltage rail, hv or lv"`
	Cells          int           `arg:"--cells" default:"1" help:"cells in series on the ATtiny rail"`
	DockPin        string        `arg:"--dock-pin" help:"GPIO pin pulled high by the docking station"`
	AHT20          bool          `arg:"--aht20" help:"read the battery temperature from the AHT20 sensor"`
	Interval       time.Duration `arg:"--interval" default:"1m" help:"time between samples"`
	ReadingsLog    string        `arg:"--readings-log" default:"/var/log/battery-estimator.csv" help:"CSV log of every reading, empty to disable"`
	MaxReadings    int           `arg:"--max-readings" default:"20000" help:"lines kept in the readings log"`
	NoService      bool          `arg:"--no-service" help:"don't register the dbus service"`
	NoEvents       bool          `arg:"--no-events" help:"don't send events to the event reporter"`
}

type ReplayCmd struct {
	File string `arg:"positional,required" help:"readings log to replay"`
}

type CurveCmd struct {
	Step int `arg:"--step" default:"5" help:"level step between rows"`
}

func (Args) Version() string {
	return version
}

var defaultArgs = Args{
	ConfigDir: config.DefaultConfigDir,
}

func procArgs(input []string) (Args, error) {
	args := defaultArgs

	parser, err := arg.NewParser(arg.Config{}, &args)
	if err != nil {
		return Args{}, err
	}
	err = parser.Parse(input)
	if errors.Is(err, arg.ErrHelp) {
		parser.WriteHelp(os.Stdout)
		os.Exit(0)
	}
	if errors.Is(err, arg.ErrVersion) {
		fmt.Println(version)
		os.Exit(0)
	}
	if err == nil && args.Run == nil && args.Replay == nil && args.Curve == nil {
		err = errors.New("no subcommand given")
	}
	return args, err
}

func Run(inputArgs []string, ver string) error {
	version = ver
	args, err := procArgs(inputArgs)
	if err != nil {
		return fmt.Errorf("failed to parse args: %v", err)
	}

	log = logging.NewLogger(args.LogLevel)
	estimator.SetLogger(log)
	store.SetLogger(log)
	source.SetLogger(log)

	log.Infof("Running version: %s", version)

	tuning, err := loadTuning(args.ConfigDir)
	if err != nil {
		return err
	}

	switch {
	case args.Replay != nil:
		return replay(args.Replay.File, tuning.Config(), os.Stdout)
	case args.Curve != nil:
		return printCurves(tuning.Config(), args.Curve.Step, os.Stdout)
	default:
		return run(args.ConfigDir, args.Run, tuning)
	}
}

func voltageReadingsEnabled(configDir string) (bool, error) {
	conf, err := config.New(configDir)
	if err != nil {
		return false, err
	}
	battery := config.DefaultBattery()
	if err := conf.Unmarshal(config.BatteryKey, &battery); err != nil {
		return false, err
	}
	return battery.EnableVoltageReadings, nil
}

func run(configDir string, cmd *RunCmd, tuning *tuning) error {
	enabled, err := voltageReadingsEnabled(configDir)
	if err != nil {
		return err
	}
	if !enabled {
		log.Info("Voltage readings are disabled in the battery config, not estimating")
		return nil
	}

	if err := os.MkdirAll(cmd.StateDir, 0755); err != nil {
		return err
	}
	lock, err := store.LockDir(cmd.StateDir)
	if err != nil {
		return err
	}
	defer lock.Unlock()

	st, err := store.Open(cmd.Store, cmd.StateDir)
	if err != nil {
		return err
	}
	opts := []estimator.Option{}
	persisted, found, err := st.Load()
	if err != nil {
		log.Errorf("Failed to load last estimate, starting fresh: %v", err)
	} else if found {
		opts = append(opts, estimator.WithPersisted(persisted))
	}
	writer := store.NewAsyncWriter(st)
	defer writer.Close()
	opts = append(opts, estimator.WithPersister(writer))

	if cmd.ReadingsLog != "" {
		readings := newReadingsLog(cmd.ReadingsLog, cmd.MaxReadings)
		if err := readings.trim(); err != nil {
			log.Errorf("Failed to trim readings log: %v", err)
		}
		opts = append(opts, estimator.WithStats(readings))
	}

	est, err := estimator.New(tuning.Config(), opts...)
	if err != nil {
		return err
	}
	defer est.Close()
	tuning.Watch(func(cfg estimator.Config) {
		if err := est.Reconfigure(cfg); err != nil {
			log.Errorf("Ignoring new tuning: %v", err)
			return
		}
		log.Info("Applied new tuning")
	})

	src, err := openSource(cmd)
	if err != nil {
		return err
	}
	defer src.Close()

	activity := &activityTracker{}
	sinks := []sink{}
	if !cmd.NoEvents {
		sinks = append(sinks, eventSink{addEvent: eventclient.AddEvent, now: time.Now})
	}
	if !cmd.NoService {
		svc, err := startService(est, activity)
		if err != nil {
			return err
		}
		sinks = append(sinks, dbusSink{conn: svc.conn})
	}
	rep := newReporter(reportQueueSize, sinks...)
	defer rep.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loop := &pollLoop{
		est:      est,
		src:      src,
		activity: activity,
		reporter: rep,
		interval: cmd.Interval,
		clock:    bootSeconds,
	}
	return loop.run(ctx)
}
