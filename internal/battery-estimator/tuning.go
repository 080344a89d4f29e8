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
	"errors"
	"fmt"
	"sync"

	"github.com/TheCacophonyProject/battery-estimator/estimator"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const tuningFileName = "battery-estimator"

// Keys holding lists. They replace the default list outright rather than
// being merged into it.
var listKeys = []string{"discharge-curve", "charge-curve", "resume-steps", "warning-thresholds", "icon-max"}

// tuning is the optional battery-estimator.toml in the config folder. Missing
// keys keep their defaults.
type tuning struct {
	v *viper.Viper

	mu    sync.Mutex
	cfg   estimator.Config
	found bool
}

func loadTuning(configDir string) (*tuning, error) {
	v := viper.New()
	v.SetConfigName(tuningFileName)
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	t := &tuning{v: v, cfg: estimator.DefaultConfig()}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			log.Debugf("No %s.toml in %s, using default tuning", tuningFileName, configDir)
			return t, nil
		}
		return nil, fmt.Errorf("failed to read tuning: %w", err)
	}
	cfg, err := decodeTuning(v)
	if err != nil {
		return nil, fmt.Errorf("bad tuning in %s: %w", v.ConfigFileUsed(), err)
	}
	log.Infof("Loaded tuning from %s", v.ConfigFileUsed())
	t.cfg = cfg
	t.found = true
	return t, nil
}

func decodeTuning(v *viper.Viper) (estimator.Config, error) {
	cfg := estimator.DefaultConfig()
	for _, key := range listKeys {
		if !v.IsSet(key) {
			continue
		}
		switch key {
		case "discharge-curve":
			cfg.DischargeCurve = nil
		case "charge-curve":
			cfg.ChargeCurve = nil
		case "resume-steps":
			cfg.ResumeSteps = nil
		case "warning-thresholds":
			cfg.WarningThresholds = nil
		case "icon-max":
			cfg.IconMax = nil
		}
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return estimator.Config{}, err
	}
	return cfg, cfg.Validate()
}

func (t *tuning) Config() estimator.Config {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cfg
}

// Watch calls apply with every valid edit of the tuning file.
func (t *tuning) Watch(apply func(estimator.Config)) {
	if !t.found {
		return
	}
	t.v.OnConfigChange(func(e fsnotify.Event) {
		log.Infof("Tuning file changed (%s)", e.Op)
		cfg, err := decodeTuning(t.v)
		if err != nil {
			log.Errorf("Ignoring bad tuning: %v", err)
			return
		}
		t.mu.Lock()
		t.cfg = cfg
		t.mu.Unlock()
		apply(cfg)
	})
	t.v.WatchConfig()
}
