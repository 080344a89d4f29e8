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

package main

import (
	"os"

	batteryestimator "github.com/TheCacophonyProject/battery-estimator/internal/battery-estimator"
	"github.com/TheCacophonyProject/go-utils/logging"
)

var version = "<not set>"

var log *logging.Logger

func main() {
	log = logging.NewLogger("info")
	if err := batteryestimator.Run(os.Args[1:], version); err != nil {
		log.Fatal(err)
	}
}
