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

package estimator

type ReportInput struct {
	First            bool
	Level            int
	LastLevel        int // level of the previous cycle
	Status           Status
	LastStatus       Status
	Plug             PlugType
	LastPlug         PlugType
	FullJustDeclared bool
	ShutdownPending  bool
}

// ReportDecision decides whether a cycle's result is worth a public report.
// While discharging it waits for the level to drop by a few percent, except
// near empty where every cycle is reported.
type ReportDecision struct {
	cfg          *Config
	lastReported int
}

func NewReportDecision(cfg *Config) *ReportDecision {
	return &ReportDecision{cfg: cfg, lastReported: -1}
}

func (r *ReportDecision) Decide(in ReportInput) bool {
	report := r.shouldReport(in)
	if report {
		r.lastReported = in.Level
	}
	return report
}

func (r *ReportDecision) shouldReport(in ReportInput) bool {
	if in.First || r.lastReported < 0 {
		return true
	}
	if in.Status != in.LastStatus || in.Plug != in.LastPlug {
		return true
	}
	if in.ShutdownPending {
		return true
	}
	if in.Status.IsCharging() {
		return in.Level != in.LastLevel || in.FullJustDeclared
	}
	if in.Level < r.cfg.ReportEveryCycleBelow {
		return true
	}
	return in.Level <= r.lastReported && r.lastReported-in.Level >= r.cfg.ReportDropStep
}

// LastReported returns the level of the last report, or -1 before the first.
func (r *ReportDecision) LastReported() int {
	return r.lastReported
}
