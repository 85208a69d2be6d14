/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package cmd

import (
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/exp/maps"
	"golang.org/x/term"

	"github.com/flexptp/timersync/daemon"
	"github.com/flexptp/timersync/stats"
	"github.com/flexptp/timersync/timersync"
)

func okString() string   { return color.GreenString("[ OK ]") }
func warnString() string { return color.YellowString("[WARN]") }
func failString() string { return color.RedString("[FAIL]") }

var statusMonitoringFlag string

func init() {
	RootCmd.AddCommand(statusCmd)
	RootCmd.AddCommand(capturesCmd)
	statusCmd.Flags().StringVarP(&statusMonitoringFlag, "monitoring", "m", fmt.Sprintf("http://localhost:%d", daemon.DefaultConfig().MonitoringPort), "monitoring endpoint to fetch lock state from, empty to skip")
}

func stateString(s timersync.TimerStatus, st *stats.Stat) string {
	switch {
	case st != nil && st.Locked:
		return okString()
	case s.State == "REJECTED":
		return failString()
	}
	return warnString()
}

func statusRun(w io.Writer, status *daemon.Status, st stats.Stats) error {
	if !status.Running {
		fmt.Fprintln(w, warnString(), "timersync is not running")
	} else {
		fmt.Fprintln(w, okString(), "timersync is running")
	}
	fmt.Fprintf(w, "kp=%v kd=%v\n", status.Gains.Kp, status.Gains.Kd)

	byTimer := map[int]*stats.Stat{}
	for _, s := range st {
		byTimer[s.Timer] = s
	}
	if len(status.Timers) > 0 {
		table := tablewriter.NewWriter(w)
		table.Header("", "timer", "state", "period", "error(ns)", "mean(ns)", "stddev(ns)")
		for _, s := range status.Timers {
			row := []string{
				stateString(s, byTimer[s.Timer]),
				fmt.Sprintf("%d", s.Timer),
				s.State,
				fmt.Sprintf("%d", s.Period),
				fmt.Sprintf("%d", s.LastError),
			}
			if m, ok := byTimer[s.Timer]; ok {
				row = append(row, fmt.Sprintf("%.1f", m.ErrorMean), fmt.Sprintf("%.1f", m.ErrorStddev))
			} else {
				row = append(row, "", "")
			}
			if err := table.Append(row); err != nil {
				return err
			}
		}
		if err := table.Render(); err != nil {
			return err
		}
	}

	keys := maps.Keys(status.Counters)
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%s: %d\n", k, status.Counters[k])
	}
	return nil
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print state of the disciplined timers",
	Args:  cobra.NoArgs,
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			color.NoColor = true
		}
		status, err := daemon.NewClient(rootControlFlag).Status()
		if err != nil {
			log.Fatal(err)
		}
		var st stats.Stats
		if statusMonitoringFlag != "" {
			st, err = stats.FetchStats(statusMonitoringFlag)
			if err != nil {
				log.Warningf("failed to fetch lock state: %v", err)
			}
		}
		if err := statusRun(os.Stdout, status, st); err != nil {
			log.Fatal(err)
		}
	},
}

var capturesCmd = &cobra.Command{
	Use:   "captures",
	Short: "Print the most recent input capture events",
	Args:  cobra.NoArgs,
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()
		events, err := daemon.NewClient(rootControlFlag).Captures()
		if err != nil {
			log.Fatal(err)
		}
		for _, ev := range events {
			fmt.Printf("timer %d CH%d %s\n", ev.Timer, ev.Channel+1, ev.Timestamp)
		}
	},
}
