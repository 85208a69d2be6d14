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
	"strconv"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/flexptp/timersync/daemon"
)

func init() {
	RootCmd.AddCommand(startCmd)
	RootCmd.AddCommand(stopCmd)
	RootCmd.AddCommand(gainsCmd)
	RootCmd.AddCommand(compareCmd)
	compareCmd.Flags().IntVarP(&compareTimerFlag, "timer", "t", 0, "timer index")
	compareCmd.Flags().IntVarP(&compareChannelFlag, "channel", "n", 0, "channel index, 0 for CH1")
}

var (
	compareTimerFlag   int
	compareChannelFlag int
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start disciplining the timers",
	Args:  cobra.NoArgs,
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()
		if err := daemon.NewClient(rootControlFlag).Start(); err != nil {
			log.Fatal(err)
		}
		fmt.Println(okString(), "started")
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop disciplining the timers",
	Args:  cobra.NoArgs,
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()
		if err := daemon.NewClient(rootControlFlag).Stop(); err != nil {
			log.Fatal(err)
		}
		fmt.Println(okString(), "stopped")
	},
}

func gainsRun(address string, args []string) error {
	c := daemon.NewClient(address)
	if len(args) == 0 {
		g, err := c.Gains()
		if err != nil {
			return err
		}
		fmt.Printf("kp=%v kd=%v\n", g.Kp, g.Kd)
		return nil
	}
	kp, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("parsing kp: %w", err)
	}
	kd, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("parsing kd: %w", err)
	}
	g, err := c.SetGains(kp, kd)
	if err != nil {
		return err
	}
	fmt.Printf("kp=%v kd=%v\n", g.Kp, g.Kd)
	return nil
}

var gainsCmd = &cobra.Command{
	Use:   "gains [kp kd]",
	Short: "Print or replace the servo gains",
	Args: func(_ *cobra.Command, args []string) error {
		if len(args) != 0 && len(args) != 2 {
			return fmt.Errorf("expected either no arguments or kp and kd, got %d", len(args))
		}
		return nil
	},
	Run: func(_ *cobra.Command, args []string) {
		ConfigureVerbosity()
		if err := gainsRun(rootControlFlag, args); err != nil {
			log.Fatal(err)
		}
	},
}

var compareCmd = &cobra.Command{
	Use:   "compare VALUE",
	Short: "Force the output compare value of a timer channel",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		ConfigureVerbosity()
		v, err := strconv.ParseUint(args[0], 0, 32)
		if err != nil {
			log.Fatalf("parsing compare value: %v", err)
		}
		if err := daemon.NewClient(rootControlFlag).SetCompareValue(compareTimerFlag, compareChannelFlag, uint32(v)); err != nil {
			log.Fatal(err)
		}
		fmt.Println(okString(), fmt.Sprintf("timer %d CH%d compare value set to %d", compareTimerFlag, compareChannelFlag+1, v))
	},
}
