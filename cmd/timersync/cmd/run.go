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
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/flexptp/timersync/daemon"
)

var (
	runConfigFlag         string
	runBackendFlag        string
	runMonitoringPortFlag int
)

func init() {
	RootCmd.AddCommand(runCmd)
	defaults := daemon.DefaultConfig()
	runCmd.Flags().StringVarP(&runConfigFlag, "config", "c", "", "path to the config")
	runCmd.Flags().StringVar(&runBackendFlag, "backend", defaults.Backend, "hardware backend, sim or phc")
	runCmd.Flags().IntVar(&runMonitoringPortFlag, "monitoringport", defaults.MonitoringPort, "port to start monitoring http server on")
}

func runRun(cfg *daemon.Config) error {
	backend, err := daemon.NewBackend(cfg)
	if err != nil {
		return err
	}
	d, err := daemon.New(cfg, backend)
	if err != nil {
		backend.Close()
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return d.Run(ctx)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the timersync daemon",
	Run: func(c *cobra.Command, _ []string) {
		ConfigureVerbosity()
		setFlags := map[string]bool{}
		for _, name := range []string{"backend", "monitoringport", "control"} {
			setFlags[name] = c.Flags().Changed(name)
		}
		cfg, err := daemon.PrepareConfig(runConfigFlag, runBackendFlag, runMonitoringPortFlag, rootControlFlag, setFlags)
		if err != nil {
			log.Fatal(err)
		}
		if err := runRun(cfg); err != nil {
			log.Fatal(err)
		}
	},
}
