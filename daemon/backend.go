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

package daemon

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/flexptp/timersync/phc"
	"github.com/flexptp/timersync/sim"
	"github.com/flexptp/timersync/timersync"
	"github.com/flexptp/timersync/timestamp"
)

// IRQHandler receives timer interrupts
type IRQHandler interface {
	HandleIRQ(idx int)
}

// Backend provides the hardware the driver disciplines and raises its interrupts
type Backend interface {
	Reference() timersync.ReferenceClock
	Timers() []timersync.TimerDevice
	// Run dispatches timer interrupts to h until ctx is done
	Run(ctx context.Context, h IRQHandler) error
	Close() error
}

// NewBackend builds the backend selected by cfg
func NewBackend(cfg *Config) (Backend, error) {
	switch cfg.Backend {
	case BackendSim:
		return newSimBackend(cfg)
	case BackendPHC:
		return newPHCBackend(cfg)
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

type simBackend struct {
	bench    *sim.Bench
	interval time.Duration
}

func newSimBackend(cfg *Config) (*simBackend, error) {
	bench, err := sim.NewBench(sim.Config{
		TickHz:        cfg.TickHz,
		OscillatorPPB: cfg.Sim.OscillatorPPB,
		TimerPPB:      cfg.Sim.TimerPPB,
		Compensate:    cfg.Sim.Compensate,
		Start:         timestamp.FromTime(time.Now()),
		JitterNS:      cfg.Sim.JitterNS,
		Seed:          cfg.Sim.Seed,
		QueueDepth:    sim.DefaultQueueDepth,
		IRQLatencyNS:  sim.DefaultIRQLatencyNS,
	})
	if err != nil {
		return nil, err
	}
	return &simBackend{
		bench:    bench,
		interval: time.Duration(float64(time.Second) / cfg.Sim.Speedup),
	}, nil
}

func (b *simBackend) Reference() timersync.ReferenceClock { return b.bench.Reference() }

func (b *simBackend) Timers() []timersync.TimerDevice { return b.bench.TimerDevices() }

func (b *simBackend) Run(ctx context.Context, h IRQHandler) error {
	b.bench.Attach(h)
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Debug("cancelled simulation loop")
			return nil
		case <-ticker.C:
			if err := b.bench.Step(); err != nil && !errors.Is(err, sim.ErrIdle) {
				return err
			}
		}
	}
}

func (b *simBackend) Close() error { return nil }

type phcBackend struct {
	ref      *phc.Reference
	devs     []*phc.Device
	timers   []*phc.PeroutTimer
	interval time.Duration
}

func newPHCBackend(cfg *Config) (*phcBackend, error) {
	path := cfg.PHC.Device
	if path == "" {
		var err error
		path, err = phc.DeviceFromIface(cfg.PHC.Iface)
		if err != nil {
			return nil, err
		}
	}
	edge, err := phc.ParseEdge(cfg.PHC.Edge)
	if err != nil {
		return nil, err
	}
	refDev, err := phc.Open(path)
	if err != nil {
		return nil, err
	}
	b := &phcBackend{
		ref:      phc.NewReference(refDev, edge, 0),
		devs:     []*phc.Device{refDev},
		interval: cfg.PHC.PollInterval,
	}
	timerDev := refDev
	if cfg.PHC.TimerDevice != "" && cfg.PHC.TimerDevice != path {
		timerDev, err = phc.Open(cfg.PHC.TimerDevice)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.devs = append(b.devs, timerDev)
	}
	for _, out := range cfg.PHC.Outputs {
		b.timers = append(b.timers, phc.NewPeroutTimer(timerDev, out, cfg.TickHz, cfg.NominalPeriod))
	}
	log.Infof("phc backend: reference %s, %d periodic output(s) on %s", path, len(b.timers), timerDev.Path())
	return b, nil
}

func (b *phcBackend) Reference() timersync.ReferenceClock { return b.ref }

func (b *phcBackend) Timers() []timersync.TimerDevice {
	res := make([]timersync.TimerDevice, len(b.timers))
	for i, t := range b.timers {
		res[i] = t
	}
	return res
}

// Run polls EXTTS events and turns them into rollover interrupts of the
// timers whose output they timestamp
func (b *phcBackend) Run(ctx context.Context, h IRQHandler) error {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Debug("cancelled event polling loop")
			return nil
		case <-ticker.C:
			mask := b.ref.PendingChannels()
			for i, t := range b.timers {
				if mask&(1<<i) == 0 {
					continue
				}
				t.Rollover()
				h.HandleIRQ(i)
			}
		}
	}
}

func (b *phcBackend) Close() error {
	var errs []error
	for _, d := range b.devs {
		errs = append(errs, d.Close())
	}
	return errors.Join(errs...)
}
