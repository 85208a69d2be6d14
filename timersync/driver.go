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

package timersync

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"github.com/flexptp/timersync/servo"
	"github.com/flexptp/timersync/timestamp"
)

// session is the servo state of one start/stop cycle
type session struct {
	controllers []*servo.Controller
	pending     []timestamp.Timestamp
	unprocessed []bool
	states      []atomic.Uint32
	samples     []atomic.Uint64
}

func newSession(cfg servo.Config, timers []TimerDevice, ref ReferenceClock, gains *servo.GainStore) *session {
	s := &session{
		controllers: make([]*servo.Controller, len(timers)),
		pending:     make([]timestamp.Timestamp, len(timers)),
		unprocessed: make([]bool, len(timers)),
		states:      make([]atomic.Uint32, len(timers)),
		samples:     make([]atomic.Uint64, len(timers)),
	}
	for i, t := range timers {
		s.controllers[i] = servo.NewController(cfg, t, ref, gains)
	}
	return s
}

// Driver disciplines timers against a reference clock
type Driver struct {
	cfg    servo.Config
	ref    ReferenceClock
	timers []TimerDevice
	sink   CaptureSink
	gains  *servo.GainStore

	// serializes Start and Stop, never taken by the interrupt path
	mu      sync.Mutex
	session atomic.Pointer[session]
	// interrupt handlers currently running
	inIRQ atomic.Int32

	counters Counters
}

// New returns a stopped Driver. Timer N is disciplined by aux input N of ref.
func New(cfg Config, ref ReferenceClock, sink CaptureSink, timers ...TimerDevice) (*Driver, error) {
	if len(timers) == 0 || len(timers) > MaxTimers {
		return nil, fmt.Errorf("need between 1 and %d timers, got %d", MaxTimers, len(timers))
	}
	if err := validateGains(cfg.Gains); err != nil {
		return nil, err
	}
	if sink == nil {
		sink = DiscardSink{}
	}
	return &Driver{
		cfg:    cfg.Servo,
		ref:    ref,
		timers: timers,
		sink:   sink,
		gains:  servo.NewGainStore(cfg.Gains),
	}, nil
}

// Start zeroes servo state, programs the nominal period and enables the timers
func (d *Driver) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.session.Load() != nil {
		return ErrRunning
	}
	d.ref.ClearTimestamps()
	for i, t := range d.timers {
		t.SetPeriod(d.cfg.NominalPeriod)
		if err := d.ref.EnableAuxChannel(i, true); err != nil {
			d.teardown()
			return fmt.Errorf("enabling aux timestamps for timer %d: %w", i, err)
		}
	}
	d.session.Store(newSession(d.cfg, d.timers, d.ref, d.gains))
	for i, t := range d.timers {
		if err := t.Enable(); err != nil {
			d.session.Store(nil)
			d.waitIRQ()
			d.teardown()
			return fmt.Errorf("enabling timer %d: %w", i, err)
		}
	}
	log.Infof("timersync started with %d timer(s), nominal period %d", len(d.timers), d.cfg.NominalPeriod)
	return nil
}

// Stop disables the timers and drops the servo state and queued timestamps.
// It returns once no interrupt handler works on the dropped state anymore,
// so it must not be called from an interrupt handler.
func (d *Driver) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.session.Swap(nil) == nil {
		return ErrNotRunning
	}
	d.waitIRQ()
	err := d.teardown()
	log.Info("timersync stopped")
	return err
}

// enterIRQ marks an interrupt handler as running. Handlers load the session
// only after entering, so once the session is dropped and inIRQ reads zero
// nobody can touch the old session.
func (d *Driver) enterIRQ() {
	d.inIRQ.Add(1)
}

func (d *Driver) exitIRQ() {
	d.inIRQ.Add(-1)
}

// waitIRQ waits for running interrupt handlers to return
func (d *Driver) waitIRQ() {
	for d.inIRQ.Load() != 0 {
		runtime.Gosched()
	}
}

func (d *Driver) teardown() error {
	var errs []error
	for i, t := range d.timers {
		if err := t.Disable(); err != nil {
			errs = append(errs, fmt.Errorf("disabling timer %d: %w", i, err))
		}
		if err := d.ref.EnableAuxChannel(i, false); err != nil {
			errs = append(errs, fmt.Errorf("disabling aux timestamps for timer %d: %w", i, err))
		}
	}
	d.ref.ClearTimestamps()
	return errors.Join(errs...)
}

// Running reports whether the servo is started
func (d *Driver) Running() bool {
	return d.session.Load() != nil
}

func validateGains(g servo.Gains) error {
	for _, v := range []float64{g.Kp, g.Kd} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return ErrBadGains
		}
	}
	return nil
}

// SetGains atomically replaces both PD gains
func (d *Driver) SetGains(kp, kd float64) error {
	g := servo.Gains{Kp: kp, Kd: kd}
	if err := validateGains(g); err != nil {
		return err
	}
	d.gains.Store(g)
	log.Infof("servo gains: Kp = %.6f, Kd = %.6f", kp, kd)
	return nil
}

// Gains returns current PD gains
func (d *Driver) Gains() servo.Gains {
	return d.gains.Load()
}

// SetCompareValue forces the compare threshold of a timer channel
func (d *Driver) SetCompareValue(timer, ch int, ticks uint32) error {
	if timer < 0 || timer >= len(d.timers) {
		return ErrBadTimer
	}
	if ch < 0 || ch >= NumChannels {
		return ErrBadChannel
	}
	d.timers[timer].SetCompare(ch, ticks)
	log.Infof("timer %d CH%d compare value: %d", timer, ch+1, ticks)
	return nil
}

// TimerStatus is a diagnostic view of one disciplined timer
type TimerStatus struct {
	Timer     int    `json:"timer"`
	Period    uint32 `json:"period"`
	LastError int64  `json:"last_error_ns"`
	State     string `json:"state"`
	// Samples processed by the servo since Start
	Samples uint64 `json:"samples"`
}

// Status returns diagnostics of all timers, nil when stopped
func (d *Driver) Status() []TimerStatus {
	s := d.session.Load()
	if s == nil {
		return nil
	}
	res := make([]TimerStatus, len(s.controllers))
	for i, c := range s.controllers {
		res[i] = TimerStatus{
			Timer:     i,
			Period:    c.Period(),
			LastError: c.LastError(),
			State:     servo.State(s.states[i].Load()).String(),
			Samples:   s.samples[i].Load(),
		}
	}
	return res
}

// Counters returns driver counters
func (d *Driver) Counters() *Counters {
	return &d.counters
}
