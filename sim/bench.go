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

package sim

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	log "github.com/sirupsen/logrus"

	"github.com/flexptp/timersync/clock"
	"github.com/flexptp/timersync/servo"
	"github.com/flexptp/timersync/timersync"
	"github.com/flexptp/timersync/timestamp"
)

const (
	// DefaultTickHz is the counter clock of the simulated timers
	DefaultTickHz = 200e6
	// DefaultIRQLatencyNS is the interrupt entry delay
	DefaultIRQLatencyNS = 1000
)

// ErrNoHandler is returned by Step before an interrupt handler is attached
var ErrNoHandler = errors.New("no interrupt handler attached")

// ErrIdle is returned by Step when no timer is counting and no edge is scheduled
var ErrIdle = errors.New("nothing to simulate")

// IRQHandler receives timer interrupts
type IRQHandler interface {
	HandleIRQ(idx int)
}

// Config describes the simulated hardware
type Config struct {
	// TickHz is the nominal counter clock of the timers
	TickHz float64
	// OscillatorPPB is the error of the oscillator driving timers and reference
	OscillatorPPB float64
	// TimerPPB is the additional error of each timer clock, one entry per timer
	TimerPPB []float64
	// Compensate sets the reference addend to cancel OscillatorPPB, as a
	// disciplined PHC sharing the oscillator would
	Compensate bool
	// Start is the reference time when the simulation starts
	Start timestamp.Timestamp
	// JitterNS is the amplitude of uniform noise added to aux timestamps
	JitterNS float64
	// Seed of the jitter generator
	Seed int64
	// QueueDepth of the reference aux timestamp FIFO
	QueueDepth int
	// IRQLatencyNS is how late the reference clock reads inside an interrupt
	IRQLatencyNS float64
}

// DefaultConfig returns a single ideal timer
func DefaultConfig() Config {
	return Config{
		TickHz:       DefaultTickHz,
		TimerPPB:     []float64{0},
		Compensate:   true,
		QueueDepth:   DefaultQueueDepth,
		IRQLatencyNS: DefaultIRQLatencyNS,
	}
}

type edge struct {
	timer int
	ch    int
	at    float64
}

// Bench advances simulated time and dispatches timer interrupts
type Bench struct {
	cfg     Config
	ref     *Reference
	timers  []*Timer
	hz      []float64
	handler IRQHandler
	rnd     *rand.Rand

	// true time in ns since start, and reference time elapsed meanwhile
	now   float64
	refNS float64

	next      []float64
	last      []float64
	scheduled []bool
	edges     []edge
	rollovers []uint64
}

// NewBench builds timers and a reference clock per cfg
func NewBench(cfg Config) (*Bench, error) {
	if len(cfg.TimerPPB) == 0 || len(cfg.TimerPPB) > timersync.MaxTimers {
		return nil, fmt.Errorf("need between 1 and %d timers, got %d", timersync.MaxTimers, len(cfg.TimerPPB))
	}
	if cfg.TickHz <= 0 {
		return nil, fmt.Errorf("bad timer clock %f", cfg.TickHz)
	}
	osc := 1 + cfg.OscillatorPPB/1e9
	addend := clock.MaxAddend
	if cfg.Compensate {
		addend = uint64(math.Round(float64(clock.MaxAddend) / osc))
	}
	n := len(cfg.TimerPPB)
	b := &Bench{
		cfg:       cfg,
		ref:       NewReference(cfg.Start, addend, cfg.QueueDepth),
		timers:    make([]*Timer, n),
		hz:        make([]float64, n),
		rnd:       rand.New(rand.NewSource(cfg.Seed)),
		next:      make([]float64, n),
		last:      make([]float64, n),
		scheduled: make([]bool, n),
		rollovers: make([]uint64, n),
	}
	for i, ppb := range cfg.TimerPPB {
		b.timers[i] = NewTimer(servo.DefaultNominalPeriod)
		b.hz[i] = cfg.TickHz * osc * (1 + ppb/1e9)
	}
	log.Debugf("sim: %d timer(s), oscillator %.1fppb, reference addend %d", n, cfg.OscillatorPPB, addend)
	return b, nil
}

// Attach sets the interrupt handler, normally a *timersync.Driver
func (b *Bench) Attach(h IRQHandler) {
	b.handler = h
}

// Reference returns the simulated reference clock
func (b *Bench) Reference() *Reference {
	return b.ref
}

// Timer returns simulated timer idx
func (b *Bench) Timer(idx int) *Timer {
	return b.timers[idx]
}

// TimerDevices returns all timers as driver devices
func (b *Bench) TimerDevices() []timersync.TimerDevice {
	res := make([]timersync.TimerDevice, len(b.timers))
	for i, t := range b.timers {
		res[i] = t
	}
	return res
}

// Rollovers returns how many times timer idx wrapped
func (b *Bench) Rollovers(idx int) uint64 {
	return b.rollovers[idx]
}

// Now returns current reference time
func (b *Bench) Now() timestamp.Timestamp {
	return b.refTime(b.refNS)
}

func (b *Bench) refTime(ns float64) timestamp.Timestamp {
	return timestamp.Timestamp{
		Sec:  b.cfg.Start.Sec,
		Nsec: b.cfg.Start.Nsec + int64(math.Floor(ns)),
	}.Normalize()
}

// rate is reference ns elapsed per true ns
func (b *Bench) rate() float64 {
	return (1 + b.cfg.OscillatorPPB/1e9) * float64(b.ref.RateAdjustment()) / float64(clock.MaxAddend)
}

func (b *Bench) cycle(idx int) float64 {
	return (float64(b.timers[idx].Period()) + 1) / b.hz[idx] * 1e9
}

// ScheduleEdge makes an external edge hit capture channel ch of timer idx
// when the reference clock reaches at
func (b *Bench) ScheduleEdge(idx, ch int, at timestamp.Timestamp) error {
	if idx < 0 || idx >= len(b.timers) {
		return timersync.ErrBadTimer
	}
	if ch < 0 || ch >= timersync.NumChannels {
		return timersync.ErrBadChannel
	}
	ahead := float64(at.Sub(b.Now()).Nanoseconds())
	if ahead < 0 {
		return fmt.Errorf("edge at %v is in the past", at)
	}
	b.edges = append(b.edges, edge{timer: idx, ch: ch, at: b.now + ahead/b.rate()})
	return nil
}

func (b *Bench) schedule() {
	for i, t := range b.timers {
		enabled := t.Enabled()
		if enabled && !b.scheduled[i] {
			b.last[i] = b.now
			b.next[i] = b.now + b.cycle(i)
		}
		b.scheduled[i] = enabled
	}
}

func (b *Bench) advance(at float64) {
	b.refNS += (at - b.now) * b.rate()
	b.now = at
	b.ref.setTime(b.Now())
}

// Step simulates up to and including the next interrupt
func (b *Bench) Step() error {
	if b.handler == nil {
		return ErrNoHandler
	}
	b.schedule()

	timer, at := -1, math.Inf(1)
	for i := range b.timers {
		if b.scheduled[i] && b.next[i] < at {
			timer, at = i, b.next[i]
		}
	}
	e := -1
	for i, ed := range b.edges {
		if ed.at < at {
			e, at = i, ed.at
		}
	}
	if timer < 0 && e < 0 {
		return ErrIdle
	}
	b.advance(at)

	if e >= 0 {
		ed := b.edges[e]
		b.edges = append(b.edges[:e], b.edges[e+1:]...)
		if !b.scheduled[ed.timer] {
			return nil
		}
		ticks := uint32((b.now - b.last[ed.timer]) * b.hz[ed.timer] / 1e9)
		b.timers[ed.timer].Latch(ed.ch, ticks)
		b.interrupt(ed.timer)
		return nil
	}

	b.rollover(timer)
	return nil
}

func (b *Bench) rollover(idx int) {
	b.last[idx] = b.now
	b.rollovers[idx]++
	stamp := b.refNS
	if b.cfg.JitterNS > 0 {
		stamp += (b.rnd.Float64()*2 - 1) * b.cfg.JitterNS
	}
	b.ref.Stamp(idx, b.refTime(stamp))
	t := b.timers[idx]
	t.Raise(timersync.FlagUpdate)
	b.interrupt(idx)
	if !t.Enabled() {
		b.scheduled[idx] = false
		return
	}
	b.next[idx] = b.now + b.cycle(idx)
}

// interrupt runs the handler with the reference clock showing the interrupt entry time
func (b *Bench) interrupt(idx int) {
	b.ref.setTime(b.refTime(b.refNS + b.cfg.IRQLatencyNS))
	b.handler.HandleIRQ(idx)
	b.ref.setTime(b.Now())
}

// Run performs n steps
func (b *Bench) Run(n int) error {
	for i := 0; i < n; i++ {
		if err := b.Step(); err != nil {
			return err
		}
	}
	return nil
}
