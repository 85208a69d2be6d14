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

package servo

import (
	"math"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/constraints"

	"github.com/flexptp/timersync/timestamp"
)

const (
	// DefaultNominalPeriod is one second worth of ticks at 200 MHz, minus one
	DefaultNominalPeriod uint32 = 200000000 - 1
	// DefaultMaxAddend is the full scale of a 32-bit addend register
	DefaultMaxAddend uint64 = 0xFFFFFFFF
	// MaxPeriod is the largest value of a 32-bit period register
	MaxPeriod uint32 = 0xFFFFFFFF

	// HalfSecondNS is where the phase error wraps to a negative offset
	HalfSecondNS int64 = 500000000
	// GrossErrorNS is the phase error above which samples are discarded
	GrossErrorNS int64 = 2 * timestamp.NanosPerSecond
	// FineThresholdNS is the largest phase error handled by PD tracking
	FineThresholdNS int64 = 2000
	// JumpDivisor converts nanoseconds to ticks of the 200 MHz counter
	JumpDivisor int64 = 5
	// SettleCycles is how many samples are ignored after a coarse jump
	SettleCycles uint8 = 1

	// DefaultKp is the proportional gain tuned for the board oscillator
	DefaultKp = 0.02
	// DefaultKd is the derivative gain tuned for the board oscillator
	DefaultKd = 0.03
)

// Timer is the part of a timer device the servo actuates
type Timer interface {
	Period() uint32
	SetPeriod(period uint32)
}

// RateSource reports the reference clock rate adjustment factor (addend)
type RateSource interface {
	RateAdjustment() uint64
}

// Gains are the PD controller gains
type Gains struct {
	Kp float64 `json:"kp"`
	Kd float64 `json:"kd"`
}

// DefaultGains returns empirically tuned gains
func DefaultGains() Gains {
	return Gains{Kp: DefaultKp, Kd: DefaultKd}
}

// GainStore publishes gains to the interrupt path.
// Both values are swapped together via a single pointer store.
type GainStore struct {
	p atomic.Pointer[Gains]
}

// NewGainStore returns GainStore holding g
func NewGainStore(g Gains) *GainStore {
	s := &GainStore{}
	s.Store(g)
	return s
}

// Load returns current gains
func (s *GainStore) Load() Gains {
	return *s.p.Load()
}

// Store replaces both gains at once
func (s *GainStore) Store(g Gains) {
	s.p.Store(&g)
}

// ControllerState is the mutable servo state of one disciplined timer
type ControllerState struct {
	History      [2]timestamp.Timestamp // History[0] is the most recent
	ErrorHistory [2]int64               // ErrorHistory[0] is the most recent, ns
	Period       uint32
	SkipCycles   uint8
}

// Controller disciplines the period of one timer.
// Sample must only be called from a single goroutine.
type Controller struct {
	cfg   Config
	timer Timer
	rate  RateSource
	gains *GainStore

	state ControllerState

	// mirrors for readers outside of the sampling goroutine
	period    atomic.Uint32
	lastError atomic.Int64
}

// NewController returns a zeroed Controller with the nominal period
func NewController(cfg Config, timer Timer, rate RateSource, gains *GainStore) *Controller {
	c := &Controller{
		cfg:   cfg,
		timer: timer,
		rate:  rate,
		gains: gains,
	}
	c.state.Period = cfg.NominalPeriod
	c.period.Store(cfg.NominalPeriod)
	return c
}

// PhaseError returns the signed distance in ns of ts from the nearest second boundary
func PhaseError(ts timestamp.Timestamp) int64 {
	errNS := ts.Nsec
	if errNS > HalfSecondNS {
		errNS -= timestamp.NanosPerSecond
	}
	return errNS
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// toPeriod saturates a computed period into the register range
func toPeriod(v float64) uint32 {
	if math.IsNaN(v) {
		return 0
	}
	return uint32(clamp(v, 0, float64(MaxPeriod)))
}

// Sample feeds a reference timestamp of the timer output edge to the servo.
// It returns the value programmed for the next timer cycle and the servo state.
func (c *Controller) Sample(ts timestamp.Timestamp) (uint32, State) {
	// restores the regular period after a one-shot jump
	c.timer.SetPeriod(c.state.Period)

	if c.state.SkipCycles > 0 {
		c.state.SkipCycles--
		return c.state.Period, StateSkip
	}

	errNS := PhaseError(ts)
	c.lastError.Store(errNS)
	if abs(errNS) > GrossErrorNS {
		log.Warningf("servo: phase error %dns is too large, sample discarded", errNS)
		return c.state.Period, StateRejected
	}

	c.state.History[1] = c.state.History[0]
	c.state.History[0] = ts

	if abs(errNS) > FineThresholdNS {
		return c.jump(errNS), StateJump
	}
	return c.track(errNS), StateLocked
}

// jump programs a one-shot period pulling the phase towards the boundary
func (c *Controller) jump(errNS int64) uint32 {
	k := 1.0
	if addend := c.rate.RateAdjustment(); addend != 0 {
		k = float64(c.cfg.MaxAddend) / float64(addend)
	} else {
		log.Warning("servo: reference clock reports zero addend, assuming nominal rate")
	}
	period := toPeriod((float64(c.cfg.NominalPeriod)+1)*k - 1)
	// integer division before scaling is intentional
	jumpPeriod := toPeriod(float64(period) - float64(errNS/JumpDivisor)*k)

	c.timer.SetPeriod(jumpPeriod)
	c.setPeriod(period)
	c.state.SkipCycles = SettleCycles
	c.state.ErrorHistory[0] = 0
	log.Debugf("servo: jump by %dns, k=%.9f, period %d, one-shot period %d", errNS, k, period, jumpPeriod)
	return jumpPeriod
}

// track applies a PD correction to the programmed period
func (c *Controller) track(errNS int64) uint32 {
	g := c.gains.Load()
	diff := c.state.ErrorHistory[0] - c.state.ErrorHistory[1]
	c.state.ErrorHistory[1] = c.state.ErrorHistory[0]
	c.state.ErrorHistory[0] = errNS

	correction := g.Kp*float64(errNS) + g.Kd*float64(diff)
	newPeriod := clamp(int64(c.timer.Period())-int64(math.Round(correction)), 0, int64(MaxPeriod))

	c.timer.SetPeriod(uint32(newPeriod))
	c.setPeriod(uint32(newPeriod))
	return uint32(newPeriod)
}

func (c *Controller) setPeriod(p uint32) {
	c.state.Period = p
	c.period.Store(p)
}

// Period returns the last programmed regular period. Safe for concurrent use.
func (c *Controller) Period() uint32 {
	return c.period.Load()
}

// LastError returns the last computed phase error in ns. Safe for concurrent use.
func (c *Controller) LastError() int64 {
	return c.lastError.Load()
}

// Snapshot returns a copy of the controller state.
// It must be called from the goroutine that calls Sample.
func (c *Controller) Snapshot() ControllerState {
	return c.state
}
