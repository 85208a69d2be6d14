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

package phc

import (
	"fmt"
	"math"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/flexptp/timersync/timersync"
	"github.com/flexptp/timersync/timestamp"
)

// peroutStartDelay is how many seconds ahead the first output edge is scheduled
const peroutStartDelay = 2

// PeroutDevice is the part of a PHC a PeroutTimer drives
type PeroutDevice interface {
	Time() (timestamp.Timestamp, error)
	Perout(req *unix.PtpPeroutRequest) error
}

// PeroutTimer exposes a PHC periodic output as a timer device. The output
// period is Period()+1 ticks of a virtual counter clocked at TickHz.
// The output is expected to be wired to an aux input of the reference clock;
// the owner calls Rollover whenever that input fires. Compare channel 0 sets
// the output pulse width. Perout outputs have no capture inputs.
type PeroutTimer struct {
	dev    PeroutDevice
	index  uint32
	tickHz float64

	mu      sync.Mutex
	period  uint32
	compare [timersync.NumChannels]uint32
	flags   timersync.IRQFlags
	enabled bool
	// PHC time of the last and the next output edge
	edge timestamp.Timestamp
	next timestamp.Timestamp
}

// NewPeroutTimer returns a disabled timer driving periodic output index of dev
func NewPeroutTimer(dev PeroutDevice, index uint, tickHz float64, period uint32) *PeroutTimer {
	return &PeroutTimer{
		dev:    dev,
		index:  uint32(index),
		tickHz: tickHz,
		period: period,
	}
}

// ticksToClockTime converts a number of virtual counter ticks to PHC time
func (t *PeroutTimer) ticksToClockTime(ticks float64) unix.PtpClockTime {
	ns := int64(math.Round(ticks / t.tickHz * float64(timestamp.NanosPerSecond)))
	return unix.PtpClockTime{
		Sec:  ns / timestamp.NanosPerSecond,
		Nsec: uint32(ns % timestamp.NanosPerSecond),
	}
}

func clockTimeToTimestamp(c unix.PtpClockTime) timestamp.Timestamp {
	return timestamp.New(c.Sec, int64(c.Nsec))
}

// program reprograms the output. Must hold t.mu.
func (t *PeroutTimer) program() error {
	period := t.ticksToClockTime(float64(t.period) + 1)
	req := &unix.PtpPeroutRequest{
		StartOrPhase: unix.PtpClockTime{Sec: t.next.Sec, Nsec: uint32(t.next.Nsec)},
		Period:       period,
		Index:        t.index,
	}
	if t.compare[0] != 0 {
		req.Flags |= ptpPeroutDutyCycle
		req.On = t.ticksToClockTime(float64(t.compare[0]))
	}
	err := t.dev.Perout(req)
	if err != nil && req.Flags&ptpPeroutDutyCycle != 0 {
		log.Warningf("phc: perout %d: duty cycle not supported, retrying without it: %v", t.index, err)
		req.Flags &^= ptpPeroutDutyCycle
		req.On = unix.PtpClockTime{}
		err = t.dev.Perout(req)
	}
	if err != nil {
		return fmt.Errorf("perout request on channel %d: %w", t.index, err)
	}
	return nil
}

// Period returns the programmed period in ticks
func (t *PeroutTimer) Period() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.period
}

// SetPeriod reschedules the next edge one new period after the last one
func (t *PeroutTimer) SetPeriod(period uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.period = period
	if !t.enabled {
		return
	}
	t.next = t.edge.Add(clockTimeToTimestamp(t.ticksToClockTime(float64(period) + 1)))
	if err := t.program(); err != nil {
		log.Warningf("phc: %v", err)
	}
}

// Capture always returns 0
func (t *PeroutTimer) Capture(int) uint32 {
	return 0
}

// SetCompare stores a compare value. Channel 0 sets the pulse width.
func (t *PeroutTimer) SetCompare(ch int, ticks uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.compare[ch] = ticks
	if ch == 0 && t.enabled {
		if err := t.program(); err != nil {
			log.Warningf("phc: %v", err)
		}
	}
}

// Enable starts the output on a whole second a few seconds from now
func (t *PeroutTimer) Enable() error {
	now, err := t.dev.Time()
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next = timestamp.Timestamp{Sec: now.Sec + peroutStartDelay}
	t.edge = t.next.Sub(clockTimeToTimestamp(t.ticksToClockTime(float64(t.period) + 1)))
	if err := t.program(); err != nil {
		return err
	}
	t.enabled = true
	return nil
}

// Disable stops the output
func (t *PeroutTimer) Disable() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = false
	t.flags = 0
	if err := t.dev.Perout(&unix.PtpPeroutRequest{Index: t.index}); err != nil {
		return fmt.Errorf("disabling perout on channel %d: %w", t.index, err)
	}
	return nil
}

// Rollover records an output edge and raises the update flag
func (t *PeroutTimer) Rollover() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	t.edge = t.next
	t.next = t.edge.Add(clockTimeToTimestamp(t.ticksToClockTime(float64(t.period) + 1)))
	t.flags |= timersync.FlagUpdate
}

// Flags returns pending interrupt flags
func (t *PeroutTimer) Flags() timersync.IRQFlags {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.flags
}

// ClearFlags acknowledges interrupt flags
func (t *PeroutTimer) ClearFlags(f timersync.IRQFlags) {
	t.mu.Lock()
	t.flags &^= f
	t.mu.Unlock()
}

// NextEdge returns PHC time of the next scheduled output edge
func (t *PeroutTimer) NextEdge() timestamp.Timestamp {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.next
}
