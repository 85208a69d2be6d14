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

/*
Package sim is a software test bench for timersync.

It models timers clocked from an oscillator with a configurable error and
a reference clock that timestamps every timer rollover into its aux
timestamp queue, the way a PHC with external timestamp inputs would. The
bench advances simulated time event by event and invokes the interrupt
handler synchronously, so closed-loop runs are deterministic.
*/
package sim

import (
	"sync"

	"github.com/flexptp/timersync/timersync"
)

// Timer is a simulated up-counting timer. Period writes take effect
// immediately, as with auto-reload preload disabled.
type Timer struct {
	mu      sync.Mutex
	period  uint32
	compare [timersync.NumChannels]uint32
	capture [timersync.NumChannels]uint32
	flags   timersync.IRQFlags
	enabled bool
}

// NewTimer returns a disabled timer with the given period
func NewTimer(period uint32) *Timer {
	return &Timer{period: period}
}

// Period returns the auto-reload value
func (t *Timer) Period() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.period
}

// SetPeriod writes the auto-reload value
func (t *Timer) SetPeriod(period uint32) {
	t.mu.Lock()
	t.period = period
	t.mu.Unlock()
}

// Capture returns the counter value latched by the last edge on ch
func (t *Timer) Capture(ch int) uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.capture[ch]
}

// SetCompare sets the compare value of ch
func (t *Timer) SetCompare(ch int, ticks uint32) {
	t.mu.Lock()
	t.compare[ch] = ticks
	t.mu.Unlock()
}

// Compare returns the compare value of ch
func (t *Timer) Compare(ch int) uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.compare[ch]
}

// Enable starts counting
func (t *Timer) Enable() error {
	t.mu.Lock()
	t.enabled = true
	t.mu.Unlock()
	return nil
}

// Disable stops counting and drops pending interrupt flags
func (t *Timer) Disable() error {
	t.mu.Lock()
	t.enabled = false
	t.flags = 0
	t.mu.Unlock()
	return nil
}

// Enabled reports whether the timer is counting
func (t *Timer) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

// Flags returns pending interrupt flags
func (t *Timer) Flags() timersync.IRQFlags {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.flags
}

// ClearFlags acknowledges interrupt flags
func (t *Timer) ClearFlags(f timersync.IRQFlags) {
	t.mu.Lock()
	t.flags &^= f
	t.mu.Unlock()
}

// Raise sets interrupt flags
func (t *Timer) Raise(f timersync.IRQFlags) {
	t.mu.Lock()
	t.flags |= f
	t.mu.Unlock()
}

// Latch stores a counter value into capture register ch and raises its flag
func (t *Timer) Latch(ch int, ticks uint32) {
	t.mu.Lock()
	t.capture[ch] = ticks
	t.flags |= timersync.FlagCC1 << ch
	t.mu.Unlock()
}
