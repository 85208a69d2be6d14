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
Package timersync keeps hardware timers phase and frequency locked to a
reference clock.

Every timer rollover produces an output edge which the reference clock
timestamps into its aux timestamp queue. On the rollover interrupt the
driver drains that queue and feeds one timestamp per disciplined timer to
its servo, which reprograms the timer period for the following cycles.

Interrupt entry points (HandleIRQ, OnRollover, OnCapture) must all be
called from the same goroutine. Task-level methods (Start, Stop, SetGains,
SetCompareValue, Status) may be called from any goroutine.
*/
package timersync

//go:generate mockgen -source=timersync.go -destination=mock_timersync.go -package=timersync

import (
	"errors"

	"github.com/flexptp/timersync/servo"
	"github.com/flexptp/timersync/timestamp"
)

// NumChannels is the number of capture/compare channels of a timer
const NumChannels = 4

// MaxTimers is the number of aux timestamp inputs of the reference clock
const MaxTimers = 4

// maxDrainPerRollover bounds the aux queue drain in a single interrupt
const maxDrainPerRollover = 64

// Errors returned by the task-level API
var (
	ErrRunning    = errors.New("timersync is already running")
	ErrNotRunning = errors.New("timersync is not running")
	ErrBadChannel = errors.New("no such channel")
	ErrBadTimer   = errors.New("no such timer")
	ErrBadGains   = errors.New("gains must be finite numbers")
)

// IRQFlags are the pending interrupt flags of a timer
type IRQFlags uint32

// Interrupt flags
const (
	FlagUpdate IRQFlags = 1 << iota
	FlagCC1
	FlagCC2
	FlagCC3
	FlagCC4
)

// TimerDevice is a free running counter with a double-buffered period
// (auto-reload) register and NumChannels edge capture channels.
type TimerDevice interface {
	// Period returns the programmed period
	Period() uint32
	// SetPeriod programs the period, effective from the next rollover
	SetPeriod(period uint32)
	// Capture returns the counter value latched by channel ch
	Capture(ch int) uint32
	// SetCompare sets the compare threshold of channel ch
	SetCompare(ch int, ticks uint32)
	// Enable starts the counter and enables update and capture interrupts
	Enable() error
	// Disable stops the counter and masks its interrupts
	Disable() error
	// Flags returns pending interrupt flags
	Flags() IRQFlags
	// ClearFlags acknowledges interrupt flags
	ClearFlags(f IRQFlags)
}

// AuxTimestamp is an entry of the reference clock aux timestamp queue
type AuxTimestamp struct {
	Sec      int64
	Nsec     int64
	Channels uint32 // bit N set means aux input N latched this edge
}

// ReferenceClock is the clock the timers are locked to.
// Queue methods must tolerate ClearTimestamps racing with the interrupt path.
type ReferenceClock interface {
	// RateAdjustment returns the current addend
	RateAdjustment() uint64
	// Time returns current reference time
	Time() (timestamp.Timestamp, error)
	// PendingTimestamps returns the aux queue depth
	PendingTimestamps() int
	// ReadTimestamp pops the oldest aux timestamp, false if there was none
	ReadTimestamp() (AuxTimestamp, bool)
	// ClearTimestamps discards all queued aux timestamps
	ClearTimestamps()
	// EnableAuxChannel enables or disables timestamping of aux input ch
	EnableAuxChannel(ch int, enable bool) error
}

// CaptureEvent is a reference timestamp of an edge captured by a timer channel
type CaptureEvent struct {
	Timer     int                 `json:"timer"`
	Channel   int                 `json:"channel"`
	Timestamp timestamp.Timestamp `json:"timestamp"`
}

// CaptureSink consumes capture events. Capture is called from the
// interrupt path and must not block.
type CaptureSink interface {
	Capture(ev CaptureEvent)
}

// Config of the Driver
type Config struct {
	Servo servo.Config
	Gains servo.Gains
}

// DefaultConfig returns Config with default servo parameters and gains
func DefaultConfig() Config {
	return Config{
		Servo: servo.DefaultConfig(),
		Gains: servo.DefaultGains(),
	}
}
