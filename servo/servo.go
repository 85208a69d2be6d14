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

// State is the outcome of a single servo invocation
type State uint8

// All the states of servo
const (
	// StateInit means no sample has been processed yet
	StateInit State = iota
	// StateSkip means the sample was ignored while a coarse jump settles
	StateSkip
	// StateRejected means the sample failed the gross-error guard
	StateRejected
	// StateJump means a one-shot coarse correction was programmed
	StateJump
	// StateLocked means a fine tracking step was applied
	StateLocked
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateSkip:
		return "SKIP"
	case StateRejected:
		return "REJECTED"
	case StateJump:
		return "JUMP"
	case StateLocked:
		return "LOCKED"
	}
	return "UNSUPPORTED"
}

// Config holds the per-timer constants of the servo
type Config struct {
	// NominalPeriod is the auto-reload value giving one second at the nominal timer clock
	NominalPeriod uint32
	// MaxAddend is the reference clock addend corresponding to its nominal rate
	MaxAddend uint64
}

// DefaultConfig returns the servo config for a 200 MHz timer clock
func DefaultConfig() Config {
	return Config{
		NominalPeriod: DefaultNominalPeriod,
		MaxAddend:     DefaultMaxAddend,
	}
}
